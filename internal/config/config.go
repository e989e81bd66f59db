// ABOUTME: Settings loading with global + project config field-by-field merge
// ABOUTME: YAML via gopkg.in/yaml.v3; .json files are still accepted

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from a Go duration string ("90s", "2m").
// Bare integers are taken as milliseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return Duration(v), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var ms int64
		if err := node.Decode(&ms); err != nil {
			return err
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string or milliseconds: %w", err)
	}
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// RetrySettings tunes transport retries.
type RetrySettings struct {
	MaxAttempts int      `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	BaseDelay   Duration `yaml:"base_delay,omitempty" json:"base_delay,omitempty"`
	MaxDelay    Duration `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
}

// Settings holds the merged configuration.
type Settings struct {
	Provider       string         `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model          string         `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL        string         `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKeyEnv      string         `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	ProxyURL       string         `yaml:"proxy_url,omitempty" json:"proxy_url,omitempty"`
	SystemPrompt   string         `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	MaxIterations  int            `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	MaxTokens      int            `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature    float64        `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Stream         *bool          `yaml:"stream,omitempty" json:"stream,omitempty"`
	ToolTimeout    Duration       `yaml:"tool_timeout,omitempty" json:"tool_timeout,omitempty"`
	MaxConcurrency int            `yaml:"max_concurrency,omitempty" json:"max_concurrency,omitempty"`
	MaxOutputBytes int            `yaml:"max_output_bytes,omitempty" json:"max_output_bytes,omitempty"`
	Retry          *RetrySettings `yaml:"retry,omitempty" json:"retry,omitempty"`
	TaskTTL        Duration       `yaml:"task_ttl,omitempty" json:"task_ttl,omitempty"`
	SweepInterval  Duration       `yaml:"sweep_interval,omitempty" json:"sweep_interval,omitempty"`
	LogLevel       string         `yaml:"log_level,omitempty" json:"log_level,omitempty"`
}

// Streaming reports whether the streaming model path is enabled.
func (s *Settings) Streaming() bool {
	return s.Stream != nil && *s.Stream
}

// Load reads and merges global and project-local settings, then expands
// ${VAR} references. Project settings override global settings.
func Load(projectRoot string) (*Settings, error) {
	global, err := loadFirst(GlobalConfigFiles())
	if err != nil {
		return nil, fmt.Errorf("loading global config: %w", err)
	}

	project, err := loadFirst(ProjectConfigFiles(projectRoot))
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	merged := merge(global, project)
	ResolveEnvVars(merged)
	return merged, nil
}

// loadFirst loads the first existing file of paths. No file yields empty Settings.
func loadFirst(paths []string) (*Settings, error) {
	for _, p := range paths {
		s, err := loadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return s, err
	}
	return &Settings{}, nil
}

// loadFile reads Settings from a YAML or JSON file, chosen by extension.
// Returns zero Settings if the file does not exist.
func loadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Settings{}, err
	}
	var s Settings
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &s)
	} else {
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// merge overlays project settings onto global settings.
// Non-zero project values override global values.
func merge(global, project *Settings) *Settings {
	if global == nil {
		global = &Settings{}
	}
	if project == nil {
		return global
	}

	result := *global

	setString(&result.Provider, project.Provider)
	setString(&result.Model, project.Model)
	setString(&result.BaseURL, project.BaseURL)
	setString(&result.APIKeyEnv, project.APIKeyEnv)
	setString(&result.ProxyURL, project.ProxyURL)
	setString(&result.SystemPrompt, project.SystemPrompt)
	setString(&result.LogLevel, project.LogLevel)
	setInt(&result.MaxIterations, project.MaxIterations)
	setInt(&result.MaxTokens, project.MaxTokens)
	setInt(&result.MaxConcurrency, project.MaxConcurrency)
	setInt(&result.MaxOutputBytes, project.MaxOutputBytes)
	if project.Temperature != 0 {
		result.Temperature = project.Temperature
	}
	if project.Stream != nil {
		v := *project.Stream
		result.Stream = &v
	}
	setDuration(&result.ToolTimeout, project.ToolTimeout)
	setDuration(&result.TaskTTL, project.TaskTTL)
	setDuration(&result.SweepInterval, project.SweepInterval)

	if project.Retry != nil {
		r := RetrySettings{}
		if result.Retry != nil {
			r = *result.Retry
		}
		setInt(&r.MaxAttempts, project.Retry.MaxAttempts)
		setDuration(&r.BaseDelay, project.Retry.BaseDelay)
		setDuration(&r.MaxDelay, project.Retry.MaxDelay)
		result.Retry = &r
	}

	return &result
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *Duration, v Duration) {
	if v != 0 {
		*dst = v
	}
}
