// ABOUTME: Environment variable expansion in config string fields
// ABOUTME: Replaces ${VAR} patterns with os.Getenv values; unset vars become empty

package config

import (
	"os"
	"regexp"
)

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// ResolveEnvVars expands ${VAR} patterns in the string fields of Settings.
func ResolveEnvVars(s *Settings) {
	s.Provider = expandEnv(s.Provider)
	s.Model = expandEnv(s.Model)
	s.BaseURL = expandEnv(s.BaseURL)
	s.APIKeyEnv = expandEnv(s.APIKeyEnv)
	s.ProxyURL = expandEnv(s.ProxyURL)
	s.SystemPrompt = expandEnv(s.SystemPrompt)
	s.LogLevel = expandEnv(s.LogLevel)
}

// expandEnv replaces ${VAR} with os.Getenv(VAR). Unset vars become "".
func expandEnv(s string) string {
	if s == "" {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
