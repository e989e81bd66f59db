// ABOUTME: Human-readable rendering of effective configuration
// ABOUTME: Printed by the CLI in verbose mode; secrets are never included

package config

import (
	"fmt"
	"strings"
)

// Explain renders a human-readable summary of the effective settings.
// Shows non-zero values grouped by section.
func Explain(s *Settings) string {
	if s == nil {
		s = &Settings{}
	}

	var b strings.Builder

	b.WriteString("=== Model ===\n")
	if s.Provider != "" {
		fmt.Fprintf(&b, "  Provider:    %s\n", s.Provider)
	}
	if s.Model != "" {
		fmt.Fprintf(&b, "  Model:       %s\n", s.Model)
	}
	if s.BaseURL != "" {
		fmt.Fprintf(&b, "  BaseURL:     %s\n", s.BaseURL)
	}
	if s.APIKeyEnv != "" {
		fmt.Fprintf(&b, "  APIKeyEnv:   %s\n", s.APIKeyEnv)
	}
	if s.MaxTokens != 0 {
		fmt.Fprintf(&b, "  MaxTokens:   %d\n", s.MaxTokens)
	}
	if s.Temperature != 0 {
		fmt.Fprintf(&b, "  Temperature: %.2f\n", s.Temperature)
	}
	fmt.Fprintf(&b, "  Stream:      %v\n", s.Streaming())
	b.WriteString("\n")

	b.WriteString("=== Loop ===\n")
	if s.MaxIterations != 0 {
		fmt.Fprintf(&b, "  MaxIterations:  %d\n", s.MaxIterations)
	}
	if s.ToolTimeout != 0 {
		fmt.Fprintf(&b, "  ToolTimeout:    %s\n", s.ToolTimeout)
	}
	if s.MaxConcurrency != 0 {
		fmt.Fprintf(&b, "  MaxConcurrency: %d\n", s.MaxConcurrency)
	}
	if s.MaxOutputBytes != 0 {
		fmt.Fprintf(&b, "  MaxOutputBytes: %d\n", s.MaxOutputBytes)
	}
	if s.SystemPrompt != "" {
		fmt.Fprintf(&b, "  SystemPrompt:   %d chars\n", len(s.SystemPrompt))
	}
	b.WriteString("\n")

	b.WriteString("=== Transport ===\n")
	if s.ProxyURL != "" {
		fmt.Fprintf(&b, "  ProxyURL:    %s\n", s.ProxyURL)
	}
	if s.Retry != nil {
		if s.Retry.MaxAttempts != 0 {
			fmt.Fprintf(&b, "  MaxAttempts: %d\n", s.Retry.MaxAttempts)
		}
		if s.Retry.BaseDelay != 0 {
			fmt.Fprintf(&b, "  BaseDelay:   %s\n", s.Retry.BaseDelay)
		}
		if s.Retry.MaxDelay != 0 {
			fmt.Fprintf(&b, "  MaxDelay:    %s\n", s.Retry.MaxDelay)
		}
	}
	b.WriteString("\n")

	b.WriteString("=== Driver ===\n")
	if s.TaskTTL != 0 {
		fmt.Fprintf(&b, "  TaskTTL:       %s\n", s.TaskTTL)
	}
	if s.SweepInterval != 0 {
		fmt.Fprintf(&b, "  SweepInterval: %s\n", s.SweepInterval)
	}
	if s.LogLevel != "" {
		fmt.Fprintf(&b, "  LogLevel:      %s\n", s.LogLevel)
	}

	return b.String()
}
