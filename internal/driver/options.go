// ABOUTME: Driver configuration and functional options used by New and Fork
// ABOUTME: Defaults: tasks expire 5m after completion, swept every minute

package driver

import (
	"time"

	"github.com/mauromedda/pi-loop-go/internal/agent"
	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

const (
	DefaultTaskTTL       = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Config configures a Driver.
type Config struct {
	Agent         agent.Config
	Stream        bool          // Use the streaming model path
	TaskTTL       time.Duration // Terminal, unretrieved tasks older than this are evicted
	SweepInterval time.Duration

	seed []ai.Message // Initial history, set through WithHistory
}

func (c Config) withDefaults() Config {
	if c.TaskTTL <= 0 {
		c.TaskTTL = DefaultTaskTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// Option overrides part of a driver's configuration.
type Option func(*Config)

// WithModel selects a different model.
func WithModel(m *ai.Model) Option {
	return func(c *Config) { c.Agent.Model = m }
}

// WithSystem replaces the system prompt.
func WithSystem(system string) Option {
	return func(c *Config) { c.Agent.System = system }
}

// WithVerifiers replaces the verifier chain.
func WithVerifiers(v ...agent.Verifier) Option {
	return func(c *Config) { c.Agent.Verifiers = v }
}

// WithMaxIterations bounds each loop.
func WithMaxIterations(n int) Option {
	return func(c *Config) { c.Agent.MaxIterations = n }
}

// WithStreaming toggles the streaming model path.
func WithStreaming(on bool) Option {
	return func(c *Config) { c.Stream = on }
}

// WithHistory seeds the driver's conversation.
func WithHistory(msgs []ai.Message) Option {
	return func(c *Config) { c.seed = ai.CloneMessages(msgs) }
}
