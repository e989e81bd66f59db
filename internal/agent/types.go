// ABOUTME: Loop configuration, results, terminal statuses and the verifier contract
// ABOUTME: Failed loops surface as *LoopError carrying the messages accumulated so far

package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/mauromedda/pi-loop-go/internal/tools"
	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

const (
	DefaultMaxIterations = 10
	DefaultToolTimeout   = 2 * time.Minute
)

// Config describes one loop. It is read-only to the loop; the zero values of
// MaxIterations and ToolTimeout select the defaults.
type Config struct {
	Model  *ai.Model
	Caller ai.Caller // Single-shot model client for Run/Continue

	// Streamer serves RunStream/ContinueStream. When nil, Caller is used if it
	// also implements ai.Streamer.
	Streamer ai.Streamer

	System        string
	Tools         *tools.Registry
	Verifiers     []Verifier
	Context       tools.Context // Passed to tools and verifiers
	StreamOptions *ai.StreamOptions

	MaxIterations  int
	ToolTimeout    time.Duration
	MaxConcurrency int // 0 = all calls of a batch at once
	MaxOutputBytes int // 0 = unlimited

	OnEvent func(Event) // Called synchronously on the loop goroutine
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.Tools == nil {
		c.Tools = tools.NewRegistry()
	}
	return c
}

// Status is the terminal outcome of a loop that did not fail.
type Status int

const (
	StatusSuccess Status = iota
	StatusMaxIterationsExceeded
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusMaxIterationsExceeded:
		return "max_iterations_exceeded"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is returned by a loop that reached Success or MaxIterationsExceeded.
type Result struct {
	Status     Status
	Text       string       // Final answer; the last assistant text when exhausted
	Messages   []ai.Message // Full conversation including the seed
	Iterations int
	Usage      ai.Usage
}

// LoopError reports a loop that terminated as Failed.
type LoopError struct {
	Iteration int
	Reason    string
	Err       error
	Messages  []ai.Message
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("agent loop failed at iteration %d: %s", e.Iteration, e.Reason)
}

func (e *LoopError) Unwrap() error { return e.Err }

// Verdict is a verifier's judgement on a final answer.
type Verdict struct {
	Passed bool
	Reason string // Feedback for the model when not Passed
}

// Pass accepts the answer.
func Pass() Verdict { return Verdict{Passed: true} }

// Retry rejects the answer with feedback for the next iteration.
func Retry(reason string) Verdict { return Verdict{Reason: reason} }

// Verifier checks a final answer. A returned error counts as a Retry.
type Verifier interface {
	Verify(ctx context.Context, text string, vctx tools.Context) (Verdict, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, text string, vctx tools.Context) (Verdict, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, text string, vctx tools.Context) (Verdict, error) {
	return f(ctx, text, vctx)
}
