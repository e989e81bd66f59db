// ABOUTME: Tool contract for the execution engine: Tool, Result, Context and Outcome
// ABOUTME: Outcome distinguishes invocation failures from command-level failures

package tools

import (
	"context"
	"encoding/json"
	"maps"
	"time"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// ExecuteFunc runs a tool with narrowed arguments and the caller's context map.
type ExecuteFunc func(ctx context.Context, args Args, tctx Context) (Result, error)

// Tool defines a capability the model can invoke.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema; nil means no declared parameters
	Execute     ExecuteFunc
}

// Definition returns the tool as advertised to the model.
func (t *Tool) Definition() ai.Tool {
	return ai.Tool{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// Result is what a tool returns on normal completion. IsError marks a
// command-level failure (the tool ran but the operation failed).
type Result struct {
	Content string
	IsError bool
}

// Context is an opaque key/value map handed to every tool of a batch.
// Treat it as read-only; use With to derive a copy.
type Context map[string]any

// With returns a copy of c with key set to value.
func (c Context) With(key string, value any) Context {
	out := make(Context, len(c)+1)
	maps.Copy(out, c)
	out[key] = value
	return out
}

// Int returns the integer stored at key, if any.
func (c Context) Int(key string) (int, bool) {
	v, ok := c[key].(int)
	return v, ok
}

// OutcomeKind separates tools that ran from tools that could not be run.
type OutcomeKind int

const (
	OutcomeOk    OutcomeKind = iota // Tool ran; see IsError for command-level failure
	OutcomeError                    // Unknown tool, crash, timeout or returned error
)

func (k OutcomeKind) String() string {
	if k == OutcomeError {
		return "error"
	}
	return "ok"
}

// Outcome is the result of one tool call as seen by the loop.
type Outcome struct {
	ToolUseID string
	Name      string
	Kind      OutcomeKind
	Content   string
	IsError   bool
	Truncated bool
	Duration  time.Duration
}

// Failed reports whether the model should see this outcome as an error.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeError || o.IsError
}

// ToolResult converts the outcome into a tool_result content block.
func (o Outcome) ToolResult() ai.Content {
	return ai.ToolResultContent(o.ToolUseID, o.Content, o.Failed())
}

// ResultMessage aggregates outcomes, in order, into one tool-result message.
func ResultMessage(outcomes []Outcome) ai.Message {
	content := make([]ai.Content, len(outcomes))
	for i, o := range outcomes {
		content[i] = o.ToolResult()
	}
	return ai.Message{Role: ai.RoleTool, Content: content}
}
