// ABOUTME: Observable loop events delivered to the configured sink
// ABOUTME: Emitted synchronously, in loop order, on the goroutine driving the loop

package agent

import (
	"fmt"

	"github.com/mauromedda/pi-loop-go/internal/tools"
	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// EventType identifies the kind of loop event.
type EventType int

const (
	EventLoopStart EventType = iota
	EventIterationStart
	EventLLMCallStart
	EventLLMCallEnd
	EventTextDelta      // Streaming only
	EventToolUseStart   // Streaming only
	EventInputJSONDelta // Streaming only
	EventToolUse
	EventToolOutcome
	EventToolResults
	EventVerificationFailed
	EventLoopEnd
)

var eventTypeNames = [...]string{
	EventLoopStart:          "loop_start",
	EventIterationStart:     "iteration_start",
	EventLLMCallStart:       "llm_call_start",
	EventLLMCallEnd:         "llm_call_end",
	EventTextDelta:          "text_delta",
	EventToolUseStart:       "tool_use_start",
	EventInputJSONDelta:     "input_json_delta",
	EventToolUse:            "tool_use",
	EventToolOutcome:        "tool_outcome",
	EventToolResults:        "tool_results",
	EventVerificationFailed: "verification_failed",
	EventLoopEnd:            "loop_end",
}

func (t EventType) String() string {
	if int(t) >= 0 && int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is one observable step of a loop. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType
	Iteration int

	Text    string         // TextDelta, VerificationFailed (reason)
	ToolID  string         // ToolUseStart, InputJSONDelta, ToolUse, ToolOutcome
	Name    string         // ToolUseStart, ToolUse, ToolOutcome
	Input   map[string]any // ToolUse; InputJSONDelta carries the best-effort partial input
	Partial string         // InputJSONDelta raw fragment
	Outcome *tools.Outcome // ToolOutcome
	Message *ai.Message    // ToolResults
	Usage   *ai.Usage      // LLMCallEnd (this call), LoopEnd (total)
	Stop    ai.StopReason  // LLMCallEnd
	Status  Status         // LoopEnd on success or exhaustion
	Err     error          // LoopEnd on failure
}

// emit delivers ev to the sink, if any.
func (s *loopState) emit(ev Event) {
	if s.sink == nil {
		return
	}
	ev.Iteration = s.iteration
	s.sink(ev)
}
