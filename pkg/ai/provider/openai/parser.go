// ABOUTME: Incremental parser from OpenAI chat-completion SSE chunks to canonical stream events
// ABOUTME: Synthesises tool_use start/stop from tool_call index changes; [DONE] ends the message

package openai

import (
	"fmt"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
	"github.com/mauromedda/pi-loop-go/pkg/ai/internal/sse"
)

const doneSentinel = "[DONE]"

// block kinds tracked while a content block is open.
const (
	blockNone = iota
	blockText
	blockTool
)

// ParserState carries everything the parser needs between chunks.
type ParserState struct {
	Buffer     []byte
	Started    bool   // MessageStart emitted
	Open       int    // Kind of the open block
	BlockIndex int    // Index of the open block, counted in emission order
	ToolIndex  int    // Provider tool_call index of the open tool block
	ToolID     string // ID of the open tool block
	Done       bool
}

// Parse consumes data and returns the events completed by it together with
// the successor state. The input state is not modified.
func Parse(state ParserState, data []byte) ([]ai.StreamEvent, ParserState) {
	buf := make([]byte, 0, len(state.Buffer)+len(data))
	buf = append(append(buf, state.Buffer...), data...)

	frames, rest := sse.Split(buf)
	next := state
	next.Buffer = append([]byte(nil), rest...)

	var events []ai.StreamEvent
	for _, frame := range frames {
		ev, ok := sse.ParseFrame(frame)
		if !ok || ev.Data == "" || next.Done {
			continue
		}
		events = next.apply(events, ev.Data)
	}
	return events, next
}

func (s *ParserState) apply(out []ai.StreamEvent, data string) []ai.StreamEvent {
	if data == doneSentinel {
		out = s.closeBlock(out)
		s.Done = true
		return append(out, ai.StreamEvent{Type: ai.EventMessageStop})
	}

	var c chunk
	if err := c.UnmarshalJSON([]byte(data)); err != nil {
		return append(out, ai.StreamEvent{Type: ai.EventError, Error: fmt.Errorf("openai: malformed chunk: %w", err)})
	}

	if !s.Started {
		s.Started = true
		out = append(out, ai.StreamEvent{Type: ai.EventMessageStart, Model: c.Model, Usage: &ai.Usage{}})
	}

	var stop ai.StopReason
	for _, ch := range c.Choices {
		if ch.Content != "" {
			if s.Open != blockText {
				out = s.closeBlock(out)
				s.Open = blockText
			}
			out = append(out, ai.StreamEvent{Type: ai.EventTextDelta, Text: ch.Content})
		}
		for _, tc := range ch.ToolCalls {
			if s.Open != blockTool || tc.Index != s.ToolIndex {
				out = s.closeBlock(out)
				s.Open, s.ToolIndex, s.ToolID = blockTool, tc.Index, tc.ID
				out = append(out, ai.StreamEvent{Type: ai.EventToolUseStart, ToolID: tc.ID, ToolName: tc.Name})
			}
			if tc.Arguments != "" {
				out = append(out, ai.StreamEvent{Type: ai.EventInputJSONDelta, ToolID: s.ToolID, PartialJSON: tc.Arguments})
			}
		}
		if ch.FinishReason != "" {
			out = s.closeBlock(out)
			stop = mapFinishReason(ch.FinishReason)
		}
	}

	if stop != "" || c.Usage != nil {
		ev := ai.StreamEvent{Type: ai.EventMessageDelta, StopReason: stop}
		if c.Usage != nil {
			ev.Usage = &ai.Usage{InputTokens: c.Usage.PromptTokens, OutputTokens: c.Usage.CompletionTokens}
		}
		out = append(out, ev)
	}
	return out
}

// closeBlock emits ContentBlockStop for the open block, if any.
func (s *ParserState) closeBlock(out []ai.StreamEvent) []ai.StreamEvent {
	if s.Open == blockNone {
		return out
	}
	out = append(out, ai.StreamEvent{Type: ai.EventContentBlockStop, Index: s.BlockIndex})
	s.BlockIndex++
	s.Open, s.ToolID = blockNone, ""
	return out
}

func mapFinishReason(reason string) ai.StopReason {
	switch reason {
	case "stop":
		return ai.StopEndTurn
	case "length":
		return ai.StopMaxTokens
	case "tool_calls", "function_call":
		return ai.StopToolUse
	default:
		return ai.StopStop
	}
}

// Parser adapts Parse to the ai.EventDecoder interface.
type Parser struct {
	state ParserState
}

// NewParser returns a parser in its initial state.
func NewParser() *Parser {
	return &Parser{}
}

// Feed implements ai.EventDecoder.
func (p *Parser) Feed(data []byte) []ai.StreamEvent {
	events, next := Parse(p.state, data)
	p.state = next
	return events
}

// Reset implements ai.EventDecoder.
func (p *Parser) Reset() { p.state = ParserState{} }

// Complete implements ai.EventDecoder.
func (p *Parser) Complete() bool { return p.state.Done }
