// ABOUTME: Incremental parser from Anthropic SSE bytes to canonical stream events
// ABOUTME: Pure Parse(state, data) function plus a Parser wrapper implementing ai.EventDecoder

package anthropic

import (
	"fmt"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
	"github.com/mauromedda/pi-loop-go/pkg/ai/internal/sse"
)

// ParserState carries everything the parser needs between chunks.
type ParserState struct {
	Buffer     []byte // Bytes of the unterminated trailing frame
	BlockIndex int    // Index of the most recently opened content block
	ToolID     string // ID of the open tool_use block, empty outside one
	Done       bool   // message_stop seen
}

// Parse consumes data and returns the events completed by it together with
// the successor state. Frames split across chunks are buffered; the input
// state is not modified.
func Parse(state ParserState, data []byte) ([]ai.StreamEvent, ParserState) {
	buf := make([]byte, 0, len(state.Buffer)+len(data))
	buf = append(append(buf, state.Buffer...), data...)

	frames, rest := sse.Split(buf)
	next := state
	next.Buffer = append([]byte(nil), rest...)

	var events []ai.StreamEvent
	for _, frame := range frames {
		ev, ok := sse.ParseFrame(frame)
		if !ok || ev.Data == "" {
			continue
		}
		events = next.apply(events, ev)
	}
	return events, next
}

// apply maps one SSE event onto canonical events, updating the cursors.
func (s *ParserState) apply(out []ai.StreamEvent, ev sse.Event) []ai.StreamEvent {
	var p wireEvent
	if err := p.UnmarshalJSON([]byte(ev.Data)); err != nil {
		return append(out, ai.StreamEvent{
			Type:  ai.EventError,
			Error: fmt.Errorf("anthropic: malformed %s payload: %w", eventName(ev, ""), err),
		})
	}

	switch eventName(ev, p.Type) {
	case "message_start":
		return append(out, ai.StreamEvent{
			Type:  ai.EventMessageStart,
			Model: p.Model,
			Usage: &ai.Usage{
				InputTokens:  p.InputTokens,
				OutputTokens: p.OutputTokens,
				CacheRead:    p.CacheRead,
				CacheCreate:  p.CacheCreate,
			},
		})

	case "content_block_start":
		s.BlockIndex = p.Index
		switch p.Block.Type {
		case "tool_use":
			s.ToolID = p.Block.ID
			return append(out, ai.StreamEvent{Type: ai.EventToolUseStart, ToolID: p.Block.ID, ToolName: p.Block.Name})
		case "text":
			if p.Block.Text != "" {
				return append(out, ai.StreamEvent{Type: ai.EventTextDelta, Text: p.Block.Text})
			}
		}
		return out

	case "content_block_delta":
		switch p.Delta.Type {
		case "text_delta":
			return append(out, ai.StreamEvent{Type: ai.EventTextDelta, Text: p.Delta.Text})
		case "input_json_delta":
			return append(out, ai.StreamEvent{Type: ai.EventInputJSONDelta, ToolID: s.ToolID, PartialJSON: p.Delta.PartialJSON})
		}
		return out

	case "content_block_stop":
		s.ToolID = ""
		return append(out, ai.StreamEvent{Type: ai.EventContentBlockStop, Index: p.Index})

	case "message_delta":
		return append(out, ai.StreamEvent{
			Type:       ai.EventMessageDelta,
			StopReason: ai.StopReason(p.Delta.StopReason),
			Usage:      &ai.Usage{OutputTokens: p.OutputTokens},
		})

	case "message_stop":
		s.Done = true
		return append(out, ai.StreamEvent{Type: ai.EventMessageStop})

	case "ping":
		return append(out, ai.StreamEvent{Type: ai.EventPing})

	case "error":
		msg := p.ErrMessage
		if msg == "" {
			msg = ev.Data
		}
		return append(out, ai.StreamEvent{
			Type:  ai.EventError,
			Error: fmt.Errorf("anthropic stream error: %s: %s", p.ErrType, msg),
		})
	}
	return out
}

// eventName prefers the SSE event field and falls back to the payload type.
func eventName(ev sse.Event, payloadType string) string {
	if ev.Type != "" {
		return ev.Type
	}
	return payloadType
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
func (p *Parser) Reset() {
	p.state = ParserState{}
}

// Complete implements ai.EventDecoder.
func (p *Parser) Complete() bool {
	return p.state.Done
}

// State returns a copy of the current parser state.
func (p *Parser) State() ParserState {
	s := p.state
	s.Buffer = append([]byte(nil), s.Buffer...)
	return s
}
