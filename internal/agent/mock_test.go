// ABOUTME: Scripted model clients for loop tests
// ABOUTME: mockProvider replays canned responses as single-shot calls or canonical event streams

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

var errNoMoreResponses = errors.New("no more mock responses")

// mockProvider replays canned responses; after the script runs out it
// repeats the last response when repeat is set, otherwise it fails.
type mockProvider struct {
	mu        sync.Mutex
	responses []*ai.AssistantMessage
	repeat    bool
	err       error // returned from every call when set
	calls     int
	contexts  []*ai.Context
}

func (m *mockProvider) next(llmCtx *ai.Context) (*ai.AssistantMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := &ai.Context{System: llmCtx.System, Messages: ai.CloneMessages(llmCtx.Messages), Tools: llmCtx.Tools}
	m.contexts = append(m.contexts, snapshot)
	idx := m.calls
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	if idx >= len(m.responses) {
		if !m.repeat || len(m.responses) == 0 {
			return nil, errNoMoreResponses
		}
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockProvider) Call(_ context.Context, _ *ai.Model, llmCtx *ai.Context, _ *ai.StreamOptions) (*ai.AssistantMessage, error) {
	return m.next(llmCtx)
}

// Stream replays the next response as canonical events, splitting tool input
// into two fragments so partial previews are exercised.
func (m *mockProvider) Stream(ctx context.Context, _ *ai.Model, llmCtx *ai.Context, _ *ai.StreamOptions) *ai.EventStream {
	stream, _ := ai.NewCancellableEventStream(ctx, 16)
	msg, err := m.next(llmCtx)

	go func() {
		if err != nil {
			stream.FinishWithError(err)
			return
		}
		stream.Send(ai.StreamEvent{Type: ai.EventMessageStart, Model: "mock", Usage: &ai.Usage{InputTokens: msg.Usage.InputTokens}})
		for i, c := range msg.Content {
			switch c.Type {
			case ai.ContentText:
				stream.Send(ai.StreamEvent{Type: ai.EventTextDelta, Text: c.Text})
			case ai.ContentToolUse:
				stream.Send(ai.StreamEvent{Type: ai.EventToolUseStart, ToolID: c.ID, ToolName: c.Name})
				input := string(c.Input)
				half := len(input) / 2
				stream.Send(ai.StreamEvent{Type: ai.EventInputJSONDelta, ToolID: c.ID, PartialJSON: input[:half]})
				stream.Send(ai.StreamEvent{Type: ai.EventInputJSONDelta, ToolID: c.ID, PartialJSON: input[half:]})
			}
			stream.Send(ai.StreamEvent{Type: ai.EventContentBlockStop, Index: i})
		}
		stream.Send(ai.StreamEvent{Type: ai.EventMessageDelta, StopReason: msg.StopReason, Usage: &ai.Usage{OutputTokens: msg.Usage.OutputTokens}})
		stream.Send(ai.StreamEvent{Type: ai.EventMessageStop})
		stream.Finish(nil)
	}()
	return stream
}

func textResponse(text string) *ai.AssistantMessage {
	return &ai.AssistantMessage{
		Content:    []ai.Content{ai.TextContent(text)},
		StopReason: ai.StopEndTurn,
		Usage:      ai.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

func toolResponse(id, name string, input map[string]any) *ai.AssistantMessage {
	raw, _ := json.Marshal(input)
	return &ai.AssistantMessage{
		Content: []ai.Content{
			ai.TextContent("Working on it."),
			{Type: ai.ContentToolUse, ID: id, Name: name, Input: raw},
		},
		StopReason: ai.StopToolUse,
		Usage:      ai.Usage{InputTokens: 20, OutputTokens: 8},
	}
}

func testModel() *ai.Model {
	return &ai.Model{ID: "mock-model", Api: ai.ApiAnthropic, MaxOutputTokens: 1024}
}
