// ABOUTME: Tests for the Anthropic provider: text streaming, tool use, SDK calls and error handling
// ABOUTME: Uses httptest.NewServer to mock the Anthropic Messages API

package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

func testOptions(url string) ai.ProviderOptions {
	return ai.ProviderOptions{
		APIKey:      "test-key",
		BaseURL:     url,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestProviderStreamTextContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("got api key %q, want %q", r.Header.Get("x-api-key"), "test-key")
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("got version %q, want %q", r.Header.Get("anthropic-version"), "2023-06-01")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["stream"] != true || body["system"] != "You are a helpful assistant." {
			t.Errorf("request body = %v", body)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(buildSSETextResponse("Hello, world!")))
	}))
	t.Cleanup(srv.Close)

	provider := New(testOptions(srv.URL))
	if provider.Api() != ai.ApiAnthropic {
		t.Errorf("got Api %q, want %q", provider.Api(), ai.ApiAnthropic)
	}

	llmCtx := &ai.Context{
		System:   "You are a helpful assistant.",
		Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hi")},
	}
	stream := provider.Stream(context.Background(), &ai.ModelClaudeSonnet, llmCtx, &ai.StreamOptions{MaxTokens: 1024})

	var deltas []string
	result, err := ai.Collect(stream, func(ev ai.StreamEvent) {
		if ev.Type == ai.EventTextDelta {
			deltas = append(deltas, ev.Text)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deltas) != 1 || deltas[0] != "Hello, world!" {
		t.Errorf("deltas = %v", deltas)
	}
	if result.StopReason != ai.StopEndTurn {
		t.Errorf("got StopReason %q, want %q", result.StopReason, ai.StopEndTurn)
	}
	if result.Message().Text() != "Hello, world!" {
		t.Errorf("got text %q", result.Message().Text())
	}
}

func TestProviderStreamToolUse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(buildSSEToolUseResponse("tool_123", "get_weather", `{"city":"Paris"}`)))
	}))
	t.Cleanup(srv.Close)

	provider := New(testOptions(srv.URL))
	llmCtx := &ai.Context{
		Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Weather in Paris?")},
		Tools:    []ai.Tool{{Name: "get_weather", Description: "Get weather"}},
	}

	var started bool
	result, err := ai.Collect(provider.Stream(context.Background(), &ai.ModelClaudeSonnet, llmCtx, nil), func(ev ai.StreamEvent) {
		if ev.Type == ai.EventToolUseStart {
			started = ev.ToolID == "tool_123" && ev.ToolName == "get_weather"
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !started {
		t.Error("did not receive tool use start event")
	}
	if result.StopReason != ai.StopToolUse {
		t.Errorf("got StopReason %q, want %q", result.StopReason, ai.StopToolUse)
	}

	calls, malformed := result.ToolCalls()
	if len(calls) != 1 || len(malformed) != 0 {
		t.Fatalf("calls = %+v malformed = %v", calls, malformed)
	}
	if calls[0].ID != "tool_123" || calls[0].Input["city"] != "Paris" {
		t.Errorf("call = %+v", calls[0])
	}
}

func TestProviderStreamErrorResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	t.Cleanup(srv.Close)

	provider := New(testOptions(srv.URL))
	llmCtx := &ai.Context{Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hi")}}

	_, err := ai.Collect(provider.Stream(context.Background(), &ai.ModelClaudeSonnet, llmCtx, nil), nil)
	if err == nil {
		t.Fatal("expected error for unauthorized response")
	}
}

func TestProviderStreamMidStreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"model\":\"m\",\"usage\":{}}}\n\n" +
			"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"))
	}))
	t.Cleanup(srv.Close)

	provider := New(testOptions(srv.URL))
	llmCtx := &ai.Context{Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hi")}}

	var last ai.StreamEvent
	_, err := ai.Collect(provider.Stream(context.Background(), &ai.ModelClaudeSonnet, llmCtx, nil), func(ev ai.StreamEvent) {
		last = ev
	})
	if err == nil || last.Type != ai.EventError {
		t.Fatalf("err = %v, last event = %v", err, last.Type)
	}
}

func TestProviderCallViaSDK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if _, streaming := body["stream"]; streaming {
			t.Error("single-shot call must not request streaming")
		}
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 3 {
			t.Errorf("got %d messages, want 3", len(msgs))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-6",
			"content":[
				{"type":"text","text":"Reading."},
				{"type":"tool_use","id":"toolu_9","name":"read","input":{"path":"a.go"}}
			],
			"stop_reason":"tool_use","stop_sequence":null,
			"usage":{"input_tokens":5,"output_tokens":7}
		}`))
	}))
	t.Cleanup(srv.Close)

	provider := New(testOptions(srv.URL))
	llmCtx := &ai.Context{
		System: "sys",
		Messages: []ai.Message{
			ai.NewTextMessage(ai.RoleUser, "read a.go"),
			{Role: ai.RoleAssistant, Content: []ai.Content{{Type: ai.ContentToolUse, ID: "toolu_1", Name: "ls", Input: json.RawMessage(`{}`)}}},
			{Role: ai.RoleTool, Content: []ai.Content{ai.ToolResultContent("toolu_1", "a.go", false)}},
		},
		Tools: []ai.Tool{{Name: "read", Description: "Read a file", Parameters: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)}},
	}

	got, err := provider.Call(context.Background(), &ai.ModelClaudeSonnet, llmCtx, &ai.StreamOptions{Temperature: 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StopReason != ai.StopToolUse || got.Usage.OutputTokens != 7 {
		t.Errorf("got %+v", got)
	}
	calls, _ := got.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "read" || calls[0].Input["path"] != "a.go" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestRegisteredFactory(t *testing.T) {
	t.Parallel()

	p := ai.GetProvider(ai.ApiAnthropic, ai.ProviderOptions{APIKey: "k"})
	if p == nil || p.Api() != ai.ApiAnthropic {
		t.Fatalf("registered provider = %v", p)
	}
}

func TestStreamBadToolInputFailsFast(t *testing.T) {
	t.Parallel()

	provider := New(testOptions("http://127.0.0.1:1"))
	llmCtx := &ai.Context{Messages: []ai.Message{{Role: ai.RoleAssistant, Content: []ai.Content{
		{Type: ai.ContentToolUse, ID: "x", Name: "n", Input: json.RawMessage(`{not json`)},
	}}}}

	_, err := ai.Collect(provider.Stream(context.Background(), &ai.ModelClaudeSonnet, llmCtx, nil), nil)
	var marshalErr *json.MarshalerError
	if !errors.As(err, &marshalErr) {
		t.Fatalf("expected marshal error, got %v", err)
	}
}

// buildSSETextResponse constructs a realistic Anthropic SSE text streaming response.
func buildSSETextResponse(text string) string {
	return fmt.Sprintf(`event: message_start
data: {"type":"message_start","message":{"id":"msg_test","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-6","stop_reason":null,"usage":{"input_tokens":10,"output_tokens":0}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: ping
data: {"type":"ping"}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"%s"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":5}}

event: message_stop
data: {"type":"message_stop"}

`, escapeJSON(text))
}

// buildSSEToolUseResponse constructs a realistic Anthropic SSE tool use response.
func buildSSEToolUseResponse(toolID, toolName, toolInput string) string {
	return fmt.Sprintf(`event: message_start
data: {"type":"message_start","message":{"id":"msg_tool","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-6","stop_reason":null,"usage":{"input_tokens":10,"output_tokens":0}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"%s","name":"%s","input":{}}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"%s"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":15}}

event: message_stop
data: {"type":"message_stop"}

`, toolID, toolName, escapeJSON(toolInput))
}

// escapeJSON escapes a string for embedding in a JSON string value.
func escapeJSON(s string) string {
	b, _ := json.Marshal(s)
	// Remove surrounding quotes.
	return string(b[1 : len(b)-1])
}
