// ABOUTME: Core AI SDK types: Message, Content, ToolCall, Tool, Usage, Model, StopReason
// ABOUTME: Shared across all providers; wire-format agnostic

package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role represents a message role in the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool" // Tool results; sent as "user" on the Anthropic wire
)

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopToolUse   StopReason = "tool_use"
	StopStop      StopReason = "stop"
)

// ContentType identifies the kind of content block.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentToolUse    ContentType = "tool_use"
	ContentToolResult ContentType = "tool_result"
	ContentThinking   ContentType = "thinking"
)

// Content represents a content block within a message.
type Content struct {
	Type      ContentType     `json:"type"`
	Text      string          `json:"text,omitempty"`        // Text, or tool result content
	ID        string          `json:"id,omitempty"`          // Tool use ID
	Name      string          `json:"name,omitempty"`        // Tool name
	Input     json.RawMessage `json:"input,omitempty"`       // Tool use input
	ToolUseID string          `json:"tool_use_id,omitempty"` // Tool result correlation
	IsError   bool            `json:"is_error,omitempty"`    // Tool result error flag
	Thinking  string          `json:"thinking,omitempty"`
}

// TextContent returns a text block.
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// ToolResultContent returns a tool_result block answering the tool use with the given ID.
func ToolResultContent(toolUseID, content string, isError bool) Content {
	return Content{Type: ContentToolResult, ToolUseID: toolUseID, Text: content, IsError: isError}
}

// Message represents a conversation message. Messages are treated as immutable
// once appended to a conversation; use Clone before mutating a copy.
type Message struct {
	Role    Role      `json:"role"`
	Content []Content `json:"content"`
}

// NewTextMessage creates a message with a single text content block.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:    role,
		Content: []Content{TextContent(text)},
	}
}

// Text concatenates all text blocks of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentText {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks of the message in emission order.
func (m Message) ToolUses() []Content {
	var out []Content
	for _, c := range m.Content {
		if c.Type == ContentToolUse {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := Message{Role: m.Role, Content: make([]Content, len(m.Content))}
	for i, c := range m.Content {
		if c.Input != nil {
			c.Input = append(json.RawMessage(nil), c.Input...)
		}
		out.Content[i] = c
	}
	return out
}

// CloneMessages deep-copies a message sequence.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// ValidateSequence checks that every tool_result block references a tool_use
// block emitted earlier in the same sequence.
func ValidateSequence(msgs []Message) error {
	seen := make(map[string]bool)
	for i, m := range msgs {
		for _, c := range m.Content {
			switch c.Type {
			case ContentToolUse:
				seen[c.ID] = true
			case ContentToolResult:
				if !seen[c.ToolUseID] {
					return fmt.Errorf("message %d: tool_result references unknown tool_use %q", i, c.ToolUseID)
				}
			}
		}
	}
	return nil
}

// ToolCall is a model-issued request to invoke a named tool.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CacheRead    int `json:"cache_read_input_tokens,omitempty"`
	CacheCreate  int `json:"cache_creation_input_tokens,omitempty"`
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		CacheRead:    u.CacheRead + o.CacheRead,
		CacheCreate:  u.CacheCreate + o.CacheCreate,
	}
}

// Tool defines a tool the model can invoke.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"input_schema"` // JSON Schema
}

// Api identifies an API provider.
type Api string

const (
	ApiAnthropic Api = "anthropic"
	ApiOpenAI    Api = "openai"
)

// Model defines a model's metadata.
type Model struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Api             Api               `json:"api"`
	MaxTokens       int               `json:"max_tokens"`
	MaxOutputTokens int               `json:"max_output_tokens"`
	SupportsTools   bool              `json:"supports_tools"`
	BaseURL         string            `json:"base_url,omitempty"`
	CustomHeaders   map[string]string `json:"custom_headers,omitempty"`
}

// Context holds the messages and tools for an LLM call.
type Context struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

// StreamOptions configures a model call, streaming or not.
type StreamOptions struct {
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float64  `json:"temperature,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// AssistantMessage is the complete response of one model call.
type AssistantMessage struct {
	Content    []Content  `json:"content"`
	StopReason StopReason `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
	Model      string     `json:"model"`
}

// Message converts the response into a conversation message.
func (a *AssistantMessage) Message() Message {
	return Message{Role: RoleAssistant, Content: a.Content}
}

// ToolCalls decodes the tool_use blocks into ToolCalls in emission order.
// Inputs that fail to decode become empty maps; the second return value
// lists the IDs whose input was malformed.
func (a *AssistantMessage) ToolCalls() ([]ToolCall, []string) {
	var calls []ToolCall
	var malformed []string
	for _, c := range a.Content {
		if c.Type != ContentToolUse {
			continue
		}
		input, err := ParseToolInput(c.Input)
		if err != nil {
			malformed = append(malformed, c.ID)
			input = make(map[string]any)
		}
		calls = append(calls, ToolCall{ID: c.ID, Name: c.Name, Input: input})
	}
	return calls, malformed
}

// ParseToolInput deserialises raw JSON into a string-keyed map.
// Returns an empty map (not nil) when raw is empty or null.
func ParseToolInput(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("parsing tool input: %w", err)
	}
	if args == nil {
		args = make(map[string]any)
	}
	return args, nil
}
