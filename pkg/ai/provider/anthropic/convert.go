// ABOUTME: Conversion between canonical ai types and the Anthropic Messages wire format
// ABOUTME: Builds request bodies; EncodeMessages/DecodeMessages round-trip conversation history

package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// wireMessage is one entry of the "messages" array.
type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

// wireBlock is a request content block. Content is a string or an array of
// text blocks for tool results.
type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type requestBody struct {
	Model         string        `json:"model"`
	MaxTokens     int           `json:"max_tokens"`
	Stream        bool          `json:"stream,omitempty"`
	System        string        `json:"system,omitempty"`
	Messages      []wireMessage `json:"messages"`
	Tools         []wireTool    `json:"tools,omitempty"`
	Temperature   *float64      `json:"temperature,omitempty"`
	TopP          *float64      `json:"top_p,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
}

var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

// wireRole maps a canonical role; tool results travel as user turns.
func wireRole(r ai.Role) string {
	if r == ai.RoleTool {
		return string(ai.RoleUser)
	}
	return string(r)
}

func toWireMessages(msgs []ai.Message) ([]wireMessage, error) {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{Role: wireRole(m.Role), Content: make([]wireBlock, 0, len(m.Content))}
		for _, c := range m.Content {
			switch c.Type {
			case ai.ContentText:
				wm.Content = append(wm.Content, wireBlock{Type: "text", Text: c.Text})
			case ai.ContentToolUse:
				input := c.Input
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				wm.Content = append(wm.Content, wireBlock{Type: "tool_use", ID: c.ID, Name: c.Name, Input: input})
			case ai.ContentToolResult:
				content, err := json.Marshal(c.Text)
				if err != nil {
					return nil, fmt.Errorf("encoding tool result %s: %w", c.ToolUseID, err)
				}
				wm.Content = append(wm.Content, wireBlock{
					Type:      "tool_result",
					ToolUseID: c.ToolUseID,
					Content:   content,
					IsError:   c.IsError,
				})
			}
		}
		out = append(out, wm)
	}
	return out, nil
}

func fromWireMessages(wms []wireMessage) ([]ai.Message, error) {
	out := make([]ai.Message, 0, len(wms))
	for i, wm := range wms {
		m := ai.Message{Role: ai.Role(wm.Role)}
		onlyResults := len(wm.Content) > 0
		for _, b := range wm.Content {
			switch b.Type {
			case "text":
				m.Content = append(m.Content, ai.TextContent(b.Text))
			case "tool_use":
				m.Content = append(m.Content, ai.Content{Type: ai.ContentToolUse, ID: b.ID, Name: b.Name, Input: b.Input})
			case "tool_result":
				text, err := resultText(b.Content)
				if err != nil {
					return nil, fmt.Errorf("message %d: %w", i, err)
				}
				m.Content = append(m.Content, ai.ToolResultContent(b.ToolUseID, text, b.IsError))
				continue
			default:
				continue
			}
			onlyResults = false
		}
		if m.Role == ai.RoleUser && onlyResults {
			m.Role = ai.RoleTool
		}
		out = append(out, m)
	}
	return out, nil
}

// resultText accepts both the string and the block-array form of tool_result content.
func resultText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", fmt.Errorf("decoding tool_result content: %w", err)
	}
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// EncodeMessages serialises a conversation in the Anthropic wire format.
func EncodeMessages(msgs []ai.Message) ([]byte, error) {
	wms, err := toWireMessages(msgs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wms)
}

// DecodeMessages parses a conversation in the Anthropic wire format.
// User turns made only of tool_result blocks decode as ai.RoleTool.
func DecodeMessages(data []byte) ([]ai.Message, error) {
	var wms []wireMessage
	if err := json.Unmarshal(data, &wms); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	return fromWireMessages(wms)
}

func convertTools(tools []ai.Tool) []wireTool {
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = emptySchema
		}
		out = append(out, wireTool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return out
}

// buildRequestBody constructs the full Anthropic Messages API request body.
func buildRequestBody(model *ai.Model, llmCtx *ai.Context, opts *ai.StreamOptions, stream bool) ([]byte, error) {
	msgs, err := toWireMessages(llmCtx.Messages)
	if err != nil {
		return nil, err
	}
	body := requestBody{
		Model:     model.ID,
		MaxTokens: resolveMaxTokens(model, opts),
		Stream:    stream,
		System:    llmCtx.System,
		Messages:  msgs,
	}
	if len(llmCtx.Tools) > 0 {
		body.Tools = convertTools(llmCtx.Tools)
	}
	if opts != nil {
		if opts.Temperature > 0 {
			body.Temperature = &opts.Temperature
		}
		if opts.TopP > 0 {
			body.TopP = &opts.TopP
		}
		body.StopSequences = opts.StopSequences
	}
	return json.Marshal(body)
}

// resolveMaxTokens returns the max tokens value, preferring opts over model defaults.
func resolveMaxTokens(model *ai.Model, opts *ai.StreamOptions) int {
	if opts != nil && opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	if model.MaxOutputTokens > 0 {
		return model.MaxOutputTokens
	}
	return defaultMaxTokens
}
