// ABOUTME: Request body construction for OpenAI-compatible Chat Completions streaming
// ABOUTME: Tool results become role "tool" messages; tool uses become assistant tool_calls

package openai

import (
	"encoding/json"
	"strings"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

type chatMessage struct {
	Role       string        `json:"role"`
	Content    *string       `json:"content"`
	ToolCalls  []toolCallReq `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type toolCallReq struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function toolCallFuncReq `json:"function"`
}

type toolCallFuncReq struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function toolFuncDef `json:"function"`
}

type toolFuncDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type requestBody struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Stream              bool           `json:"stream"`
	StreamOptions       *streamOptions `json:"stream_options,omitempty"`
	Tools               []toolDef      `json:"tools,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	Temperature         *float64       `json:"temperature,omitempty"`
	TopP                *float64       `json:"top_p,omitempty"`
	Stop                []string       `json:"stop,omitempty"`
}

var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

func buildRequestBody(model *ai.Model, llmCtx *ai.Context, opts *ai.StreamOptions) ([]byte, error) {
	body := requestBody{
		Model:         model.ID,
		Messages:      convertMessages(llmCtx),
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}
	for _, t := range llmCtx.Tools {
		params := t.Parameters
		if len(params) == 0 {
			params = emptySchema
		}
		body.Tools = append(body.Tools, toolDef{
			Type:     "function",
			Function: toolFuncDef{Name: t.Name, Description: t.Description, Parameters: params},
		})
	}
	if opts != nil {
		body.MaxCompletionTokens = opts.MaxTokens
		if opts.Temperature > 0 {
			body.Temperature = &opts.Temperature
		}
		if opts.TopP > 0 {
			body.TopP = &opts.TopP
		}
		body.Stop = opts.StopSequences
	}
	return json.Marshal(body)
}

func convertMessages(llmCtx *ai.Context) []chatMessage {
	var msgs []chatMessage
	if llmCtx.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: &llmCtx.System})
	}

	for _, m := range llmCtx.Messages {
		var text strings.Builder
		var calls []toolCallReq
		for _, c := range m.Content {
			switch c.Type {
			case ai.ContentText:
				text.WriteString(c.Text)
			case ai.ContentToolUse:
				args := string(c.Input)
				if args == "" {
					args = "{}"
				}
				calls = append(calls, toolCallReq{
					ID:       c.ID,
					Type:     "function",
					Function: toolCallFuncReq{Name: c.Name, Arguments: args},
				})
			case ai.ContentToolResult:
				content := c.Text
				if c.IsError {
					content = "Error: " + content
				}
				msgs = append(msgs, chatMessage{Role: "tool", Content: &content, ToolCallID: c.ToolUseID})
			}
		}

		if m.Role == ai.RoleTool && text.Len() == 0 {
			continue
		}
		role := string(m.Role)
		if m.Role == ai.RoleTool {
			role = string(ai.RoleUser)
		}
		msg := chatMessage{Role: role, ToolCalls: calls}
		if s := text.String(); s != "" || len(calls) == 0 {
			msg.Content = &s
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
