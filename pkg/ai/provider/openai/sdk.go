// ABOUTME: Single-shot chat completions through the official openai-go client
// ABOUTME: Converts canonical context to SDK params and the first choice back to ai types

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// sdkCaller implements ai.Caller with the official client.
type sdkCaller struct {
	client *sdk.Client
}

func newSDKCaller(opts ai.ProviderOptions) *sdkCaller {
	clientOpts := []option.RequestOption{option.WithBaseURL(opts.BaseURL + "/v1/")}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.MaxAttempts > 0 {
		clientOpts = append(clientOpts, option.WithMaxRetries(opts.MaxAttempts-1))
	}
	client := sdk.NewClient(clientOpts...)
	return &sdkCaller{client: &client}
}

// Call implements ai.Caller.
func (c *sdkCaller) Call(ctx context.Context, model *ai.Model, llmCtx *ai.Context, opts *ai.StreamOptions) (*ai.AssistantMessage, error) {
	params, err := buildSDKParams(model, llmCtx, opts)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}

	ch := resp.Choices[0]
	out := &ai.AssistantMessage{
		StopReason: mapFinishReason(ch.FinishReason),
		Model:      resp.Model,
		Usage: ai.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if ch.Message.Content != "" {
		out.Content = append(out.Content, ai.TextContent(ch.Message.Content))
	}
	for _, tc := range ch.Message.ToolCalls {
		args := tc.Function.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		out.Content = append(out.Content, ai.Content{
			Type:  ai.ContentToolUse,
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(args),
		})
	}
	return out, nil
}

func buildSDKParams(model *ai.Model, llmCtx *ai.Context, opts *ai.StreamOptions) (sdk.ChatCompletionNewParams, error) {
	params := sdk.ChatCompletionNewParams{Model: model.ID}
	if opts != nil {
		if opts.MaxTokens > 0 {
			params.MaxCompletionTokens = sdk.Int(int64(opts.MaxTokens))
		}
		if opts.Temperature > 0 {
			params.Temperature = sdk.Float(opts.Temperature)
		}
		if opts.TopP > 0 {
			params.TopP = sdk.Float(opts.TopP)
		}
	}

	if llmCtx.System != "" {
		params.Messages = append(params.Messages, sdk.SystemMessage(llmCtx.System))
	}
	for _, m := range llmCtx.Messages {
		var text strings.Builder
		var calls []sdk.ChatCompletionMessageToolCallParam
		for _, c := range m.Content {
			switch c.Type {
			case ai.ContentText:
				text.WriteString(c.Text)
			case ai.ContentToolUse:
				args := string(c.Input)
				if args == "" {
					args = "{}"
				}
				calls = append(calls, sdk.ChatCompletionMessageToolCallParam{
					ID:   c.ID,
					Type: "function",
					Function: sdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      c.Name,
						Arguments: args,
					},
				})
			case ai.ContentToolResult:
				content := c.Text
				if c.IsError {
					content = "Error: " + content
				}
				params.Messages = append(params.Messages, sdk.ToolMessage(content, c.ToolUseID))
			}
		}

		switch {
		case m.Role == ai.RoleAssistant && len(calls) > 0:
			asst := sdk.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if text.Len() > 0 {
				asst.Content.OfString = sdk.String(text.String())
			}
			params.Messages = append(params.Messages, sdk.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case m.Role == ai.RoleAssistant:
			params.Messages = append(params.Messages, sdk.AssistantMessage(text.String()))
		case text.Len() > 0:
			params.Messages = append(params.Messages, sdk.UserMessage(text.String()))
		}
	}

	for _, t := range llmCtx.Tools {
		schema := map[string]any{"type": "object", "properties": map[string]any{}}
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &schema); err != nil {
				return params, fmt.Errorf("tool %s: invalid schema: %w", t.Name, err)
			}
		}
		params.Tools = append(params.Tools, sdk.ChatCompletionToolParam{
			Type: "function",
			Function: sdk.FunctionDefinitionParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				Parameters:  schema,
			},
		})
	}
	return params, nil
}
