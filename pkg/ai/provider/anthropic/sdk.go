// ABOUTME: Single-shot Anthropic calls through the official anthropic-sdk-go client
// ABOUTME: Converts canonical context to SDK params and the SDK response back to ai types

package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// sdkCaller implements ai.Caller with the official client.
type sdkCaller struct {
	client *sdk.Client
}

func newSDKCaller(opts ai.ProviderOptions) *sdkCaller {
	clientOpts := []option.RequestOption{option.WithBaseURL(opts.BaseURL)}
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
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	out := &ai.AssistantMessage{
		StopReason: ai.StopReason(resp.StopReason),
		Model:      string(resp.Model),
		Usage: ai.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			CacheRead:    int(resp.Usage.CacheReadInputTokens),
			CacheCreate:  int(resp.Usage.CacheCreationInputTokens),
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content = append(out.Content, ai.TextContent(block.AsText().Text))
		case "tool_use":
			tu := block.AsToolUse()
			input, err := json.Marshal(tu.Input)
			if err != nil || string(input) == "null" {
				input = []byte("{}")
			}
			out.Content = append(out.Content, ai.Content{Type: ai.ContentToolUse, ID: tu.ID, Name: tu.Name, Input: input})
		}
	}
	return out, nil
}

func buildSDKParams(model *ai.Model, llmCtx *ai.Context, opts *ai.StreamOptions) (sdk.MessageNewParams, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(model.ID),
		MaxTokens: int64(resolveMaxTokens(model, opts)),
	}
	if llmCtx.System != "" {
		params.System = []sdk.TextBlockParam{{Text: llmCtx.System}}
	}
	if opts != nil {
		if opts.Temperature > 0 {
			params.Temperature = sdk.Float(opts.Temperature)
		}
		if opts.TopP > 0 {
			params.TopP = sdk.Float(opts.TopP)
		}
		params.StopSequences = opts.StopSequences
	}

	for i, m := range llmCtx.Messages {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Content))
		for _, c := range m.Content {
			switch c.Type {
			case ai.ContentText:
				blocks = append(blocks, sdk.NewTextBlock(c.Text))
			case ai.ContentToolUse:
				input, err := ai.ParseToolInput(c.Input)
				if err != nil {
					return params, fmt.Errorf("message %d: %w", i, err)
				}
				blocks = append(blocks, sdk.NewToolUseBlock(c.ID, input, c.Name))
			case ai.ContentToolResult:
				blocks = append(blocks, sdk.NewToolResultBlock(c.ToolUseID, c.Text, c.IsError))
			}
		}
		if m.Role == ai.RoleAssistant {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(blocks...))
		} else {
			params.Messages = append(params.Messages, sdk.NewUserMessage(blocks...))
		}
	}

	for _, t := range llmCtx.Tools {
		schema := sdk.ToolInputSchemaParam{Type: constant.Object("object")}
		if len(t.Parameters) > 0 {
			var decl struct {
				Properties any      `json:"properties"`
				Required   []string `json:"required"`
			}
			if err := json.Unmarshal(t.Parameters, &decl); err != nil {
				return params, fmt.Errorf("tool %s: invalid schema: %w", t.Name, err)
			}
			schema.Properties = decl.Properties
			schema.Required = decl.Required
		}
		tool := sdk.ToolUnionParamOfTool(schema, t.Name)
		if tool.OfTool != nil && t.Description != "" {
			tool.OfTool.Description = sdk.String(t.Description)
		}
		params.Tools = append(params.Tools, tool)
	}
	return params, nil
}
