// ABOUTME: OpenAI chat-completion chunk decoded with easyjson lexers
// ABOUTME: Only the fields the parser maps are kept; everything else is skipped

package openai

import (
	"github.com/mailru/easyjson/jlexer"

	"github.com/mauromedda/pi-loop-go/pkg/ai/internal/jsonlex"
)

// chunk is one streamed chat.completion.chunk payload.
type chunk struct {
	Model   string
	Choices []chunkChoice
	Usage   *chunkUsage
}

type chunkChoice struct {
	Content      string
	ToolCalls    []toolCallDelta
	FinishReason string
}

type toolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

type chunkUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// UnmarshalJSON decodes a single SSE data payload.
func (c *chunk) UnmarshalJSON(data []byte) error {
	return jsonlex.Decode(data, c.UnmarshalEasyJSON)
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (c *chunk) UnmarshalEasyJSON(in *jlexer.Lexer) {
	jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "model":
			c.Model = in.String()
		case "choices":
			jsonlex.Array(in, func(in *jlexer.Lexer) {
				var ch chunkChoice
				ch.decode(in)
				c.Choices = append(c.Choices, ch)
			})
		case "usage":
			u := &chunkUsage{}
			jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
				switch key {
				case "prompt_tokens":
					u.PromptTokens = in.Int()
				case "completion_tokens":
					u.CompletionTokens = in.Int()
				default:
					in.SkipRecursive()
				}
			})
			c.Usage = u
		default:
			in.SkipRecursive()
		}
	})
}

func (ch *chunkChoice) decode(in *jlexer.Lexer) {
	jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "finish_reason":
			ch.FinishReason = in.String()
		case "delta":
			jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
				switch key {
				case "content":
					ch.Content = in.String()
				case "tool_calls":
					jsonlex.Array(in, func(in *jlexer.Lexer) {
						var tc toolCallDelta
						tc.decode(in)
						ch.ToolCalls = append(ch.ToolCalls, tc)
					})
				default:
					in.SkipRecursive()
				}
			})
		default:
			in.SkipRecursive()
		}
	})
}

func (tc *toolCallDelta) decode(in *jlexer.Lexer) {
	jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "index":
			tc.Index = in.Int()
		case "id":
			tc.ID = in.String()
		case "function":
			jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
				switch key {
				case "name":
					tc.Name = in.String()
				case "arguments":
					tc.Arguments = in.String()
				default:
					in.SkipRecursive()
				}
			})
		default:
			in.SkipRecursive()
		}
	})
}
