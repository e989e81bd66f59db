// ABOUTME: Anthropic SSE payload type decoded with easyjson lexers (no reflection on the hot path)
// ABOUTME: One flat wireEvent covers every event kind; unknown fields are skipped

package anthropic

import (
	"github.com/mailru/easyjson/jlexer"

	"github.com/mauromedda/pi-loop-go/pkg/ai/internal/jsonlex"
)

// wireEvent is the union of all Anthropic streaming payload fields.
type wireEvent struct {
	Type  string
	Index int

	// message_start
	Model       string
	InputTokens int
	CacheRead   int
	CacheCreate int

	// content_block_start
	Block struct {
		Type string
		ID   string
		Name string
		Text string
	}

	// content_block_delta, message_delta
	Delta struct {
		Type        string
		Text        string
		PartialJSON string
		StopReason  string
	}
	OutputTokens int

	// error
	ErrType    string
	ErrMessage string
}

// UnmarshalJSON decodes a single SSE data payload.
func (v *wireEvent) UnmarshalJSON(data []byte) error {
	return jsonlex.Decode(data, v.UnmarshalEasyJSON)
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (v *wireEvent) UnmarshalEasyJSON(in *jlexer.Lexer) {
	jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "type":
			v.Type = in.String()
		case "index":
			v.Index = in.Int()
		case "message":
			jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
				switch key {
				case "model":
					v.Model = in.String()
				case "usage":
					v.readUsage(in)
				default:
					in.SkipRecursive()
				}
			})
		case "content_block":
			jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
				switch key {
				case "type":
					v.Block.Type = in.String()
				case "id":
					v.Block.ID = in.String()
				case "name":
					v.Block.Name = in.String()
				case "text":
					v.Block.Text = in.String()
				default:
					in.SkipRecursive()
				}
			})
		case "delta":
			jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
				switch key {
				case "type":
					v.Delta.Type = in.String()
				case "text":
					v.Delta.Text = in.String()
				case "partial_json":
					v.Delta.PartialJSON = in.String()
				case "stop_reason":
					v.Delta.StopReason = in.String()
				default:
					in.SkipRecursive()
				}
			})
		case "usage":
			v.readUsage(in)
		case "error":
			jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
				switch key {
				case "type":
					v.ErrType = in.String()
				case "message":
					v.ErrMessage = in.String()
				default:
					in.SkipRecursive()
				}
			})
		default:
			in.SkipRecursive()
		}
	})
}

func (v *wireEvent) readUsage(in *jlexer.Lexer) {
	jsonlex.Object(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "input_tokens":
			v.InputTokens = in.Int()
		case "output_tokens":
			v.OutputTokens = in.Int()
		case "cache_read_input_tokens":
			v.CacheRead = in.Int()
		case "cache_creation_input_tokens":
			v.CacheCreate = in.Int()
		default:
			in.SkipRecursive()
		}
	})
}
