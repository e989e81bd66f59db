// ABOUTME: Anthropic Messages API provider: streaming over the retrying transport
// ABOUTME: Registers itself with the ai provider registry on import

package anthropic

import (
	"context"
	"net/http"
	"os"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
	"github.com/mauromedda/pi-loop-go/pkg/ai/internal/httputil"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	messagesPath     = "/v1/messages"
	defaultMaxTokens = 4096
)

func init() {
	ai.RegisterProvider(ai.ApiAnthropic, func(opts ai.ProviderOptions) ai.ApiProvider {
		return New(opts)
	})
}

// Provider implements ai.ApiProvider for the Anthropic Messages API.
type Provider struct {
	client *httputil.Client
	caller *sdkCaller
}

// New creates an Anthropic provider. If opts.APIKey is empty, it reads ANTHROPIC_API_KEY.
func New(opts ai.ProviderOptions) *Provider {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = httputil.NormalizeBaseURL(opts.BaseURL)

	headers := map[string]string{
		"x-api-key":         opts.APIKey,
		"anthropic-version": anthropicVersion,
		"content-type":      "application/json",
		"accept":            "text/event-stream",
	}
	policy := httputil.RetryPolicy{
		MaxAttempts: opts.MaxAttempts,
		BaseDelay:   opts.BaseDelay,
		MaxDelay:    opts.MaxDelay,
		Jitter:      true,
	}

	return &Provider{
		client: httputil.NewClient(opts.BaseURL, headers,
			httputil.WithRetryPolicy(policy),
			httputil.WithProxyURL(opts.ProxyURL),
		),
		caller: newSDKCaller(opts),
	}
}

// Api returns the Anthropic API identifier.
func (p *Provider) Api() ai.Api {
	return ai.ApiAnthropic
}

// Stream initiates a streaming call to the Anthropic Messages API.
func (p *Provider) Stream(ctx context.Context, model *ai.Model, llmCtx *ai.Context, opts *ai.StreamOptions) *ai.EventStream {
	body, err := buildRequestBody(model, llmCtx, opts, true)
	if err != nil {
		stream := ai.NewEventStream(1)
		stream.FinishWithError(err)
		return stream
	}
	return p.client.Stream(ctx, http.MethodPost, messagesPath, body, NewParser())
}

// Call performs a single-shot request through the official SDK.
func (p *Provider) Call(ctx context.Context, model *ai.Model, llmCtx *ai.Context, opts *ai.StreamOptions) (*ai.AssistantMessage, error) {
	return p.caller.Call(ctx, model, llmCtx, opts)
}
