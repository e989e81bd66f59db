// ABOUTME: OpenAI Chat Completions provider (also serves OpenAI-compatible servers)
// ABOUTME: Streams over the retrying transport; single-shot calls go through the official SDK

package openai

import (
	"context"
	"net/http"
	"os"

	pilog "github.com/mauromedda/pi-loop-go/internal/log"
	"github.com/mauromedda/pi-loop-go/pkg/ai"
	"github.com/mauromedda/pi-loop-go/pkg/ai/internal/httputil"
)

const (
	defaultBaseURL     = "https://api.openai.com"
	chatCompletionPath = "/v1/chat/completions"
)

func init() {
	ai.RegisterProvider(ai.ApiOpenAI, func(opts ai.ProviderOptions) ai.ApiProvider {
		return New(opts)
	})
}

// Provider implements the OpenAI Chat Completions API.
type Provider struct {
	client *httputil.Client
	caller *sdkCaller
}

// New creates an OpenAI provider. If opts.APIKey is empty, it reads OPENAI_API_KEY.
func New(opts ai.ProviderOptions) *Provider {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = httputil.NormalizeBaseURL(opts.BaseURL)

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + opts.APIKey,
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

// Api returns the provider identifier.
func (p *Provider) Api() ai.Api {
	return ai.ApiOpenAI
}

// Stream initiates a streaming chat completion.
func (p *Provider) Stream(ctx context.Context, model *ai.Model, llmCtx *ai.Context, opts *ai.StreamOptions) *ai.EventStream {
	body, err := buildRequestBody(model, llmCtx, opts)
	if err != nil {
		stream := ai.NewEventStream(1)
		stream.FinishWithError(err)
		return stream
	}
	pilog.Debug("http: POST %s%s model=%s", p.client.BaseURL(), chatCompletionPath, model.ID)
	return p.client.Stream(ctx, http.MethodPost, chatCompletionPath, body, NewParser())
}

// Call performs a single-shot completion through the official SDK.
func (p *Provider) Call(ctx context.Context, model *ai.Model, llmCtx *ai.Context, opts *ai.StreamOptions) (*ai.AssistantMessage, error) {
	return p.caller.Call(ctx, model, llmCtx, opts)
}
