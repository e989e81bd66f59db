// ABOUTME: Model resolution: built-in definitions, provider prefixes, provider detection
// ABOUTME: Turns the provider/model settings into an ai.Model and ai.ProviderOptions

package config

import (
	"fmt"
	"strings"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// ResolveModel finds the model named by s.Model.
// Built-in models are checked first; "provider:model" and an explicit
// s.Provider select a custom model on that provider's API.
func ResolveModel(s *Settings) (*ai.Model, error) {
	id := s.Model
	if id == "" {
		if s.Provider != "" {
			api, err := parseProvider(s.Provider)
			if err != nil {
				return nil, err
			}
			if api == ai.ApiOpenAI {
				m := ai.ModelGPT4o
				return &m, nil
			}
		}
		m := ai.ModelClaudeSonnet // Default model
		return &m, nil
	}

	if m := ai.FindModel(id); m != nil {
		out := *m
		if s.Provider != "" {
			api, err := parseProvider(s.Provider)
			if err != nil {
				return nil, err
			}
			out.Api = api
		}
		return &out, nil
	}

	// Provider-prefixed custom models (e.g., "ollama:llama3")
	if provider, modelID, ok := strings.Cut(id, ":"); ok {
		return customModel(provider, modelID)
	}
	if s.Provider != "" {
		return customModel(s.Provider, id)
	}

	return nil, fmt.Errorf("unknown model %q (use provider:model for custom models)", id)
}

func parseProvider(provider string) (ai.Api, error) {
	switch strings.ToLower(provider) {
	case "anthropic":
		return ai.ApiAnthropic, nil
	case "openai", "ollama", "vllm":
		return ai.ApiOpenAI, nil // Ollama and vLLM use OpenAI-compatible API
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
}

func customModel(provider, modelID string) (*ai.Model, error) {
	api, err := parseProvider(provider)
	if err != nil {
		return nil, err
	}
	return &ai.Model{
		ID:              modelID,
		Name:            modelID,
		Api:             api,
		MaxTokens:       128000,
		MaxOutputTokens: 16384,
		SupportsTools:   true,
	}, nil
}

// ProviderOptions builds transport options for the model's provider.
func ProviderOptions(s *Settings, model *ai.Model, apiKey string) ai.ProviderOptions {
	opts := ai.ProviderOptions{
		BaseURL:  s.BaseURL,
		APIKey:   apiKey,
		ProxyURL: s.ProxyURL,
	}
	if opts.BaseURL == "" {
		opts.BaseURL = model.BaseURL
	}
	if s.Retry != nil {
		opts.MaxAttempts = s.Retry.MaxAttempts
		opts.BaseDelay = s.Retry.BaseDelay.Std()
		opts.MaxDelay = s.Retry.MaxDelay.Std()
	}
	return opts
}
