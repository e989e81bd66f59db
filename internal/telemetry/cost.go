// ABOUTME: Per-model pricing table and cost estimation for model calls
// ABOUTME: Anthropic and OpenAI rates per million tokens; cache tokens priced relative to input

package telemetry

import (
	"strings"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// ModelPricing holds per-million-token rates for a model.
type ModelPricing struct {
	InputPerMillion  float64 // USD per million input tokens
	OutputPerMillion float64 // USD per million output tokens
}

// Cache reads and writes are billed as a fraction of the input rate.
const (
	cacheReadFactor  = 0.1
	cacheWriteFactor = 1.25
)

// defaultPricing is keyed by model ID prefix.
// LookupPricing uses the longest matching prefix.
var defaultPricing = map[string]ModelPricing{
	// Anthropic
	"claude-opus-4":   {InputPerMillion: 15.0, OutputPerMillion: 75.0},
	"claude-sonnet-4": {InputPerMillion: 3.0, OutputPerMillion: 15.0},
	"claude-haiku-4":  {InputPerMillion: 1.0, OutputPerMillion: 5.0},
	"claude-3-haiku":  {InputPerMillion: 0.25, OutputPerMillion: 1.25},
	// OpenAI
	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.0},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4.1":     {InputPerMillion: 2.0, OutputPerMillion: 8.0},
	"o3-mini":     {InputPerMillion: 1.10, OutputPerMillion: 4.40},
}

// fallbackPricing is used when the model is not in the table.
var fallbackPricing = ModelPricing{InputPerMillion: 3.0, OutputPerMillion: 15.0}

// LookupPricing returns the pricing for a model ID.
// Tries exact match first, then longest prefix match, then fallback.
func LookupPricing(modelID string) ModelPricing {
	if p, ok := defaultPricing[modelID]; ok {
		return p
	}

	bestKey := ""
	for key := range defaultPricing {
		if strings.HasPrefix(modelID, key) && len(key) > len(bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		return defaultPricing[bestKey]
	}

	return fallbackPricing
}

// EstimateCost returns the estimated cost in USD of usage on modelID.
func EstimateCost(modelID string, u ai.Usage) float64 {
	p := LookupPricing(modelID)
	in := float64(u.InputTokens) +
		float64(u.CacheRead)*cacheReadFactor +
		float64(u.CacheCreate)*cacheWriteFactor
	return in/1_000_000*p.InputPerMillion + float64(u.OutputTokens)/1_000_000*p.OutputPerMillion
}
