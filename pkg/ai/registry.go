// ABOUTME: Model client contracts and the provider registry
// ABOUTME: Thread-safe registration and lookup of ApiProvider factories by API

package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Caller performs a single-shot model call.
type Caller interface {
	Call(ctx context.Context, model *Model, llmCtx *Context, opts *StreamOptions) (*AssistantMessage, error)
}

// Streamer initiates a streaming model call. The returned stream is lazy:
// the consumer pulls events and may Close it to cancel the request.
type Streamer interface {
	Stream(ctx context.Context, model *Model, llmCtx *Context, opts *StreamOptions) *EventStream
}

// ApiProvider is the interface all LLM providers implement.
type ApiProvider interface {
	// Api returns the provider's API identifier.
	Api() Api
	Caller
	Streamer
}

// ProviderOptions configures a provider instance.
type ProviderOptions struct {
	BaseURL  string
	APIKey   string
	ProxyURL string

	MaxAttempts int           // Transport attempts per request, including the first
	BaseDelay   time.Duration // Initial retry backoff
	MaxDelay    time.Duration // Backoff cap
}

// ProviderFactory creates an ApiProvider from options.
type ProviderFactory func(opts ProviderOptions) ApiProvider

var (
	registryMu sync.RWMutex
	registry   = make(map[Api]ProviderFactory)
)

// RegisterProvider registers a factory for the given API.
func RegisterProvider(api Api, factory ProviderFactory) {
	registryMu.Lock()
	registry[api] = factory
	registryMu.Unlock()
}

// GetProvider returns a provider for the given API.
// Returns nil if no provider is registered.
func GetProvider(api Api, opts ProviderOptions) ApiProvider {
	registryMu.RLock()
	factory, ok := registry[api]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return factory(opts)
}

// HasProvider checks if a provider is registered for the given API.
func HasProvider(api Api) bool {
	registryMu.RLock()
	_, ok := registry[api]
	registryMu.RUnlock()
	return ok
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, model *Model, llmCtx *Context, opts *StreamOptions) (*AssistantMessage, error)

// Call implements Caller.
func (f CallerFunc) Call(ctx context.Context, model *Model, llmCtx *Context, opts *StreamOptions) (*AssistantMessage, error) {
	return f(ctx, model, llmCtx, opts)
}

// CallerFromStreamer turns a Streamer into a single-shot Caller by draining
// the stream into an Accumulator.
func CallerFromStreamer(s Streamer) Caller {
	return CallerFunc(func(ctx context.Context, model *Model, llmCtx *Context, opts *StreamOptions) (*AssistantMessage, error) {
		return Collect(s.Stream(ctx, model, llmCtx, opts), nil)
	})
}

// Collect drains a stream, forwarding each event to onEvent (may be nil),
// and returns the accumulated response. An Error event, or a stream that ends
// without MessageStop, is reported as an error.
func Collect(stream *EventStream, onEvent func(StreamEvent)) (*AssistantMessage, error) {
	defer stream.Close()

	acc := NewAccumulator()
	for ev := range stream.Events() {
		if onEvent != nil {
			onEvent(ev)
		}
		acc.Apply(ev)
		if ev.Type == EventError {
			return nil, acc.Err()
		}
	}
	if !acc.Stopped() {
		if err := stream.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("stream ended before message_stop")
	}
	return acc.Result(), nil
}
