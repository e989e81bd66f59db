// ABOUTME: Typed event bus fanning loop events out to driver subscribers
// ABOUTME: Delivers in subscription order; a panicking handler is isolated from the publisher

package eventbus

import (
	"slices"
	"sync"

	pilog "github.com/mauromedda/pi-loop-go/internal/log"
)

// Handler is a callback function for events.
type Handler[T any] func(T)

type subscription[T any] struct {
	id      int
	handler Handler[T]
}

// Bus is a typed event bus that delivers events to registered handlers.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   []subscription[T]
	nextID int
}

// New creates a new event bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers a handler and returns an idempotent unsubscribe function.
func (b *Bus[T]) Subscribe(handler Handler[T]) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription[T]{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscription[T]) bool { return s.id == id })
		b.mu.Unlock()
	}
}

// Publish sends an event to all registered handlers synchronously, in
// subscription order. Handlers must not block for long: publishers include
// the loop goroutine.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	snapshot := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		deliver(s.handler, event)
	}
}

func deliver[T any](h Handler[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			pilog.Warn("eventbus: handler panicked: %v", r)
		}
	}()
	h(event)
}

// Count returns the number of registered handlers.
func (b *Bus[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
