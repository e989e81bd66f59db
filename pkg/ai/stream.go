// ABOUTME: Canonical stream events and the lazy, cancellable EventStream
// ABOUTME: One producer goroutine feeds a bounded channel; Close cancels the producer's request

package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
)

// StreamEventType identifies the kind of canonical stream event.
type StreamEventType int

const (
	EventMessageStart StreamEventType = iota
	EventTextDelta
	EventToolUseStart
	EventInputJSONDelta
	EventContentBlockStop
	EventMessageDelta
	EventMessageStop
	EventPing
	EventError
)

var eventTypeNames = [...]string{
	EventMessageStart:     "message_start",
	EventTextDelta:        "text_delta",
	EventToolUseStart:     "tool_use_start",
	EventInputJSONDelta:   "input_json_delta",
	EventContentBlockStop: "content_block_stop",
	EventMessageDelta:     "message_delta",
	EventMessageStop:      "message_stop",
	EventPing:             "ping",
	EventError:            "error",
}

func (t StreamEventType) String() string {
	if int(t) >= 0 && int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("StreamEventType(%d)", int(t))
}

// StreamEvent is one provider-agnostic incremental unit of a model response.
type StreamEvent struct {
	Type        StreamEventType
	Text        string     // TextDelta
	ToolID      string     // ToolUseStart, InputJSONDelta
	ToolName    string     // ToolUseStart
	PartialJSON string     // InputJSONDelta
	Index       int        // ContentBlockStop
	Model       string     // MessageStart
	StopReason  StopReason // MessageDelta
	Usage       *Usage     // MessageStart, MessageDelta
	Error       error      // Error
}

// EventDecoder turns raw protocol bytes into canonical events.
// Implementations buffer partial frames between Feed calls.
type EventDecoder interface {
	// Feed consumes the next chunk of bytes and returns the events completed by it.
	Feed(data []byte) []StreamEvent
	// Reset discards buffered bytes and cursors; called before a retried attempt.
	Reset()
	// Complete reports whether the terminal frame of the response was seen.
	Complete() bool
}

// ErrStreamClosed is reported when the consumer closed the stream early.
var ErrStreamClosed = errors.New("stream closed by consumer")

// EventStream provides channel-based, lazily-consumed access to streaming events.
// Exactly one producer calls Send and Finish; consumers range over Events() or
// All() and may call Close at any time to stop the producer.
type EventStream struct {
	out    chan StreamEvent
	stop   chan struct{} // closed by Close
	done   chan struct{} // closed by Finish
	result atomic.Pointer[AssistantMessage]
	err    atomic.Pointer[error]

	finishOnce sync.Once
	stopOnce   sync.Once
	cancel     context.CancelFunc
}

// NewEventStream creates a new EventStream with the given buffer size.
func NewEventStream(bufSize int) *EventStream {
	return &EventStream{
		out:  make(chan StreamEvent, bufSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// NewCancellableEventStream derives a context for the producer that is
// cancelled when the consumer calls Close.
func NewCancellableEventStream(ctx context.Context, bufSize int) (*EventStream, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s := NewEventStream(bufSize)
	s.cancel = cancel
	return s, ctx
}

// Events returns a read-only channel of stream events.
// The channel is closed when the producer finishes.
func (s *EventStream) Events() <-chan StreamEvent {
	return s.out
}

// All returns the events as a lazy sequence. Stopping the iteration early
// closes the stream.
func (s *EventStream) All() iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		for ev := range s.out {
			if !yield(ev) {
				s.Close()
				return
			}
		}
	}
}

// Send delivers an event to the consumer, blocking while the buffer is full.
// Returns false once the consumer has closed the stream.
func (s *EventStream) Send(event StreamEvent) bool {
	select {
	case <-s.stop:
		return false
	default:
	}
	select {
	case s.out <- event:
		return true
	case <-s.stop:
		return false
	}
}

// Finish completes the stream with a final result (nil on failure).
func (s *EventStream) Finish(msg *AssistantMessage) {
	s.finishOnce.Do(func() {
		if msg != nil {
			s.result.Store(msg)
		}
		close(s.out)
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// FinishWithError delivers a terminal error event and completes the stream.
func (s *EventStream) FinishWithError(err error) {
	s.err.Store(&err)
	s.Send(StreamEvent{Type: EventError, Error: err})
	s.Finish(nil)
}

// Close signals the producer to stop and releases its request.
// Safe to call multiple times and concurrently with the producer.
func (s *EventStream) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Closed returns a channel closed when the consumer calls Close.
func (s *EventStream) Closed() <-chan struct{} {
	return s.stop
}

// Result blocks until the stream is complete and returns the final message.
func (s *EventStream) Result() *AssistantMessage {
	<-s.done
	return s.result.Load()
}

// Err blocks until the stream is complete and returns its terminal error, if any.
func (s *EventStream) Err() error {
	<-s.done
	if p := s.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Done returns a channel that is closed when the stream completes.
func (s *EventStream) Done() <-chan struct{} {
	return s.done
}
