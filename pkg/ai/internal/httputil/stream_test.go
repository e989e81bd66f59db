// ABOUTME: Tests for the retrying streaming transport
// ABOUTME: Covers retry before first event, no retry after delivery, terminal errors, consumer cancellation

package httputil

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// lineDecoder is a test decoder: each "\n"-terminated line becomes a
// TextDelta, "END" completes the response and "ERR" yields an Error event.
type lineDecoder struct {
	buf    []byte
	done   bool
	resets atomic.Int32
}

func (d *lineDecoder) Feed(data []byte) []ai.StreamEvent {
	d.buf = append(d.buf, data...)
	var out []ai.StreamEvent
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return out
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]
		switch line {
		case "END":
			d.done = true
			out = append(out, ai.StreamEvent{Type: ai.EventMessageStop})
		case "ERR":
			out = append(out, ai.StreamEvent{Type: ai.EventError, Error: errors.New("upstream error")})
		default:
			out = append(out, ai.StreamEvent{Type: ai.EventTextDelta, Text: line})
		}
	}
}

func (d *lineDecoder) Reset() {
	d.buf = nil
	d.done = false
	d.resets.Add(1)
}

func (d *lineDecoder) Complete() bool { return d.done }

func collect(t *testing.T, s *ai.EventStream) []ai.StreamEvent {
	t.Helper()
	var out []ai.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func texts(events []ai.StreamEvent) []string {
	var out []string
	for _, ev := range events {
		switch ev.Type {
		case ai.EventTextDelta:
			out = append(out, ev.Text)
		case ai.EventMessageStop:
			out = append(out, "<stop>")
		case ai.EventError:
			out = append(out, "<error>")
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func flushWrite(w http.ResponseWriter, s string) {
	_, _ = w.Write([]byte(s))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestStreamDeliversInOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flushWrite(w, "a\nb")
		flushWrite(w, "\nc\nEND\n")
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, nil, WithRetryPolicy(fastRetry))
	stream := client.Stream(context.Background(), http.MethodPost, "/", []byte("{}"), &lineDecoder{})

	got := texts(collect(t, stream))
	if want := []string{"a", "b", "c", "<stop>"}; !equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestStreamRetriesBeforeFirstEvent(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			// Partial line then EOF: no event can have been delivered.
			flushWrite(w, "par")
			return
		}
		flushWrite(w, "a\nb\nEND\n")
	}))
	t.Cleanup(srv.Close)

	dec := &lineDecoder{}
	client := NewClient(srv.URL, nil, WithRetryPolicy(fastRetry))
	stream := client.Stream(context.Background(), http.MethodPost, "/", nil, dec)

	got := texts(collect(t, stream))
	if want := []string{"a", "b", "<stop>"}; !equal(got, want) {
		t.Errorf("events = %v, want %v (no duplicates, no stale bytes)", got, want)
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
	if n := dec.resets.Load(); n != 2 {
		t.Errorf("decoder resets = %d, want 2", n)
	}
}

func TestStreamNoRetryAfterDelivery(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		flushWrite(w, "a\n")
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, nil, WithRetryPolicy(fastRetry))
	stream := client.Stream(context.Background(), http.MethodPost, "/", nil, &lineDecoder{})

	got := texts(collect(t, stream))
	if want := []string{"a", "<error>"}; !equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if !errors.Is(stream.Err(), ErrStreamInterrupted) {
		t.Errorf("Err() = %v, want ErrStreamInterrupted", stream.Err())
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestStreamNothingAfterError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flushWrite(w, "a\nERR\nb\nEND\n")
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, nil, WithRetryPolicy(fastRetry))
	stream := client.Stream(context.Background(), http.MethodPost, "/", nil, &lineDecoder{})

	events := collect(t, stream)
	if got, want := texts(events), []string{"a", "<error>"}; !equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if events[1].Error == nil || events[1].Error.Error() != "upstream error" {
		t.Errorf("error event = %v", events[1].Error)
	}
}

func TestStreamTerminalStatus(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"error":"invalid model"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, nil, WithRetryPolicy(fastRetry))
	stream := client.Stream(context.Background(), http.MethodPost, "/", nil, &lineDecoder{})

	events := collect(t, stream)
	if len(events) != 1 || events[0].Type != ai.EventError {
		t.Fatalf("events = %+v, want a single error", events)
	}
	var se *StatusError
	if !errors.As(events[0].Error, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("error = %v, want 404 StatusError", events[0].Error)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestStreamConsumerCloseCancelsRequest(t *testing.T) {
	t.Parallel()

	cancelled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flushWrite(w, "a\n")
		<-r.Context().Done()
		close(cancelled)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, nil, WithRetryPolicy(fastRetry))
	stream := client.Stream(context.Background(), http.MethodPost, "/", nil, &lineDecoder{})

	for ev := range stream.All() {
		if ev.Type != ai.EventTextDelta || ev.Text != "a" {
			t.Errorf("unexpected event %+v", ev)
		}
		break
	}

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("server request not cancelled after consumer stopped")
	}
	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not finish after consumer stopped")
	}
}

func TestStreamRetriesShareOneBudget(t *testing.T) {
	t.Parallel()

	// 503, 503, then an empty 200, over and over.
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1)%3 != 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	client := NewClient(srv.URL, nil, WithRetryPolicy(policy))
	stream := client.Stream(context.Background(), http.MethodPost, "/", nil, &lineDecoder{})

	if got, want := texts(collect(t, stream)), []string{"<error>"}; !equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if stream.Err() == nil {
		t.Error("Err() = nil, want an error")
	}
	if n := requests.Load(); n > 3 {
		t.Errorf("requests = %d, want at most 3", n)
	}
}

func TestStreamBodyRetryLeavesBudgetForStatusRetry(t *testing.T) {
	t.Parallel()

	// Empty 200 first, then a 503 the client must still be allowed to retry.
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch requests.Add(1) {
		case 1:
			w.WriteHeader(http.StatusOK)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			flushWrite(w, "a\nEND\n")
		}
	}))
	t.Cleanup(srv.Close)

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	client := NewClient(srv.URL, nil, WithRetryPolicy(policy))
	stream := client.Stream(context.Background(), http.MethodPost, "/", nil, &lineDecoder{})

	if got, want := texts(collect(t, stream)), []string{"a", "<stop>"}; !equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
	if n := requests.Load(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}
