// ABOUTME: Retrying streaming transport producing a lazy, cancellable ai.EventStream
// ABOUTME: Body-phase failures retry only before the first delivered event; decoder is reset per attempt

package httputil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	pilog "github.com/mauromedda/pi-loop-go/internal/log"
	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

const (
	streamBufferSize = 64
	readChunkSize    = 32 * 1024
)

// ErrStreamInterrupted reports a response body that failed or ended before
// its terminal frame.
var ErrStreamInterrupted = errors.New("stream interrupted")

// errDecoded marks a terminal Error event produced by the decoder.
type errDecoded struct{ err error }

func (e *errDecoded) Error() string { return e.err.Error() }
func (e *errDecoded) Unwrap() error { return e.err }

// Stream sends the request and decodes the response body into canonical
// events on a producer goroutine. The returned stream is lazy: the producer
// blocks while the consumer is not reading, and Close cancels the request.
//
// Pre-response failures are retried as in Do. A body that fails mid-way is
// re-requested only while no event of the current attempt has been delivered;
// afterwards the failure surfaces as a terminal Error event. Both kinds of
// retry draw on the same MaxAttempts budget.
func (c *Client) Stream(ctx context.Context, method, path string, body []byte, dec ai.EventDecoder) *ai.EventStream {
	stream, sctx := ai.NewCancellableEventStream(ctx, streamBufferSize)
	go c.pump(sctx, stream, method, path, body, dec)
	return stream
}

func (c *Client) pump(ctx context.Context, stream *ai.EventStream, method, path string, body []byte, dec ai.EventDecoder) {
	var used int
	for {
		dec.Reset()

		resp, err := c.do(ctx, method, path, bytes.NewReader(body), &used)
		if err != nil {
			c.fail(stream, err)
			return
		}

		delivered, err := consume(stream, resp.Body, dec)
		resp.Body.Close()

		var decoded *errDecoded
		switch {
		case err == nil:
			stream.Finish(nil)
			return
		case errors.As(err, &decoded):
			stream.FinishWithError(decoded.err)
			return
		case errors.Is(err, ai.ErrStreamClosed), ctx.Err() != nil:
			c.fail(stream, err)
			return
		case delivered || used >= c.retry.MaxAttempts:
			pilog.Warn("http: stream %s %s interrupted after %d attempt(s): %v", method, path, used, err)
			stream.FinishWithError(fmt.Errorf("%w: %w", ErrStreamInterrupted, err))
			return
		}

		wait := c.retry.backoff(used - 1)
		pilog.Debug("http: stream %s %s failed before first event, retrying in %s: %v", method, path, wait, err)
		if serr := sleepWithContext(ctx, wait); serr != nil {
			c.fail(stream, serr)
			return
		}
	}
}

// fail completes the stream after an error. A consumer that already closed
// the stream gets no further events.
func (c *Client) fail(stream *ai.EventStream, err error) {
	select {
	case <-stream.Closed():
		stream.Finish(nil)
	default:
		stream.FinishWithError(err)
	}
}

// consume feeds the body to the decoder and forwards events until the decoder
// reports completion. It returns whether any event reached the consumer.
func consume(stream *ai.EventStream, body io.Reader, dec ai.EventDecoder) (delivered bool, err error) {
	buf := make([]byte, readChunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if ev.Type == ai.EventError {
					if ev.Error == nil {
						ev.Error = errors.New("stream error")
					}
					return delivered, &errDecoded{err: ev.Error}
				}
				if !stream.Send(ev) {
					return delivered, ai.ErrStreamClosed
				}
				delivered = true
			}
			if dec.Complete() {
				return delivered, nil
			}
		}
		switch {
		case rerr == io.EOF:
			if dec.Complete() {
				return delivered, nil
			}
			return delivered, io.ErrUnexpectedEOF
		case rerr != nil:
			return delivered, rerr
		}
	}
}
