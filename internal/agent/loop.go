// ABOUTME: Verified agent loop: model call -> tool execution -> verification -> repeat
// ABOUTME: Run/Continue use a single-shot Caller; RunStream/ContinueStream observe a Streamer

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pilog "github.com/mauromedda/pi-loop-go/internal/log"
	"github.com/mauromedda/pi-loop-go/internal/tools"
	"github.com/mauromedda/pi-loop-go/pkg/ai"
	"github.com/mauromedda/pi-loop-go/pkg/ai/partjson"
)

// ErrNoModelClient is returned when Config carries no usable model client.
var ErrNoModelClient = errors.New("agent: no model client configured")

// modelCall performs one model invocation for the loop.
type modelCall func(ctx context.Context, st *loopState, llmCtx *ai.Context) (*ai.AssistantMessage, error)

// loopState is created per run, mutated only by the goroutine driving the
// loop, and discarded at termination.
type loopState struct {
	cfg       Config
	call      modelCall
	limiter   *callLimiter
	sink      func(Event)
	iteration int
	messages  []ai.Message
	usage     ai.Usage
	lastText  string
}

// Run starts a new conversation with prompt.
func Run(ctx context.Context, cfg Config, prompt string) (Result, error) {
	return Continue(ctx, cfg, nil, prompt)
}

// Continue runs the loop seeded with a copy of prior.
func Continue(ctx context.Context, cfg Config, prior []ai.Message, prompt string) (Result, error) {
	caller := cfg.Caller
	if caller == nil && cfg.Streamer != nil {
		caller = ai.CallerFromStreamer(cfg.Streamer)
	}
	if caller == nil {
		return Result{}, ErrNoModelClient
	}
	return run(ctx, cfg, prior, prompt, cfg.OnEvent, callOnce(caller))
}

// RunStream is Run with the model call streamed; canonical events are
// forwarded to onEvent (and cfg.OnEvent) as they arrive.
func RunStream(ctx context.Context, cfg Config, prompt string, onEvent func(Event)) (Result, error) {
	return ContinueStream(ctx, cfg, nil, prompt, onEvent)
}

// ContinueStream is Continue with the model call streamed.
func ContinueStream(ctx context.Context, cfg Config, prior []ai.Message, prompt string, onEvent func(Event)) (Result, error) {
	streamer := cfg.Streamer
	if streamer == nil {
		streamer, _ = cfg.Caller.(ai.Streamer)
	}
	if streamer == nil {
		return Result{}, ErrNoModelClient
	}
	return run(ctx, cfg, prior, prompt, combineSinks(cfg.OnEvent, onEvent), callStreaming(streamer))
}

func combineSinks(a, b func(Event)) func(Event) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ev Event) {
		a(ev)
		b(ev)
	}
}

func run(ctx context.Context, cfg Config, prior []ai.Message, prompt string, sink func(Event), call modelCall) (Result, error) {
	cfg = cfg.withDefaults()
	if cfg.Model == nil {
		return Result{}, errors.New("agent: no model configured")
	}

	st := &loopState{
		cfg:      cfg,
		call:     call,
		limiter:  newCallLimiter(cfg.MaxIterations),
		sink:     sink,
		messages: append(ai.CloneMessages(prior), ai.NewTextMessage(ai.RoleUser, prompt)),
	}
	st.emit(Event{Type: EventLoopStart})

	for {
		if err := ctx.Err(); err != nil {
			return st.fail("cancelled", err)
		}
		if err := st.limiter.acquire(); err != nil {
			pilog.Debug("agent: %v", err)
			return st.finish(StatusMaxIterationsExceeded, st.lastText)
		}
		st.iteration++
		st.emit(Event{Type: EventIterationStart})

		resp, err := st.callModel(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return st.fail("cancelled", err)
			}
			return st.fail(err.Error(), err)
		}
		st.messages = append(st.messages, resp.Message())

		calls, malformed := resp.ToolCalls()
		for _, id := range malformed {
			pilog.Warn("agent: tool_use %s has invalid JSON input; using empty arguments", id)
		}
		if len(calls) > 0 {
			st.executeTools(ctx, calls)
			continue
		}

		st.lastText = resp.Message().Text()
		verdict := verify(ctx, cfg.Verifiers, st.lastText, cfg.Context)
		if verdict.Passed {
			return st.finish(StatusSuccess, st.lastText)
		}
		st.emit(Event{Type: EventVerificationFailed, Text: verdict.Reason})
		st.messages = append(st.messages, ai.NewTextMessage(ai.RoleUser, feedbackPrompt(verdict.Reason)))
	}
}

// callModel invokes the model with the full message sequence.
func (s *loopState) callModel(ctx context.Context) (*ai.AssistantMessage, error) {
	llmCtx := &ai.Context{
		System:   s.cfg.System,
		Messages: s.messages,
		Tools:    s.cfg.Tools.Definitions(),
	}
	s.emit(Event{Type: EventLLMCallStart})
	pilog.Debug("agent: iteration %d calling %s with %d messages (%d calls left)", s.iteration, s.cfg.Model.ID, len(s.messages), s.limiter.remaining())

	resp, err := s.call(ctx, s, llmCtx)
	if err != nil {
		return nil, err
	}
	s.usage = s.usage.Add(resp.Usage)
	usage := resp.Usage
	s.emit(Event{Type: EventLLMCallEnd, Usage: &usage, Stop: resp.StopReason})
	return resp, nil
}

// executeTools dispatches one batch and appends the aggregated result message.
func (s *loopState) executeTools(ctx context.Context, calls []ai.ToolCall) {
	for _, c := range calls {
		s.emit(Event{Type: EventToolUse, ToolID: c.ID, Name: c.Name, Input: c.Input})
	}

	// Outcomes are reported as they finish; workers call OnOutcome concurrently.
	var mu sync.Mutex
	outcomes := tools.Execute(ctx, s.cfg.Tools, calls, s.cfg.Context.With("iteration", s.iteration), tools.Options{
		Timeout:        s.cfg.ToolTimeout,
		MaxConcurrency: s.cfg.MaxConcurrency,
		MaxOutputBytes: s.cfg.MaxOutputBytes,
		OnOutcome: func(_ int, o tools.Outcome) {
			mu.Lock()
			defer mu.Unlock()
			s.emit(Event{Type: EventToolOutcome, ToolID: o.ToolUseID, Name: o.Name, Outcome: &o})
		},
	})

	msg := tools.ResultMessage(outcomes)
	s.messages = append(s.messages, msg)
	s.emit(Event{Type: EventToolResults, Message: &msg})
}

func (s *loopState) finish(status Status, text string) (Result, error) {
	usage := s.usage
	s.emit(Event{Type: EventLoopEnd, Status: status, Usage: &usage})
	return Result{
		Status:     status,
		Text:       text,
		Messages:   s.messages,
		Iterations: s.iteration,
		Usage:      s.usage,
	}, nil
}

func (s *loopState) fail(reason string, err error) (Result, error) {
	loopErr := &LoopError{Iteration: s.iteration, Reason: reason, Err: err, Messages: s.messages}
	usage := s.usage
	s.emit(Event{Type: EventLoopEnd, Err: loopErr, Usage: &usage})
	return Result{}, loopErr
}

func callOnce(caller ai.Caller) modelCall {
	return func(ctx context.Context, s *loopState, llmCtx *ai.Context) (*ai.AssistantMessage, error) {
		resp, err := caller.Call(ctx, s.cfg.Model, llmCtx, s.cfg.StreamOptions)
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}
		if resp == nil {
			return nil, errors.New("model call: empty response")
		}
		return resp, nil
	}
}

// callStreaming consumes a stream, forwarding text, tool-start and partial
// input events to the sink while the Accumulator builds the response.
func callStreaming(streamer ai.Streamer) modelCall {
	return func(ctx context.Context, s *loopState, llmCtx *ai.Context) (*ai.AssistantMessage, error) {
		tracker := partjson.NewTracker()
		stream := streamer.Stream(ctx, s.cfg.Model, llmCtx, s.cfg.StreamOptions)

		resp, err := ai.Collect(stream, func(ev ai.StreamEvent) {
			switch ev.Type {
			case ai.EventTextDelta:
				s.emit(Event{Type: EventTextDelta, Text: ev.Text})
			case ai.EventToolUseStart:
				s.emit(Event{Type: EventToolUseStart, ToolID: ev.ToolID, Name: ev.ToolName})
			case ai.EventInputJSONDelta:
				preview := tracker.Append(ev.ToolID, ev.PartialJSON)
				s.emit(Event{Type: EventInputJSONDelta, ToolID: ev.ToolID, Partial: ev.PartialJSON, Input: preview})
			}
		})
		if err != nil {
			return nil, fmt.Errorf("model stream: %w", err)
		}
		return resp, nil
	}
}
