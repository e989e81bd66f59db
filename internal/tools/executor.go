// ABOUTME: Bounded-concurrency tool executor with per-call timeout and panic isolation
// ABOUTME: Outcomes are returned in call order regardless of completion order

package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	pilog "github.com/mauromedda/pi-loop-go/internal/log"
	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// DefaultTimeout bounds a single tool call when Options.Timeout is zero.
const DefaultTimeout = 2 * time.Minute

// Options configures one Execute batch.
type Options struct {
	Timeout        time.Duration // Per call, measured from when the call starts; 0 = DefaultTimeout, <0 = none
	MaxConcurrency int           // In-flight calls; 0 = all at once
	MaxOutputBytes int           // Head-truncate outcome content; 0 = unlimited

	// OnOutcome, if set, is called from the worker goroutine as each call finishes.
	OnOutcome func(index int, o Outcome)
}

// Execute runs calls against reg and returns one Outcome per call in call order.
// It never returns early: every call ends as Ok, timed out, crashed or errored.
func Execute(ctx context.Context, reg *Registry, calls []ai.ToolCall, tctx Context, opts Options) []Outcome {
	outcomes := make([]Outcome, len(calls))
	if len(calls) == 0 {
		return outcomes
	}

	limit := opts.MaxConcurrency
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, call := range calls {
		g.Go(func() error {
			o := runCall(ctx, reg, call, tctx, opts)
			outcomes[i] = o
			if opts.OnOutcome != nil {
				opts.OnOutcome(i, o)
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// runCall executes one call in its own goroutine so that a tool ignoring its
// context can be abandoned when the timeout fires.
func runCall(ctx context.Context, reg *Registry, call ai.ToolCall, tctx Context, opts Options) Outcome {
	start := time.Now()
	out := Outcome{ToolUseID: call.ID, Name: call.Name}

	tool := reg.Get(call.Name)
	if tool == nil || tool.Execute == nil {
		out.Kind = OutcomeError
		out.Content = reg.unknownToolMessage(call.Name)
		pilog.Debug("tools: %s", out.Content)
		return out
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				pilog.Warn("tools: %s crashed: %v", call.Name, r)
				done <- Outcome{Kind: OutcomeError, Content: fmt.Sprintf("crashed: %v", r)}
			}
		}()

		args := Narrow(tool.Parameters, call.Input)
		if dropped := args.Dropped(); len(dropped) > 0 {
			pilog.Debug("tools: %s dropped undeclared args %v", call.Name, dropped)
		}
		res, err := tool.Execute(callCtx, args, tctx)
		if err != nil {
			done <- Outcome{Kind: OutcomeError, Content: err.Error()}
			return
		}
		done <- Outcome{Kind: OutcomeOk, Content: res.Content, IsError: res.IsError}
	}()

	var res Outcome
	select {
	case res = <-done:
	case <-callCtx.Done():
		select {
		case res = <-done:
		default:
			res = abandoned(ctx, callCtx, timeout)
			pilog.Warn("tools: %s abandoned: %s", call.Name, res.Content)
		}
	}
	// A tool that returns ctx.Err() on expiry can beat the select above.
	if (res.Kind == OutcomeError || res.IsError) && callCtx.Err() != nil {
		res = abandoned(ctx, callCtx, timeout)
	}

	out.Kind, out.Content, out.IsError = res.Kind, res.Content, res.IsError
	out.Duration = time.Since(start)
	if t := TruncateHead(out.Content, opts.MaxOutputBytes); t.Truncated {
		out.Content = t.Content + truncationNotice(t.TotalBytes)
		out.Truncated = true
	}
	return out
}

// abandoned builds the outcome for a call whose context ended first.
func abandoned(parent, callCtx context.Context, timeout time.Duration) Outcome {
	if parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Outcome{Kind: OutcomeError, Content: fmt.Sprintf("timed out after %dms", timeout.Milliseconds())}
	}
	return Outcome{Kind: OutcomeError, Content: "cancelled"}
}
