// ABOUTME: Tests for the tool executor: ordering, concurrency bound, timeouts, panics
// ABOUTME: Covers unknown tools, returned errors, truncation and context propagation

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

func sleepTool(name string, d time.Duration) *Tool {
	return &Tool{
		Name: name,
		Execute: func(ctx context.Context, _ Args, _ Context) (Result, error) {
			select {
			case <-time.After(d):
				return Result{Content: name}, nil
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		},
	}
}

func TestExecutePreservesCallOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(
		sleepTool("slow", 60*time.Millisecond),
		sleepTool("mid", 30*time.Millisecond),
		sleepTool("fast", time.Millisecond),
	)
	calls := []ai.ToolCall{
		{ID: "1", Name: "slow"},
		{ID: "2", Name: "mid"},
		{ID: "3", Name: "fast"},
	}

	var mu sync.Mutex
	var finished []int
	out := Execute(context.Background(), reg, calls, nil, Options{
		OnOutcome: func(i int, _ Outcome) {
			mu.Lock()
			finished = append(finished, i)
			mu.Unlock()
		},
	})

	for i, want := range []string{"slow", "mid", "fast"} {
		if out[i].Content != want || out[i].ToolUseID != calls[i].ID || out[i].Kind != OutcomeOk {
			t.Errorf("outcome %d = %+v, want %s", i, out[i], want)
		}
	}
	if len(finished) != 3 || finished[0] != 2 {
		t.Errorf("completion order = %v, want fast first", finished)
	}
}

func TestExecuteBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	tool := &Tool{
		Name: "probe",
		Execute: func(context.Context, Args, Context) (Result, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return Result{Content: "ok"}, nil
		},
	}

	calls := make([]ai.ToolCall, 8)
	for i := range calls {
		calls[i] = ai.ToolCall{ID: fmt.Sprint(i), Name: "probe"}
	}
	out := Execute(context.Background(), NewRegistry(tool), calls, nil, Options{MaxConcurrency: 2})

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
	for i, o := range out {
		if o.Failed() {
			t.Errorf("outcome %d failed: %+v", i, o)
		}
	}
}

func TestExecuteTimeoutAbandonsStuckTool(t *testing.T) {
	t.Parallel()

	stuck := &Tool{
		Name: "stuck",
		Execute: func(context.Context, Args, Context) (Result, error) {
			time.Sleep(5 * time.Second)
			return Result{Content: "too late"}, nil
		},
	}
	reg := NewRegistry(stuck, sleepTool("quick", time.Millisecond))

	start := time.Now()
	out := Execute(context.Background(), reg, []ai.ToolCall{
		{ID: "a", Name: "stuck"},
		{ID: "b", Name: "quick"},
	}, nil, Options{Timeout: 100 * time.Millisecond})
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("Execute took %v, want well under the tool's 5s", elapsed)
	}
	if out[0].Kind != OutcomeError || out[0].Content != "timed out after 100ms" {
		t.Errorf("stuck outcome = %+v", out[0])
	}
	if out[1].Kind != OutcomeOk || out[1].Content != "quick" {
		t.Errorf("sibling outcome = %+v", out[1])
	}
}

func TestExecuteTimeoutReportedForContextAwareTool(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(sleepTool("t1", 5*time.Second))
	for i := range 100 {
		timeout := 5 * time.Millisecond
		if i == 0 {
			timeout = 100 * time.Millisecond
		}
		out := Execute(context.Background(), reg, []ai.ToolCall{{ID: "a", Name: "t1"}}, nil, Options{Timeout: timeout})
		want := fmt.Sprintf("timed out after %dms", timeout.Milliseconds())
		if out[0].Kind != OutcomeError || out[0].Content != want {
			t.Fatalf("run %d: outcome = %+v, want %q", i, out[0], want)
		}
	}
}

func TestExecuteCancellationReportedForContextAwareTool(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry(sleepTool("t1", 5*time.Second))
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	out := Execute(ctx, reg, []ai.ToolCall{{ID: "a", Name: "t1"}}, nil, Options{Timeout: -1})
	if out[0].Kind != OutcomeError || out[0].Content != "cancelled" {
		t.Errorf("outcome = %+v", out[0])
	}
}

func TestExecuteTimeoutStartsPerCall(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(sleepTool("work", 60*time.Millisecond))
	calls := []ai.ToolCall{{ID: "1", Name: "work"}, {ID: "2", Name: "work"}, {ID: "3", Name: "work"}}

	out := Execute(context.Background(), reg, calls, nil, Options{MaxConcurrency: 1, Timeout: 150 * time.Millisecond})
	for i, o := range out {
		if o.Failed() {
			t.Errorf("call %d failed (%s): queued calls must not be charged for waiting", i, o.Content)
		}
	}
}

func TestExecuteRecoversPanics(t *testing.T) {
	t.Parallel()

	boom := &Tool{
		Name: "boom",
		Execute: func(context.Context, Args, Context) (Result, error) {
			panic("kaboom")
		},
	}
	reg := NewRegistry(boom, sleepTool("ok", time.Millisecond))

	out := Execute(context.Background(), reg, []ai.ToolCall{{ID: "1", Name: "boom"}, {ID: "2", Name: "ok"}}, nil, Options{})
	if out[0].Kind != OutcomeError || out[0].Content != "crashed: kaboom" {
		t.Errorf("panic outcome = %+v", out[0])
	}
	if out[1].Failed() {
		t.Errorf("sibling affected by panic: %+v", out[1])
	}
}

func TestExecuteUnknownToolSuggests(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(sleepTool("read", 0))
	out := Execute(context.Background(), reg, []ai.ToolCall{{ID: "1", Name: "red"}, {ID: "2", Name: "zzz"}}, nil, Options{})

	if out[0].Kind != OutcomeError || out[0].Content != `unknown tool: red (did you mean "read"?)` {
		t.Errorf("outcome = %+v", out[0])
	}
	if out[1].Content != "unknown tool: zzz" {
		t.Errorf("outcome = %+v", out[1])
	}
	if out[0].ToolUseID != "1" || out[0].Name != "red" {
		t.Errorf("identity lost: %+v", out[0])
	}
}

func TestExecuteErrorVersusCommandFailure(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(
		&Tool{Name: "err", Execute: func(context.Context, Args, Context) (Result, error) {
			return Result{}, errors.New("disk on fire")
		}},
		&Tool{Name: "fail", Execute: func(context.Context, Args, Context) (Result, error) {
			return Result{Content: "exit status 1", IsError: true}, nil
		}},
	)
	out := Execute(context.Background(), reg, []ai.ToolCall{{ID: "1", Name: "err"}, {ID: "2", Name: "fail"}}, nil, Options{})

	if out[0].Kind != OutcomeError || out[0].Content != "disk on fire" {
		t.Errorf("err outcome = %+v", out[0])
	}
	if out[1].Kind != OutcomeOk || !out[1].IsError {
		t.Errorf("fail outcome = %+v", out[1])
	}

	msg := ResultMessage(out)
	if msg.Role != ai.RoleTool || len(msg.Content) != 2 {
		t.Fatalf("result message = %+v", msg)
	}
	for i, c := range msg.Content {
		if c.Type != ai.ContentToolResult || !c.IsError || c.ToolUseID != out[i].ToolUseID {
			t.Errorf("block %d = %+v", i, c)
		}
	}
}

func TestExecuteTruncatesOutput(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(&Tool{Name: "big", Execute: func(context.Context, Args, Context) (Result, error) {
		return Result{Content: strings.Repeat("x", 100)}, nil
	}})
	out := Execute(context.Background(), reg, []ai.ToolCall{{ID: "1", Name: "big"}}, nil, Options{MaxOutputBytes: 10})

	if !out[0].Truncated || !strings.HasPrefix(out[0].Content, strings.Repeat("x", 10)+"\n") {
		t.Errorf("outcome = %+v", out[0])
	}
	if !strings.Contains(out[0].Content, "100 bytes total") {
		t.Errorf("missing truncation notice: %q", out[0].Content)
	}
}

func TestExecutePassesContextAndNarrowedArgs(t *testing.T) {
	t.Parallel()

	var gotIter int
	var gotArgs Args
	reg := NewRegistry(&Tool{
		Name:       "inspect",
		Parameters: json.RawMessage(`{"type":"object","properties":{"n":{"type":"integer"}}}`),
		Execute: func(_ context.Context, args Args, tctx Context) (Result, error) {
			gotIter, _ = tctx.Int("iteration")
			gotArgs = args
			return Result{}, nil
		},
	})

	base := Context{"user": "x"}
	Execute(context.Background(), reg, []ai.ToolCall{
		{ID: "1", Name: "inspect", Input: map[string]any{"n": float64(4), "sneaky": true}},
	}, base.With("iteration", 3), Options{})

	if gotIter != 3 {
		t.Errorf("iteration = %d, want 3", gotIter)
	}
	if gotArgs.Int("n", 0) != 4 || gotArgs.Has("sneaky") {
		t.Errorf("args = %v dropped=%v", gotArgs.Keys(), gotArgs.Dropped())
	}
	if _, ok := base["iteration"]; ok {
		t.Error("With must not mutate the receiver")
	}
}

func TestExecuteParentCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry(&Tool{Name: "block", Execute: func(context.Context, Args, Context) (Result, error) {
		time.Sleep(5 * time.Second)
		return Result{}, nil
	}})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	out := Execute(ctx, reg, []ai.ToolCall{{ID: "1", Name: "block"}}, nil, Options{Timeout: -1})
	if out[0].Kind != OutcomeError || out[0].Content != "cancelled" {
		t.Errorf("outcome = %+v", out[0])
	}
}

func TestExecuteEmpty(t *testing.T) {
	t.Parallel()

	if out := Execute(context.Background(), NewRegistry(), nil, nil, Options{}); len(out) != 0 {
		t.Errorf("got %d outcomes", len(out))
	}
}
