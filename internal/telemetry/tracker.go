// ABOUTME: Cumulative token and cost tracker fed by agent loop events
// ABOUTME: Safe for concurrent use; subscribe Observe to a driver to account every model call

package telemetry

import (
	"sync"

	"github.com/mauromedda/pi-loop-go/internal/agent"
	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// Summary is a snapshot of tracked usage.
type Summary struct {
	Calls   int
	Usage   ai.Usage
	CostUSD float64
}

// Tracker accumulates usage for one model.
type Tracker struct {
	modelID string

	mu      sync.Mutex
	calls   int
	usage   ai.Usage
	costUSD float64
}

// NewTracker creates a tracker pricing calls at modelID's rates.
func NewTracker(modelID string) *Tracker {
	return &Tracker{modelID: modelID}
}

// Record adds one model call's usage.
func (t *Tracker) Record(u ai.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.usage = t.usage.Add(u)
	t.costUSD += EstimateCost(t.modelID, u)
}

// Observe records the usage carried by LLMCallEnd events and ignores the rest.
func (t *Tracker) Observe(ev agent.Event) {
	if ev.Type == agent.EventLLMCallEnd && ev.Usage != nil {
		t.Record(*ev.Usage)
	}
}

// Summary returns the totals so far.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{Calls: t.calls, Usage: t.usage, CostUSD: t.costUSD}
}
