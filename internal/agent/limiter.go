// ABOUTME: Model-call limiter bounding the number of model invocations per loop
// ABOUTME: Owned by the loop goroutine, so it needs no locking

package agent

import "fmt"

// callLimiter enforces a maximum number of model calls per loop.
type callLimiter struct {
	max   int
	count int
}

func newCallLimiter(limit int) *callLimiter {
	return &callLimiter{max: limit}
}

// acquire records one call, failing once the limit is reached.
func (l *callLimiter) acquire() error {
	if l.count >= l.max {
		return fmt.Errorf("exceeded max model calls: %d", l.max)
	}
	l.count++
	return nil
}

// remaining returns how many calls are left.
func (l *callLimiter) remaining() int {
	return l.max - l.count
}
