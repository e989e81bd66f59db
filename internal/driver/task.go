// ABOUTME: Async task bookkeeping owned by the driver actor
// ABOUTME: Entries move Running -> Completed|Failed and are removed once delivered or expired

package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/mauromedda/pi-loop-go/internal/agent"
)

// TaskID identifies an async task.
type TaskID string

// TaskStatus is the state of an async task as seen by Status.
type TaskStatus int

const (
	TaskNotFound TaskStatus = iota
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskNotFound:
		return "not_found"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// Forever makes Await wait without a timeout, bounded only by its context.
const Forever time.Duration = -1

var (
	ErrAwaitTimeout = errors.New("driver: await timed out")
	ErrTaskNotFound = errors.New("driver: task not found")
	ErrClosed       = errors.New("driver: closed")
)

// TaskInfo is a snapshot of one task for listings.
type TaskInfo struct {
	ID          TaskID
	Prompt      string
	Status      TaskStatus
	StartedAt   time.Time
	CompletedAt time.Time
}

// taskOutcome is what an awaiter receives.
type taskOutcome struct {
	result agent.Result
	err    error
}

type taskEntry struct {
	id          TaskID
	prompt      string
	status      TaskStatus
	outcome     taskOutcome
	waiters     []chan taskOutcome
	startedAt   time.Time
	completedAt time.Time
}

func (e *taskEntry) terminal() bool {
	return e.status == TaskCompleted || e.status == TaskFailed
}

func (e *taskEntry) info() TaskInfo {
	return TaskInfo{
		ID:          e.id,
		Prompt:      e.prompt,
		Status:      e.status,
		StartedAt:   e.startedAt,
		CompletedAt: e.completedAt,
	}
}

// removeWaiter drops ch from the waiter list.
func (e *taskEntry) removeWaiter(ch chan taskOutcome) {
	for i, w := range e.waiters {
		if w == ch {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return
		}
	}
}
