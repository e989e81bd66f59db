// ABOUTME: Conversation driver: an actor goroutine owning history and the async task table
// ABOUTME: Public methods send closures to the actor; loops run on worker goroutines

package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mauromedda/pi-loop-go/internal/agent"
	"github.com/mauromedda/pi-loop-go/internal/eventbus"
	pilog "github.com/mauromedda/pi-loop-go/internal/log"
	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// state is owned by the actor goroutine; only closures sent on reqs touch it.
type state struct {
	history []ai.Message
	tasks   map[TaskID]*taskEntry
}

// Driver owns one conversation. It is safe for concurrent use.
type Driver struct {
	cfg  Config
	reqs chan func(*state)
	quit chan struct{}
	done chan struct{} // closed when the actor exits
	bus  *eventbus.Bus[agent.Event]

	ctx    context.Context // cancelled by Close; parent of every loop
	cancel context.CancelFunc

	workers   sync.WaitGroup
	closeOnce sync.Once
}

// New starts a driver.
func New(cfg Config, opts ...Option) *Driver {
	for _, o := range opts {
		o(&cfg)
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		cfg:    cfg,
		reqs:   make(chan func(*state)),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		bus:    eventbus.New[agent.Event](),
		ctx:    ctx,
		cancel: cancel,
	}
	st := &state{history: cfg.seed, tasks: make(map[TaskID]*taskEntry)}
	d.cfg.seed = nil
	go d.loop(st)
	return d
}

// loop is the actor: it serialises every mutation of st.
func (d *Driver) loop(st *state) {
	defer close(d.done)
	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-d.reqs:
			fn(st)
		case now := <-ticker.C:
			d.sweep(st, now)
		case <-d.quit:
			for _, e := range st.tasks {
				for _, w := range e.waiters {
					w <- taskOutcome{err: ErrClosed}
				}
			}
			return
		}
	}
}

// do runs fn on the actor and waits for it to finish.
func (d *Driver) do(fn func(*state)) error {
	ran := make(chan struct{})
	select {
	case d.reqs <- func(st *state) { fn(st); close(ran) }:
	case <-d.quit:
		return ErrClosed
	}
	<-ran
	return nil
}

// sweep evicts terminal tasks nobody retrieved within the TTL.
func (d *Driver) sweep(st *state, now time.Time) {
	for id, e := range st.tasks {
		if e.terminal() && now.Sub(e.completedAt) > d.cfg.TaskTTL {
			delete(st.tasks, id)
			pilog.Debug("driver: evicted task %s (%s, completed %s ago)", id, e.status, now.Sub(e.completedAt).Round(time.Millisecond))
		}
	}
}

// agentConfig returns the loop configuration with events fanned out to subscribers.
func (d *Driver) agentConfig() agent.Config {
	cfg := d.cfg.Agent
	user := cfg.OnEvent
	cfg.OnEvent = func(ev agent.Event) {
		if user != nil {
			user(ev)
		}
		d.bus.Publish(ev)
	}
	return cfg
}

// execute runs one loop seeded with prior. A panic becomes an error.
func (d *Driver) execute(ctx context.Context, prior []ai.Message, prompt string) (res agent.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			pilog.Warn("driver: loop panicked: %v", r)
			err = fmt.Errorf("driver: loop panicked: %v", r)
		}
	}()

	cfg := d.agentConfig()
	if d.cfg.Stream {
		return agent.ContinueStream(ctx, cfg, prior, prompt, nil)
	}
	return agent.Continue(ctx, cfg, prior, prompt)
}

// persist replaces history with the messages of a successful or exhausted loop.
func (d *Driver) persist(res agent.Result) {
	msgs := res.Messages
	_ = d.do(func(st *state) { st.history = msgs })
}

// Run runs prompt against the current history and waits for the result.
// On Success or MaxIterationsExceeded the returned messages become the history.
func (d *Driver) Run(ctx context.Context, prompt string) (agent.Result, error) {
	var prior []ai.Message
	if err := d.do(func(st *state) { prior = ai.CloneMessages(st.history) }); err != nil {
		return agent.Result{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(d.ctx, cancel)
	defer stop()

	res, err := d.execute(ctx, prior, prompt)
	if err != nil {
		return agent.Result{}, err
	}
	d.persist(res)
	return res, nil
}

// RunAsync submits prompt to a worker and returns its task ID immediately.
func (d *Driver) RunAsync(prompt string) (TaskID, error) {
	id := TaskID(uuid.NewString())
	var prior []ai.Message
	err := d.do(func(st *state) {
		prior = ai.CloneMessages(st.history)
		st.tasks[id] = &taskEntry{id: id, prompt: prompt, status: TaskRunning, startedAt: time.Now()}
		d.workers.Add(1) // on the actor, so it always precedes Close's Wait
	})
	if err != nil {
		return "", err
	}

	go func() {
		defer d.workers.Done()
		res, err := d.execute(d.ctx, prior, prompt)
		if err == nil {
			d.persist(res)
		}
		d.complete(id, taskOutcome{result: res, err: err})
	}()

	pilog.Debug("driver: task %s started", id)
	return id, nil
}

// complete records a task's terminal state and wakes its awaiters.
func (d *Driver) complete(id TaskID, out taskOutcome) {
	_ = d.do(func(st *state) {
		e, ok := st.tasks[id]
		if !ok {
			return
		}
		e.outcome = out
		e.completedAt = time.Now()
		e.status = TaskCompleted
		if out.err != nil {
			e.status = TaskFailed
		}
		pilog.Debug("driver: task %s %s", id, e.status)

		if len(e.waiters) > 0 {
			for _, w := range e.waiters {
				w <- out
			}
			delete(st.tasks, id)
		}
	})
}

// Status reports a task's state without blocking on it.
func (d *Driver) Status(id TaskID) TaskStatus {
	status := TaskNotFound
	_ = d.do(func(st *state) {
		if e, ok := st.tasks[id]; ok {
			status = e.status
		}
	})
	return status
}

// Await blocks until the task is terminal, timeout elapses or ctx ends.
// timeout 0 checks once; Forever waits without a timeout. A terminal task is
// removed once it has been delivered.
func (d *Driver) Await(ctx context.Context, id TaskID, timeout time.Duration) (agent.Result, error) {
	var (
		out     taskOutcome
		ready   bool
		waiter  chan taskOutcome
		missing bool
	)
	err := d.do(func(st *state) {
		e, ok := st.tasks[id]
		switch {
		case !ok:
			missing = true
		case e.terminal():
			out, ready = e.outcome, true
			delete(st.tasks, id)
		case timeout != 0:
			waiter = make(chan taskOutcome, 1)
			e.waiters = append(e.waiters, waiter)
		}
	})
	switch {
	case err != nil:
		return agent.Result{}, err
	case missing:
		return agent.Result{}, ErrTaskNotFound
	case ready:
		return out.result, out.err
	case waiter == nil:
		return agent.Result{}, ErrAwaitTimeout
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case out := <-waiter:
		return out.result, out.err
	case <-expired:
		return d.dropWaiter(id, waiter, ErrAwaitTimeout)
	case <-ctx.Done():
		return d.dropWaiter(id, waiter, ctx.Err())
	}
}

// dropWaiter unregisters w and returns err, unless the task completed into w
// before the actor processed the removal: that outcome is the caller's, since
// complete already forgot the task.
func (d *Driver) dropWaiter(id TaskID, w chan taskOutcome, err error) (agent.Result, error) {
	_ = d.do(func(st *state) {
		if e, ok := st.tasks[id]; ok {
			e.removeWaiter(w)
		}
	})
	select {
	case out := <-w:
		return out.result, out.err
	default:
		return agent.Result{}, err
	}
}

// Tasks lists the tracked tasks.
func (d *Driver) Tasks() []TaskInfo {
	var out []TaskInfo
	_ = d.do(func(st *state) {
		out = make([]TaskInfo, 0, len(st.tasks))
		for _, e := range st.tasks {
			out = append(out, e.info())
		}
	})
	return out
}

// History returns a copy of the conversation.
func (d *Driver) History() []ai.Message {
	var out []ai.Message
	_ = d.do(func(st *state) { out = ai.CloneMessages(st.history) })
	return out
}

// ClearHistory empties the conversation. Tasks are unaffected.
func (d *Driver) ClearHistory() {
	_ = d.do(func(st *state) { st.history = nil })
}

// Fork returns an independent driver with a deep copy of the history and the
// configuration adjusted by opts.
func (d *Driver) Fork(opts ...Option) (*Driver, error) {
	var history []ai.Message
	if err := d.do(func(st *state) { history = ai.CloneMessages(st.history) }); err != nil {
		return nil, err
	}
	cfg := d.cfg
	cfg.Agent.Verifiers = append([]agent.Verifier(nil), d.cfg.Agent.Verifiers...)
	cfg.seed = history
	return New(cfg, opts...), nil
}

// Subscribe registers handler for the loop events of every run on this
// driver. Handlers run on the loop's goroutine. Returns an unsubscribe func.
func (d *Driver) Subscribe(handler func(agent.Event)) func() {
	return d.bus.Subscribe(handler)
}

// Close cancels running loops, releases awaiters with ErrClosed and stops the actor.
func (d *Driver) Close() {
	d.closeOnce.Do(func() {
		d.cancel()
		close(d.quit)
		<-d.done
		d.workers.Wait()
	})
}
