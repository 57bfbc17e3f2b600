package wizard

import (
	"context"
	"errors"
	"sync"
)

// ErrDiscarded is reported by a task whose result arrived after the wizard moved on.
var ErrDiscarded = errors.New("result discarded: wizard moved on")

// Task is a pending submission. It can be cancelled and waited on.
type Task struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	done       chan struct{}
	release    func(*Task)

	mu      sync.Mutex
	outcome Outcome
	err     error
	applied bool
}

func newTask(parent context.Context, generation uint64) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{ctx: ctx, cancel: cancel, generation: generation, done: make(chan struct{})}
}

func (t *Task) complete(outcome Outcome, err error, applied bool) {
	t.mu.Lock()
	t.outcome = outcome
	t.err = err
	t.applied = applied
	t.mu.Unlock()
	t.cancel()
	close(t.done)
}

// Done is closed once the submission finished or was abandoned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel abandons the submission. The machine ignores its result.
func (t *Task) Cancel() {
	t.cancel()
	if t.release != nil {
		t.release(t)
	}
}

// Wait blocks until the task is done or ctx expires.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Result returns the outcome once Done is closed.
func (t *Task) Result() (Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, t.err
}

// Applied reports whether the outcome reached the machine.
func (t *Task) Applied() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applied
}
