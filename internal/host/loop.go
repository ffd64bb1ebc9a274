package host

import (
	"context"
	"errors"
	"sync"
)

const (
	// defaultQueueSize is the capacity of both queues.
	defaultQueueSize = 64
)

// ErrLoopStopped is returned by RunAsync, Run and Drain after Stop.
var ErrLoopStopped = errors.New("loop stopped")

// Loop is a Scheduler with one background worker and a primary queue that is
// drained by whichever goroutine calls Run or Drain.
type Loop struct {
	// tasks feeds the background worker, one task at a time.
	tasks chan func()
	// primary holds functions waiting for the primary context.
	primary chan func()
	// changed is poked whenever pending drops.
	changed chan struct{}
	// done is closed by Stop.
	done chan struct{}

	mu      sync.Mutex
	pending int
	stopped bool
}

// NewLoop creates a loop and starts its background worker.
func NewLoop() *Loop {
	l := &Loop{
		tasks:   make(chan func(), defaultQueueSize),
		primary: make(chan func(), defaultQueueSize),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	go l.work()

	return l
}

// work executes background tasks in submission order.
func (l *Loop) work() {
	for {
		select {
		case task := <-l.tasks:
			task()
		case <-l.done:
			return
		}
	}
}

// RunAsync queues task for the background worker. It returns ErrLoopStopped
// and drops the task after Stop.
func (l *Loop) RunAsync(ctx context.Context, task func(ctx context.Context)) error {
	if !l.acquire() {
		return ErrLoopStopped
	}

	l.tasks <- func() {
		defer l.release()

		task(ctx)
	}

	return nil
}

// RunSync queues fn for the primary context. Functions submitted after Stop
// are dropped.
func (l *Loop) RunSync(fn func()) {
	if !l.acquire() {
		return
	}

	l.primary <- func() {
		defer l.release()

		fn()
	}
}

// Run executes primary functions on the calling goroutine until ctx is done
// or the loop is stopped.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.primary:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return ErrLoopStopped
		}
	}
}

// Drain executes primary functions on the calling goroutine until no
// background task or primary function is pending.
func (l *Loop) Drain(ctx context.Context) error {
	for {
		if l.Pending() == 0 {
			return nil
		}

		select {
		case fn := <-l.primary:
			fn()
		case <-l.changed:
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return ErrLoopStopped
		}
	}
}

// Pending returns the number of queued or running tasks and functions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.pending
}

// Stop terminates the worker. Queued work that has not started is abandoned.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}

	l.stopped = true
	close(l.done)
}

func (l *Loop) acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return false
	}

	l.pending++

	return true
}

func (l *Loop) release() {
	l.mu.Lock()
	l.pending--
	l.mu.Unlock()

	select {
	case l.changed <- struct{}{}:
	default:
	}
}
