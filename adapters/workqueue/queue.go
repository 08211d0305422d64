// Package workqueue is the delayed work-item adapter named in the
// structured-concurrency core's contract (C7): a fixed-size worker pool
// that schedules items after a delay and reports their outcome through
// the resume/fail pair a [asyncscope.SuspendAsync] op is given. It is
// adapted from a generic worker-pool primitive — a pool of goroutines
// draining a task queue, closed and drained on Close, with a point-in-
// time Stats snapshot — repurposed here to run exactly one kind of task:
// a delayed callback that produces a typed result.
package workqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/baxromumarov/asyncscope"
)

// ErrClosed is returned by [Queue.submit] once the queue has been
// closed.
var ErrClosed = errors.New("workqueue: queue is closed")

// Queue is a fixed-size worker pool that executes delayed items.
type Queue struct {
	tasks  chan func()
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	workers   int
}

// Stats is a point-in-time snapshot of queue activity.
type Stats struct {
	Submitted  int64
	Completed  int64
	InFlight   int64
	QueueDepth int
	Workers    int
}

// New creates a queue with n worker goroutines, started immediately.
// Panics if n <= 0.
func New(ctx context.Context, n int) *Queue {
	if n <= 0 {
		panic("workqueue: New requires n > 0")
	}
	ctx, cancel := context.WithCancel(ctx)
	q := &Queue{
		tasks:   make(chan func(), n*2),
		ctx:     ctx,
		cancel:  cancel,
		workers: n,
	}
	q.wg.Add(n)
	for i := 0; i < n; i++ {
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for fn := range q.tasks {
		fn()
		q.completed.Add(1)
	}
}

func (q *Queue) submit(fn func()) error {
	if q.closed.Load() {
		return ErrClosed
	}
	select {
	case q.tasks <- fn:
		q.submitted.Add(1)
		return nil
	case <-q.ctx.Done():
		return q.ctx.Err()
	}
}

// Stats returns a point-in-time snapshot of queue activity.
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted:  q.submitted.Load(),
		Completed:  q.completed.Load(),
		InFlight:   q.submitted.Load() - q.completed.Load(),
		QueueDepth: len(q.tasks),
		Workers:    q.workers,
	}
}

// Close stops accepting new items and waits for in-flight ones to
// finish. Safe to call more than once.
func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.tasks)
	}
	q.wg.Wait()
	q.cancel()
}

// DelayedItem is the [asyncscope.Cancellable] handle for one item
// scheduled via [Schedule]. Cancelling a DelayedItem whose timer has
// already fired — i.e. whose underlying item has already resolved — is a
// no-op, matching the "resolution prunes the item" invariant the core
// relies on: by the time an item is pruned from a scope it no longer
// needs to be cancellable.
type DelayedItem struct {
	timer *time.Timer

	mu        sync.Mutex
	cancelled bool
	fired     bool
}

// Cancel stops the item's timer if it has not fired yet. Safe to call
// from any goroutine, and more than once.
func (d *DelayedItem) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fired || d.cancelled {
		return
	}
	d.cancelled = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

// IsCancelled reports whether Cancel stopped the item before it fired.
func (d *DelayedItem) IsCancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled
}

// Schedule prepares an item whose op, when run, arms a timer that, after
// d elapses, submits fn to q and reports its outcome through resume/fail;
// nothing is armed until op runs, and an item cancelled before then never
// fires. It returns both the
// [asyncscope.Cancellable] item and an op function with exactly the
// shape [asyncscope.SuspendAsync] expects, so the two compose as:
//
//	op, item := workqueue.Schedule(queue, 100*time.Millisecond, func() (int, error) {
//	    return 42, nil
//	})
//	val, err := asyncscope.SuspendAsync(op)
//
// The op itself discovers the ambient [asyncscope.CancelScope] (if any)
// and registers item with it, exactly as the core's contract requires of
// a suspend_async op that starts cancellable work.
func Schedule[T any](q *Queue, d time.Duration, fn func() (T, error)) (op func(resume func(T), fail func(error)), item *DelayedItem) {
	item = &DelayedItem{}

	op = func(resume func(T), fail func(error)) {
		item.timer = time.AfterFunc(d, func() {
			item.mu.Lock()
			if item.cancelled {
				item.mu.Unlock()
				return
			}
			item.fired = true
			item.mu.Unlock()

			err := q.submit(func() {
				v, err := fn()
				if err != nil {
					fail(asyncscope.WrapAdapterError(err))
					return
				}
				resume(v)
			})
			if err != nil {
				fail(asyncscope.WrapAdapterError(err))
			}
		})

		if scope, ok := asyncscope.Get[*asyncscope.CancelScope](); ok {
			scope.Add(item)
		}
	}
	return op, item
}
