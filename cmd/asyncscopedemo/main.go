package main

import (
	"context"
	"fmt"
	"time"

	"github.com/baxromumarov/asyncscope"
	"github.com/baxromumarov/asyncscope/adapters/workqueue"
)

// meaningOfLife reproduces the spec's "meaning-of-life timer" scenario: a
// suspend_async that schedules a 0.1s work item returning 42 and
// registers it with the scope. It expects resumption value 42, on_error
// never invoked, and no residual items left on the scope.
//
// BeginAsync on its own can't show this: its post-suspension success
// value is never delivered anywhere (see its doc comment), which is
// exactly why [asyncscope.Future] exists. Future.Wait blocks past the
// suspension and surfaces the real outcome.
func meaningOfLife(scope *asyncscope.CancelScope, queue *workqueue.Queue) {
	f := asyncscope.NewFuture(asyncscope.Single(scope), func() (int, error) {
		op, _ := workqueue.Schedule(queue, 100*time.Millisecond, func() (int, error) {
			return 42, nil
		})
		return asyncscope.SuspendAsync(op)
	})

	val, err := f.Wait(context.Background())
	residual := asyncscope.Cancellables[*workqueue.DelayedItem](scope)

	fmt.Println("meaning of life:", val, "error:", err, "residual items:", len(residual))
}

// cancelBeforeStart reproduces the spec's "cancel before start" scenario:
// scope.Cancel() fires before begin_async even runs, so the registered
// item is cancelled synchronously inside Add.
func cancelBeforeStart() {
	scope := asyncscope.NewCancelScope()
	scope.Cancel()

	reported := make(chan error, 1)
	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(scope),
		func(err error) { reported <- err },
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				item := &noopCancellable{}
				scope.Add(item)
			})
		},
	)

	fmt.Println("cancel-before-start error:", <-reported)
}

type noopCancellable struct{ cancelled bool }

func (n *noopCancellable) Cancel()          { n.cancelled = true }
func (n *noopCancellable) IsCancelled() bool { return n.cancelled }

func main() {
	ctx := context.Background()
	queue := workqueue.New(ctx, 4)
	defer queue.Close()

	scope := asyncscope.NewCancelScope()
	defer scope.Close()

	cancelBeforeStart()
	meaningOfLife(asyncscope.NewCancelScope(), queue)

	time.Sleep(200 * time.Millisecond)
}
