// Package httptask is a reference [asyncscope.Cancellable] adapter for an
// in-flight HTTP request. It is deliberately thin: the HTTP client
// adapter that makes network requests cancellable is an external
// collaborator of the structured-concurrency core, specified only via
// its contract with it (asyncscope.Cancellable). This package exists so
// that contract has one concrete, testable implementation; it adds no
// retry policy, connection pooling, or other client behavior.
package httptask

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/baxromumarov/asyncscope"
)

// Task wraps one execution of an *http.Request so it can be registered
// with a [asyncscope.CancelScope]. Cancel cancels the request's context;
// IsCancelled reports true once either Cancel has been called or the
// request's own goroutine has observed context.Canceled.
type Task struct {
	req    *http.Request
	cancel context.CancelFunc
	client *http.Client

	mu         sync.Mutex
	cancelling bool
	done       bool
	lastErr    error
}

// New wraps req for execution via client. client defaults to
// http.DefaultClient if nil.
func New(client *http.Client, req *http.Request) *Task {
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithCancel(req.Context())
	return &Task{req: req.WithContext(ctx), cancel: cancel, client: client}
}

// Cancel requests cessation of the in-flight request. Safe to call from
// any goroutine, and more than once.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelling {
		t.cancelling = true
		t.cancel()
	}
}

// IsCancelled reports whether the task's state is "cancelling" or it has
// surfaced a platform-level cancellation error.
func (t *Task) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelling {
		return true
	}
	return t.done && errors.Is(t.lastErr, context.Canceled)
}

// Do executes the wrapped request on a new goroutine and reports the
// outcome through resume/fail, matching the op signature
// [asyncscope.SuspendAsync] expects:
//
//	resp, err := asyncscope.SuspendAsync(task.Do)
//
// Do does not itself register the task with a [asyncscope.CancelScope];
// callers discover the ambient scope (if any) and call
// [asyncscope.CancelScope.Add] before or while Do's goroutine is running,
// exactly as any other suspend_async op would.
func (t *Task) Do(resume func(*http.Response), fail func(error)) {
	go func() {
		resp, err := t.client.Do(t.req)

		t.mu.Lock()
		t.done = true
		t.lastErr = err
		t.mu.Unlock()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				fail(asyncscope.Cancelled)
			} else {
				fail(asyncscope.WrapAdapterError(err))
			}
			return
		}
		resume(resp)
	}()
}
