package asyncscope

import (
	"context"
	"sync"
)

// Future represents the result of a computation begun immediately on
// construction and cached once it resolves. It is fully expressible atop
// [BeginAsync] and [SuspendAsync] — no new primitive is needed — and is
// modeled on the resolve-once, cause-carrying promise pattern common to
// callback-to-direct-style bridges (see other callback-cancellation
// bridges in the wild for the same shape: a resolver captured once,
// guarded so only the first call has any effect).
//
// Unlike [BeginAsync] on its own, a Future's result is never lost to the
// "suspended, no delivery" limitation documented on [BeginAsync]: compute
// calls resolve itself, directly, the moment it actually finishes —
// whether that is before or after its first suspension.
type Future[T any] struct {
	done chan struct{}

	once     sync.Once
	val      T
	err      error
	resolved bool
}

// NewFuture begins compute under ctxNew (inheriting whatever ambient
// context the calling goroutine already has, per [BeginAsync]'s merge
// rule) and returns immediately with a Future that resolves when compute
// actually finishes, regardless of how many times it suspends along the
// way.
func NewFuture[T any](ctxNew *Context, compute func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	wrapped := func() (T, error) {
		v, err := compute()
		f.resolve(v, err)
		return v, err
	}

	state := SaveState()
	go func() {
		state.Restore(func() {
			_, _, _ = BeginAsync(ctxNew, func(err error) {
				var zero T
				f.resolve(zero, err)
			}, wrapped)
		})
	}()

	return f
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		f.resolved = true
		close(f.done)
	})
}

// Done returns a channel closed once the Future resolves.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Resolved reports whether the Future has resolved yet. It never blocks.
func (f *Future[T]) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Future resolves or ctx is done, whichever comes
// first.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
