package asyncscope

// Cancellable is the uniform handle a [CancelScope] registers and fans
// cancellation out to. Cancel must be safe to call from any goroutine and
// more than once; IsCancelled reflects observable state, not merely
// whether Cancel was called (an adapter may report cancelled once its
// underlying work has surfaced a platform-level cancellation error, even
// before Cancel is invoked locally).
//
// A [CancelScope] itself implements Cancellable, which is how subscopes
// nest: [CancelScope.MakeSubscope] registers the child as a Cancellable
// of the parent.
type Cancellable interface {
	Cancel()
	IsCancelled() bool
}

// Suspendable is an optional capability. Adapters that can pause and
// resume their underlying work (e.g. an HTTP task's read loop) implement
// it; [CancelScope.Cancellables] callers can type-assert for it to
// suspend or resume a whole class of registered items collectively.
type Suspendable interface {
	Suspend()
	Resume()
}

func trySuspend(c Cancellable) {
	if s, ok := c.(Suspendable); ok {
		s.Suspend()
	}
}

func tryResume(c Cancellable) {
	if s, ok := c.(Suspendable); ok {
		s.Resume()
	}
}
