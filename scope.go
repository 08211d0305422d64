package asyncscope

import (
	"sync"
	"sync/atomic"
	"time"
)

// failureHandle identifies one active suspend_async frame's failure
// closure. It is the tag [CancelScope.removeAll] prunes items by (I5:
// resolving a suspension frame prunes only the items registered under
// that frame), and the pairing key [CancelScope.Add] stores alongside
// every registered item.
type failureHandle struct {
	fn func(error)
}

type scopeItem struct {
	cancellable Cancellable
	failure     *failureHandle
}

// CancelScope is a thread-safe registry of [Cancellable] items with an
// optional timeout, a subscope hierarchy, and resolved-item pruning. It
// is itself a [Cancellable], which is how subscopes nest:
// [CancelScope.MakeSubscope] registers the child scope as a Cancellable
// of the parent.
//
// A single mutex guards items, cancel_called, and the failure stack.
// Failure-closure invocation and item.Cancel() calls happen outside the
// lock, against a snapshot, so a cancellable's own Cancel method may
// safely call back into the scope (Add, Cancellables, MakeSubscope)
// without deadlocking.
type CancelScope struct {
	id  string
	cfg scopeConfig

	mu           sync.Mutex
	items        []scopeItem
	cancelCalled bool
	failureStack []*failureHandle
	timeout      time.Duration
	timer        *time.Timer

	totalAdded      atomic.Int64
	activeSubscopes atomic.Int64
}

// NewCancelScope creates a scope. If [WithTimeout] is given a positive
// duration, a single-shot timer is armed immediately that calls Cancel.
func NewCancelScope(opts ...ScopeOption) *CancelScope {
	cfg := scopeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &CancelScope{id: newID(), cfg: cfg}
	if cfg.timeout > 0 {
		s.SetTimeout(cfg.timeout)
	}
	if cfg.onMetrics != nil {
		go s.metricsLoop()
	}
	return s
}

func (s *CancelScope) metricsLoop() {
	ticker := time.NewTicker(s.cfg.metricsInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		cancelled := s.cancelCalled
		s.mu.Unlock()
		if cancelled {
			return
		}
		s.cfg.onMetrics(s.snapshotMetrics())
	}
}

// ID returns the scope's identifier, stable for its lifetime. Used only
// for observability; it carries no meaning to cancellation semantics.
func (s *CancelScope) ID() string { return s.id }

func (s *CancelScope) emit(kind EventKind) {
	if s.cfg.onEvent != nil {
		s.cfg.onEvent(ScopeEvent{Kind: kind, ScopeID: s.id})
	}
}

// Cancel fans cancellation out to every currently registered item, in
// insertion order: each item's failure closure is invoked with
// [Cancelled], then the item's own Cancel is called. cancel_called is set
// synchronously under the lock before the snapshot is taken and iterated
// outside it, so a concurrent [CancelScope.Add] observing cancel_called
// == true is guaranteed to cancel its new item before returning (no
// window where Add both misses the broadcast and skips the synchronous
// cancel).
//
// Safe to call more than once: each call fans out again to the items
// registered at that moment (failure closures tolerate repeated
// [Cancelled] deliveries, and Cancellable.Cancel is idempotent).
func (s *CancelScope) Cancel() {
	s.mu.Lock()
	s.cancelCalled = true
	snapshot := append([]scopeItem(nil), s.items...)
	s.mu.Unlock()

	s.emit(EventCancelled)

	for _, it := range snapshot {
		it.failure.fn(Cancelled)
		it.cancellable.Cancel()
	}
}

// IsCancelled reports whether every currently registered item reports
// IsCancelled. Vacuously true for a scope with no registered items,
// whether or not Cancel was ever called — this mirrors the source
// contract literally: "is_cancelled" is a statement about item state,
// not about cancel_called.
func (s *CancelScope) IsCancelled() bool {
	s.mu.Lock()
	items := append([]scopeItem(nil), s.items...)
	s.mu.Unlock()

	for _, it := range items {
		if !it.cancellable.IsCancelled() {
			return false
		}
	}
	return true
}

// Add registers cancellable, pairing it with the topmost failure closure
// on the scope's suspension stack. Add is only legal when a failure
// closure is on that stack (i.e. called from within an active
// suspend_async targeting this scope, directly or via a nested
// MakeSubscope); calling it otherwise is a fatal misuse.
//
// If Cancel has already been called, Add synchronously fires the paired
// failure closure with [Cancelled] and calls cancellable.Cancel() once
// before returning.
func (s *CancelScope) Add(cancellable Cancellable) {
	s.mu.Lock()
	if len(s.failureStack) == 0 {
		s.mu.Unlock()
		panic("asyncscope: CancelScope.Add called without an active suspension")
	}
	top := s.failureStack[len(s.failureStack)-1]
	alreadyCancelled := s.cancelCalled
	s.items = append(s.items, scopeItem{cancellable: cancellable, failure: top})
	s.mu.Unlock()

	s.totalAdded.Add(1)
	s.emit(EventAdded)

	if alreadyCancelled {
		top.fn(Cancelled)
		cancellable.Cancel()
	}
}

// Cancellables filters the scope's currently registered items by runtime
// type T and returns them in insertion order. Used by adapter extensions
// that need to act on a whole class of registered items collectively,
// e.g. suspending every registered HTTP task.
func Cancellables[T any](s *CancelScope) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []T
	for _, it := range s.items {
		if v, ok := it.cancellable.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// SuspendAll calls Suspend on every registered item implementing
// [Suspendable], in insertion order.
func (s *CancelScope) SuspendAll() {
	s.mu.Lock()
	snapshot := append([]scopeItem(nil), s.items...)
	s.mu.Unlock()
	for _, it := range snapshot {
		trySuspend(it.cancellable)
	}
}

// ResumeAll calls Resume on every registered item implementing
// [Suspendable], in insertion order.
func (s *CancelScope) ResumeAll() {
	s.mu.Lock()
	snapshot := append([]scopeItem(nil), s.items...)
	s.mu.Unlock()
	for _, it := range snapshot {
		tryResume(it.cancellable)
	}
}

// MakeSubscope creates a child scope, pushes the parent's current
// topmost failure closure onto the child's failure stack (so
// cancellations inside the child route to the parent's awaiter unless the
// child later pushes its own, via a nested suspend_async), and registers
// the child as a Cancellable of the parent. Requires a topmost failure
// closure on the parent — i.e. must be called from within an active
// suspension — otherwise fatal.
//
// Like any other item, the child's registration with the parent is paired
// with that suspension's failure closure, so it is pruned once that
// suspension resolves; after that, cancelling the parent no longer reaches
// the child.
func (s *CancelScope) MakeSubscope(opts ...ScopeOption) *CancelScope {
	s.mu.Lock()
	if len(s.failureStack) == 0 {
		s.mu.Unlock()
		panic("asyncscope: CancelScope.MakeSubscope called without an active suspension")
	}
	parentTop := s.failureStack[len(s.failureStack)-1]
	s.mu.Unlock()

	child := NewCancelScope(opts...)
	child.failureStack = append(child.failureStack, parentTop)

	s.Add(child)
	s.activeSubscopes.Add(1)
	s.emit(EventSubscopeCreated)
	return child
}

// SetTimeout disarms any previously armed timer and, if d is positive,
// arms a new single-shot timer relative to now that calls Cancel. A
// non-positive d disarms the timer without arming a new one.
func (s *CancelScope) SetTimeout(d time.Duration) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timeout = d
	if d > 0 {
		s.timer = time.AfterFunc(d, s.Cancel)
	}
	s.mu.Unlock()
}

// Close disarms the scope's timer, if any, without cancelling registered
// items. Go has no destructors; Close is the idiomatic stand-in for "the
// timer is cancelled on scope destruction" — call it once the scope is
// no longer reachable if a timeout was set and the scope was never
// cancelled.
func (s *CancelScope) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
}

// pushFailureClosure pushes fn onto the scope's suspension stack and
// returns the handle used to pop it and to prune items registered under
// it. Used internally by [SuspendAsync]; exported adapters never call it
// directly.
func (s *CancelScope) pushFailureClosure(fn func(error)) *failureHandle {
	h := &failureHandle{fn: fn}
	s.mu.Lock()
	s.failureStack = append(s.failureStack, h)
	s.mu.Unlock()
	return h
}

// popFailureClosure removes h from the scope's suspension stack. Nested
// suspend_async frames pop in the reverse order they pushed, so h is
// usually the topmost entry; sibling begin_async bodies sharing one scope
// may resolve in any order, so h is searched for from the top down.
// Popping a handle that is not on the stack is fatal misuse.
func (s *CancelScope) popFailureClosure(h *failureHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.failureStack) - 1; i >= 0; i-- {
		if s.failureStack[i] == h {
			s.failureStack = append(s.failureStack[:i], s.failureStack[i+1:]...)
			return
		}
	}
	panic("asyncscope: CancelScope failure closure popped but not on the stack")
}

// removeAll prunes every item registered under h — i.e. every item added
// by the suspend_async frame that owned h — now that frame has resolved.
// Items registered by outer frames (paired with a different handle)
// survive.
func (s *CancelScope) removeAll(h *failureHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0:0]
	for _, it := range s.items {
		if it.failure != h {
			kept = append(kept, it)
		}
	}
	s.items = kept
	s.emit(EventItemResolved)
}
