package asyncscope

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// beginFrame is the thread-local (goroutine-local) state installed for
// the duration of one begin_async body: the merged ambient context, and
// the signal used to wake begin_async's caller at the body's first
// suspension or completion, whichever comes first.
type beginFrame struct {
	id     string
	ctx    *Context
	signal chan struct{}

	mu        sync.Mutex
	signalled bool
}

func newBeginFrame(ctx *Context) *beginFrame {
	return &beginFrame{id: newID(), ctx: ctx, signal: make(chan struct{})}
}

// signalFirstSuspension closes signal exactly once. Called both from
// suspend_async (as soon as op has started the underlying work) and from
// a deferred call wrapping the body, so a body that never suspends still
// wakes begin_async's caller on return.
func (f *beginFrame) signalFirstSuspension() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signalled {
		f.signalled = true
		close(f.signal)
	}
}

// Go has no first-class goroutine-local storage. The prototype this
// package models relies on genuine thread-local state (see
// CoroutineState in coroutine_state.go); the closest safe equivalent
// available without linking against runtime internals is a registry
// keyed by the calling goroutine's id, parsed from runtime.Stack. This
// is only ever consulted at begin_async/suspend_async boundaries, never
// in a hot loop.
var (
	frameRegistry sync.Map // int64 goroutine id -> *beginFrame
)

func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	const prefix = "goroutine "
	if bytes.HasPrefix(buf, []byte(prefix)) {
		buf = buf[len(prefix):]
	}
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseInt(string(buf), 10, 64)
	return id
}

func installBeginFrame(f *beginFrame) {
	frameRegistry.Store(goroutineID(), f)
}

func uninstallBeginFrame() {
	frameRegistry.Delete(goroutineID())
}

func currentBeginFrame() *beginFrame {
	v, ok := frameRegistry.Load(goroutineID())
	if !ok {
		return nil
	}
	return v.(*beginFrame)
}
