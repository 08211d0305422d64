// Package asyncscope provides structured-concurrency primitives for
// direct-style asynchronous code in Go: cancellation scopes, a typed
// ambient context, and a begin/suspend pair that bridges callback-driven
// APIs into ordinary blocking-looking function calls.
//
// # Running Asynchronous Code
//
// [BeginAsync] installs a merged [Context] for the duration of a body
// function and runs it on a dedicated goroutine. The call returns no
// later than the body's first call to [SuspendAsync]:
//
//	ctx := asyncscope.Single(scope)
//	val, err, suspended := asyncscope.BeginAsync(ctx, onError, func() (int, error) {
//	    return asyncscope.SuspendAsync(func(resume func(int), fail func(error)) {
//	        go func() {
//	            resume(42)
//	        }()
//	    })
//	})
//
// [SuspendAsync] pushes a failure closure onto the ambient [CancelScope]'s
// failure stack (if one is present), invokes the caller-supplied op, and
// blocks the body's goroutine until resume or fail is called — from any
// goroutine. [SuspendAsyncSimple] is the non-cancellable variant used when
// no [CancelScope] is involved.
//
// # Cancellation
//
// A [CancelScope] registers [Cancellable] items and fans cancellation out
// to them in insertion order. [CancelScope.MakeSubscope] mints a child
// scope that cancels transitively with its parent but can also be
// cancelled independently. [CancelScope.Add] after [CancelScope.Cancel]
// has already fired synchronously cancels the new item before returning.
//
// # Ambient Context
//
// [Context] is a typed bag, looked up by type via [Get] or [GetFrom].
// Nesting [BeginAsync] calls merges the new context ahead of the outer
// one, so inner values shadow outer values of the same type without
// hiding outer values of other types. The exact merge rule is documented
// on the unexported merge function in context.go.
//
// # Blocking Prototype
//
// Both [BeginAsync] and [SuspendAsync] implement their "suspension" by
// blocking a goroutine rather than by yielding a true green thread or
// rewriting the body into a generator. This is an acknowledged
// limitation carried over from the system this package models; the
// contract observed by callers — when begin_async returns, and how
// suspend_async resumes — is unaffected by the underlying mechanism.
// [CoroutineState] exists only because of this limitation: delayed
// callbacks that fire on a different goroutine than the one that called
// suspend_async must reinstall the ambient state explicitly before
// touching [Get] or calling resume/fail.
//
// # Adapters
//
// The core makes no assumptions about what gets cancelled. The
// adapters/httptask and adapters/workqueue subpackages are reference
// implementations of [Cancellable] for an HTTP request and a delayed
// work item, respectively; [Future] is a small combinator built
// entirely atop [BeginAsync] and [SuspendAsync].
//
// # Non-goals
//
// This package does not implement a single-threaded event loop, does
// not guarantee a scope's callbacks never re-enter on the same
// goroutine, and does not support cross-process cancellation or
// persisting a scope. It is an in-process library: no wire format, no
// CLI, no stored state.
package asyncscope
