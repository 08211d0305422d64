package asyncscope

// BeginAsync begins a direct-style asynchronous computation. It computes
// the merged ambient [Context] (the new context ahead of whatever is
// already installed for the calling goroutine, per the rule documented on
// [merge]), runs body on a fresh goroutine under that context, and blocks
// the caller until body either returns or reaches its first
// [SuspendAsync] — whichever comes first.
//
// suspended reports whether body was still running when the caller woke:
// if false, result and err are body's actual return values (this can also
// happen after a suspension, when op resumed synchronously and body
// finished before the caller checked), and err (if non-nil) has already been
// delivered to onError as well as returned here. If true, body had not
// yet completed when BeginAsync returned; result and err are the zero
// value and nil, and body keeps running on its goroutine. Any error body
// eventually produces after that point is delivered only to onError — its
// success value, if any, is not delivered anywhere by this primitive
// (this is the acknowledged prototype limitation: callers that need the
// post-suspension result must arrange their own channel, as [Future]
// does).
//
// A panic in body is recovered and delivered as a *[PanicError], exactly
// like any other error.
func BeginAsync[T any](ctxNew *Context, onError func(error), body func() (T, error)) (result T, err error, suspended bool) {
	outer := currentBeginFrame()
	var outerCtx *Context
	if outer != nil {
		outerCtx = outer.ctx
	}

	frame := newBeginFrame(merge(outerCtx, ctxNew))

	type outcome struct {
		val T
		err error
	}
	out := make(chan outcome, 1)

	go func() {
		installBeginFrame(frame)
		defer uninstallBeginFrame()
		defer frame.signalFirstSuspension()

		v, bodyErr := runBodyRecovered(body)
		out <- outcome{val: v, err: bodyErr}
	}()

	<-frame.signal

	select {
	case o := <-out:
		if o.err != nil && onError != nil {
			onError(o.err)
		}
		return o.val, o.err, false
	default:
		// The body suspended rather than completing: it is still running
		// on its own goroutine, and whatever it eventually produces — in
		// particular a Cancelled delivered to a suspend_async frame well
		// after this call returns — has nowhere else to go but onError
		// (§7: "after the first suspension the error goes only to
		// on_error"). Keep a continuation alive to deliver it.
		go func() {
			o := <-out
			if o.err != nil && onError != nil {
				onError(o.err)
			}
		}()
		return result, nil, true
	}
}

func runBodyRecovered[T any](body func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return body()
}

// SuspendAsync suspends the current begin_async body awaiting a
// callback-driven result. It must be called from within a [BeginAsync]
// body (directly or transitively); calling it otherwise is fatal misuse.
//
// If a [CancelScope] is discoverable in the ambient context, SuspendAsync
// pushes a failure closure onto its failure stack before invoking op, so
// that op's registered cancellables are reachable by a concurrent
// Cancel. Once op returns — having started the underlying work and
// typically called [CancelScope.Add] on at least one cancellable —
// SuspendAsync signals begin_async's caller (if this is the body's first
// suspension) and blocks until resume or fail is called, from any
// goroutine.
//
// On wake, the failure closure is popped and every item it registered is
// pruned from the scope (items belonging to outer suspend_async frames
// survive), and the recorded value or error is returned.
func SuspendAsync[T any](op func(resume func(T), fail func(error))) (T, error) {
	frame := currentBeginFrame()
	if frame == nil {
		panic("asyncscope: suspend_async called outside begin_async")
	}

	scope, hasScope := GetFrom[*CancelScope](frame.ctx)

	sf := newSuspensionFrame[T]()
	failFn := func(err error) { sf.fail(err) }
	resumeFn := func(v T) { sf.resume(v) }

	var handle *failureHandle
	if hasScope {
		handle = scope.pushFailureClosure(failFn)
	}

	op(resumeFn, failFn)

	frame.signalFirstSuspension()

	<-sf.done

	if hasScope {
		scope.popFailureClosure(handle)
		scope.removeAll(handle)
	}

	return sf.outcome()
}

// SuspendAsyncSimple is the non-cancellable variant of [SuspendAsync]: op
// is only given resume, never fail, and there is no interaction with any
// ambient [CancelScope]. Code inside op that nonetheless calls
// [CancelScope.Add] hits the same fatal misuse as calling it with no
// active suspension at all, since this variant never pushes a failure
// closure for any scope.
func SuspendAsyncSimple[T any](op func(resume func(T))) T {
	frame := currentBeginFrame()
	if frame == nil {
		panic("asyncscope: suspend_async called outside begin_async")
	}

	sf := newSuspensionFrame[T]()
	op(func(v T) { sf.resume(v) })

	frame.signalFirstSuspension()

	<-sf.done

	v, _ := sf.outcome()
	return v
}
