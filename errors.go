package asyncscope

import (
	"errors"
	"fmt"
)

// Kind distinguishes the cancellation sentinel from ordinary adapter
// errors surfaced through [Error].
type Kind int

const (
	// KindAdapter wraps an error produced by a cancellable's underlying
	// work (e.g. a network failure reported by an HTTP task).
	KindAdapter Kind = iota
	// KindCancelled marks cancellation, explicit or via timeout.
	KindCancelled
)

// Error is the sum type errors flow through suspend_async as. Cancelled
// is the sentinel value for the Cancelled variant; wrap any other error
// with [WrapAdapterError].
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindCancelled {
		return "asyncscope: cancelled"
	}
	return fmt.Sprintf("asyncscope: %v", e.Err)
}

// Unwrap exposes the underlying adapter error for errors.Is/errors.As.
// Cancelled unwraps to nil.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cancelled is the sentinel error delivered to a suspended frame by
// [CancelScope.Cancel] or a timeout. Compare against it with
// [IsCancelled], not with ==, since it may arrive wrapped inside another
// error, and any *Error of Kind KindCancelled reads as cancelled.
var Cancelled error = &Error{Kind: KindCancelled}

// IsCancelled reports whether err is, or wraps, the cancellation
// sentinel.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindCancelled
	}
	return false
}

// WrapAdapterError wraps a plain error surfaced by a cancellable's
// underlying work as an adapter-kind [Error]. Returns nil for a nil err.
func WrapAdapterError(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: KindAdapter, Err: err}
}
