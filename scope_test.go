package asyncscope_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/asyncscope"
)

type fakeCancellable struct {
	cancelled bool
}

func (f *fakeCancellable) Cancel()          { f.cancelled = true }
func (f *fakeCancellable) IsCancelled() bool { return f.cancelled }

// orderedCancellable appends its index to order when cancelled.
type orderedCancellable struct {
	fakeCancellable
	i     int
	order *[]int
}

func (o *orderedCancellable) Cancel() {
	o.fakeCancellable.Cancel()
	*o.order = append(*o.order, o.i)
}

func TestAddWithoutActiveSuspensionPanics(t *testing.T) {
	scope := asyncscope.NewCancelScope()
	defer scope.Close()

	assert.Panics(t, func() {
		scope.Add(&fakeCancellable{})
	})
}

func TestAddAfterCancelSynchronouslyCancels(t *testing.T) {
	scope := asyncscope.NewCancelScope()
	defer scope.Close()
	scope.Cancel()

	item := &fakeCancellable{}
	var gotErr error
	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(scope),
		func(err error) { gotErr = err },
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				scope.Add(item)
			})
		},
	)

	if !item.cancelled {
		t.Error("item added after Cancel should be cancelled synchronously")
	}
	time.Sleep(20 * time.Millisecond)
	if !asyncscope.IsCancelled(gotErr) {
		t.Errorf("expected Cancelled error, got %v", gotErr)
	}
}

func TestIsCancelledVacuouslyTrueWithNoItems(t *testing.T) {
	scope := asyncscope.NewCancelScope()
	defer scope.Close()
	assert.True(t, scope.IsCancelled(), "a scope with no registered items is vacuously cancelled")
}

func TestCancelIsIdempotent(t *testing.T) {
	scope := asyncscope.NewCancelScope()
	defer scope.Close()

	item := &fakeCancellable{}
	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(scope),
		nil,
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				scope.Add(item)
			})
		},
	)

	scope.Cancel()
	scope.Cancel()
}

func TestCancelFansOutInInsertionOrder(t *testing.T) {
	scope := asyncscope.NewCancelScope()
	defer scope.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		_, _, _ = asyncscope.BeginAsync(
			asyncscope.Single(scope),
			nil,
			func() (struct{}, error) {
				return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
					scope.Add(&orderedCancellable{i: i, order: &order})
				})
			},
		)
	}

	scope.Cancel() // items' Cancel methods run synchronously, on this goroutine.
	require.Len(t, order, 5)
	for i, v := range order {
		assert.Equal(t, i, v, "cancellation must fan out in insertion order")
	}
}

func TestMakeSubscopeRequiresActiveSuspension(t *testing.T) {
	scope := asyncscope.NewCancelScope()
	defer scope.Close()

	assert.Panics(t, func() {
		scope.MakeSubscope()
	})
}

func TestMakeSubscopeCancelsTransitively(t *testing.T) {
	parent := asyncscope.NewCancelScope()
	defer parent.Close()

	var child *asyncscope.CancelScope
	var childErr error
	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(parent),
		nil,
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				child = parent.MakeSubscope()
				_, _, _ = asyncscope.BeginAsync(
					asyncscope.Single(child),
					func(err error) { childErr = err },
					func() (struct{}, error) {
						return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
							child.Add(&fakeCancellable{})
						})
					},
				)
				// The outer suspension stays pending: resolving it would
				// prune the child's registration with the parent.
			})
		},
	)

	parent.Cancel()
	time.Sleep(20 * time.Millisecond) // let the child's onError delivery, async past its own suspension, land.
	if !asyncscope.IsCancelled(childErr) {
		t.Errorf("cancelling the parent should cancel the subscope's item too, got %v", childErr)
	}
}

func TestSubscopeIsolationFromParentItems(t *testing.T) {
	parent := asyncscope.NewCancelScope()
	defer parent.Close()

	parentItem := &fakeCancellable{}
	var sub *asyncscope.CancelScope
	subItem := &fakeCancellable{}

	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(parent),
		nil,
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				parent.Add(parentItem)
				sub = parent.MakeSubscope()
			})
		},
	)

	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(sub),
		nil,
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				sub.Add(subItem)
			})
		},
	)

	sub.Cancel()
	if !subItem.cancelled {
		t.Error("sub.Cancel() should cancel items registered directly on the subscope")
	}
	if parentItem.cancelled {
		t.Error("sub.Cancel() must not cancel items registered directly on the parent")
	}

	parent.Cancel()
	if !parentItem.cancelled {
		t.Error("parent.Cancel() should cancel the parent's own items")
	}
}

func TestCancellablesExcludesResolvedItems(t *testing.T) {
	scope := asyncscope.NewCancelScope()
	defer scope.Close()

	other := &fakeCancellable{}
	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(scope),
		nil,
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				scope.Add(other)
				resume(struct{}{})
			})
		},
	)

	time.Sleep(20 * time.Millisecond) // let the body's pruning, which races BeginAsync's return, finish.
	got := asyncscope.Cancellables[*fakeCancellable](scope)
	if len(got) != 0 {
		t.Errorf("item should have been pruned once its suspension resolved, got %d", len(got))
	}
}

func TestResolutionPrunesOnlyOwnItems(t *testing.T) {
	scope := asyncscope.NewCancelScope()
	defer scope.Close()

	resolved := &fakeCancellable{}
	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(scope),
		nil,
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				scope.Add(resolved)
				resume(struct{}{})
			})
		},
	)

	pending := &fakeCancellable{}
	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(scope),
		nil,
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				scope.Add(pending)
			})
		},
	)

	time.Sleep(20 * time.Millisecond)
	scope.Cancel()
	if resolved.cancelled {
		t.Error("an item whose suspension already resolved must have been pruned, not cancelled")
	}
	if !pending.cancelled {
		t.Error("an item belonging to a still-pending suspension must be cancelled")
	}
}

func TestWithTimeoutCancelsScope(t *testing.T) {
	scope := asyncscope.NewCancelScope(asyncscope.WithTimeout(10 * time.Millisecond))
	defer scope.Close()

	item := &fakeCancellable{}
	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(scope),
		nil,
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				scope.Add(item)
			})
		},
	)

	time.Sleep(50 * time.Millisecond)
	if !item.cancelled {
		t.Error("timeout should have cancelled the item")
	}
}

func TestWithOnEventReceivesAddedAndCancelled(t *testing.T) {
	var kinds []asyncscope.EventKind
	scope := asyncscope.NewCancelScope(asyncscope.WithOnEvent(func(e asyncscope.ScopeEvent) {
		kinds = append(kinds, e.Kind)
	}))
	defer scope.Close()

	_, _, _ = asyncscope.BeginAsync(
		asyncscope.Single(scope),
		nil,
		func() (struct{}, error) {
			return asyncscope.SuspendAsync(func(resume func(struct{}), fail func(error)) {
				scope.Add(&fakeCancellable{})
				resume(struct{}{})
			})
		},
	)
	time.Sleep(20 * time.Millisecond)
	scope.Cancel()

	require.Contains(t, kinds, asyncscope.EventAdded)
	require.Contains(t, kinds, asyncscope.EventItemResolved)
	require.Contains(t, kinds, asyncscope.EventCancelled)
}

func TestWithOnMetricsPanicsOnInvalidArgs(t *testing.T) {
	assert.Panics(t, func() {
		asyncscope.WithOnMetrics(0, func(asyncscope.Metrics) {})
	})
	assert.Panics(t, func() {
		asyncscope.WithOnMetrics(time.Second, nil)
	})
}

func TestErrorsIsCancelledAndWrap(t *testing.T) {
	wrapped := asyncscope.WrapAdapterError(errors.New("boom"))
	if asyncscope.IsCancelled(wrapped) {
		t.Error("a wrapped adapter error must not read as Cancelled")
	}
	if !asyncscope.IsCancelled(asyncscope.Cancelled) {
		t.Error("the Cancelled sentinel must read as Cancelled")
	}
	assert.Nil(t, asyncscope.WrapAdapterError(nil))
}
