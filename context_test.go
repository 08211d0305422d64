package asyncscope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type ctxKeyA struct{ v int }
type ctxKeyB struct{ v string }

func TestMergeEmptyUsesOther(t *testing.T) {
	n := Single(ctxKeyA{1})
	if got := merge(nil, n); got != n {
		t.Errorf("merge(nil, n) = %v, want n", got)
	}
	if got := merge(n, nil); got != n {
		t.Errorf("merge(n, nil) = %v, want n", got)
	}
	if got := merge(&Context{}, n); got != n {
		t.Errorf("merge(empty, n) = %v, want n", got)
	}
}

func TestMergeSameReference(t *testing.T) {
	c := Single(ctxKeyA{1})
	assert.Same(t, c, merge(c, c))
}

func TestMergeBothLists(t *testing.T) {
	outer := List(ctxKeyA{1}, ctxKeyB{"outer"})
	inner := List(ctxKeyA{2})

	merged := merge(outer, inner)
	v, ok := GetFrom[ctxKeyA](merged)
	assert.True(t, ok)
	assert.Equal(t, ctxKeyA{2}, v, "inner element should shadow outer element of the same type")

	b, ok := GetFrom[ctxKeyB](merged)
	assert.True(t, ok)
	assert.Equal(t, ctxKeyB{"outer"}, b, "outer-only type should remain discoverable")
}

func TestMergeOuterListNewSingle(t *testing.T) {
	outer := List(ctxKeyA{1}, ctxKeyB{"outer"})
	inner := Single(ctxKeyA{99})

	merged := merge(outer, inner)
	v, _ := GetFrom[ctxKeyA](merged)
	if v != (ctxKeyA{99}) {
		t.Errorf("got %v, want inner value to shadow outer list element", v)
	}
}

func TestMergeNewListOuterSingle(t *testing.T) {
	outer := Single(ctxKeyB{"outer"})
	inner := List(ctxKeyA{1}, ctxKeyA{2})

	merged := merge(outer, inner)
	v, ok := GetFrom[ctxKeyA](merged)
	assert.True(t, ok)
	assert.Equal(t, ctxKeyA{1}, v, "first list element should win over later ones of the same type")

	b, ok := GetFrom[ctxKeyB](merged)
	assert.True(t, ok)
	assert.Equal(t, ctxKeyB{"outer"}, b)
}

func TestMergeTwoSinglesBecomesList(t *testing.T) {
	outer := Single(ctxKeyB{"outer"})
	inner := Single(ctxKeyA{1})

	merged := merge(outer, inner)
	a, ok := GetFrom[ctxKeyA](merged)
	assert.True(t, ok)
	assert.Equal(t, ctxKeyA{1}, a)

	b, ok := GetFrom[ctxKeyB](merged)
	assert.True(t, ok)
	assert.Equal(t, ctxKeyB{"outer"}, b)
}

func TestGetFromMissingType(t *testing.T) {
	c := Single(ctxKeyA{1})
	_, ok := GetFrom[ctxKeyB](c)
	if ok {
		t.Error("expected no ctxKeyB in a context holding only ctxKeyA")
	}
}

func TestGetOutsideBeginAsync(t *testing.T) {
	_, ok := Get[ctxKeyA]()
	if ok {
		t.Error("Get outside begin_async should never find anything")
	}
}
