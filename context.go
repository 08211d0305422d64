package asyncscope

// Context is the ambient, typed bag carried through nested [BeginAsync]
// calls. A Context is either empty, a single element, or an ordered list
// of elements of arbitrary types. It is opaque: construct one with
// [Single] or [List], and read it back with [Get] or [GetFrom] — never by
// inspecting its fields directly.
//
// Context values are immutable once constructed; a new, merged Context is
// built for every nested [BeginAsync] invocation per the rule documented
// on [merge].
type Context struct {
	single any
	list   []any
}

// Single wraps one value as an ambient [Context] element.
func Single(v any) *Context {
	return &Context{single: v}
}

// List wraps an ordered sequence of values as an ambient [Context].
// Earlier elements shadow later ones during lookup.
func List(vs ...any) *Context {
	return &Context{list: append([]any(nil), vs...)}
}

func isEmptyContext(c *Context) bool {
	return c == nil || (c.single == nil && len(c.list) == 0)
}

// merge implements the ambient-context merge rule for entering a nested
// begin_async with an outer context O and a new context N:
//
//  1. If either is empty, use the other.
//  2. If O and N are the same reference, use O.
//  3. If both are lists, the merged context is N++O (new elements
//     precede outer elements).
//  4. If only O is a list, prepend N to O.
//  5. If only N is a list, append O to N.
//  6. Otherwise, the merged context is the two-element list [N, O].
//
// The ordering ensures inner values shadow outer values of the same
// type at lookup time, while outer values of other types remain
// discoverable.
func merge(outer, new *Context) *Context {
	if isEmptyContext(new) {
		return outer
	}
	if isEmptyContext(outer) {
		return new
	}
	if outer == new {
		return outer
	}

	outerIsList := len(outer.list) > 0
	newIsList := len(new.list) > 0

	switch {
	case outerIsList && newIsList:
		merged := make([]any, 0, len(new.list)+len(outer.list))
		merged = append(merged, new.list...)
		merged = append(merged, outer.list...)
		return &Context{list: merged}
	case outerIsList && !newIsList:
		merged := make([]any, 0, len(outer.list)+1)
		merged = append(merged, new.single)
		merged = append(merged, outer.list...)
		return &Context{list: merged}
	case !outerIsList && newIsList:
		merged := make([]any, 0, len(new.list)+1)
		merged = append(merged, new.list...)
		merged = append(merged, outer.single)
		return &Context{list: merged}
	default:
		return &Context{list: []any{new.single, outer.single}}
	}
}

// GetFrom looks up the first element of type T in c: c itself if it is a
// single element of that type, otherwise the first list element whose
// runtime type matches.
func GetFrom[T any](c *Context) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	if c.single != nil {
		if v, ok := c.single.(T); ok {
			return v, true
		}
		return zero, false
	}
	for _, e := range c.list {
		if v, ok := e.(T); ok {
			return v, true
		}
	}
	return zero, false
}

// Get looks up the first element of type T in the ambient context
// installed for the calling goroutine (i.e. inside a [BeginAsync] body or
// a nested [SuspendAsync] op). Outside of [BeginAsync] it always returns
// the zero value and false.
func Get[T any]() (T, bool) {
	var zero T
	f := currentBeginFrame()
	if f == nil {
		return zero, false
	}
	return GetFrom[T](f.ctx)
}
