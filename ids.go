package asyncscope

import "github.com/google/uuid"

// newID mints an identifier used to tag scopes and begin_async frames for
// observability (ScopeEvent, Metrics). It carries no semantic meaning to
// the cancellation or context machinery itself.
func newID() string {
	return uuid.New().String()
}
