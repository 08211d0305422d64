package asyncscope

// Metrics is a point-in-time snapshot of a [CancelScope]'s activity,
// handed to a [WithOnMetrics] callback. Safe to read concurrently; each
// field is sampled independently, so a snapshot is not transactionally
// consistent across fields.
type Metrics struct {
	ScopeID          string
	RegisteredItems  int
	TotalAdded       int64
	CancelCalled     bool
	ActiveSubscopes  int64
	PendingFailures  int
}

func (s *CancelScope) snapshotMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Metrics{
		ScopeID:         s.id,
		RegisteredItems: len(s.items),
		TotalAdded:      s.totalAdded.Load(),
		CancelCalled:    s.cancelCalled,
		ActiveSubscopes: s.activeSubscopes.Load(),
		PendingFailures: len(s.failureStack),
	}
}
