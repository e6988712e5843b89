package testutil

import "sync"

// RunIDs returns predetermined run ids for testing.
//
// This enables deterministic ledger rows and stable assertions on
// last_seen_run_id values. Panics when all ids are consumed - a fail-fast
// guard against a test creating more runs than it expected.
//
// Thread-safety: safe for concurrent use via internal mutex.
type RunIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewRunIDs creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewRunIDs("run-a", "run-b")
//	gen.Next() // "run-a"
//	gen.Next() // "run-b"
//	gen.Next() // panic: all run ids exhausted
func NewRunIDs(ids ...string) *RunIDs {
	return &RunIDs{ids: ids}
}

// Next returns the next predetermined run id.
func (g *RunIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("RunIDs: all run ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
