package testutil

import "sync"

// SequenceIDs returns predetermined weaving session ids in order.
//
// This makes weaving journals comparable across test runs.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequenceIDs creates a generator returning ids in order.
//
// Example:
//
//	gen := NewSequenceIDs("session-1", "session-2")
//	gen.Generate() // "session-1"
//	gen.Generate() // "session-2"
//	gen.Generate() // panic: all ids exhausted
func NewSequenceIDs(ids ...string) *SequenceIDs {
	return &SequenceIDs{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics when all ids have been consumed, which catches tests that weave more
// sessions than they planned.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("SequenceIDs: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// FixedID returns the same session id every time.
//
// If id is empty, Generate returns "test-session-default".
//
// Thread-safety: FixedID is stateless and safe for concurrent use.
type FixedID string

// Generate returns the fixed id.
func (f FixedID) Generate() string {
	if f == "" {
		return "test-session-default"
	}
	return string(f)
}
