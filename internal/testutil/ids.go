package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates predictable ids "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden comparison of
// recorded history.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix defaults to "q".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "q"
	}
	return &SequenceIDs{prefix: prefix}
}

// NewID returns the next id.
func (g *SequenceIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// FixedIDs returns predetermined ids in order.
//
// Example:
//
//	gen := NewFixedIDs("q-a", "q-b")
//	gen.NewID() // "q-a"
//	gen.NewID() // "q-b"
//	gen.NewID() // panic: all ids exhausted
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator returning ids in order.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// NewID returns the next predetermined id.
//
// Panics if all ids have been consumed. This is a fail-fast approach to
// catch a test that records more questions than it expected.
func (g *FixedIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedIDs: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
