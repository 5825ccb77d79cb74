package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant a DeterministicClock reports.
var DefaultEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock provides a thread-safe clock for tests that advances by
// a fixed step on every reading.
//
// Two runs of the same test observe identical timestamps, so recorded
// history compares byte-for-byte. It can be reset for test reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewDeterministicClock creates a clock starting at DefaultEpoch that
// advances one second per reading.
//
// The first call to Now() returns DefaultEpoch.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultEpoch, time.Second)
}

// NewDeterministicClockAt creates a clock starting at start that advances by
// step per reading.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, step: step}
}

// Now returns the current reading and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Readings returns how many times Now has been called.
func (c *DeterministicClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset(), the next call to Now() returns the
// start time again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
