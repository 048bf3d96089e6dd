package testutil

import (
	"sync"
	"time"
)

// DeterministicClock provides a thread-safe, reproducible wall clock for tests.
//
// Each call to Now returns the start instant advanced by one step per prior
// call, so a test that reads the clock several times still sees distinct,
// predictable times. Reset rewinds to the start for test reuse.
//
// Implements engine.Clock.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewDeterministicClock creates a clock starting at start that advances by
// step on every call. A zero step makes it a fixed clock.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, step: step}
}

// Now returns start + calls*step and increments the call count.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock. The next call to Now returns start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
