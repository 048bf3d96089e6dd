package engine

import "time"

// Clock supplies the instant of the "now" snapshot.
//
// The sequencer reads the clock exactly once per run. Tests inject a fixed
// clock so the whole snapshot sequence is reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, truncated to milliseconds to match
// changelog timestamps.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now().Truncate(time.Millisecond)
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return c.At
}
