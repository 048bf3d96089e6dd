package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.UnixMilli(1700000000000).UTC()

func TestDeterministicClock_StartsAtStart(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Second)
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, int64(1), clock.Calls())
}

func TestDeterministicClock_AdvancesByStep(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Second)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch.Add(time.Second), clock.Now())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
}

func TestDeterministicClock_ZeroStepIsFixed(t *testing.T) {
	clock := NewDeterministicClock(epoch, 0)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch, clock.Now())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset()

	assert.Equal(t, int64(0), clock.Calls())
	assert.Equal(t, epoch, clock.Now())
}

func TestDeterministicClock_ConcurrentCalls(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Millisecond)

	var wg sync.WaitGroup
	seen := make(chan time.Time, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- clock.Now()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]bool)
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, 100, "every call should see a distinct instant")
}
