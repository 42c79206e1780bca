package testutil

import (
	"sync"
	"time"

	"github.com/hupe1980/gatemesh/core"
)

// SequenceClock returns the given Unix timestamps (fractional seconds) one
// per call, in order. Once exhausted it keeps returning the last value.
type SequenceClock struct {
	mu    sync.Mutex
	times []float64
	calls int
}

// Interface compliance (compile-time assertion)
var _ core.Clock = (*SequenceClock)(nil)

// NewSequenceClock creates a clock yielding times in order.
func NewSequenceClock(times ...float64) *SequenceClock {
	return &SequenceClock{times: times}
}

// Now returns the next timestamp.
func (c *SequenceClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.times) == 0 {
		return time.Unix(0, 0)
	}
	i := c.calls
	if i >= len(c.times) {
		i = len(c.times) - 1
	}
	c.calls++
	return core.FromUnixSeconds(c.times[i])
}

// Calls reports how many times Now was called.
func (c *SequenceClock) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
