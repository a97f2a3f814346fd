package util

import (
	"sync"
	"time"
)

type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// ManualClock fires every After immediately and moves Now forward by Step
// on each call. Block production under it runs as fast as the caller loops.
type ManualClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

func NewManualClock(start time.Time, step time.Duration) *ManualClock {
	return &ManualClock{now: start, Step: step}
}

func (c *ManualClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.Step)
	return c.now
}
