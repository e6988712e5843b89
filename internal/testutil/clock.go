// Package testutil provides deterministic clocks and run-id generators for
// tests across the catchup packages.
package testutil

import (
	"sync"
	"time"
)

// Clock hands out monotonically advancing wall times for tests.
//
// Each call to Now returns the current time and advances it by a fixed
// step, so consecutive ledger writes get distinct, ordered timestamps
// without depending on the real clock.
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock creates a clock starting at start, advancing by step per call.
func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start, step: step}
}

// Now returns the current time and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Current returns the current time without advancing.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
