// Package polltest provides a Clock that records sleeps instead of waiting.
package polltest

import (
	"context"
	"sync"
	"time"
)

// Clock records every Sleep and returns immediately.
type Clock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns a copy of the recorded durations.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Total returns the sum of the recorded durations.
func (c *Clock) Total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}
