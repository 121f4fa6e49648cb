// Package poll runs a check at a fixed interval for a bounded number of
// attempts. The clock is injectable so tests do not sleep.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt ran without the check
// reporting done.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Clock sleeps. RealClock is the production implementation.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on the wall clock and wakes early when ctx is done.
type RealClock struct{}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckFunc is one attempt. Returning done=true stops polling. A non-nil
// error is passed to the poller's OnError hook and the attempt counts as
// not done; it never stops the loop.
type CheckFunc func(ctx context.Context, attempt int) (done bool, err error)

// Poller calls a check every Interval, at most Attempts times. The first
// attempt runs after one interval, like a setInterval timer.
type Poller struct {
	Attempts int
	Interval time.Duration
	Clock    Clock

	// OnError observes per-attempt errors. Optional.
	OnError func(attempt int, err error)
}

// Run polls until check reports done, the attempts run out (ErrExhausted),
// or ctx is cancelled (ctx.Err()). It returns the number of attempts made.
func (p Poller) Run(ctx context.Context, check CheckFunc) (int, error) {
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		if err := clock.Sleep(ctx, p.Interval); err != nil {
			return i - 1, err
		}
		done, err := check(ctx, i)
		if err != nil && p.OnError != nil {
			p.OnError(i, err)
		}
		if err == nil && done {
			return i, nil
		}
	}
	return attempts, ErrExhausted
}
