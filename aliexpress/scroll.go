package aliexpress

import (
	"context"
	"errors"
	"time"

	"github.com/use-agent/aliscout/dom"
	"github.com/use-agent/aliscout/poll"
)

// Auto-scroll defaults.
const (
	DefaultScrollStep     = 100
	DefaultScrollInterval = 100 * time.Millisecond
	DefaultScrollMaxSteps = 300
)

// Scroller walks a result page down so lazily loaded cards render.
type Scroller struct {
	Step     float64
	Interval time.Duration
	MaxSteps int
	Clock    poll.Clock
}

// NewScroller returns a Scroller with the default step, pace and bound.
func NewScroller(clock poll.Clock) *Scroller {
	return &Scroller{
		Step:     DefaultScrollStep,
		Interval: DefaultScrollInterval,
		MaxSteps: DefaultScrollMaxSteps,
		Clock:    clock,
	}
}

// AutoScroll scrolls s until the viewport reaches the bottom, the scrolled
// distance covers the document height, or MaxSteps is spent. Hitting the
// step bound is not an error. It returns the number of steps taken.
func (sc *Scroller) AutoScroll(ctx context.Context, s dom.Scroller) (int, error) {
	var total float64
	steps, err := poll.Poller{
		Attempts: sc.MaxSteps,
		Interval: sc.Interval,
		Clock:    sc.Clock,
	}.Run(ctx, func(ctx context.Context, _ int) (bool, error) {
		m, err := s.ScrollBy(ctx, sc.Step)
		if err != nil {
			return false, err
		}
		total += sc.Step
		return m.AtBottom() || total >= m.ScrollHeight, nil
	})
	if errors.Is(err, poll.ErrExhausted) {
		return steps, nil
	}
	return steps, err
}
