package scraper

import (
	"context"

	"github.com/go-rod/rod"
)

// acquireTab takes a slot from pool, creating the tab when the slot is
// empty. A failed create hands the empty slot back, otherwise every error
// would shrink the pool for good. Waiting for a slot stops with ctx.
func acquireTab(ctx context.Context, pool rod.Pool[rod.Page], create func() (*rod.Page, error)) (*rod.Page, error) {
	var p *rod.Page
	select {
	case p = <-pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p != nil {
		return p, nil
	}

	p, err := create()
	if err != nil {
		pool.Put(nil)
		return nil, err
	}
	return p, nil
}
