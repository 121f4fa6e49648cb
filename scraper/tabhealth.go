package scraper

import (
	"math"
	"sync"
	"time"

	"github.com/go-rod/rod"
)

// Retirement thresholds for pooled detail tabs. A tab that trips any one
// of them is closed instead of returned to the pool.
const (
	maxTabErrScore = 3.0
	maxTabUses     = 50
	maxTabAge      = 50 * time.Minute
)

// tabHealth scores one pooled tab. Success lowers the score by 0.5
// (floored at 0); failure raises it by 1.
type tabHealth struct {
	errScore float64
	uses     int
	created  time.Time
}

func (h *tabHealth) record(ok bool) {
	h.uses++
	if ok {
		h.errScore = math.Max(0, h.errScore-0.5)
	} else {
		h.errScore++
	}
}

func (h *tabHealth) shouldRetire(now time.Time) bool {
	return h.errScore >= maxTabErrScore ||
		h.uses >= maxTabUses ||
		now.Sub(h.created) >= maxTabAge
}

// tabTracker keeps health per live tab.
type tabTracker struct {
	mu   sync.Mutex
	tabs map[*rod.Page]*tabHealth
	now  func() time.Time
}

func newTabTracker() *tabTracker {
	return &tabTracker{tabs: make(map[*rod.Page]*tabHealth), now: time.Now}
}

// release records the outcome of one use of p and reports whether p
// should be retired. A retired tab is forgotten.
func (t *tabTracker) release(p *rod.Page, ok bool) (retire bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, found := t.tabs[p]
	if !found {
		h = &tabHealth{created: t.now()}
		t.tabs[p] = h
	}
	h.record(ok)
	if h.shouldRetire(t.now()) {
		delete(t.tabs, p)
		return true
	}
	return false
}

// track registers a newly created tab.
func (t *tabTracker) track(p *rod.Page) {
	t.mu.Lock()
	t.tabs[p] = &tabHealth{created: t.now()}
	t.mu.Unlock()
}
