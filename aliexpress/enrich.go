package aliexpress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/aliscout/dom"
	"github.com/use-agent/aliscout/models"
	"github.com/use-agent/aliscout/poll"
)

// Detail-page budget: 150 checks 100ms apart.
const (
	DefaultDetailAttempts = 150
	DefaultDetailInterval = 100 * time.Millisecond
)

var (
	// ErrDetailTimeout means the reviewer block never appeared within the
	// polling budget.
	ErrDetailTimeout = errors.New("detail page: reviewer block not found in time")

	// ErrTabOpen means the browser refused to open a background tab.
	ErrTabOpen = errors.New("detail page: tab could not be opened")
)

// Detail holds the fields read from a product page. A nil field means the
// page had no such element; a non-nil empty string means the element was
// present but blank.
type Detail struct {
	Rating      *string
	ReviewCount *string
	SoldCount   *string
}

// DetailFetcher loads a product page and reads its reviewer block.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, url string) (*Detail, error)
}

// Tab is a background page owned by the caller until Close.
type Tab interface {
	dom.Document
	ReadyState(ctx context.Context) (string, error)
	Close() error
}

// FailureReporter is implemented by tabs that keep a health score. A tab
// is reported when its document never became ready within the budget.
type FailureReporter interface {
	ReportFailure()
}

// TabOpener opens url in a new background tab.
type TabOpener interface {
	Open(ctx context.Context, url string) (Tab, error)
}

// TabFetcher reads details from a live tab, polling until the reviewer
// block renders.
type TabFetcher struct {
	Opener TabOpener
	Poller poll.Poller
}

// NewTabFetcher returns a TabFetcher with the default polling budget.
func NewTabFetcher(opener TabOpener, clock poll.Clock) *TabFetcher {
	return &TabFetcher{
		Opener: opener,
		Poller: poll.Poller{
			Attempts: DefaultDetailAttempts,
			Interval: DefaultDetailInterval,
			Clock:    clock,
		},
	}
}

// FetchDetail opens url and polls it. The tab is closed on every return path.
func (f *TabFetcher) FetchDetail(ctx context.Context, url string) (*Detail, error) {
	tab, err := f.Opener.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTabOpen, err)
	}
	if tab == nil {
		return nil, ErrTabOpen
	}
	defer func() {
		if err := tab.Close(); err != nil {
			slog.Debug("close detail tab", "url", url, "error", err)
		}
	}()

	var (
		detail *Detail
		ready  bool
	)
	poller := f.Poller
	poller.OnError = func(attempt int, err error) {
		// Expected while the page navigates; the next tick retries.
		slog.Debug("detail poll attempt failed", "url", url, "attempt", attempt, "error", err)
	}
	_, err = poller.Run(ctx, func(ctx context.Context, _ int) (bool, error) {
		state, err := tab.ReadyState(ctx)
		if err != nil {
			return false, err
		}
		if state != readyInteractive && state != readyComplete {
			return false, nil
		}
		ready = true
		d, ok, err := readDetail(ctx, tab)
		if err != nil || !ok {
			return false, err
		}
		detail = d
		return true, nil
	})
	if err != nil && !ready && ctx.Err() == nil {
		if r, ok := tab.(FailureReporter); ok {
			r.ReportFailure()
		}
	}
	switch {
	case errors.Is(err, poll.ErrExhausted):
		return nil, ErrDetailTimeout
	case err != nil:
		return nil, err
	}
	return detail, nil
}

// readDetail reports ok=false while the reviewer container is missing.
func readDetail(ctx context.Context, doc dom.Document) (*Detail, bool, error) {
	wrap, err := firstMatch(ctx, doc, SelectorReviewer, SelectorReviewerAlt)
	if err != nil || wrap == nil {
		return nil, false, err
	}

	d := &Detail{}
	if el, err := firstMatch(ctx, wrap, SelectorRating, SelectorRatingAlt); err != nil {
		return nil, false, err
	} else if el != nil {
		if d.Rating, err = textOf(ctx, el, ""); err != nil {
			return nil, false, err
		}
	}
	if el, err := firstMatch(ctx, wrap, SelectorReviews); err != nil {
		return nil, false, err
	} else if el != nil {
		if d.ReviewCount, err = textOf(ctx, el, reviewsLabel); err != nil {
			return nil, false, err
		}
	}
	if el, err := firstMatch(ctx, wrap, SelectorSold); err != nil {
		return nil, false, err
	} else if el != nil {
		if d.SoldCount, err = textOf(ctx, el, soldLabel); err != nil {
			return nil, false, err
		}
	}
	return d, true, nil
}

type querier interface {
	Query(ctx context.Context, selector string) (dom.Element, bool, error)
}

func firstMatch(ctx context.Context, q querier, selectors ...string) (dom.Element, error) {
	for _, sel := range selectors {
		el, ok, err := q.Query(ctx, sel)
		if err != nil {
			return nil, err
		}
		if ok {
			return el, nil
		}
	}
	return nil, nil
}

func textOf(ctx context.Context, el dom.Element, label string) (*string, error) {
	text, err := el.Text(ctx)
	if err != nil {
		return nil, err
	}
	if label != "" {
		text = strings.Replace(text, label, "", 1)
	}
	text = strings.TrimSpace(text)
	return &text, nil
}

// Outcome classifies one enrichment attempt.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeEnriched
	OutcomeTimeout
	OutcomeOpenFailed
	OutcomeFailed
)

var outcomeNames = [...]string{"skipped", "enriched", "timeout", "open_failed", "failed"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// OpenedPage reports whether the attempt got as far as loading a page,
// which is when the pipeline lets the browser settle afterwards.
func (o Outcome) OpenedPage() bool {
	return o == OutcomeEnriched || o == OutcomeTimeout || o == OutcomeFailed
}

// Enricher fills review data into products from their detail pages.
type Enricher struct {
	Fetcher DetailFetcher
}

// Enrich updates p in place from its detail page. It never fails: problems
// are logged and p keeps whatever it had.
func (e *Enricher) Enrich(ctx context.Context, p *models.Product) (outcome Outcome) {
	if p == nil || p.URL == "" {
		return OutcomeSkipped
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("detail fetch panicked", "url", p.URL, "panic", r)
			outcome = OutcomeFailed
		}
	}()

	d, err := e.Fetcher.FetchDetail(ctx, p.URL)
	switch {
	case errors.Is(err, ErrTabOpen):
		slog.Warn("detail tab could not be opened", "url", p.URL, "error", err)
		return OutcomeOpenFailed
	case errors.Is(err, ErrDetailTimeout):
		slog.Warn("detail page timed out", "url", p.URL)
		return OutcomeTimeout
	case err != nil:
		slog.Warn("detail fetch failed", "url", p.URL, "error", err)
		return OutcomeFailed
	case d == nil:
		return OutcomeFailed
	}

	applyDetail(p, d)
	slog.Debug("product enriched", "id", p.ID, "rating", deref(p.Rating), "reviews", p.ReviewCount)
	return OutcomeEnriched
}

// applyDetail copies the fields the page had. Blank rating and sold values
// clear the product field; a blank review count is stored as "".
func applyDetail(p *models.Product, d *Detail) {
	if d.Rating != nil {
		p.Rating = nonEmpty(*d.Rating)
	}
	if d.ReviewCount != nil {
		p.ReviewCount = *d.ReviewCount
	}
	if d.SoldCount != nil {
		p.SoldCount = nonEmpty(*d.SoldCount)
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
