package aliexpress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/aliscout/dom/domtest"
	"github.com/use-agent/aliscout/models"
	"github.com/use-agent/aliscout/poll/polltest"
)

const (
	mouseURL1 = "https://www.aliexpress.com/item/1005001.html?spm=a2g0o"
	mouseURL2 = "https://www.aliexpress.com/item/1005002.html?spm=a2g0o"
)

func searchPage() *domtest.Doc {
	doc := domtest.MustParse(`<html><body>` +
		`<form id="search"><div class="box"><input id="search-words">` +
		`<input type="button" id="generic"><button class="search--submit--2VTbd-T">Search</button></div></form>` +
		resultsPage(
			card("1005001", "Wireless Mouse", labels("4.8", "1,234 sold"), "//ae01.alicdn.com/a.jpg"),
			`<div class="card broken"><div><h3>No link</h3></div></div>`,
			card("1005002", "Silent Mouse", labels("4.6", "88 sold")),
		) + `</body></html>`)
	doc.URL = resultsURL
	doc.ScrollHeight = 600
	doc.InnerHeight = 800
	return doc
}

func newTestPipeline(clock *polltest.Clock, opener *fakeOpener, lookup InfoLookup) *Pipeline {
	return &Pipeline{
		Search:   NewSearchDriver(),
		Enricher: &Enricher{Fetcher: NewTabFetcher(opener, clock)},
		Lookup:   lookup,
		Scroller: NewScroller(clock),
		Clock:    clock,
	}
}

func TestPipeline_WirelessMouse(t *testing.T) {
	clock := &polltest.Clock{}
	opener := &fakeOpener{tabs: map[string]*fakeTab{
		mouseURL1: detailTab(`<html><body>`+fullReviewer+`</body></html>`, readyComplete),
		mouseURL2: detailTab(`<html><body></body></html>`, "loading"),
	}}
	lookup := &fakeLookup{dates: map[string]string{"1005001": "2023-11-20"}}
	page := searchPage()

	run := NewRun("wireless mouse")
	res, err := newTestPipeline(clock, opener, lookup).Run(context.Background(), run, page, "wireless mouse")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	events := page.Events()
	if len(events) < 2 || events[1].Kind != "click" || events[1].Target != "button.search--submit--2VTbd-T" {
		t.Fatalf("search not submitted through the selector chain: %+v", events)
	}
	if run.Step() != StepStarting {
		t.Errorf("run step = %q", run.Step())
	}

	if len(res.Products) != 2 {
		t.Fatalf("products = %d, want 2", len(res.Products))
	}
	first, second := res.Products[0], res.Products[1]
	if first.ID != "1005001" || second.ID != "1005002" {
		t.Errorf("ids = %s, %s", first.ID, second.ID)
	}

	// First product enriched from its detail page.
	if strOrNil(first.Rating) != "4.9" || first.ReviewCount != "1,024" || strOrNil(first.SoldCount) != "5,000+" {
		t.Errorf("first not enriched: %+v", first)
	}
	// Second timed out and keeps its list values.
	if strOrNil(second.Rating) != "4.6" || strOrNil(second.SoldCount) != "88" || second.ReviewCount != "" {
		t.Errorf("second changed after timeout: %+v", second)
	}

	if first.AddDate != "2023-11-20" || second.AddDate != "" {
		t.Errorf("add dates = %q, %q", first.AddDate, second.AddDate)
	}
	if len(lookup.calls) != 2 {
		t.Errorf("lookups = %v, want both ids", lookup.calls)
	}

	if res.Enriched != 1 || res.TimedOut != 1 || res.LookedUp != 1 || res.LookupStopped {
		t.Errorf("counters = %+v", res)
	}
	for _, tab := range opener.tabs {
		if tab.closed != 1 {
			t.Errorf("tab closed %d times, want 1", tab.closed)
		}
	}

	var settles int
	for _, d := range clock.Sleeps() {
		if d == DefaultSettleDelay {
			settles++
		}
	}
	if settles != 2 {
		t.Errorf("settle delays = %d, want 2", settles)
	}
}

func TestPipeline_UnauthorizedStopsLookups(t *testing.T) {
	clock := &polltest.Clock{}
	lookup := &fakeLookup{unauthorized: "1005001", dates: map[string]string{"1005002": "2024-01-01"}}
	p := newTestPipeline(clock, &fakeOpener{}, lookup)
	p.Enricher = nil

	res, err := p.Run(context.Background(), nil, searchPage(), "wireless mouse")
	if !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if res == nil || len(res.Products) != 2 {
		t.Fatalf("result = %+v, want both products", res)
	}
	if !res.LookupStopped {
		t.Error("LookupStopped = false")
	}
	if len(lookup.calls) != 1 {
		t.Errorf("lookups after unauthorized: %v", lookup.calls)
	}
	if res.Products[1].AddDate != "" {
		t.Errorf("second product looked up after stop")
	}
}

func TestPipeline_EarlyFailures(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		keyword string
		want    error
	}{
		{"blank keyword", `<input id="search-words">`, " ", models.ErrValidation},
		{"no search box", `<div id="card-list"></div>`, "mouse", models.ErrNotFound},
		{"no results list", `<input id="search-words"><button class="search-button"></button>`, "mouse", models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(&polltest.Clock{}, &fakeOpener{}, nil)
			p.ResultsTimeout = time.Second
			res, err := p.Run(context.Background(), nil, domtest.MustParse(tt.html), tt.keyword)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
		})
	}
}

func TestPipeline_SkipsLookupForMissingID(t *testing.T) {
	page := domtest.MustParse(`<input id="search-words"><button class="search-button"></button>` +
		resultsPage(`<div><a href="/deals/123"><div></div><div></div></a></div>`))
	lookup := &fakeLookup{}
	p := newTestPipeline(&polltest.Clock{}, &fakeOpener{}, lookup)
	p.Enricher = nil

	res, err := p.Run(context.Background(), nil, page, "mouse")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Products) != 1 || res.Products[0].ID != "" {
		t.Fatalf("products = %+v", res.Products)
	}
	if len(lookup.calls) != 0 {
		t.Errorf("looked up %v", lookup.calls)
	}
}

// stallClock blocks on one sleep duration until ctx ends and records the rest.
type stallClock struct {
	polltest.Clock
	stallOn time.Duration
}

func (c *stallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d == c.stallOn {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.Clock.Sleep(ctx, d)
}

func TestPipeline_EnrichBudgetLeavesTimeForLookup(t *testing.T) {
	clock := &stallClock{stallOn: DefaultSettleDelay}
	opener := &fakeOpener{tabs: map[string]*fakeTab{
		mouseURL1: detailTab(`<html><body>`+fullReviewer+`</body></html>`, readyComplete),
		mouseURL2: detailTab(`<html><body>`+fullReviewer+`</body></html>`, readyComplete),
	}}
	lookup := &fakeLookup{dates: map[string]string{"1005001": "2023-11-20", "1005002": "2024-01-01"}}
	p := &Pipeline{
		Search:        NewSearchDriver(),
		Enricher:      &Enricher{Fetcher: NewTabFetcher(opener, clock)},
		Lookup:        lookup,
		Clock:         clock,
		EnrichTimeout: 20 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Run(ctx, nil, searchPage(), "wireless mouse")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.EnrichStopped {
		t.Error("EnrichStopped = false after the budget ran out")
	}
	if res.Enriched != 1 || len(opener.opened) != 1 {
		t.Errorf("enriched %d, opened %v; want only the first product", res.Enriched, opener.opened)
	}
	if res.LookedUp != 2 || res.Products[1].AddDate != "2024-01-01" {
		t.Errorf("lookups = %d, second add date %q; want both looked up", res.LookedUp, res.Products[1].AddDate)
	}
}

func TestPipeline_RunDeadlineKeepsProducts(t *testing.T) {
	clock := &stallClock{stallOn: DefaultSettleDelay}
	opener := &fakeOpener{tabs: map[string]*fakeTab{
		mouseURL1: detailTab(`<html><body>`+fullReviewer+`</body></html>`, readyComplete),
	}}
	lookup := &fakeLookup{}
	p := &Pipeline{
		Search:   NewSearchDriver(),
		Enricher: &Enricher{Fetcher: NewTabFetcher(opener, clock)},
		Lookup:   lookup,
		Clock:    clock,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res, err := p.Run(ctx, nil, searchPage(), "wireless mouse")
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) || scrapeErr.Code != models.ErrCodeTimeout {
		t.Fatalf("err = %v, want %s", err, models.ErrCodeTimeout)
	}
	if res == nil || len(res.Products) != 2 {
		t.Fatalf("result = %+v, want both listed products", res)
	}
	if res.EnrichStopped || len(lookup.calls) != 0 {
		t.Errorf("EnrichStopped = %v, lookups %v after the run deadline", res.EnrichStopped, lookup.calls)
	}
}
