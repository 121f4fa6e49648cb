package aliexpress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/aliscout/dom"
	"github.com/use-agent/aliscout/ixspy"
	"github.com/use-agent/aliscout/metrics"
	"github.com/use-agent/aliscout/models"
	"github.com/use-agent/aliscout/poll"
)

// Pipeline defaults.
const (
	DefaultResultsTimeout = 30 * time.Second
	DefaultSettleDelay    = 500 * time.Millisecond
)

// ResultsPage is the live search page a run drives.
type ResultsPage interface {
	dom.Document
	WaitFor(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
}

// InfoLookup resolves analytics metadata for an item id.
type InfoLookup interface {
	FetchInfo(ctx context.Context, id string) (*ixspy.Info, error)
}

// Result is what a run produced.
type Result struct {
	RunID    string            `json:"run_id"`
	Keyword  string            `json:"keyword"`
	Products []*models.Product `json:"products"`

	Enriched     int `json:"enriched"`
	TimedOut     int `json:"timed_out"`
	EnrichFailed int `json:"enrich_failed"`
	LookedUp     int `json:"looked_up"`

	// LookupStopped is set when the analytics service rejected the
	// session and the remaining lookups were abandoned.
	LookupStopped bool `json:"lookup_stopped"`

	// EnrichStopped is set when enrichment ran out of its time budget and
	// the remaining products kept their list values.
	EnrichStopped bool `json:"enrich_stopped"`

	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Pipeline runs search, list scraping, enrichment and lookup in order.
// Enricher, Lookup and Scroller are optional; a nil one skips its phase.
type Pipeline struct {
	Search   *SearchDriver
	Lister   ListScraper
	Enricher *Enricher
	Lookup   InfoLookup
	Scroller *Scroller

	ResultsTimeout time.Duration
	SettleDelay    time.Duration

	// EnrichTimeout bounds the enrichment phase so the lookups still get a
	// share of the run. 0 leaves enrichment bounded by ctx alone.
	EnrichTimeout time.Duration

	Clock          poll.Clock
	Metrics        *metrics.Metrics
}

// Run executes one discovery run against page.
//
// Validation and not-found errors end the run with a nil Result. Per-item
// failures during enrichment and lookup are absorbed, and an enrichment
// phase that outlives EnrichTimeout stops early without failing the run.
// Once the list is scraped every error comes back together with the
// Result: an Unauthorized lookup, or ctx ending mid-run.
func (p *Pipeline) Run(ctx context.Context, run *Run, page ResultsPage, keyword string) (*Result, error) {
	if run == nil {
		run = NewRun(keyword)
	}
	start := time.Now()
	log := slog.With("run_id", run.ID, "keyword", keyword)

	res, err := p.run(ctx, run, page, keyword, log)
	p.Metrics.ObserveRun(runStatus(res, err), time.Since(start))
	if res != nil {
		res.StartedAt = start
		res.Duration = time.Since(start)
		res.DurationMS = res.Duration.Milliseconds()
		log.Info("run finished",
			"products", len(res.Products),
			"enriched", res.Enriched,
			"timed_out", res.TimedOut,
			"looked_up", res.LookedUp,
			"enrich_stopped", res.EnrichStopped,
			"duration_ms", res.DurationMS,
		)
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, run *Run, page ResultsPage, keyword string, log *slog.Logger) (*Result, error) {
	driver := p.Search
	if driver == nil {
		driver = NewSearchDriver()
	}
	if _, err := driver.Search(ctx, run, page, keyword); err != nil {
		return nil, err
	}

	products, err := p.collect(ctx, page)
	if err != nil {
		return nil, err
	}
	p.Metrics.AddProducts(len(products))
	log.Info("result list scraped", "products", len(products))

	res := &Result{RunID: run.ID, Keyword: keyword, Products: products}

	if p.Enricher != nil {
		ectx, cancel := ctx, context.CancelFunc(func() {})
		if p.EnrichTimeout > 0 {
			ectx, cancel = context.WithTimeout(ctx, p.EnrichTimeout)
		}
		err := p.enrich(ectx, res, log)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return res, err
			}
			res.EnrichStopped = true
			log.Warn("enrichment budget spent, continuing without it",
				"enriched", res.Enriched, "budget", p.EnrichTimeout)
		}
	}
	if p.Lookup != nil {
		if err := p.lookup(ctx, res, log); err != nil {
			return res, err
		}
	}
	return res, nil
}

// collect waits for the card list, scrolls it into view and parses it.
func (p *Pipeline) collect(ctx context.Context, page ResultsPage) ([]*models.Product, error) {
	timeout := p.ResultsTimeout
	if timeout <= 0 {
		timeout = DefaultResultsTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := page.WaitFor(waitCtx, SelectorCardList); err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "run cancelled waiting for results")
		}
		return nil, models.NewScrapeError(models.ErrCodeNotFound, "product list not found (id=card-list)", err)
	}

	if p.Scroller != nil {
		if s, ok := page.(dom.Scroller); ok {
			steps, err := p.Scroller.AutoScroll(ctx, s)
			if err != nil {
				return nil, categorizeError(err, "auto-scroll interrupted")
			}
			slog.Debug("result page scrolled", "steps", steps)
		}
	}

	pageURL, err := page.Location(ctx)
	if err != nil {
		slog.Warn("could not read page location", "error", err)
	}
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, categorizeError(err, "failed to read result page")
	}
	return p.Lister.Scrape(raw, pageURL)
}

func (p *Pipeline) enrich(ctx context.Context, res *Result, log *slog.Logger) error {
	settle := p.SettleDelay
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	clock := p.Clock
	if clock == nil {
		clock = poll.RealClock{}
	}

	for i, prod := range res.Products {
		if err := ctx.Err(); err != nil {
			return categorizeError(err, "run cancelled during enrichment")
		}
		outcome := p.Enricher.Enrich(ctx, prod)
		p.Metrics.IncEnrichment(outcome.String())
		switch outcome {
		case OutcomeEnriched:
			res.Enriched++
		case OutcomeTimeout:
			res.TimedOut++
		case OutcomeOpenFailed, OutcomeFailed:
			res.EnrichFailed++
		}
		log.Debug("enrichment step", "index", i, "id", prod.ID, "outcome", outcome)

		if outcome.OpenedPage() {
			if err := clock.Sleep(ctx, settle); err != nil {
				return categorizeError(err, "run cancelled during enrichment")
			}
		}
	}
	return nil
}

func (p *Pipeline) lookup(ctx context.Context, res *Result, log *slog.Logger) error {
	for _, prod := range res.Products {
		if prod.ID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return categorizeError(err, "run cancelled during lookup")
		}
		info, err := p.Lookup.FetchInfo(ctx, prod.ID)
		if errors.Is(err, models.ErrUnauthorized) {
			p.Metrics.IncLookup("unauthorized")
			res.LookupStopped = true
			log.Warn("analytics session rejected, stopping lookups", "id", prod.ID)
			return fmt.Errorf("lookup %s: %w", prod.ID, err)
		}
		if err != nil {
			p.Metrics.IncLookup("error")
			log.Warn("lookup failed", "id", prod.ID, "error", err)
			continue
		}
		if info == nil {
			p.Metrics.IncLookup("empty")
			continue
		}
		prod.AddDate = info.AddDate
		res.LookedUp++
		p.Metrics.IncLookup("found")
	}
	return nil
}

func runStatus(res *Result, err error) string {
	switch {
	case err == nil:
		return "ok"
	case res != nil:
		return "partial"
	default:
		return "failed"
	}
}
