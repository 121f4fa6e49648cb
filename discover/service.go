// Package discover runs discovery requests against the shared browser.
// One run is in flight at a time; the search page and the detail tabs are
// not safe to share between runs.
package discover

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/aliscout/aliexpress"
	"github.com/use-agent/aliscout/config"
	"github.com/use-agent/aliscout/ixspy"
	"github.com/use-agent/aliscout/metrics"
	"github.com/use-agent/aliscout/models"
	"github.com/use-agent/aliscout/poll"
	"github.com/use-agent/aliscout/transport"
	"github.com/use-agent/aliscout/webhook"
)

// ErrBusy is returned while another run holds the browser.
var ErrBusy = models.NewScrapeError(models.ErrCodeRunInProgress, "a discovery run is already in progress", nil)

// SearchPage is a results page the service owns for one run.
type SearchPage interface {
	aliexpress.ResultsPage
	Close() error
}

// PageOpener opens the marketplace search page.
type PageOpener func(ctx context.Context) (SearchPage, error)

// Options wires a Service. OpenPage is required; the rest are optional.
type Options struct {
	OpenPage PageOpener
	Tabs     aliexpress.TabOpener

	// Lookup enables analytics lookups. Credentials, when set, are used
	// to log in before the first lookup and after a rejected session.
	Lookup      *ixspy.Client
	Credentials ixspy.Credentials

	// StaticClient serves DetailModeStatic; defaults to the
	// Chrome-fingerprinted client.
	StaticClient *http.Client

	Notifier *webhook.Notifier
	Metrics  *metrics.Metrics
	Clock    poll.Clock
}

// Service runs discovery requests.
type Service struct {
	cfg  config.ScraperConfig
	opts Options

	busy atomic.Bool

	authMu        sync.Mutex
	authenticated bool
}

// NewService returns a Service.
func NewService(cfg config.ScraperConfig, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = poll.RealClock{}
	}
	if opts.StaticClient == nil {
		opts.StaticClient = transport.NewClient(transport.Options{Timeout: 20 * time.Second})
	}
	return &Service{cfg: cfg, opts: opts}
}

// Busy reports whether a run is in flight.
func (s *Service) Busy() bool {
	return s.busy.Load()
}

// LookupEnabled reports whether analytics lookups are configured.
func (s *Service) LookupEnabled() bool {
	return s.opts.Lookup != nil
}

// Discover runs one discovery for req. A second call while a run is in
// flight fails with ErrBusy instead of queueing.
func (s *Service) Discover(ctx context.Context, req *models.DiscoverRequest) (*aliexpress.Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	timeout := s.cfg.RunTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	run := aliexpress.NewRun(req.Keyword)
	run.OnStep(func(runID, step string) {
		slog.Info("run step", "run_id", runID, "step", step)
	})

	page, err := s.opts.OpenPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Debug("close search page", "error", err)
		}
	}()

	lookupWanted := req.Lookup == nil || *req.Lookup
	pipeline := s.pipeline(req, lookupWanted && s.ensureSession(ctx))
	if pipeline.Lookup != nil {
		pipeline.EnrichTimeout = enrichBudget(timeout)
	}

	res, err := pipeline.Run(ctx, run, page, req.Keyword)
	if errors.Is(err, models.ErrUnauthorized) {
		s.invalidateSession()
	}
	s.notify(req, run, res, err)
	return res, err
}

// enrichBudget leaves a fifth of the run to the lookups.
func enrichBudget(run time.Duration) time.Duration {
	return run * 4 / 5
}

func (s *Service) pipeline(req *models.DiscoverRequest, withLookup bool) *aliexpress.Pipeline {
	maxItems := s.cfg.MaxItems
	if req.MaxItems > 0 {
		maxItems = req.MaxItems
	}

	p := &aliexpress.Pipeline{
		Search:         aliexpress.NewSearchDriver(),
		Lister:         aliexpress.ListScraper{MaxItems: maxItems},
		ResultsTimeout: s.cfg.ResultsTimeout,
		SettleDelay:    s.cfg.SettleDelay,
		Clock:          s.opts.Clock,
		Metrics:        s.opts.Metrics,
	}
	if fetcher := s.fetcher(req.DetailMode); fetcher != nil {
		p.Enricher = &aliexpress.Enricher{Fetcher: fetcher}
	}
	if withLookup {
		p.Lookup = s.opts.Lookup
	}
	if s.cfg.AutoScroll {
		sc := aliexpress.NewScroller(s.opts.Clock)
		sc.MaxSteps = s.cfg.ScrollMaxSteps
		p.Scroller = sc
	}
	return p
}

// fetcher picks the detail fetcher for mode, falling back to the server
// setting when mode is empty.
func (s *Service) fetcher(mode string) aliexpress.DetailFetcher {
	if mode == "" {
		mode = s.cfg.DetailMode
	}
	switch mode {
	case config.DetailModeTab:
		if s.opts.Tabs == nil {
			slog.Warn("tab enrichment requested but no browser tabs are available")
			return nil
		}
		f := aliexpress.NewTabFetcher(s.opts.Tabs, s.opts.Clock)
		if s.cfg.DetailAttempts > 0 {
			f.Poller.Attempts = s.cfg.DetailAttempts
		}
		if s.cfg.DetailInterval > 0 {
			f.Poller.Interval = s.cfg.DetailInterval
		}
		return f
	case config.DetailModeStatic:
		return &aliexpress.StaticFetcher{Client: s.opts.StaticClient, UserAgent: transport.DefaultUserAgent}
	default:
		return nil
	}
}

// ensureSession logs in when credentials are configured and no session is
// known to be valid. It reports whether lookups should run.
func (s *Service) ensureSession(ctx context.Context) bool {
	if s.opts.Lookup == nil {
		return false
	}
	if s.opts.Credentials.Username == "" {
		// The relay holds the session.
		return true
	}

	s.authMu.Lock()
	defer s.authMu.Unlock()
	if s.authenticated {
		return true
	}
	if !s.opts.Lookup.Authenticate(ctx, s.opts.Credentials.Username, s.opts.Credentials.Password) {
		slog.Warn("ixspy login failed, skipping lookups for this run")
		return false
	}
	s.authenticated = true
	slog.Info("ixspy session established")
	return true
}

func (s *Service) invalidateSession() {
	s.authMu.Lock()
	s.authenticated = false
	s.authMu.Unlock()
}

func (s *Service) notify(req *models.DiscoverRequest, run *aliexpress.Run, res *aliexpress.Result, err error) {
	event := eventFor(req, run, res, err)

	if s.opts.Notifier != nil {
		s.opts.Notifier.DeliverAsync(event)
	}
	if req.WebhookURL != "" {
		webhook.NewNotifier(req.WebhookURL, "", nil).DeliverAsync(event)
	}
}

// partialRun is the payload of a run.partial event.
type partialRun struct {
	*aliexpress.Result
	Error string `json:"error"`
}

// eventFor picks the webhook event for a finished run. A run that kept its
// products but ended with an error is partial, and carries the error.
func eventFor(req *models.DiscoverRequest, run *aliexpress.Run, res *aliexpress.Result, err error) *webhook.Event {
	switch {
	case res == nil:
		return webhook.NewEvent(webhook.EventRunFailed, run.ID,
			map[string]string{"keyword": req.Keyword, "error": errString(err)})
	case err != nil:
		return webhook.NewEvent(webhook.EventRunPartial, run.ID, partialRun{Result: res, Error: err.Error()})
	default:
		return webhook.NewEvent(webhook.EventRunCompleted, run.ID, res)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
