package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/aliscout/aliexpress"
	"github.com/use-agent/aliscout/config"
	"github.com/use-agent/aliscout/dom"
	"github.com/use-agent/aliscout/models"
	"github.com/ysmood/gson"
)

// Page adapts a rod page to the dom capabilities the pipeline uses.
type Page struct {
	page    *rod.Page
	cfg     config.BrowserConfig
	router  *rod.HijackRouter
	release func(p *rod.Page, healthy bool)
	failed  bool

	// removeStealth drops the init script so a recycled tab does not
	// accumulate copies.
	removeStealth func() error
}

var (
	_ aliexpress.ResultsPage     = (*Page)(nil)
	_ aliexpress.Tab             = (*Page)(nil)
	_ aliexpress.FailureReporter = (*Page)(nil)
	_ dom.Storage                = (*Page)(nil)
	_ dom.Scroller               = (*Page)(nil)
)

// newPage wraps p. release, when set, replaces closing the target.
func newPage(p *rod.Page, cfg config.BrowserConfig, release func(*rod.Page, bool)) *Page {
	return &Page{page: p, cfg: cfg, release: release}
}

// prepare installs stealth, headers and resource blocking. It must run
// before navigation to take effect.
func (p *Page) prepare(target string) error {
	if p.cfg.Stealth {
		p.removeStealth = injectStealth(p.page)
	}
	if ref := refererFor(target); ref != "" {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Referer": ref}),
		}).Call(p.page); err != nil {
			slog.Debug("failed to set extra headers", "error", err)
		}
	}
	p.router = setupHijack(p.page, p.cfg.BlockedResourceTypes)
	return nil
}

// navigate loads target and waits until the DOM settles.
func (p *Page) navigate(ctx context.Context, target string) error {
	rp := p.page.Context(ctx)
	if err := rp.Navigate(target); err != nil {
		return categorizeError(err, "navigation to search page failed")
	}
	if err := rp.WaitLoad(); err != nil {
		return categorizeError(err, "search page did not load")
	}
	if err := rp.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return nil
}

// Query implements dom.Document without waiting for the element.
func (p *Page) Query(ctx context.Context, selector string) (dom.Element, bool, error) {
	ok, el, err := p.page.Context(ctx).Has(selector)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Element{el: el}, true, nil
}

// WaitFor blocks until selector matches or ctx ends.
func (p *Page) WaitFor(ctx context.Context, selector string) error {
	_, err := p.page.Context(ctx).Element(selector)
	return err
}

// HTML returns the rendered document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// Location returns window.location.href.
func (p *Page) Location(ctx context.Context) (string, error) {
	return p.evalString(ctx, `() => window.location.href`)
}

// ReadyState returns document.readyState.
func (p *Page) ReadyState(ctx context.Context) (string, error) {
	return p.evalString(ctx, `() => document.readyState`)
}

// SetItem writes to the page's localStorage.
func (p *Page) SetItem(ctx context.Context, key, value string) error {
	_, err := p.page.Context(ctx).Eval(`(k, v) => localStorage.setItem(k, v)`, key, value)
	return err
}

// ScrollBy scrolls the window and reports the metrics a page script would
// see: height sampled before the step, position after it.
func (p *Page) ScrollBy(ctx context.Context, dy float64) (dom.ScrollMetrics, error) {
	res, err := p.page.Context(ctx).Eval(`(dy) => {
		const h = document.body.scrollHeight;
		window.scrollBy(0, dy);
		return {y: window.scrollY, ih: window.innerHeight, h: h};
	}`, dy)
	if err != nil {
		return dom.ScrollMetrics{}, err
	}
	return dom.ScrollMetrics{
		ScrollY:      res.Value.Get("y").Num(),
		InnerHeight:  res.Value.Get("ih").Num(),
		ScrollHeight: res.Value.Get("h").Num(),
	}, nil
}

// Close stops interception and closes or recycles the page.
func (p *Page) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
		p.router = nil
	}
	if p.removeStealth != nil {
		if err := p.removeStealth(); err != nil {
			slog.Debug("failed to remove stealth script", "error", err)
		}
		p.removeStealth = nil
	}
	if p.release != nil {
		p.release(p.page, !p.failed)
		return nil
	}
	return p.page.Close()
}

// ReportFailure counts this use against the tab's health when it is
// returned to the pool.
func (p *Page) ReportFailure() {
	p.failed = true
}

func (p *Page) evalString(ctx context.Context, js string) (string, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
