package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/aliscout/aliexpress"
	"github.com/use-agent/aliscout/config"
	"github.com/use-agent/aliscout/models"
)

// Scraper owns the browser process, the search page and a pool of detail
// tabs. Runs share the search page, so callers serialise them.
type Scraper struct {
	browser    *rod.Browser
	tabPool    rod.Pool[rod.Page]
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	health     *tabTracker
	activeTabs atomic.Int32
	tabsOpened atomic.Int64
	startTime  time.Time
}

var _ aliexpress.TabOpener = (*Scraper)(nil)

// NewScraper launches a headless browser and initialises the detail-tab pool.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	// Detail tabs are opened from script; the blocker would veto them.
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	slog.Info("detail tab pool created", "maxTabs", browserCfg.MaxTabs)
	return &Scraper{
		browser:    browser,
		tabPool:    rod.NewPagePool(browserCfg.MaxTabs),
		health:     newTabTracker(),
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		startTime:  time.Now(),
	}, nil
}

// OpenSearchPage opens a fresh page on the configured start URL and waits
// for it to load. The caller closes it.
func (s *Scraper) OpenSearchPage(ctx context.Context) (*Page, error) {
	raw, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create search page", err)
	}
	page := newPage(raw, s.browserCfg, nil)
	if err := page.prepare(s.scraperCfg.StartURL); err != nil {
		_ = raw.Close()
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, s.scraperCfg.NavigationTimeout)
	defer cancel()
	if err := page.navigate(navCtx, s.scraperCfg.StartURL); err != nil {
		_ = page.Close()
		return nil, err
	}
	return page, nil
}

// Open implements aliexpress.TabOpener. The tab comes from the pool and
// goes back to it on Close, unless it has become unhealthy, in which case
// it is closed and the pool slot is freed. Navigation is started but not
// awaited; the caller polls the ready state.
func (s *Scraper) Open(ctx context.Context, rawURL string) (aliexpress.Tab, error) {
	raw, err := acquireTab(ctx, s.tabPool, func() (*rod.Page, error) {
		p, err := s.browser.Page(proto.TargetCreateTarget{})
		if err == nil {
			s.health.track(p)
		}
		return p, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(err, "timed out waiting for a detail tab")
		}
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to acquire detail tab", err)
	}
	s.activeTabs.Add(1)
	s.tabsOpened.Add(1)

	page := newPage(raw, s.browserCfg, s.releaseTab)
	if err := page.prepare(rawURL); err != nil {
		page.ReportFailure()
		_ = page.Close()
		return nil, err
	}
	if err := raw.Context(ctx).Navigate(rawURL); err != nil {
		page.ReportFailure()
		_ = page.Close()
		return nil, categorizeError(err, "failed to open detail page")
	}
	return page, nil
}

// releaseTab recycles p. healthy is false when the use that just ended
// failed to navigate or never produced a ready document.
func (s *Scraper) releaseTab(p *rod.Page, healthy bool) {
	defer s.activeTabs.Add(-1)

	err := p.Navigate("about:blank")
	if err != nil {
		slog.Warn("cleanup: failed to navigate to about:blank", "error", err)
	}
	if s.health.release(p, healthy && err == nil) {
		slog.Info("retiring detail tab")
		_ = p.Close()
		// A nil slot makes the next Get create a fresh tab.
		s.tabPool.Put(nil)
		return
	}
	s.tabPool.Put(p)
}

// Stats returns a snapshot of tab usage.
func (s *Scraper) Stats() models.BrowserStats {
	return models.BrowserStats{
		MaxTabs:    s.browserCfg.MaxTabs,
		ActiveTabs: int(s.activeTabs.Load()),
		TabsOpened: s.tabsOpened.Load(),
		Uptime:     s.Uptime().Round(time.Second).String(),
	}
}

// Uptime reports how long the browser has been running.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close drains the tab pool and kills the browser process.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining tab pool")
	s.tabPool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("scraper shutting down: closing browser")
	s.browser.MustClose()
	slog.Info("scraper shutdown complete")
}

// refererFor mimics arriving from a search engine.
func refererFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
}

// injectStealth returns a func that removes the script again, or nil when
// injection failed.
func injectStealth(p *rod.Page) func() error {
	remove, err := p.EvalOnNewDocument(stealth.JS)
	if err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		return nil
	}
	return remove
}
