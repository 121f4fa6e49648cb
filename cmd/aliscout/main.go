package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/aliscout/api"
	"github.com/use-agent/aliscout/config"
	"github.com/use-agent/aliscout/discover"
	"github.com/use-agent/aliscout/ixspy"
	"github.com/use-agent/aliscout/metrics"
	"github.com/use-agent/aliscout/scraper"
	"github.com/use-agent/aliscout/transport"
	"github.com/use-agent/aliscout/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("aliscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxTabs", cfg.Browser.MaxTabs,
		"detailMode", cfg.Scraper.DetailMode,
		"ixspy", cfg.IxSpy.Enabled,
	)

	m := metrics.New()

	// ── 3. Launch browser ───────────────────────────────────────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	// ── 4. Analytics relay ──────────────────────────────────────────
	// A local HTTPRelay is also served under /api/v1/relay so other
	// instances can point ALISCOUT_IXSPY_RELAY_URL at this one.
	var (
		relay    ixspy.Relay
		served   ixspy.Relay
		lookup   *ixspy.Client
		identity ixspy.Credentials
	)
	if cfg.IxSpy.Enabled {
		if cfg.IxSpy.RelayURL != "" {
			relay = ixspy.NewRemoteRelay(cfg.IxSpy.RelayURL, cfg.IxSpy.RelayAPIKey,
				&http.Client{Timeout: cfg.IxSpy.Timeout})
			slog.Info("ixspy lookups go through remote relay", "url", cfg.IxSpy.RelayURL)
		} else {
			local, err := ixspy.NewHTTPRelay(ixspy.HTTPRelayOptions{
				Client:   transport.NewClient(transport.Options{Timeout: cfg.IxSpy.Timeout}),
				LoginURL: cfg.IxSpy.LoginURL,
				InfoURL:  cfg.IxSpy.InfoURL,
				RPS:      cfg.IxSpy.RequestsPerSecond,
				Burst:    cfg.IxSpy.Burst,
				Metrics:  m,
			})
			if err != nil {
				slog.Error("failed to initialise ixspy relay", "error", err)
				os.Exit(1)
			}
			relay, served = local, local
		}
		lookup = ixspy.NewClient(relay)
		if cfg.IxSpy.CacheTTL > 0 {
			lookup.WithCache(cfg.IxSpy.CacheEntries, cfg.IxSpy.CacheTTL)
		}
		identity = ixspy.Credentials{Username: cfg.IxSpy.Username, Password: cfg.IxSpy.Password}
	}

	// ── 5. Discovery service ────────────────────────────────────────
	var notifier *webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret, nil)
	}

	opts := discover.Options{
		OpenPage: func(ctx context.Context) (discover.SearchPage, error) {
			p, err := sc.OpenSearchPage(ctx)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		Tabs:        sc,
		Lookup:      lookup,
		Credentials: identity,
		Notifier:    notifier,
		Metrics:     m,
	}
	svc := discover.NewService(cfg.Scraper, opts)

	// ── 6. Setup router ─────────────────────────────────────────────
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	router := api.NewRouter(runCtx, cfg, api.Deps{
		Service:   svc,
		Relay:     served,
		Stats:     sc,
		Metrics:   m,
		StartTime: time.Now(),
	})

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// A discovery run can take minutes; it is cut off by the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("aliscout stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
