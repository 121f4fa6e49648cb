package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/aliscout/api/handler"
	"github.com/use-agent/aliscout/api/middleware"
	"github.com/use-agent/aliscout/config"
	"github.com/use-agent/aliscout/discover"
	"github.com/use-agent/aliscout/ixspy"
	"github.com/use-agent/aliscout/metrics"
)

// Deps are the components the router serves. Service and Relay may be nil:
// a relay-only deployment has no browser, a browser-only one no credentials.
type Deps struct {
	Service   *discover.Service
	Relay     ixspy.Relay
	Stats     handler.StatsProvider
	Metrics   *metrics.Metrics
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics
//	API:     Auth (if enabled) → RateLimit
//
// Health and /metrics stay outside auth so health checks and metric scrapers always work.
// Background upkeep started here stops when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		if cfg.Server.MetricsEnabled {
			r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
		}
	}

	v1 := r.Group("/api/v1")

	var runs handler.RunReporter
	if deps.Service != nil {
		runs = deps.Service
	}
	v1.GET("/health", handler.Health(deps.Stats, runs, deps.StartTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	go limiter.Run(ctx, 5*time.Minute)
	protected.Use(limiter.Handler())

	if deps.Service != nil {
		protected.POST("/discover", handler.Discover(deps.Service))
	}

	if deps.Relay != nil {
		relay := protected.Group("/relay")
		relay.POST("/authenticate", handler.RelayAuthenticate(deps.Relay))
		relay.POST("/fetch-info", handler.RelayFetchInfo(deps.Relay))
	}

	return r
}
