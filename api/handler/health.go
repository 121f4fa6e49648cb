package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/aliscout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// StatsProvider reports browser tab usage. Nil when the server runs without
// a browser (relay-only deployments).
type StatsProvider interface {
	Stats() models.BrowserStats
}

// RunReporter reports the discovery service's state.
type RunReporter interface {
	Busy() bool
	LookupEnabled() bool
}

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when more than 80% of the detail tabs are active.
func Health(sp StatsProvider, rr RunReporter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.BrowserStats
		if sp != nil {
			stats = sp.Stats()
		}
		var busy, lookup bool
		if rr != nil {
			busy, lookup = rr.Busy(), rr.LookupEnabled()
		}

		status := "healthy"
		switch {
		case stats.MaxTabs > 0 && stats.ActiveTabs > int(float64(stats.MaxTabs)*0.8):
			status = "degraded"
		case busy:
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			Browser:       stats,
			RunInProgress: busy,
			LookupEnabled: lookup,
			Version:       Version,
		})
	}
}
