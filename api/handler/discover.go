package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/aliscout/aliexpress"
	"github.com/use-agent/aliscout/models"
)

// Discoverer runs one discovery. *discover.Service implements it.
type Discoverer interface {
	Discover(ctx context.Context, req *models.DiscoverRequest) (*aliexpress.Result, error)
}

// Discover returns a handler for POST /api/v1/discover.
//
// A run that got as far as scraping the list answers 200 with whatever it
// collected, plus a warning and the error that cut it short. Errors before
// that are mapped by code.
func Discover(d Discoverer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.DiscoverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		res, err := d.Discover(c.Request.Context(), &req)
		timing := models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}

		if res == nil {
			if err == nil {
				err = models.NewScrapeError(models.ErrCodeInternal, "run produced no result", nil)
			}
			slog.Warn("discover failed", "keyword", req.Keyword, "error", err)
			respondError(c, err, timing)
			return
		}

		resp := models.DiscoverResponse{
			Success:  true,
			RunID:    res.RunID,
			Keyword:  res.Keyword,
			Products: res.Products,
			Stats: models.RunStats{
				Products:      len(res.Products),
				Enriched:      res.Enriched,
				TimedOut:      res.TimedOut,
				EnrichFailed:  res.EnrichFailed,
				LookedUp:      res.LookedUp,
				LookupStopped: res.LookupStopped,
				EnrichStopped: res.EnrichStopped,
			},
			Timing:  timing,
			Warning: partialWarning(res, err),
		}
		if err != nil {
			slog.Warn("discover returned a partial result", "keyword", req.Keyword, "products", len(res.Products), "error", err)
			resp.Error = asScrapeError(err).ToDetail()
		}
		c.JSON(http.StatusOK, resp)
	}
}

func partialWarning(res *aliexpress.Result, err error) string {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return "analytics session rejected; lookups stopped early"
	case err != nil:
		return "run ended early; products are incomplete"
	case res.EnrichStopped:
		return "enrichment budget spent; some products keep their list values"
	default:
		return ""
	}
}
