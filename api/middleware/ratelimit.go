package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/aliscout/config"
	"github.com/use-agent/aliscout/models"
	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long a caller's bucket survives without requests.
const DefaultIdleTTL = time.Hour

// RateLimiter gives each caller a token bucket. Callers admitted by Auth
// are keyed by API key, everyone else by client IP.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns a limiter for cfg. Call Run to evict idle callers.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Run evicts idle buckets every interval until ctx is done.
func (l *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

// evictIdle drops buckets unused for idleTTL and returns how many went.
func (l *RateLimiter) evictIdle() int {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, id)
			n++
		}
	}
	return n
}

// reserve takes a token for caller. When none is available it reports how
// long until one is.
func (l *RateLimiter) reserve(caller string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[caller]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[caller] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Handler returns the gin middleware. Rejections answer 429 with a
// Retry-After hint in whole seconds.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := "ip:" + c.ClientIP()
		if key := c.GetString(CallerKey); key != "" {
			caller = "key:" + key
		}

		ok, wait := l.reserve(caller)
		if ok {
			c.Next()
			return
		}
		if wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
			Success: false,
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeRateLimited,
				Message: "rate limit exceeded, please slow down",
			},
		})
	}
}
