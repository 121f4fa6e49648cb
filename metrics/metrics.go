// Package metrics holds the Prometheus collectors for discovery runs.
// Every method is safe on a nil *Metrics so callers can leave it unset.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the collectors on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	ProductsTotal     prometheus.Counter
	EnrichmentsTotal  *prometheus.CounterVec
	LookupsTotal      *prometheus.CounterVec
	RelayRequests     *prometheus.CounterVec
	HTTPRequestsTotal *prometheus.CounterVec
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aliscout_runs_total",
			Help: "Discovery runs by final status.",
		},
		[]string{"status"},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aliscout_run_duration_seconds",
			Help:    "Wall time of a discovery run.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aliscout_products_scraped_total",
			Help: "Products read from result lists.",
		},
	)
	enrichments := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aliscout_enrichments_total",
			Help: "Detail-page enrichment attempts by outcome.",
		},
		[]string{"outcome"},
	)
	lookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aliscout_lookups_total",
			Help: "Analytics lookups by result.",
		},
		[]string{"result"},
	)
	relay := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aliscout_relay_requests_total",
			Help: "Upstream relay requests by operation and status class.",
		},
		[]string{"op", "status"},
	)
	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aliscout_http_requests_total",
			Help: "API requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	registry.MustRegister(runs, runDuration, products, enrichments, lookups, relay, httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry:          registry,
		RunsTotal:         runs,
		RunDuration:       runDuration,
		ProductsTotal:     products,
		EnrichmentsTotal:  enrichments,
		LookupsTotal:      lookups,
		RelayRequests:     relay,
		HTTPRequestsTotal: httpRequests,
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// AddProducts counts scraped products.
func (m *Metrics) AddProducts(n int) {
	if m == nil {
		return
	}
	m.ProductsTotal.Add(float64(n))
}

// IncEnrichment counts one enrichment outcome.
func (m *Metrics) IncEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.EnrichmentsTotal.WithLabelValues(outcome).Inc()
}

// IncLookup counts one lookup result.
func (m *Metrics) IncLookup(result string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(result).Inc()
}

// IncRelay counts one upstream relay request.
func (m *Metrics) IncRelay(op, status string) {
	if m == nil {
		return
	}
	m.RelayRequests.WithLabelValues(op, status).Inc()
}

// IncHTTP counts one API request.
func (m *Metrics) IncHTTP(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
}
