package models

// DiscoverResponse is the response for POST /api/v1/discover.
type DiscoverResponse struct {
	Success bool `json:"success"`

	RunID    string     `json:"run_id,omitempty"`
	Keyword  string     `json:"keyword,omitempty"`
	Products []*Product `json:"products"`

	Stats  RunStats   `json:"stats"`
	Timing TimingInfo `json:"timing"`

	// Warning reports a partial result, e.g. lookups stopped early.
	Warning string `json:"warning,omitempty"`

	// Error is set when Success is false, and alongside Warning when the
	// error cut a run short after its products were collected.
	Error *ErrorDetail `json:"error,omitempty"`
}

// RunStats counts what happened to the products of a run.
type RunStats struct {
	Products      int  `json:"products"`
	Enriched      int  `json:"enriched"`
	TimedOut      int  `json:"timed_out"`
	EnrichFailed  int  `json:"enrich_failed"`
	LookedUp      int  `json:"looked_up"`
	LookupStopped bool `json:"lookup_stopped"`
	EnrichStopped bool `json:"enrich_stopped"`
}

// TimingInfo breaks down the time spent.
type TimingInfo struct {
	TotalMs int64 `json:"total_ms"`
}

// ErrorResponse is the body of every non-2xx answer that is not a relay call.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string       `json:"status"` // "healthy", "busy" or "degraded"
	Uptime        string       `json:"uptime"`
	Browser       BrowserStats `json:"browser"`
	RunInProgress bool         `json:"run_in_progress"`
	LookupEnabled bool         `json:"lookup_enabled"`
	Version       string       `json:"version"`
}

// BrowserStats reports detail-tab usage.
type BrowserStats struct {
	MaxTabs    int    `json:"max_tabs"`
	ActiveTabs int    `json:"active_tabs"`
	TabsOpened int64  `json:"tabs_opened"`
	Uptime     string `json:"uptime,omitempty"`
}
