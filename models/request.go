package models

// Detail modes accepted by DiscoverRequest.
const (
	DetailModeTab    = "tab"
	DetailModeStatic = "static"
	DetailModeOff    = "off"
)

// DiscoverRequest is the payload for POST /api/v1/discover.
type DiscoverRequest struct {
	// Keyword is typed into the marketplace search box. Required.
	Keyword string `json:"keyword" binding:"required"`

	// Lookup enables the analytics lookup for every product with an id.
	// Default: true when the server has lookup configured.
	Lookup *bool `json:"lookup,omitempty"`

	// DetailMode overrides how products are enriched.
	// Allowed: "tab", "static", "off". Default: server setting.
	DetailMode string `json:"detail_mode,omitempty" binding:"omitempty,oneof=tab static off"`

	// MaxItems caps the number of products taken from the list. 0 = server setting.
	MaxItems int `json:"max_items,omitempty" binding:"omitempty,min=1,max=500"`

	// Timeout bounds the whole run in seconds. 0 = server setting.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=10,max=3600"`

	// WebhookURL receives the finished run in addition to the server's hook.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// RelayAuthenticateRequest is the payload for POST /api/v1/relay/authenticate.
type RelayAuthenticateRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RelayFetchInfoRequest is the payload for POST /api/v1/relay/fetch-info.
type RelayFetchInfoRequest struct {
	ID string `json:"id" binding:"required"`
}
