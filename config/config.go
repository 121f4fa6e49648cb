package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/use-agent/aliscout/models"
)

// Detail fetch modes. They share values with the per-request override.
const (
	DetailModeTab    = models.DetailModeTab
	DetailModeStatic = models.DetailModeStatic
	DetailModeOff    = models.DetailModeOff
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	IxSpy     IxSpyConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// MetricsEnabled exposes GET /metrics.
	MetricsEnabled bool // default: true
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	Headless bool // default: true

	// MaxTabs caps the detail-tab pool.
	MaxTabs int // default: 2

	// DefaultProxy is the proxy URL for the browser.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	BrowserBin string

	// Stealth injects the stealth script into every page.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// ScraperConfig controls a discovery run.
type ScraperConfig struct {
	// StartURL is where the search page is opened.
	StartURL string // default: "https://www.aliexpress.com/"

	NavigationTimeout time.Duration // default: 30s
	ResultsTimeout    time.Duration // default: 30s

	// RunTimeout bounds a whole run.
	RunTimeout time.Duration // default: 15m

	// MaxItems truncates the result list; 0 keeps every card.
	MaxItems int // default: 0

	AutoScroll     bool // default: true
	ScrollMaxSteps int  // default: 300

	// DetailMode selects how products are enriched: tab, static, or off.
	DetailMode     string        // default: "tab"
	DetailAttempts int           // default: 150
	DetailInterval time.Duration // default: 100ms
	SettleDelay    time.Duration // default: 500ms
}

// IxSpyConfig controls the analytics lookup.
type IxSpyConfig struct {
	Enabled  bool
	Username string
	Password string

	// RelayURL, when set, sends relay calls to another aliscout server
	// instead of calling IxSpy directly.
	RelayURL    string
	RelayAPIKey string

	LoginURL string // default: "https://user.ixspy.com/login"
	InfoURL  string // default: "https://ixspy.com/goods-info"

	// RequestsPerSecond paces upstream calls.
	RequestsPerSecond float64       // default: 2
	Burst             int           // default: 1
	Timeout           time.Duration // default: 15s

	// CacheTTL keeps found first-seen dates in memory; 0 disables the cache.
	CacheTTL     time.Duration // default: 24h
	CacheEntries int           // default: 10000
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool // default: true
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// WebhookConfig controls delivery of finished runs.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
// Files named in envFiles (default ".env") are loaded first; variables
// already set in the environment win.
func Load(envFiles ...string) *Config {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load env file", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host:           envOr("ALISCOUT_HOST", "0.0.0.0"),
			Port:           envIntOr("ALISCOUT_PORT", 8080),
			Mode:           envOr("ALISCOUT_MODE", "release"),
			MetricsEnabled: envBoolOr("ALISCOUT_METRICS", true),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("ALISCOUT_HEADLESS", true),
			MaxTabs:      envIntOr("ALISCOUT_MAX_TABS", 2),
			DefaultProxy: os.Getenv("ALISCOUT_PROXY"),
			NoSandbox:    envBoolOr("ALISCOUT_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("ALISCOUT_BROWSER_BIN"),
			Stealth:      envBoolOr("ALISCOUT_STEALTH", true),
			BlockedResourceTypes: envSliceOr("ALISCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Scraper: ScraperConfig{
			StartURL:          envOr("ALISCOUT_START_URL", "https://www.aliexpress.com/"),
			NavigationTimeout: envDurationOr("ALISCOUT_NAV_TIMEOUT", 30*time.Second),
			ResultsTimeout:    envDurationOr("ALISCOUT_RESULTS_TIMEOUT", 30*time.Second),
			RunTimeout:        envDurationOr("ALISCOUT_RUN_TIMEOUT", 15*time.Minute),
			MaxItems:          envIntOr("ALISCOUT_MAX_ITEMS", 0),
			AutoScroll:        envBoolOr("ALISCOUT_AUTO_SCROLL", true),
			ScrollMaxSteps:    envIntOr("ALISCOUT_SCROLL_MAX_STEPS", 300),
			DetailMode:        strings.ToLower(envOr("ALISCOUT_DETAIL_MODE", DetailModeTab)),
			DetailAttempts:    envIntOr("ALISCOUT_DETAIL_ATTEMPTS", 150),
			DetailInterval:    envDurationOr("ALISCOUT_DETAIL_INTERVAL", 100*time.Millisecond),
			SettleDelay:       envDurationOr("ALISCOUT_SETTLE_DELAY", 500*time.Millisecond),
		},
		IxSpy: IxSpyConfig{
			Enabled:           envBoolOr("ALISCOUT_IXSPY_ENABLED", false),
			Username:          os.Getenv("ALISCOUT_IXSPY_USERNAME"),
			Password:          os.Getenv("ALISCOUT_IXSPY_PASSWORD"),
			RelayURL:          os.Getenv("ALISCOUT_IXSPY_RELAY_URL"),
			RelayAPIKey:       os.Getenv("ALISCOUT_IXSPY_RELAY_API_KEY"),
			LoginURL:          envOr("ALISCOUT_IXSPY_LOGIN_URL", "https://user.ixspy.com/login"),
			InfoURL:           envOr("ALISCOUT_IXSPY_INFO_URL", "https://ixspy.com/goods-info"),
			RequestsPerSecond: envFloatOr("ALISCOUT_IXSPY_RPS", 2),
			Burst:             envIntOr("ALISCOUT_IXSPY_BURST", 1),
			Timeout:           envDurationOr("ALISCOUT_IXSPY_TIMEOUT", 15*time.Second),
			CacheTTL:          envDurationOr("ALISCOUT_IXSPY_CACHE_TTL", 24*time.Hour),
			CacheEntries:      envIntOr("ALISCOUT_IXSPY_CACHE_ENTRIES", 10000),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("ALISCOUT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("ALISCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("ALISCOUT_RATE_RPS", 5.0),
			Burst:             envIntOr("ALISCOUT_RATE_BURST", 10),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("ALISCOUT_WEBHOOK_URL"),
			Secret: os.Getenv("ALISCOUT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("ALISCOUT_LOG_LEVEL", "info"),
			Format: envOr("ALISCOUT_LOG_FORMAT", "json"),
		},
	}
}

// Validate checks that the configuration values are coherent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	if u, err := url.Parse(c.Scraper.StartURL); err != nil || u.Host == "" {
		return fmt.Errorf("start URL %q must be an absolute URL", c.Scraper.StartURL)
	}
	if c.Browser.MaxTabs < 1 {
		return fmt.Errorf("max tabs must be positive")
	}
	switch c.Scraper.DetailMode {
	case DetailModeTab, DetailModeStatic, DetailModeOff:
	default:
		return fmt.Errorf("unknown detail mode %q", c.Scraper.DetailMode)
	}
	if c.Scraper.DetailAttempts < 1 {
		return fmt.Errorf("detail attempts must be positive")
	}
	if c.Scraper.DetailInterval <= 0 {
		return fmt.Errorf("detail interval must be positive")
	}
	if c.Scraper.ScrollMaxSteps < 1 {
		return fmt.Errorf("scroll max steps must be positive")
	}
	if c.Scraper.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative")
	}
	if c.Scraper.ResultsTimeout <= 0 || c.Scraper.RunTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.IxSpy.Enabled && c.IxSpy.RelayURL == "" && (c.IxSpy.Username == "" || c.IxSpy.Password == "") {
		return fmt.Errorf("ixspy lookup needs credentials or a relay URL")
	}
	if c.IxSpy.RequestsPerSecond < 0 {
		return fmt.Errorf("ixspy rate cannot be negative")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit must allow at least one request")
	}
	if c.Webhook.URL != "" {
		if u, err := url.Parse(c.Webhook.URL); err != nil || u.Host == "" {
			return fmt.Errorf("webhook URL %q must be an absolute URL", c.Webhook.URL)
		}
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
