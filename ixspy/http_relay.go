package ixspy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"

	"github.com/use-agent/aliscout/metrics"
	"github.com/use-agent/aliscout/transport"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Upstream endpoints.
const (
	DefaultLoginURL = "https://user.ixspy.com/login"
	DefaultInfoURL  = "https://ixspy.com/goods-info"
)

// Fixed login form fields the service expects.
const (
	loginSite        = "7"
	loginToURL       = "https://ixspy.com/data"
	loginRedirectURL = "https://ixspy.com/login"
)

const maxResponseBody = 1 << 20

// HTTPRelay calls the service directly and keeps the session cookies.
// There are no retries; calls are paced by the limiter.
type HTTPRelay struct {
	client   *http.Client
	limiter  *rate.Limiter
	loginURL string
	infoURL  string
	metrics  *metrics.Metrics
}

// HTTPRelayOptions configures NewHTTPRelay. Zero values select defaults.
type HTTPRelayOptions struct {
	// Client defaults to a Chrome-fingerprinted client. A cookie jar is
	// installed when the client has none.
	Client   *http.Client
	LoginURL string
	InfoURL  string

	// RPS paces upstream requests. Zero disables pacing.
	RPS   float64
	Burst int

	Metrics *metrics.Metrics
}

// NewHTTPRelay builds an HTTPRelay.
func NewHTTPRelay(opts HTTPRelayOptions) (*HTTPRelay, error) {
	client := opts.Client
	if client == nil {
		client = transport.NewClient(transport.Options{})
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("ixspy: cookie jar: %w", err)
		}
		client.Jar = jar
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	r := &HTTPRelay{
		client:   client,
		limiter:  limiter,
		loginURL: opts.LoginURL,
		infoURL:  opts.InfoURL,
		metrics:  opts.Metrics,
	}
	if r.loginURL == "" {
		r.loginURL = DefaultLoginURL
	}
	if r.infoURL == "" {
		r.infoURL = DefaultInfoURL
	}
	return r, nil
}

type loginBody struct {
	UserNameEmail string `json:"user_name_email"`
	Password      string `json:"password"`
	Site          string `json:"site"`
	ToURL         string `json:"toUrl"`
	RedirectURL   string `json:"redirectUrl"`
	ExtURL        string `json:"ext_url"`
}

// Authenticate implements Relay. Any 2xx counts as a successful login.
func (r *HTTPRelay) Authenticate(ctx context.Context, creds Credentials) (*RelayResponse, error) {
	body := loginBody{
		UserNameEmail: creds.Username,
		Password:      creds.Password,
		Site:          loginSite,
		ToURL:         loginToURL,
		RedirectURL:   loginRedirectURL,
	}
	resp, err := r.post(ctx, "authenticate", r.loginURL, "application/json", body)
	if err != nil {
		slog.Error("ixspy login failed", "error", err)
		return &RelayResponse{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if isSuccess(resp.StatusCode) {
		return &RelayResponse{Success: true}, nil
	}
	return &RelayResponse{Success: false, Status: resp.StatusCode}, nil
}

// FetchInfo implements Relay. 401 and 403 map to the Unauthorized error.
func (r *HTTPRelay) FetchInfo(ctx context.Context, id string) (*RelayResponse, error) {
	resp, err := r.post(ctx, "fetch_info", r.infoURL, "application/json;charset=UTF-8", map[string]string{"id": id})
	if err != nil {
		slog.Error("ixspy fetch info failed", "id", id, "error", err)
		return &RelayResponse{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	switch {
	case isSuccess(resp.StatusCode):
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&envelope); err != nil {
			return &RelayResponse{Success: false, Error: fmt.Sprintf("decode goods-info: %v", err)}, nil
		}
		return &RelayResponse{Success: true, Data: envelope.Data}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &RelayResponse{Success: false, Error: UnauthorizedError}, nil
	default:
		return &RelayResponse{Success: false, Status: resp.StatusCode}, nil
	}
}

func (r *HTTPRelay) post(ctx context.Context, op, url, contentType string, payload any) (*http.Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", transport.DefaultUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.metrics.IncRelay(op, "error")
		return nil, err
	}
	r.metrics.IncRelay(op, strconv.Itoa(resp.StatusCode/100)+"xx")
	return resp, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
