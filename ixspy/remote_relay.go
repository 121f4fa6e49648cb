package ixspy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteRelay forwards relay calls to an aliscout server.
type RemoteRelay struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteRelay returns a relay that posts to baseURL/api/v1/relay/*.
// A nil client gets a 30s timeout.
func NewRemoteRelay(baseURL, apiKey string, client *http.Client) *RemoteRelay {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteRelay{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// Authenticate implements Relay.
func (r *RemoteRelay) Authenticate(ctx context.Context, creds Credentials) (*RelayResponse, error) {
	return r.call(ctx, "/api/v1/relay/authenticate", creds)
}

// FetchInfo implements Relay.
func (r *RemoteRelay) FetchInfo(ctx context.Context, id string) (*RelayResponse, error) {
	return r.call(ctx, "/api/v1/relay/fetch-info", map[string]string{"id": id})
}

func (r *RemoteRelay) call(ctx context.Context, path string, payload any) (*RelayResponse, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("remote relay: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("remote relay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, fmt.Errorf("remote relay: HTTP %d from %s", resp.StatusCode, path)
	}
	var out RelayResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("remote relay: decode: %w", err)
	}
	return &out, nil
}
