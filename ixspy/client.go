package ixspy

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/use-agent/aliscout/models"
)

// Info is the metadata the service knows about an item.
type Info struct {
	AddDate string `json:"add_date"`
}

// UnmarshalJSON accepts add_date as a string or a number. Numbers are kept
// in their literal form; zero, null and other types read as unset.
func (i *Info) UnmarshalJSON(b []byte) error {
	var raw struct {
		AddDate json.RawMessage `json:"add_date"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	i.AddDate = addDateText(raw.AddDate)
	return nil
}

func addDateText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) != nil {
		return ""
	}
	if f, err := n.Float64(); err != nil || f == 0 {
		return ""
	}
	return n.String()
}

// Client is the caller-side view of the service.
type Client struct {
	relay Relay
	infos *expirable.LRU[string, *Info]
}

// NewClient returns a Client that goes through relay.
func NewClient(relay Relay) *Client {
	return &Client{relay: relay}
}

// WithCache makes c remember up to size found items for ttl. Misses are
// not cached; an item the service does not know yet may appear later.
func (c *Client) WithCache(size int, ttl time.Duration) *Client {
	c.infos = expirable.NewLRU[string, *Info](size, nil, ttl)
	return c
}

// Authenticate logs in and reports whether the service accepted the
// credentials. Every failure reads as false.
func (c *Client) Authenticate(ctx context.Context, username, password string) bool {
	resp, err := c.relay.Authenticate(ctx, Credentials{Username: username, Password: password})
	if err != nil {
		slog.Warn("ixspy authenticate failed", "error", err)
		return false
	}
	if resp == nil || !resp.Success {
		slog.Info("ixspy login rejected", "status", statusOf(resp), "error", errorOf(resp))
		return false
	}
	return true
}

// FetchInfo returns the item's metadata, or nil when the service has none
// or the call failed. A rejected session is the one error surfaced, as
// models.ErrUnauthorized, so callers can stop issuing lookups.
func (c *Client) FetchInfo(ctx context.Context, id string) (*Info, error) {
	if c.infos != nil {
		if info, ok := c.infos.Get(id); ok {
			return info, nil
		}
	}

	resp, err := c.relay.FetchInfo(ctx, id)
	if err != nil {
		slog.Warn("ixspy fetch info failed", "id", id, "error", err)
		return nil, nil
	}
	if resp == nil {
		return nil, nil
	}
	if !resp.Success {
		if resp.Error == UnauthorizedError {
			return nil, models.ErrUnauthorized
		}
		slog.Debug("ixspy lookup unsuccessful", "id", id, "status", resp.Status, "error", resp.Error)
		return nil, nil
	}

	var info Info
	if len(resp.Data) == 0 || json.Unmarshal(resp.Data, &info) != nil || info.AddDate == "" {
		return nil, nil
	}
	if c.infos != nil {
		c.infos.Add(id, &info)
	}
	return &info, nil
}

func statusOf(r *RelayResponse) int {
	if r == nil {
		return 0
	}
	return r.Status
}

func errorOf(r *RelayResponse) string {
	if r == nil {
		return ""
	}
	return r.Error
}
