package ixspy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/use-agent/aliscout/models"
)

type stubRelay struct {
	auth *RelayResponse
	info *RelayResponse
	err  error
}

func (s stubRelay) Authenticate(context.Context, Credentials) (*RelayResponse, error) {
	return s.auth, s.err
}

func (s stubRelay) FetchInfo(context.Context, string) (*RelayResponse, error) {
	return s.info, s.err
}

func TestClient_Authenticate(t *testing.T) {
	tests := []struct {
		name  string
		relay stubRelay
		want  bool
	}{
		{"success", stubRelay{auth: &RelayResponse{Success: true}}, true},
		{"rejected", stubRelay{auth: &RelayResponse{Success: false, Status: 400}}, false},
		{"relay down", stubRelay{err: errors.New("dial tcp: refused")}, false},
		{"nil response", stubRelay{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.relay)
			if got := c.Authenticate(context.Background(), "u", "p"); got != tt.want {
				t.Errorf("Authenticate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_FetchInfo(t *testing.T) {
	tests := []struct {
		name     string
		relay    stubRelay
		wantDate string
		wantErr  error
	}{
		{
			name:     "found",
			relay:    stubRelay{info: &RelayResponse{Success: true, Data: json.RawMessage(`{"add_date":"2024-03-01"}`)}},
			wantDate: "2024-03-01",
		},
		{
			name:     "numeric add date",
			relay:    stubRelay{info: &RelayResponse{Success: true, Data: json.RawMessage(`{"add_date":1709251200}`)}},
			wantDate: "1709251200",
		},
		{
			name:  "zero add date",
			relay: stubRelay{info: &RelayResponse{Success: true, Data: json.RawMessage(`{"add_date":0}`)}},
		},
		{
			name:  "null add date",
			relay: stubRelay{info: &RelayResponse{Success: true, Data: json.RawMessage(`{"add_date":null}`)}},
		},
		{
			name:  "no add date",
			relay: stubRelay{info: &RelayResponse{Success: true, Data: json.RawMessage(`{"title":"x"}`)}},
		},
		{
			name:  "null data",
			relay: stubRelay{info: &RelayResponse{Success: true, Data: json.RawMessage(`null`)}},
		},
		{
			name:    "unauthorized",
			relay:   stubRelay{info: &RelayResponse{Success: false, Error: "Unauthorized"}},
			wantErr: models.ErrUnauthorized,
		},
		{
			name:  "upstream status",
			relay: stubRelay{info: &RelayResponse{Success: false, Status: 500}},
		},
		{
			name:  "relay error",
			relay: stubRelay{err: errors.New("boom")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := NewClient(tt.relay).FetchInfo(context.Background(), "42")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantDate == "" {
				if info != nil {
					t.Errorf("info = %+v, want nil", info)
				}
				return
			}
			if info == nil || info.AddDate != tt.wantDate {
				t.Errorf("info = %+v, want add_date %q", info, tt.wantDate)
			}
		})
	}
}

func TestRemoteRelay_RoundTrip(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, "http://relay.test/api/v1/relay/fetch-info",
		func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got != "Bearer k1" {
				t.Errorf("Authorization = %q", got)
			}
			return httpmock.NewStringResponse(200, `{"success":false,"error":"Unauthorized"}`), nil
		})
	transport.RegisterResponder(http.MethodPost, "http://relay.test/api/v1/relay/authenticate",
		httpmock.NewStringResponder(502, "bad gateway"))

	relay := NewRemoteRelay("http://relay.test/", "k1", &http.Client{Transport: transport})
	c := NewClient(relay)

	if _, err := c.FetchInfo(context.Background(), "7"); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("FetchInfo err = %v, want ErrUnauthorized", err)
	}
	if c.Authenticate(context.Background(), "u", "p") {
		t.Error("Authenticate = true on relay 502")
	}
}

type countingRelay struct {
	stubRelay
	calls int
}

func (r *countingRelay) FetchInfo(ctx context.Context, id string) (*RelayResponse, error) {
	r.calls++
	return r.stubRelay.FetchInfo(ctx, id)
}

func TestClient_FetchInfoCache(t *testing.T) {
	found := &countingRelay{stubRelay: stubRelay{info: &RelayResponse{Success: true, Data: json.RawMessage(`{"add_date":"2024-03-01"}`)}}}
	c := NewClient(found).WithCache(10, time.Hour)

	for i := 0; i < 3; i++ {
		info, err := c.FetchInfo(context.Background(), "1")
		if err != nil || info == nil || info.AddDate != "2024-03-01" {
			t.Fatalf("call %d: info = %+v, err = %v", i, info, err)
		}
	}
	if found.calls != 1 {
		t.Errorf("relay calls = %d, want 1", found.calls)
	}

	missing := &countingRelay{stubRelay: stubRelay{info: &RelayResponse{Success: false, Status: 404}}}
	c = NewClient(missing).WithCache(10, time.Hour)
	for i := 0; i < 2; i++ {
		if info, _ := c.FetchInfo(context.Background(), "2"); info != nil {
			t.Fatalf("info = %+v, want nil", info)
		}
	}
	if missing.calls != 2 {
		t.Errorf("misses were cached: relay calls = %d", missing.calls)
	}
}

func TestClient_FetchInfoCacheExpires(t *testing.T) {
	relay := &countingRelay{stubRelay: stubRelay{info: &RelayResponse{Success: true, Data: json.RawMessage(`{"add_date":"2024-03-01"}`)}}}
	c := NewClient(relay).WithCache(10, 20*time.Millisecond)

	if _, err := c.FetchInfo(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := c.FetchInfo(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if relay.calls != 2 {
		t.Errorf("relay calls = %d, want 2 after expiry", relay.calls)
	}
}
