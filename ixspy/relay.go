// Package ixspy talks to the IxSpy analytics service, which records when
// marketplace items were first seen.
//
// Credentials and session cookies live with a Relay. HTTPRelay holds them
// itself; RemoteRelay forwards to a process that runs HTTPRelay behind the
// /api/v1/relay endpoints.
package ixspy

import (
	"context"
	"encoding/json"
)

// UnauthorizedError is the relay error string for a rejected session.
const UnauthorizedError = "Unauthorized"

// Credentials authenticate an IxSpy account.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RelayResponse is the relay wire shape.
type RelayResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Status  int             `json:"status,omitempty"`
}

// Relay performs the privileged calls. Upstream failures are reported
// inside the RelayResponse; a Go error means the relay itself could not
// be reached.
type Relay interface {
	Authenticate(ctx context.Context, creds Credentials) (*RelayResponse, error)
	FetchInfo(ctx context.Context, id string) (*RelayResponse, error)
}
