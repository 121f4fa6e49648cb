package webhook

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

const hookURL = "https://hooks.example.test/aliscout"

func TestDeliver_Signs(t *testing.T) {
	transport := httpmock.NewMockTransport()
	var gotSig string
	var gotBody []byte
	transport.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		gotSig = req.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(req.Body)
		return httpmock.NewStringResponse(204, ""), nil
	})

	n := NewNotifier(hookURL, "s3cret", &http.Client{Transport: transport})
	event := &Event{Type: EventRunCompleted, RunID: "abc", Timestamp: 1700000000, Data: map[string]int{"products": 2}}
	if err := n.Deliver(context.Background(), event); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if want := Sign("s3cret", gotBody); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
	if len(gotSig) != len("sha256=")+64 {
		t.Errorf("signature has unexpected length: %q", gotSig)
	}
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		if req.Header.Get(SignatureHeader) != "" {
			t.Error("unexpected signature header")
		}
		return httpmock.NewStringResponse(200, ""), nil
	})
	n := NewNotifier(hookURL, "", &http.Client{Transport: transport})
	if err := n.Deliver(context.Background(), NewEvent(EventRunFailed, "r", nil)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(500, "oops"))
	n := NewNotifier(hookURL, "", &http.Client{Transport: transport})
	if err := n.Deliver(context.Background(), NewEvent(EventRunCompleted, "r", nil)); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestDeliverAsync_Retries(t *testing.T) {
	transport := httpmock.NewMockTransport()
	calls := make(chan struct{}, 4)
	attempt := 0
	transport.RegisterResponder(http.MethodPost, hookURL, func(*http.Request) (*http.Response, error) {
		attempt++
		calls <- struct{}{}
		if attempt < 2 {
			return httpmock.NewStringResponse(503, ""), nil
		}
		return httpmock.NewStringResponse(200, ""), nil
	})
	n := NewNotifier(hookURL, "", &http.Client{Transport: transport})
	n.retryDelays = []time.Duration{0, time.Millisecond, time.Millisecond}

	n.DeliverAsync(NewEvent(EventRunCompleted, "r", nil))
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d delivery attempts", i)
		}
	}
	select {
	case <-calls:
		t.Error("delivered again after success")
	case <-time.After(50 * time.Millisecond):
	}
}
