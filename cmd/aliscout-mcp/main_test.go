package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func callTool(t *testing.T, srv *httptest.Server, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = "discover_products"
	req.Params.Arguments = args

	res, err := handleDiscover(srv.URL, "key", srv.Client())(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", res.Content[0])
	}
	return text.Text
}

func TestDiscoverTool(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/discover" || r.Header.Get("X-API-Key") != "key" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		io.WriteString(w, `{"success":true,"run_id":"r1","keyword":"mouse",
			"products":[{"id":"1","title":"Mouse","url":"https://www.aliexpress.com/item/1.html","rating":"4.8","soldCount":"1,000+","reviewCount":"120","add_date":"2024-01-01"}],
			"stats":{"products":1,"enriched":1,"looked_up":1},"timing":{"total_ms":42}}`)
	}))
	defer srv.Close()

	res := callTool(t, srv, map[string]any{"keyword": "mouse", "lookup": false})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	text := resultText(t, res)
	for _, want := range []string{"Keyword: mouse (run r1)", "1. Mouse", "rating 4.8", "sold 1,000+", "reviews 120", "first seen 2024-01-01"} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
	if got["keyword"] != "mouse" || got["lookup"] != false {
		t.Errorf("payload = %v", got)
	}
}

func TestDiscoverTool_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"success":false,"error":{"code":"RUN_IN_PROGRESS","message":"a discovery run is already in progress"}}`)
	}))
	defer srv.Close()

	res := callTool(t, srv, map[string]any{"keyword": "mouse"})
	if !res.IsError {
		t.Fatal("expected a tool error")
	}
	if text := resultText(t, res); !strings.Contains(text, "RUN_IN_PROGRESS") {
		t.Errorf("error text = %q", text)
	}
}

func TestDiscoverTool_MissingKeyword(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if res := callTool(t, srv, map[string]any{}); !res.IsError {
		t.Error("expected a tool error for a missing keyword")
	}
}
