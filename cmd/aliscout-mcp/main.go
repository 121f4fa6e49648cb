package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// discoverResponse mirrors the aliscout discover response.
type discoverResponse struct {
	Success  bool   `json:"success"`
	RunID    string `json:"run_id"`
	Keyword  string `json:"keyword"`
	Products []struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		URL         string  `json:"url"`
		Rating      *string `json:"rating"`
		SoldCount   *string `json:"soldCount"`
		ReviewCount string  `json:"reviewCount"`
		AddDate     string  `json:"add_date"`
	} `json:"products"`
	Stats struct {
		Products int `json:"products"`
		Enriched int `json:"enriched"`
		TimedOut int `json:"timed_out"`
		LookedUp int `json:"looked_up"`
	} `json:"stats"`
	Timing struct {
		TotalMs int64 `json:"total_ms"`
	} `json:"timing"`
	Warning string `json:"warning"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("ALISCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("ALISCOUT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "ALISCOUT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"aliscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	discoverTool := mcp.NewTool("discover_products",
		mcp.WithDescription("Search AliExpress for a keyword in a real browser and return the listed products with rating, sold count, review count and, when configured, the date the item was first seen by IxSpy. A run takes minutes."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Search term typed into the marketplace search box"),
		),
		mcp.WithBoolean("lookup",
			mcp.Description("Look up each product's first-seen date (default true when the server has IxSpy configured)"),
		),
		mcp.WithString("detail_mode",
			mcp.Description("How products are enriched: 'tab' (open each product page in the browser), 'static' (plain HTTP fetch), or 'off'"),
			mcp.Enum("tab", "static", "off"),
		),
		mcp.WithNumber("max_items",
			mcp.Description("Maximum number of products to return"),
		),
	)

	s.AddTool(discoverTool, handleDiscover(apiURL, apiKey, &http.Client{Timeout: 20 * time.Minute}))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleDiscover(apiURL, apiKey string, client *http.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword, err := request.RequireString("keyword")
		if err != nil || strings.TrimSpace(keyword) == "" {
			return mcp.NewToolResultError("keyword is required"), nil
		}

		payload := map[string]interface{}{
			"keyword": keyword,
		}
		args := request.GetArguments()
		if lookup, ok := args["lookup"]; ok {
			payload["lookup"] = lookup
		}
		if maxItems, ok := args["max_items"]; ok {
			payload["max_items"] = maxItems
		}
		if mode := request.GetString("detail_mode", ""); mode != "" {
			payload["detail_mode"] = mode
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/discover", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-API-Key", apiKey)

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var dr discoverResponse
		if err := json.Unmarshal(respBody, &dr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !dr.Success {
			errMsg := "discovery failed"
			if dr.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", dr.Error.Code, dr.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatDiscover(&dr)), nil
	}
}

func formatDiscover(dr *discoverResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Keyword: %s (run %s)\n", dr.Keyword, dr.RunID)
	fmt.Fprintf(&sb, "Products: %d, enriched: %d, timed out: %d, looked up: %d, took %dms\n",
		dr.Stats.Products, dr.Stats.Enriched, dr.Stats.TimedOut, dr.Stats.LookedUp, dr.Timing.TotalMs)
	if dr.Warning != "" {
		fmt.Fprintf(&sb, "Warning: %s\n", dr.Warning)
	}

	for i, p := range dr.Products {
		fmt.Fprintf(&sb, "\n%d. %s\n   %s\n", i+1, p.Title, p.URL)
		var facts []string
		if p.Rating != nil {
			facts = append(facts, "rating "+*p.Rating)
		}
		if p.SoldCount != nil {
			facts = append(facts, "sold "+*p.SoldCount)
		}
		if p.ReviewCount != "" {
			facts = append(facts, "reviews "+p.ReviewCount)
		}
		if p.AddDate != "" {
			facts = append(facts, "first seen "+p.AddDate)
		}
		if len(facts) > 0 {
			fmt.Fprintf(&sb, "   %s\n", strings.Join(facts, ", "))
		}
	}
	return sb.String()
}
