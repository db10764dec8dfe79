// Package source provides an HTTP client for the trace API this viewer
// was built against. The engine consumes already-fetched span records;
// this client is the only component that touches the network.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vectorwave/traceview/internal/trace"
	"github.com/vectorwave/traceview/internal/tree"
)

// Client implements HTTP interaction with the trace API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a trace API client against baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// TraceSummary is one entry of the recent-traces listing.
type TraceSummary struct {
	TraceID         string       `json:"trace_id"`
	RootFunction    string       `json:"root_function"`
	StartTime       time.Time    `json:"start_time"`
	TotalDurationMs float64      `json:"total_duration_ms"`
	SpanCount       int          `json:"span_count"`
	Status          trace.Status `json:"status"`
}

// TreeResponse is the tree-shaped payload from the separate tree
// endpoint. The server pre-builds the forest; callers should treat it
// as a cache to validate against the client-side build, not as a second
// source of truth.
type TreeResponse struct {
	TraceID         string       `json:"trace_id"`
	Tree            []*tree.Node `json:"tree"`
	TotalDurationMs float64      `json:"total_duration_ms"`
	Status          trace.Status `json:"status"`
}

// doRequest performs a GET against the trace API.
func (c *Client) doRequest(ctx context.Context, apiPath string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	u.Path = apiPath
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trace API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from trace API: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// FetchRecentTraces lists recent unique traces, newest first.
func (c *Client) FetchRecentTraces(ctx context.Context, limit int) ([]TraceSummary, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	body, err := c.doRequest(ctx, "/api/v1/traces", params)
	if err != nil {
		c.logger.Error("failed to fetch recent traces", "error", err)
		return nil, err
	}

	var summaries []TraceSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		return nil, fmt.Errorf("failed to parse recent traces response: %w", err)
	}
	return summaries, nil
}

// FetchTrace fetches all spans for one trace id (the waterfall-view
// payload). It satisfies view.Source.
func (c *Client) FetchTrace(ctx context.Context, traceID string) (*trace.Trace, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("/api/v1/traces/%s", traceID), nil)
	if err != nil {
		c.logger.Error("failed to fetch trace", "trace_id", traceID, "error", err)
		return nil, err
	}

	var trc trace.Trace
	if err := json.Unmarshal(body, &trc); err != nil {
		return nil, fmt.Errorf("failed to parse trace response: %w", err)
	}
	return &trc, nil
}

// FetchTree fetches the server-built tree for one trace id.
func (c *Client) FetchTree(ctx context.Context, traceID string) (*TreeResponse, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("/api/v1/traces/%s/tree", traceID), nil)
	if err != nil {
		c.logger.Error("failed to fetch trace tree", "trace_id", traceID, "error", err)
		return nil, err
	}

	var tr TreeResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse tree response: %w", err)
	}
	return &tr, nil
}
