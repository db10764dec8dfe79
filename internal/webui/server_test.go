package webui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorwave/traceview/internal/store"
	"github.com/vectorwave/traceview/internal/trace"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.TraceStore) {
	t.Helper()
	ts := store.NewTraceStore(1000)
	srv := httptest.NewServer(New(ts, 16, nil).Router())
	t.Cleanup(srv.Close)
	return srv, ts
}

func seedTrace(t *testing.T, ts *store.TraceStore, traceID string) {
	t.Helper()
	base := time.Unix(0, 0)
	err := ts.Ingest(context.Background(), []trace.Span{
		{SpanID: "root", TraceID: traceID, FunctionName: "api.handle", StartTime: base, DurationMs: 100, Status: trace.StatusSuccess},
		{SpanID: "c1", TraceID: traceID, FunctionName: "db.query", ParentSpanID: "root", StartTime: base.Add(10 * time.Millisecond), DurationMs: 40, Status: trace.StatusSuccess},
		{SpanID: "c2", TraceID: traceID, FunctionName: "notify", ParentSpanID: "root", StartTime: base.Add(60 * time.Millisecond), DurationMs: 30, Status: trace.StatusError, ErrorCode: "E1", ErrorMessage: "boom"},
	})
	require.NoError(t, err)
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestRecentTracesEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)
	seedTrace(t, ts, "t1")
	seedTrace(t, ts, "t2")

	var summaries []store.TraceSummary
	resp := getJSON(t, srv.URL+"/api/traces", &summaries)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, summaries, 2)
	assert.Equal(t, "t2", summaries[0].TraceID) // newest first
	assert.Equal(t, trace.StatusError, summaries[0].Status)
}

func TestTraceEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)
	seedTrace(t, ts, "t1")

	var trc trace.Trace
	resp := getJSON(t, srv.URL+"/api/traces/t1", &trc)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "t1", trc.TraceID)
	assert.Equal(t, 3, trc.SpanCount)
	assert.Equal(t, trace.StatusError, trc.Status)
}

func TestTraceEndpoint_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	var trc trace.Trace
	resp := getJSON(t, srv.URL+"/api/traces/missing", &trc)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, trace.StatusNotFound, trc.Status)
	assert.Equal(t, "missing", trc.TraceID)
}

func TestWaterfallEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)
	seedTrace(t, ts, "t1")

	var payload waterfallResponse
	resp := getJSON(t, srv.URL+"/api/traces/t1/waterfall", &payload)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, payload.Rows, 3)

	// Rows stay in ingest order with geometry and depth-based indent.
	root := payload.Rows[0]
	assert.Equal(t, "root", root.Span.SpanID)
	assert.Equal(t, 0.0, root.OffsetPercent)
	assert.Equal(t, 100.0, root.WidthPercent)
	assert.Equal(t, 0, root.Depth)

	c1 := payload.Rows[1]
	assert.Equal(t, 1, c1.Depth)
	assert.Equal(t, 16, c1.IndentPx)
	assert.Equal(t, 10.0, c1.OffsetPercent)
	assert.Equal(t, 40.0, c1.WidthPercent)
}

func TestTreeEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)
	seedTrace(t, ts, "t1")

	var payload treeResponse
	resp := getJSON(t, srv.URL+"/api/traces/t1/tree", &payload)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, payload.Tree, 1)
	assert.Equal(t, "root", payload.Tree[0].SpanID)
	assert.Len(t, payload.Tree[0].Children, 2)
	assert.Empty(t, payload.Orphans)
}

func TestTreeEndpoint_ReportsOrphans(t *testing.T) {
	srv, ts := newTestServer(t)
	require.NoError(t, ts.Ingest(context.Background(), []trace.Span{
		{SpanID: "a", TraceID: "t1", FunctionName: "fn.a", StartTime: time.Unix(0, 0), DurationMs: 10, Status: trace.StatusSuccess},
		{SpanID: "lost", TraceID: "t1", FunctionName: "fn.lost", ParentSpanID: "ghost", StartTime: time.Unix(0, 0), DurationMs: 5, Status: trace.StatusSuccess},
	}))

	var payload treeResponse
	getJSON(t, srv.URL+"/api/traces/t1/tree", &payload)

	require.Len(t, payload.Orphans, 1)
	assert.Equal(t, "lost", payload.Orphans[0].SpanID)
	require.Len(t, payload.Tree, 1)
}

func TestErrorsEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)
	seedTrace(t, ts, "t1")

	var payload struct {
		TraceID string       `json:"trace_id"`
		Errors  []trace.Span `json:"errors"`
	}
	getJSON(t, srv.URL+"/api/traces/t1/errors", &payload)

	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "c2", payload.Errors[0].SpanID)
	assert.Equal(t, "E1", payload.Errors[0].ErrorCode)
}

func TestStatsEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)
	seedTrace(t, ts, "t1")

	var payload struct {
		Storage       store.Stats `json:"storage"`
		SpansReceived uint64      `json:"spans_received"`
		Generation    uint64      `json:"generation"`
	}
	getJSON(t, srv.URL+"/api/stats", &payload)

	assert.Equal(t, 3, payload.Storage.SpanCount)
	assert.Equal(t, uint64(3), payload.SpansReceived)
	assert.Equal(t, uint64(3), payload.Generation)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)
	seedTrace(t, ts, "t1")

	// Serve one trace so the counter moves.
	getJSON(t, srv.URL+"/api/traces/t1", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "traceview_traces_served_total 1")
	assert.Contains(t, string(body), "traceview_spans_ingested_total 3")
	assert.Contains(t, string(body), "traceview_uptime_seconds")
}

func TestRootRedirectsToUI(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "traceview")
}
