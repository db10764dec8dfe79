// Package store holds ingested spans in bounded in-memory buffers and
// assembles trace aggregates on demand. Nothing survives a restart.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/vectorwave/traceview/internal/trace"
)

// TraceSummary is one entry of the recent-traces listing served by the
// API and pushed over the live feed.
type TraceSummary struct {
	TraceID         string       `json:"trace_id"`
	RootFunction    string       `json:"root_function"`
	StartTime       time.Time    `json:"start_time"`
	TotalDurationMs float64      `json:"total_duration_ms"`
	SpanCount       int          `json:"span_count"`
	Status          trace.Status `json:"status"`
}

// QueryFilter selects spans across all stored traces.
// Empty fields are ignored; set fields combine with AND.
type QueryFilter struct {
	TraceID      string
	FunctionName string
	Status       trace.Status
	ErrorsOnly   bool
	Limit        int
}

// TraceStore stores and indexes spans by trace id.
// It implements otlpingest.SpanSink.
type TraceStore struct {
	spans *RingBuffer[trace.Span]

	mu         sync.RWMutex // protects traceIndex and traceOrder
	traceIndex map[string][]trace.Span
	traceOrder []string // trace ids in first-seen order

	activity *Activity
}

// NewTraceStore creates a trace store with the given span capacity.
func NewTraceStore(capacity int) *TraceStore {
	return &TraceStore{
		spans:      NewRingBuffer[trace.Span](capacity),
		traceIndex: make(map[string][]trace.Span),
		activity:   NewActivity(),
	}
}

// Activity returns the live activity feed backed by this store.
func (ts *TraceStore) Activity() *Activity {
	return ts.activity
}

// Ingest implements otlpingest.SpanSink. It stores the spans and
// updates the per-trace index and the activity feed.
func (ts *TraceStore) Ingest(ctx context.Context, spans []trace.Span) error {
	for _, s := range spans {
		ts.addSpan(s)
	}
	return nil
}

func (ts *TraceStore) addSpan(s trace.Span) {
	ts.spans.Add(s)

	ts.mu.Lock()
	if _, seen := ts.traceIndex[s.TraceID]; !seen {
		ts.traceOrder = append(ts.traceOrder, s.TraceID)
	}
	ts.traceIndex[s.TraceID] = append(ts.traceIndex[s.TraceID], s)
	summary := summarize(s.TraceID, ts.traceIndex[s.TraceID])
	ts.mu.Unlock()

	// Note: the trace index grows until Clear while the ring buffer
	// evicts. Acceptable for short inspection sessions; eviction
	// tracking would be needed for long-lived deployments.

	ts.activity.RecordSpan(s, summary)
}

// GetTrace assembles the aggregate for one trace id.
// The second return is false when the trace id is unknown.
func (ts *TraceStore) GetTrace(traceID string) (trace.Trace, bool) {
	ts.mu.RLock()
	spans := ts.traceIndex[traceID]
	ts.mu.RUnlock()

	if len(spans) == 0 {
		return trace.Trace{TraceID: traceID, Status: trace.StatusNotFound}, false
	}

	// Copy so callers can't mutate the index.
	out := make([]trace.Span, len(spans))
	copy(out, spans)
	return trace.New(traceID, out), true
}

// RecentTraces returns summaries for the most recently first-seen
// traces, newest first, capped at limit.
func (ts *TraceStore) RecentTraces(limit int) []TraceSummary {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	n := len(ts.traceOrder)
	if limit > 0 && limit < n {
		n = limit
	}

	summaries := make([]TraceSummary, 0, n)
	for i := len(ts.traceOrder) - 1; i >= 0 && len(summaries) < n; i-- {
		id := ts.traceOrder[i]
		summaries = append(summaries, summarize(id, ts.traceIndex[id]))
	}
	return summaries
}

// summarize derives a TraceSummary from a trace's span set.
// The root function is the earliest root span's name; when no root span
// has arrived yet, the earliest span stands in.
func summarize(traceID string, spans []trace.Span) TraceSummary {
	start, totalMs := trace.Bounds(spans)

	rootFn := ""
	var rootStart time.Time
	haveRoot := false
	for _, s := range spans {
		if s.IsRoot() && (!haveRoot || s.StartTime.Before(rootStart)) {
			rootFn, rootStart, haveRoot = s.FunctionName, s.StartTime, true
		}
	}
	if !haveRoot && len(spans) > 0 {
		earliest := spans[0]
		for _, s := range spans[1:] {
			if s.StartTime.Before(earliest.StartTime) {
				earliest = s
			}
		}
		rootFn = earliest.FunctionName
	}

	return TraceSummary{
		TraceID:         traceID,
		RootFunction:    rootFn,
		StartTime:       start,
		TotalDurationMs: totalMs,
		SpanCount:       len(spans),
		Status:          trace.AggregateStatus(spans),
	}
}

// Query scans stored spans applying the filter, oldest to newest.
func (ts *TraceStore) Query(filter QueryFilter) []trace.Span {
	var spans []trace.Span
	if filter.TraceID != "" {
		ts.mu.RLock()
		spans = append(spans, ts.traceIndex[filter.TraceID]...)
		ts.mu.RUnlock()
	} else {
		spans = ts.spans.GetAll()
	}

	var result []trace.Span
	for _, s := range spans {
		if filter.FunctionName != "" && s.FunctionName != filter.FunctionName {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.ErrorsOnly && s.Status != trace.StatusError {
			continue
		}
		result = append(result, s)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result
}

// Stats returns current storage statistics.
func (ts *TraceStore) Stats() Stats {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	return Stats{
		SpanCount:  ts.spans.Size(),
		Capacity:   ts.spans.Capacity(),
		TraceCount: len(ts.traceIndex),
	}
}

// Stats describes the store's current fill level.
type Stats struct {
	SpanCount  int `json:"span_count"`
	Capacity   int `json:"capacity"`
	TraceCount int `json:"trace_count"`
}

// Clear removes all stored spans and resets the indexes.
func (ts *TraceStore) Clear() {
	ts.spans.Clear()

	ts.mu.Lock()
	ts.traceIndex = make(map[string][]trace.Span)
	ts.traceOrder = nil
	ts.mu.Unlock()

	ts.activity.Clear()
}
