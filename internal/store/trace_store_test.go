package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vectorwave/traceview/internal/trace"
)

func testSpan(traceID, spanID, parent string, status trace.Status, startMs, durMs float64) trace.Span {
	return trace.Span{
		SpanID:       spanID,
		TraceID:      traceID,
		FunctionName: "fn." + spanID,
		StartTime:    time.Unix(0, 0).Add(time.Duration(startMs * float64(time.Millisecond))),
		DurationMs:   durMs,
		Status:       status,
		ParentSpanID: parent,
	}
}

func TestTraceStore_IngestAndGet(t *testing.T) {
	ts := NewTraceStore(100)

	err := ts.Ingest(context.Background(), []trace.Span{
		testSpan("t1", "root", "", trace.StatusSuccess, 0, 100),
		testSpan("t1", "child", "root", trace.StatusSuccess, 10, 40),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	trc, ok := ts.GetTrace("t1")
	if !ok {
		t.Fatal("expected trace t1")
	}
	if trc.SpanCount != 2 {
		t.Errorf("span count = %d, want 2", trc.SpanCount)
	}
	if trc.Status != trace.StatusSuccess {
		t.Errorf("status = %s", trc.Status)
	}
	if trc.TotalDurationMs != 100 {
		t.Errorf("total = %v, want 100", trc.TotalDurationMs)
	}
}

func TestTraceStore_GetUnknownTrace(t *testing.T) {
	ts := NewTraceStore(10)
	trc, ok := ts.GetTrace("nope")
	if ok {
		t.Error("unknown trace reported as present")
	}
	if trc.Status != trace.StatusNotFound {
		t.Errorf("status = %s, want NOT_FOUND", trc.Status)
	}
	if trc.TraceID != "nope" {
		t.Errorf("trace id = %s", trc.TraceID)
	}
}

func TestTraceStore_GetTraceCopies(t *testing.T) {
	ts := NewTraceStore(10)
	ts.Ingest(context.Background(), []trace.Span{
		testSpan("t1", "root", "", trace.StatusSuccess, 0, 10),
	})

	trc, _ := ts.GetTrace("t1")
	trc.Spans[0].FunctionName = "mutated"

	again, _ := ts.GetTrace("t1")
	if again.Spans[0].FunctionName != "fn.root" {
		t.Error("GetTrace leaked internal span slice")
	}
}

func TestTraceStore_RecentTracesNewestFirst(t *testing.T) {
	ts := NewTraceStore(100)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("t%d", i)
		ts.Ingest(context.Background(), []trace.Span{
			testSpan(id, id+"-root", "", trace.StatusSuccess, float64(i), 10),
		})
	}

	recent := ts.RecentTraces(3)
	if len(recent) != 3 {
		t.Fatalf("recent = %d entries, want 3", len(recent))
	}
	if recent[0].TraceID != "t4" || recent[2].TraceID != "t2" {
		t.Errorf("order wrong: %s .. %s", recent[0].TraceID, recent[2].TraceID)
	}
}

func TestTraceStore_SummaryRootFunction(t *testing.T) {
	ts := NewTraceStore(100)
	// Child arrives before the root span.
	ts.Ingest(context.Background(), []trace.Span{
		testSpan("t1", "child", "root", trace.StatusSuccess, 10, 5),
	})

	recent := ts.RecentTraces(1)
	if recent[0].RootFunction != "fn.child" {
		t.Errorf("rootless summary fn = %s, want earliest span's", recent[0].RootFunction)
	}

	ts.Ingest(context.Background(), []trace.Span{
		testSpan("t1", "root", "", trace.StatusSuccess, 0, 100),
	})
	recent = ts.RecentTraces(1)
	if recent[0].RootFunction != "fn.root" {
		t.Errorf("summary fn = %s, want root span's", recent[0].RootFunction)
	}
	if recent[0].SpanCount != 2 {
		t.Errorf("span count = %d, want 2", recent[0].SpanCount)
	}
}

func TestTraceStore_AggregateStatusError(t *testing.T) {
	ts := NewTraceStore(100)
	ts.Ingest(context.Background(), []trace.Span{
		testSpan("t1", "a", "", trace.StatusSuccess, 0, 10),
		testSpan("t1", "b", "a", trace.StatusError, 5, 2),
	})

	trc, _ := ts.GetTrace("t1")
	if trc.Status != trace.StatusError {
		t.Errorf("status = %s, want ERROR", trc.Status)
	}
}

func TestTraceStore_Query(t *testing.T) {
	ts := NewTraceStore(100)
	ts.Ingest(context.Background(), []trace.Span{
		testSpan("t1", "a", "", trace.StatusSuccess, 0, 10),
		testSpan("t1", "b", "a", trace.StatusError, 1, 2),
		testSpan("t2", "c", "", trace.StatusSuccess, 0, 5),
	})

	if got := ts.Query(QueryFilter{TraceID: "t1"}); len(got) != 2 {
		t.Errorf("trace filter returned %d spans, want 2", len(got))
	}
	if got := ts.Query(QueryFilter{ErrorsOnly: true}); len(got) != 1 || got[0].SpanID != "b" {
		t.Errorf("errors-only filter returned %+v", got)
	}
	if got := ts.Query(QueryFilter{FunctionName: "fn.c"}); len(got) != 1 {
		t.Errorf("function filter returned %d spans, want 1", len(got))
	}
	if got := ts.Query(QueryFilter{Limit: 2}); len(got) != 2 {
		t.Errorf("limit filter returned %d spans, want 2", len(got))
	}
}

func TestTraceStore_StatsAndClear(t *testing.T) {
	ts := NewTraceStore(100)
	ts.Ingest(context.Background(), []trace.Span{
		testSpan("t1", "a", "", trace.StatusSuccess, 0, 10),
		testSpan("t2", "b", "", trace.StatusSuccess, 0, 10),
	})

	stats := ts.Stats()
	if stats.SpanCount != 2 || stats.TraceCount != 2 || stats.Capacity != 100 {
		t.Errorf("stats = %+v", stats)
	}

	ts.Clear()
	stats = ts.Stats()
	if stats.SpanCount != 0 || stats.TraceCount != 0 {
		t.Errorf("stats after clear = %+v", stats)
	}
	if _, ok := ts.GetTrace("t1"); ok {
		t.Error("trace survived Clear")
	}
}
