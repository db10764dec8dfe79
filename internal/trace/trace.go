package trace

import "time"

// Trace aggregates all spans sharing one trace id.
type Trace struct {
	TraceID         string    `json:"trace_id"`
	Status          Status    `json:"status"`
	TotalDurationMs float64   `json:"total_duration_ms"`
	SpanCount       int       `json:"span_count"`
	StartTime       time.Time `json:"start_time"`
	Spans           []Span    `json:"spans"`
}

// New assembles a Trace aggregate from a span set. The aggregate fields
// are derived, never trusted from the source data.
func New(traceID string, spans []Span) Trace {
	start, totalMs := Bounds(spans)
	return Trace{
		TraceID:         traceID,
		Status:          AggregateStatus(spans),
		TotalDurationMs: totalMs,
		SpanCount:       len(spans),
		StartTime:       start,
		Spans:           spans,
	}
}

// Bounds returns the earliest start across the span set and the
// wall-clock duration from that start to the latest end. This is not the
// sum of span durations: spans overlap.
func Bounds(spans []Span) (start time.Time, totalMs float64) {
	if len(spans) == 0 {
		return time.Time{}, 0
	}

	start = spans[0].StartTime
	end := spans[0].EndTime()
	for _, s := range spans[1:] {
		if s.StartTime.Before(start) {
			start = s.StartTime
		}
		if se := s.EndTime(); se.After(end) {
			end = se
		}
	}

	totalMs = float64(end.Sub(start)) / float64(time.Millisecond)
	if totalMs < 0 {
		totalMs = 0
	}
	return start, totalMs
}

// AggregateStatus derives the trace-level status: ERROR if any span
// errored, PARTIAL if any span was PARTIAL or NOT_FOUND, otherwise
// SUCCESS. An empty span set means the trace does not exist.
func AggregateStatus(spans []Span) Status {
	if len(spans) == 0 {
		return StatusNotFound
	}

	partial := false
	for _, s := range spans {
		switch s.Status {
		case StatusError:
			return StatusError
		case StatusPartial, StatusNotFound:
			partial = true
		}
	}

	if partial {
		return StatusPartial
	}
	return StatusSuccess
}

// ErrorSpans filters the flat span list for ERROR spans, in input order.
// The error list is independent of tree nesting.
func ErrorSpans(spans []Span) []Span {
	var errs []Span
	for _, s := range spans {
		if s.Status == StatusError {
			errs = append(errs, s)
		}
	}
	return errs
}
