// Package trace defines the span and trace data model shared by every
// other component. Spans are immutable value types once received.
package trace

import (
	"fmt"
	"time"
)

// Status is the closed set of outcomes a span (or a whole trace) can have.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusError    Status = "ERROR"
	StatusCacheHit Status = "CACHE_HIT"
	StatusPartial  Status = "PARTIAL"
	StatusNotFound Status = "NOT_FOUND"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusError, StatusCacheHit, StatusPartial, StatusNotFound:
		return true
	}
	return false
}

// Span is one recorded function invocation with timing, status, and
// optional parent linkage.
type Span struct {
	SpanID       string    `json:"span_id"`
	TraceID      string    `json:"trace_id"`
	FunctionName string    `json:"function_name"`
	StartTime    time.Time `json:"start_time"`
	DurationMs   float64   `json:"duration_ms"` // 0 is valid (cache hit / instantaneous)
	Status       Status    `json:"status"`
	Depth        int       `json:"depth"`
	ParentSpanID string    `json:"parent_span_id,omitempty"` // empty = root
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// IsRoot reports whether the span has no declared parent.
func (s Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

// EndTime returns the span's end instant (start + duration).
func (s Span) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMs * float64(time.Millisecond)))
}

// Problem is one data-shape diagnostic found while validating a span set.
// Problems are reported, never thrown: a trace with problems still renders
// whatever resolves.
type Problem struct {
	SpanID string `json:"span_id"`
	Detail string `json:"detail"`
}

func (p Problem) String() string {
	return fmt.Sprintf("span %q: %s", p.SpanID, p.Detail)
}

// Validate checks the span-set invariants: unique span ids, non-negative
// durations, known status values, and error fields only on ERROR spans.
// Parent resolution is not checked here; the tree builder reports
// unresolved references through its orphan list.
func Validate(spans []Span) []Problem {
	var problems []Problem
	seen := make(map[string]bool, len(spans))

	for _, s := range spans {
		if s.SpanID == "" {
			problems = append(problems, Problem{Detail: "missing span_id"})
			continue
		}
		if seen[s.SpanID] {
			problems = append(problems, Problem{SpanID: s.SpanID, Detail: "duplicate span_id"})
		}
		seen[s.SpanID] = true

		if s.DurationMs < 0 {
			problems = append(problems, Problem{SpanID: s.SpanID, Detail: fmt.Sprintf("negative duration_ms %v", s.DurationMs)})
		}
		if !s.Status.Valid() {
			problems = append(problems, Problem{SpanID: s.SpanID, Detail: fmt.Sprintf("unknown status %q", s.Status)})
		}
		if s.Status != StatusError && (s.ErrorCode != "" || s.ErrorMessage != "") {
			problems = append(problems, Problem{SpanID: s.SpanID, Detail: "error fields present on non-ERROR span"})
		}
		if s.Depth < 0 {
			problems = append(problems, Problem{SpanID: s.SpanID, Detail: fmt.Sprintf("negative depth %d", s.Depth)})
		}
	}

	return problems
}
