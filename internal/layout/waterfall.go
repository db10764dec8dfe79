// Package layout computes the proportional timeline ("waterfall")
// geometry for a span set. Geometry is expressed in percent of the
// trace's total duration, not pixels, so it is resolution independent
// and only recomputed when the data changes; the rendering layer
// converts percentages to pixels at paint time.
package layout

import (
	"time"

	"github.com/vectorwave/traceview/internal/trace"
)

// MinWidthPercent is the floor applied to bar widths so zero- and
// near-zero-duration spans remain visible and clickable.
const MinWidthPercent = 0.5

// Row is one span annotated with its horizontal geometry.
type Row struct {
	Span          trace.Span `json:"span"`
	OffsetPercent float64    `json:"offset_percent"`
	WidthPercent  float64    `json:"width_percent"`
}

// Waterfall computes offset and width percentages for each span,
// preserving input order. This projection does not reorder or nest; it
// is a flat list annotated with geometry.
//
// Offsets are measured from the minimum start time across the full
// input set, computed once per call. A span that mathematically starts
// before that minimum (clock skew in source data) is clamped to 0.
// With totalDurationMs <= 0 every span gets offset 0 and the floor width.
func Waterfall(spans []trace.Span, totalDurationMs float64) []Row {
	if len(spans) == 0 {
		return nil
	}

	minStart := spans[0].StartTime
	for _, s := range spans[1:] {
		if s.StartTime.Before(minStart) {
			minStart = s.StartTime
		}
	}

	rows := make([]Row, len(spans))
	for i, s := range spans {
		rows[i] = Row{
			Span:          s,
			OffsetPercent: offsetPercent(s, minStart, totalDurationMs),
			WidthPercent:  widthPercent(s, totalDurationMs),
		}
	}
	return rows
}

func offsetPercent(s trace.Span, minStart time.Time, totalMs float64) float64 {
	if totalMs <= 0 {
		return 0
	}
	startMs := float64(s.StartTime.Sub(minStart)) / float64(time.Millisecond)
	pct := startMs / totalMs * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func widthPercent(s trace.Span, totalMs float64) float64 {
	if totalMs <= 0 {
		return MinWidthPercent
	}
	pct := s.DurationMs / totalMs * 100
	if pct < MinWidthPercent {
		return MinWidthPercent
	}
	if pct > 100 {
		return 100
	}
	return pct
}
