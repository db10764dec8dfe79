// Package viz renders a trace's projections as terminal text. It layers
// the shared tree builder and waterfall geometry under an ASCII bar
// renderer, so the terminal and the web UI always agree on structure.
package viz

import (
	"fmt"
	"strings"

	"github.com/vectorwave/traceview/internal/layout"
	"github.com/vectorwave/traceview/internal/trace"
	"github.com/vectorwave/traceview/internal/tree"
)

const (
	maxSpansRendered = 200
	defaultBarWidth  = 20
)

// Waterfall renders an ASCII waterfall for one trace. Width controls
// the total line width; 0 uses a sensible default (80).
func Waterfall(trc trace.Trace, width int) string {
	if len(trc.Spans) == 0 {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	forest := tree.Build(trc.Spans)
	rows := layout.Waterfall(trc.Spans, trc.TotalDurationMs)
	rowByID := make(map[string]layout.Row, len(rows))
	for _, r := range rows {
		rowByID[r.Span.SpanID] = r
	}

	entries := flattenEntries(forest.Roots)
	overflow := 0
	if len(entries) > maxSpansRendered {
		overflow = len(entries) - maxSpansRendered
		entries = entries[:maxSpansRendered]
	}

	var b strings.Builder
	writeHeader(&b, trc)

	// Pass 1: max duration + error suffix length, for right-edge alignment.
	maxDurErrLen := 0
	for _, e := range entries {
		l := len(formatDuration(e.node.DurationMs)) + len(errSuffix(e.node.Span))
		if l > maxDurErrLen {
			maxDurErrLen = l
		}
	}

	// Pass 2: render each span.
	for _, e := range entries {
		renderSpanRow(&b, e, rowByID[e.node.SpanID], width, maxDurErrLen)
	}

	if overflow > 0 {
		fmt.Fprintf(&b, "  ... +%d more spans\n", overflow)
	}

	writeOrphans(&b, forest.Orphans)
	writeErrors(&b, trc.Spans)
	return b.String()
}

// Tree renders the indented hierarchy without timing bars.
func Tree(trc trace.Trace, width int) string {
	if len(trc.Spans) == 0 {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	forest := tree.Build(trc.Spans)
	var b strings.Builder
	writeHeader(&b, trc)

	for _, e := range flattenEntries(forest.Roots) {
		prefix, _ := treePrefix(e)
		line := fmt.Sprintf("%s%s  %s%s", prefix, e.node.FunctionName,
			formatDuration(e.node.DurationMs), errSuffix(e.node.Span))
		if len(line) > width {
			line = line[:width-1] + "…"
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	writeOrphans(&b, forest.Orphans)
	writeErrors(&b, trc.Spans)
	return b.String()
}

func writeHeader(b *strings.Builder, trc trace.Trace) {
	shortID := trc.TraceID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	fmt.Fprintf(b, "Trace %s (%d spans, %s) %s\n",
		shortID, trc.SpanCount, formatDuration(trc.TotalDurationMs), trc.Status)
}

func writeOrphans(b *strings.Builder, orphans []trace.Span) {
	if len(orphans) == 0 {
		return
	}
	fmt.Fprintf(b, "  ! %d span(s) with unresolved parents:\n", len(orphans))
	for _, o := range orphans {
		fmt.Fprintf(b, "    %s (parent %s not found)\n", o.FunctionName, o.ParentSpanID)
	}
}

func writeErrors(b *strings.Builder, spans []trace.Span) {
	errs := trace.ErrorSpans(spans)
	if len(errs) == 0 {
		return
	}
	b.WriteString("  Errors:\n")
	for _, e := range errs {
		code := e.ErrorCode
		if code == "" {
			code = "ERROR"
		}
		fmt.Fprintf(b, "    %s [%s] %s\n", e.FunctionName, code, e.ErrorMessage)
	}
}

type renderEntry struct {
	node   *tree.Node
	isLast []bool // at each depth level, whether this node is the last child
}

// flattenEntries walks the forest depth-first, tracking last-child flags
// for the tree connector prefix.
func flattenEntries(roots []*tree.Node) []renderEntry {
	var result []renderEntry
	var walk func(n *tree.Node, isLast []bool)
	walk = func(n *tree.Node, isLast []bool) {
		result = append(result, renderEntry{node: n, isLast: isLast})
		for ci, child := range n.Children {
			childIsLast := append(append([]bool{}, isLast...), ci == len(n.Children)-1)
			walk(child, childIsLast)
		}
	}
	for ri, root := range roots {
		walk(root, []bool{ri == len(roots)-1})
	}
	return result
}

func errSuffix(s trace.Span) string {
	if s.Status == trace.StatusError {
		return " !! ERR"
	}
	return ""
}

// treePrefix builds the connector prefix, tracking display width
// separately from byte length: the drawing characters (│, ├─, └─) are
// multi-byte UTF-8 but each occupies one display column.
func treePrefix(e renderEntry) (string, int) {
	var prefix strings.Builder
	cols := 0

	prefix.WriteString(" ")
	cols++
	depth := e.node.Depth
	for d := 0; d < depth; d++ {
		if d < len(e.isLast)-1 {
			if e.isLast[d] {
				prefix.WriteString("  ")
			} else {
				prefix.WriteString("│ ")
			}
			cols += 2
		}
	}
	if depth > 0 {
		if len(e.isLast) > 0 && e.isLast[len(e.isLast)-1] {
			prefix.WriteString("└─ ")
		} else {
			prefix.WriteString("├─ ")
		}
		cols += 3
	}
	return prefix.String(), cols
}

func renderSpanRow(b *strings.Builder, e renderEntry, row layout.Row, width, maxDurErrLen int) {
	barWidth := defaultBarWidth
	prefixStr, prefixCols := treePrefix(e)

	label := e.node.FunctionName
	durErr := formatDuration(e.node.DurationMs) + errSuffix(e.node.Span)

	// Layout: prefix + label + " [" + bar + "] " + durErr
	fixedCols := prefixCols + 2 + barWidth + 2 + maxDurErrLen
	labelBudget := max(width-fixedCols, 8)
	if len(label) > labelBudget {
		label = label[:labelBudget-1] + "…"
	}
	paddedLabel := label + strings.Repeat(" ", max(0, labelBudget-len(label)))

	bar := buildBar(row.OffsetPercent, row.WidthPercent, barWidth)
	paddedDurErr := durErr + strings.Repeat(" ", max(0, maxDurErrLen-len(durErr)))

	fmt.Fprintf(b, "%s%s [%s] %s\n", prefixStr, paddedLabel, bar, paddedDurErr)
}

// buildBar maps percentage geometry onto barWidth character cells.
// The width floor from the layout engine guarantees at least a sliver.
func buildBar(offsetPct, widthPct float64, barWidth int) string {
	startPos := int(offsetPct / 100 * float64(barWidth))
	endPos := int((offsetPct + widthPct) / 100 * float64(barWidth))

	if startPos >= barWidth {
		startPos = barWidth - 1
	}
	endPos = max(endPos, startPos+1)
	endPos = min(endPos, barWidth)

	bar := make([]byte, barWidth)
	for i := range bar {
		if i >= startPos && i < endPos {
			bar[i] = '#'
		} else {
			bar[i] = '.'
		}
	}
	return string(bar)
}

// formatDuration renders a millisecond duration compactly.
func formatDuration(ms float64) string {
	if ms == 0 {
		return "0ms"
	}
	if ms < 1 {
		return fmt.Sprintf("%.0fµs", ms*1000)
	}
	if ms < 1000 {
		return fmt.Sprintf("%.0fms", ms)
	}
	return fmt.Sprintf("%.1fs", ms/1000)
}
