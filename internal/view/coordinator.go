// Package view coordinates the two projections (waterfall and tree)
// over one trace's data. Both projections read the same span records
// and the same client-built forest; a server-provided pre-built tree is
// at most a cache to validate against, never a second source of truth.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vectorwave/traceview/internal/layout"
	"github.com/vectorwave/traceview/internal/trace"
	"github.com/vectorwave/traceview/internal/tree"
	"github.com/vectorwave/traceview/internal/viewstate"
)

// Mode selects which projection is active.
type Mode string

const (
	ModeWaterfall Mode = "waterfall"
	ModeTree      Mode = "tree"
)

// Phase is the load tri-state for the active trace.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
)

// DefaultIndentPx is the fixed indent unit applied per depth level when
// rendering waterfall rows.
const DefaultIndentPx = 16

// Source fetches one trace's span data. The coordinator awaits it once
// per view activation.
type Source interface {
	FetchTrace(ctx context.Context, traceID string) (*trace.Trace, error)
}

// Row is a waterfall row: flat geometry plus the nesting depth used for
// visual indentation.
type Row struct {
	layout.Row
	Depth    int `json:"depth"`
	IndentPx int `json:"indent_px"`
}

// Coordinator owns the view state for the trace currently displayed.
// It is safe for concurrent use: loads complete on a fetch goroutine
// while handlers read.
type Coordinator struct {
	src      Source
	logger   *slog.Logger
	indentPx int

	mu       sync.Mutex
	mode     Mode
	phase    Phase
	traceID  string
	loadErr  error
	trc      *trace.Trace
	problems []trace.Problem
	rows     []layout.Row
	forest   *tree.Forest // built lazily, shared by both projections
	depths   map[string]int
	expand   *viewstate.State
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithIndentUnit overrides the per-depth indent in pixels.
func WithIndentUnit(px int) Option {
	return func(c *Coordinator) {
		if px > 0 {
			c.indentPx = px
		}
	}
}

// New creates a Coordinator reading from src. The initial mode is
// waterfall and no trace is active.
func New(src Source, opts ...Option) *Coordinator {
	c := &Coordinator{
		src:      src,
		logger:   slog.Default(),
		indentPx: DefaultIndentPx,
		mode:     ModeWaterfall,
		phase:    PhaseIdle,
		expand:   viewstate.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Activate marks traceID as the active trace and clears all state
// derived from the previous one, including expand/collapse overrides.
// Any in-flight fetch for a different trace id becomes stale and its
// result will be discarded on completion.
func (c *Coordinator) Activate(traceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.traceID = traceID
	c.phase = PhaseLoading
	c.loadErr = nil
	c.trc = nil
	c.problems = nil
	c.rows = nil
	c.forest = nil
	c.depths = nil
	c.expand = viewstate.New()
}

// Load activates traceID and fetches it synchronously. The result is
// applied only if traceID is still the active trace when the fetch
// completes.
func (c *Coordinator) Load(ctx context.Context, traceID string) error {
	c.Activate(traceID)
	trc, err := c.src.FetchTrace(ctx, traceID)
	c.apply(traceID, trc, err)
	return err
}

// LoadAsync runs Load on its own goroutine and returns immediately.
func (c *Coordinator) LoadAsync(ctx context.Context, traceID string) {
	go func() {
		if err := c.Load(ctx, traceID); err != nil {
			c.logger.Warn("trace load failed", "trace_id", traceID, "error", err)
		}
	}()
}

// apply installs a fetch result. Late-arriving responses for a
// superseded trace id are discarded rather than applied to the now
// active trace's state.
func (c *Coordinator) apply(traceID string, trc *trace.Trace, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if traceID != c.traceID {
		c.logger.Debug("discarding stale trace response",
			"stale_trace_id", traceID, "active_trace_id", c.traceID)
		return
	}

	if err != nil {
		c.phase = PhaseFailed
		c.loadErr = err
		return
	}
	if trc == nil {
		trc = &trace.Trace{TraceID: traceID, Status: trace.StatusNotFound}
	}

	c.trc = trc
	c.problems = trace.Validate(trc.Spans)
	c.rows = layout.Waterfall(trc.Spans, trc.TotalDurationMs)
	c.phase = PhaseReady

	if len(c.problems) > 0 {
		c.logger.Warn("trace has data-shape problems",
			"trace_id", traceID, "problems", len(c.problems))
	}
}

// ensureForestLocked builds the forest on first use. Both projections
// share this single build over the flat span list.
func (c *Coordinator) ensureForestLocked() {
	if c.forest != nil || c.trc == nil {
		return
	}
	f := tree.Build(c.trc.Spans)
	c.forest = &f
	c.depths = tree.Depths(f)

	if len(f.Orphans) > 0 {
		c.logger.Warn("trace has unresolved parent references",
			"trace_id", c.traceID, "orphans", len(f.Orphans))
	}
}

// SetMode switches the active projection. Switching never refetches and
// never recomputes beyond what the new mode needs.
func (c *Coordinator) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m == ModeWaterfall || m == ModeTree {
		c.mode = m
	}
}

// Mode returns the active projection.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Phase returns the load tri-state for the active trace.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Err returns the load error, if the last load failed.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// TraceID returns the active trace id.
func (c *Coordinator) TraceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.traceID
}

// Trace returns the loaded trace aggregate, or nil before ready.
func (c *Coordinator) Trace() *trace.Trace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trc
}

// Problems returns the data-shape diagnostics found on load.
func (c *Coordinator) Problems() []trace.Problem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.problems
}

// Waterfall returns the geometry rows in original span order, each
// carrying its depth-based indent. Depths come from the shared forest
// build so both projections agree on nesting.
func (c *Coordinator) Waterfall() ([]Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseReady {
		return nil, false
	}
	c.ensureForestLocked()

	rows := make([]Row, len(c.rows))
	for i, r := range c.rows {
		depth := c.depths[r.Span.SpanID]
		rows[i] = Row{Row: r, Depth: depth, IndentPx: depth * c.indentPx}
	}
	return rows, true
}

// Tree returns the rooted forest and the orphan diagnostics.
func (c *Coordinator) Tree() (roots []*tree.Node, orphans []trace.Span, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseReady {
		return nil, nil, false
	}
	c.ensureForestLocked()
	return c.forest.Roots, c.forest.Orphans, true
}

// Visible returns the tree nodes currently visible under the
// expand/collapse state, in render order.
func (c *Coordinator) Visible() []*tree.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseReady {
		return nil
	}
	c.ensureForestLocked()
	return viewstate.FlattenVisible(c.forest.Roots, c.expand)
}

// Toggle flips one node's expand flag.
func (c *Coordinator) Toggle(spanID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expand.Toggle(spanID)
}

// IsExpanded reads one node's expand flag (default true).
func (c *Coordinator) IsExpanded(spanID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expand.IsExpanded(spanID)
}

// ErrorSpans returns the ERROR spans of the loaded trace, derived from
// the flat span list independent of tree nesting.
func (c *Coordinator) ErrorSpans() []trace.Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.trc == nil {
		return nil
	}
	return trace.ErrorSpans(c.trc.Spans)
}

// ValidateServerTree compares a server-built forest against the
// client-built one. The server tree is an optional cache: a divergence
// is a diagnostic for the operator, not a render input.
func (c *Coordinator) ValidateServerTree(serverRoots []*tree.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseReady {
		return fmt.Errorf("no trace loaded")
	}
	c.ensureForestLocked()

	ours := flattenIDs(c.forest.Roots)
	theirs := flattenIDs(serverRoots)

	if len(ours) != len(theirs) {
		return fmt.Errorf("server tree has %d nodes, client tree has %d", len(theirs), len(ours))
	}
	for i := range ours {
		if ours[i] != theirs[i] {
			return fmt.Errorf("tree divergence at position %d: server %q, client %q", i, theirs[i], ours[i])
		}
	}
	return nil
}

// flattenIDs returns span ids in depth-first render order, the order
// that determines what the user sees.
func flattenIDs(roots []*tree.Node) []string {
	var ids []string
	tree.Walk(roots, func(n *tree.Node) {
		ids = append(ids, n.SpanID)
	})
	return ids
}
