// Package webui serves the embedded web UI, the JSON trace API, and
// WebSocket live updates over the local trace store.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vectorwave/traceview/internal/layout"
	"github.com/vectorwave/traceview/internal/store"
	"github.com/vectorwave/traceview/internal/trace"
	"github.com/vectorwave/traceview/internal/tree"
)

//go:embed static/index.html
var staticFiles embed.FS

// Server serves the web UI and trace API for one TraceStore.
type Server struct {
	store    *store.TraceStore
	logger   *slog.Logger
	indentPx int

	registry     *prometheus.Registry
	tracesServed prometheus.Counter
}

// New creates a web UI server over the given store. indentPx is the
// per-depth indent applied to waterfall rows.
func New(ts *store.TraceStore, indentPx int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if indentPx <= 0 {
		indentPx = 16
	}

	s := &Server{
		store:    ts,
		logger:   logger,
		indentPx: indentPx,
		registry: prometheus.NewRegistry(),
		tracesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traceview_traces_served_total",
			Help: "Number of trace detail responses served.",
		}),
	}

	s.registry.MustRegister(s.tracesServed)
	s.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "traceview_spans_ingested_total",
		Help: "Number of spans received over OTLP.",
	}, func() float64 {
		return float64(ts.Activity().SpansReceived())
	}))
	s.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "traceview_uptime_seconds",
		Help: "Seconds since the store was created or cleared.",
	}, func() float64 {
		return ts.Activity().UptimeSeconds()
	}))

	return s
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/ui/", http.StatusMovedPermanently)
	})
	r.Get("/ui/", s.handleUI)
	r.Get("/api/traces", s.handleRecentTraces)
	r.Get("/api/traces/{traceID}", s.handleTrace)
	r.Get("/api/traces/{traceID}/waterfall", s.handleWaterfall)
	r.Get("/api/traces/{traceID}/tree", s.handleTree)
	r.Get("/api/traces/{traceID}/errors", s.handleErrors)
	r.Get("/api/stats", s.handleStats)
	r.Get("/ws", s.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleUI serves the embedded index.html.
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "UI not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// handleRecentTraces lists recent unique traces, newest first.
func (s *Server) handleRecentTraces(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	s.writeJSON(w, http.StatusOK, s.store.RecentTraces(limit))
}

// handleTrace returns the full trace record (the waterfall-view data
// source: flat span list plus derived aggregates).
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceID")
	trc, ok := s.store.GetTrace(traceID)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, trc)
		return
	}
	s.tracesServed.Inc()
	s.writeJSON(w, http.StatusOK, trc)
}

// waterfallResponse is the render-ready geometry payload.
type waterfallResponse struct {
	TraceID         string          `json:"trace_id"`
	Status          trace.Status    `json:"status"`
	TotalDurationMs float64         `json:"total_duration_ms"`
	Rows            []waterfallRow  `json:"rows"`
	Problems        []trace.Problem `json:"problems,omitempty"`
}

type waterfallRow struct {
	layout.Row
	Depth    int `json:"depth"`
	IndentPx int `json:"indent_px"`
}

// handleWaterfall returns the flat geometry list in original span
// order, each row indented by depth from the shared tree build.
func (s *Server) handleWaterfall(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceID")
	trc, ok := s.store.GetTrace(traceID)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, trc)
		return
	}

	depths := tree.Depths(tree.Build(trc.Spans))
	rows := make([]waterfallRow, 0, len(trc.Spans))
	for _, row := range layout.Waterfall(trc.Spans, trc.TotalDurationMs) {
		depth := depths[row.Span.SpanID]
		rows = append(rows, waterfallRow{Row: row, Depth: depth, IndentPx: depth * s.indentPx})
	}

	s.tracesServed.Inc()
	s.writeJSON(w, http.StatusOK, waterfallResponse{
		TraceID:         trc.TraceID,
		Status:          trc.Status,
		TotalDurationMs: trc.TotalDurationMs,
		Rows:            rows,
		Problems:        trace.Validate(trc.Spans),
	})
}

// treeResponse carries the rooted forest plus orphan diagnostics.
// Orphans are reported, never silently attached or dropped.
type treeResponse struct {
	TraceID         string       `json:"trace_id"`
	Status          trace.Status `json:"status"`
	TotalDurationMs float64      `json:"total_duration_ms"`
	Tree            []*tree.Node `json:"tree"`
	Orphans         []trace.Span `json:"orphans,omitempty"`
}

// handleTree returns the spans organized as a hierarchical forest.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceID")
	trc, ok := s.store.GetTrace(traceID)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, treeResponse{
			TraceID: traceID,
			Status:  trace.StatusNotFound,
			Tree:    []*tree.Node{},
		})
		return
	}

	forest := tree.Build(trc.Spans)
	if len(forest.Orphans) > 0 {
		s.logger.Warn("trace has unresolved parent references",
			"trace_id", traceID, "orphans", len(forest.Orphans))
	}

	s.tracesServed.Inc()
	s.writeJSON(w, http.StatusOK, treeResponse{
		TraceID:         trc.TraceID,
		Status:          trc.Status,
		TotalDurationMs: trc.TotalDurationMs,
		Tree:            forest.Roots,
		Orphans:         forest.Orphans,
	})
}

// handleErrors returns the ERROR spans of one trace, flat, independent
// of tree nesting.
func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceID")
	trc, ok := s.store.GetTrace(traceID)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, trc)
		return
	}

	errs := trace.ErrorSpans(trc.Spans)
	if errs == nil {
		errs = []trace.Span{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"trace_id": traceID,
		"errors":   errs,
	})
}

// handleStats returns store fill levels and ingest counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ac := s.store.Activity()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"storage":        s.store.Stats(),
		"spans_received": ac.SpansReceived(),
		"generation":     ac.Generation(),
		"uptime_seconds": ac.UptimeSeconds(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write JSON response", "error", err)
	}
}
