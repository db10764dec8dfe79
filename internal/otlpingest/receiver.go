// Package otlpingest receives spans over OTLP gRPC and converts them to
// the viewer's span model before handing them to a sink.
package otlpingest

import (
	"context"
	"fmt"
	"net"
	"sync"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"

	"github.com/vectorwave/traceview/internal/trace"
)

// SpanSink stores converted spans. Implementations must be thread-safe:
// Export may be called concurrently.
type SpanSink interface {
	Ingest(ctx context.Context, spans []trace.Span) error
}

// Config holds configuration for the OTLP receiver.
type Config struct {
	Host string // e.g. "127.0.0.1"
	Port int    // 0 for ephemeral port assignment
}

// Server is the OTLP gRPC server that receives trace data.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	sink       SpanSink
	stopOnce   sync.Once
	stopChan   chan struct{}
	stopDone   chan struct{}
}

// NewServer creates an OTLP gRPC server bound to the configured host
// and port (port 0 gets an ephemeral assignment). Received spans are
// converted and passed to the sink.
func NewServer(cfg Config, sink SpanSink) (*Server, error) {
	if sink == nil {
		return nil, fmt.Errorf("span sink cannot be nil")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	gs := grpc.NewServer()
	server := &Server{
		listener:   listener,
		grpcServer: gs,
		sink:       sink,
		stopChan:   make(chan struct{}),
		stopDone:   make(chan struct{}, 1),
	}

	collectortrace.RegisterTraceServiceServer(gs, &traceServiceImpl{sink: sink})
	return server, nil
}

// Start serves OTLP requests, blocking until Stop is called or the
// context is cancelled. Typically run in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopChan:
		}
	}()

	err := s.grpcServer.Serve(s.listener)
	s.stopDone <- struct{}{}
	return err
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.grpcServer.GracefulStop()
		close(s.stopChan)
	})
}

// StopWait stops the server and waits for shutdown to complete.
func (s *Server) StopWait() {
	s.Stop()
	<-s.stopDone
}

// Endpoint returns the actual listening address, useful with ephemeral
// ports. Format "host:port".
func (s *Server) Endpoint() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// traceServiceImpl implements the OTLP TraceService gRPC interface.
type traceServiceImpl struct {
	collectortrace.UnimplementedTraceServiceServer
	sink SpanSink
}

// Export handles incoming trace export requests from OTLP clients.
func (t *traceServiceImpl) Export(
	ctx context.Context,
	req *collectortrace.ExportTraceServiceRequest,
) (*collectortrace.ExportTraceServiceResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	spans := ConvertResourceSpans(req.ResourceSpans)
	if len(spans) > 0 {
		if err := t.sink.Ingest(ctx, spans); err != nil {
			return nil, fmt.Errorf("failed to ingest spans: %w", err)
		}
	}

	return &collectortrace.ExportTraceServiceResponse{}, nil
}
