package otlpingest

import (
	"context"
	"sync"
	"testing"
	"time"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vectorwave/traceview/internal/trace"
)

// captureSink records everything ingested.
type captureSink struct {
	mu    sync.Mutex
	spans []trace.Span
}

func (c *captureSink) Ingest(_ context.Context, spans []trace.Span) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, spans...)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

func TestNewServer_NilSink(t *testing.T) {
	if _, err := NewServer(Config{Host: "127.0.0.1"}, nil); err == nil {
		t.Fatal("expected error for nil sink")
	}
}

func TestServer_EphemeralPort(t *testing.T) {
	server, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, &captureSink{})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	defer server.Stop()

	if server.Endpoint() == "" || server.Endpoint() == "127.0.0.1:0" {
		t.Errorf("expected a concrete endpoint, got %q", server.Endpoint())
	}
}

func TestServer_ExportRoundTrip(t *testing.T) {
	sink := &captureSink{}
	server, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, sink)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Start(ctx)
	defer server.StopWait()

	conn, err := grpc.NewClient(server.Endpoint(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer conn.Close()

	client := collectortrace.NewTraceServiceClient(conn)
	now := time.Now()

	_, err = client.Export(ctx, &collectortrace.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{
					Attributes: []*commonpb.KeyValue{stringAttr("service.name", "test-svc")},
				},
				ScopeSpans: []*tracepb.ScopeSpans{
					{
						Spans: []*tracepb.Span{
							{
								TraceId:           []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
								SpanId:            []byte{1, 1, 1, 1, 1, 1, 1, 1},
								Name:              "op",
								StartTimeUnixNano: uint64(now.UnixNano()),
								EndTimeUnixNano:   uint64(now.Add(time.Millisecond).UnixNano()),
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if sink.count() != 1 {
		t.Errorf("sink received %d spans, want 1", sink.count())
	}
}

func TestTraceService_NilRequest(t *testing.T) {
	svc := &traceServiceImpl{sink: &captureSink{}}
	if _, err := svc.Export(context.Background(), nil); err == nil {
		t.Error("expected error for nil request")
	}
}

func TestTraceService_EmptyRequest(t *testing.T) {
	sink := &captureSink{}
	svc := &traceServiceImpl{sink: sink}
	if _, err := svc.Export(context.Background(), &collectortrace.ExportTraceServiceRequest{}); err != nil {
		t.Errorf("empty request should succeed: %v", err)
	}
	if sink.count() != 0 {
		t.Errorf("sink received %d spans, want 0", sink.count())
	}
}
