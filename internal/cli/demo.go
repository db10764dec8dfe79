package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DemoCommand returns the 'demo' subcommand: generate a synthetic
// multi-span trace and send it to a running OTLP receiver. Useful for
// exercising the UI without an instrumented application.
func DemoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Send a synthetic trace to an OTLP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "endpoint",
				Value: "127.0.0.1:4317",
				Usage: "OTLP gRPC endpoint (host:port)",
			},
			&cli.StringFlag{
				Name:  "service",
				Value: "demo-service",
				Usage: "service.name resource attribute",
			},
			&cli.BoolFlag{
				Name:  "with-error",
				Usage: "Include a failing span in the trace",
			},
			&cli.BoolFlag{
				Name:  "with-orphan",
				Usage: "Include a span whose parent id is unknown",
			},
		},
		Action: runDemo,
	}
}

// demoSpan describes one synthetic span before protobuf encoding.
type demoSpan struct {
	name     string
	parent   int // index into the span list, -1 for root
	startMs  int
	durMs    int
	cacheHit bool
	fail     bool
}

func runDemo(ctx context.Context, cmd *cli.Command) error {
	endpoint := cmd.String("endpoint")

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create grpc client: %w", err)
	}
	defer conn.Close()

	client := collectortrace.NewTraceServiceClient(conn)

	plan := []demoSpan{
		{name: "handle_request", parent: -1, startMs: 0, durMs: 180},
		{name: "authenticate", parent: 0, startMs: 2, durMs: 15},
		{name: "load_profile", parent: 0, startMs: 20, durMs: 90},
		{name: "db.query", parent: 2, startMs: 25, durMs: 60},
		{name: "cache.get", parent: 2, startMs: 88, durMs: 1, cacheHit: true},
		{name: "render_response", parent: 0, startMs: 115, durMs: 60},
	}
	if cmd.Bool("with-error") {
		plan = append(plan, demoSpan{name: "notify_webhook", parent: 0, startMs: 150, durMs: 25, fail: true})
	}

	// A UUID is exactly the 16 bytes an OTLP trace id wants.
	traceID := uuid.New()
	spanIDs := make([][]byte, len(plan)+1)
	for i := range spanIDs {
		id := uuid.New()
		spanIDs[i] = id[:8]
	}

	now := time.Now()
	spans := make([]*tracepb.Span, 0, len(plan)+1)
	for i, d := range plan {
		s := &tracepb.Span{
			TraceId:           traceID[:],
			SpanId:            spanIDs[i],
			Name:              d.name,
			Kind:              tracepb.Span_SPAN_KIND_INTERNAL,
			StartTimeUnixNano: uint64(now.Add(time.Duration(d.startMs) * time.Millisecond).UnixNano()),
			EndTimeUnixNano:   uint64(now.Add(time.Duration(d.startMs+d.durMs) * time.Millisecond).UnixNano()),
			Status:            &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK},
		}
		if d.parent >= 0 {
			s.ParentSpanId = spanIDs[d.parent]
		}
		if d.cacheHit {
			s.Attributes = append(s.Attributes, &commonpb.KeyValue{
				Key:   "cache.hit",
				Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: true}},
			})
		}
		if d.fail {
			s.Status = &tracepb.Status{
				Code:    tracepb.Status_STATUS_CODE_ERROR,
				Message: "upstream returned 503",
			}
			s.Attributes = append(s.Attributes, &commonpb.KeyValue{
				Key:   "error.code",
				Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "UPSTREAM_UNAVAILABLE"}},
			})
		}
		spans = append(spans, s)
	}

	if cmd.Bool("with-orphan") {
		lost := uuid.New()
		spans = append(spans, &tracepb.Span{
			TraceId:           traceID[:],
			SpanId:            spanIDs[len(plan)],
			ParentSpanId:      lost[:8],
			Name:              "background_flush",
			Kind:              tracepb.Span_SPAN_KIND_INTERNAL,
			StartTimeUnixNano: uint64(now.Add(5 * time.Millisecond).UnixNano()),
			EndTimeUnixNano:   uint64(now.Add(45 * time.Millisecond).UnixNano()),
			Status:            &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK},
		})
	}

	fmt.Printf("🚀 Sending trace with %d spans to %s...\n", len(spans), endpoint)
	_, err = client.Export(ctx, &collectortrace.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{
					Attributes: []*commonpb.KeyValue{
						{
							Key:   "service.name",
							Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: cmd.String("service")}},
						},
					},
				},
				ScopeSpans: []*tracepb.ScopeSpans{
					{Spans: spans},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to export spans: %w", err)
	}

	fmt.Printf("✅ Trace %x exported\n", traceID[:])
	return nil
}
