package otlpingest

import (
	"fmt"
	"time"

	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/vectorwave/traceview/internal/trace"
)

// CacheHitAttribute marks a span as a cache hit when set to true by the
// instrumented application.
const CacheHitAttribute = "cache.hit"

// ConvertResourceSpans flattens an OTLP export payload
// (ResourceSpans -> ScopeSpans -> Span) into viewer spans.
func ConvertResourceSpans(resourceSpans []*tracepb.ResourceSpans) []trace.Span {
	var spans []trace.Span
	for _, rs := range resourceSpans {
		serviceName := extractServiceName(rs.Resource)
		for _, ss := range rs.ScopeSpans {
			for _, span := range ss.Spans {
				spans = append(spans, ConvertSpan(span, serviceName))
			}
		}
	}
	return spans
}

// ConvertSpan maps one OTLP span onto the viewer's span model.
// Status mapping: STATUS_CODE_ERROR becomes ERROR with the status
// message carried along; everything else is SUCCESS unless the span
// carries the cache-hit attribute. Depth is left at zero; the tree
// builder recomputes it from parent linkage anyway.
func ConvertSpan(span *tracepb.Span, serviceName string) trace.Span {
	start := time.Unix(0, int64(span.StartTimeUnixNano)).UTC()

	// Guard against bad data where end < start.
	durationMs := 0.0
	if span.EndTimeUnixNano > span.StartTimeUnixNano {
		durationMs = float64(span.EndTimeUnixNano-span.StartTimeUnixNano) / 1e6
	}

	functionName := span.Name
	if serviceName != "" && serviceName != "unknown" {
		functionName = serviceName + "." + span.Name
	}

	s := trace.Span{
		SpanID:       idToString(span.SpanId),
		TraceID:      idToString(span.TraceId),
		FunctionName: functionName,
		StartTime:    start,
		DurationMs:   durationMs,
		Status:       trace.StatusSuccess,
		ParentSpanID: idToString(span.ParentSpanId),
	}

	if span.Status != nil && span.Status.Code == tracepb.Status_STATUS_CODE_ERROR {
		s.Status = trace.StatusError
		s.ErrorMessage = span.Status.Message
		s.ErrorCode = attributeString(span, "error.code")
	} else if attributeBool(span, CacheHitAttribute) {
		s.Status = trace.StatusCacheHit
	}

	return s
}

// extractServiceName extracts the service.name resource attribute.
// Returns "unknown" when absent.
func extractServiceName(resource *resourcepb.Resource) string {
	if resource == nil {
		return "unknown"
	}
	for _, attr := range resource.Attributes {
		if attr.Key == "service.name" {
			if sv := attr.Value.GetStringValue(); sv != "" {
				return sv
			}
		}
	}
	return "unknown"
}

func attributeString(span *tracepb.Span, key string) string {
	for _, attr := range span.Attributes {
		if attr.Key == key {
			return attr.Value.GetStringValue()
		}
	}
	return ""
}

func attributeBool(span *tracepb.Span, key string) bool {
	for _, attr := range span.Attributes {
		if attr.Key == key {
			return attr.Value.GetBoolValue()
		}
	}
	return false
}

// idToString converts a trace or span id byte array to a hex string.
// All-zero parent ids (OTLP's "no parent") map to the empty string.
func idToString(id []byte) string {
	zero := true
	for _, b := range id {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return ""
	}
	return fmt.Sprintf("%x", id)
}
