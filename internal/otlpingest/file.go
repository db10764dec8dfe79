package otlpingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/vectorwave/traceview/internal/trace"
)

// JSONL lines from the collector's file exporter can be large for
// batched spans with many attributes.
const maxLineBytes = 10 * 1024 * 1024

// ReadTraceFile reads spans from a JSON or JSONL file. The content is
// parsed as OTLP TracesData first (the collector file exporter's
// format); non-OTLP content falls back to the viewer's native trace
// JSON. JSONL files are handled line by line.
func ReadTraceFile(path string) ([]trace.Span, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s contains no data", path)
	}

	// Whole-document JSON first; pretty-printed exports span lines.
	if spans, err := parseDocument(data); err == nil {
		return spans, nil
	}

	var spans []trace.Span
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		lineNo++
		if len(line) == 0 {
			continue
		}
		parsed, err := parseDocument(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		spans = append(spans, parsed...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}

	return spans, nil
}

func parseDocument(doc []byte) ([]trace.Span, error) {
	var data tracepb.TracesData
	if err := protojson.Unmarshal(doc, &data); err == nil {
		return ConvertResourceSpans(data.ResourceSpans), nil
	}

	// Native format: either a trace aggregate or a bare span array.
	var trc trace.Trace
	if err := json.Unmarshal(doc, &trc); err == nil && len(trc.Spans) > 0 {
		return trc.Spans, nil
	}
	var spans []trace.Span
	if err := json.Unmarshal(doc, &spans); err == nil && len(spans) > 0 {
		return spans, nil
	}

	return nil, fmt.Errorf("not OTLP TracesData or native span JSON")
}
