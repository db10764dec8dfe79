package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/vectorwave/traceview/internal/config"
	"github.com/vectorwave/traceview/internal/otlpingest"
	"github.com/vectorwave/traceview/internal/source"
	"github.com/vectorwave/traceview/internal/trace"
	"github.com/vectorwave/traceview/internal/view"
	"github.com/vectorwave/traceview/internal/viz"
)

// ShowCommand returns the 'show' subcommand: render one trace to the
// terminal, fetched from a trace API or read from a JSON file.
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Render one trace as a waterfall or tree",
		ArgsUsage: "<trace-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "Base URL of the trace API (default from config)",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Read the trace from a JSON file instead of an API",
			},
			&cli.StringFlag{
				Name:  "view",
				Value: "waterfall",
				Usage: "View mode: waterfall or tree",
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Terminal width for rendering (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "text",
				Usage:   "Output format: text, json, or yaml",
			},
		},
		Action: runShow,
	}
}

// fileSource satisfies view.Source from a trace file (OTLP JSON/JSONL
// or native trace JSON). With an empty trace id the file's first trace
// is shown; otherwise only matching spans count, and no match means
// NOT_FOUND semantics.
type fileSource struct {
	path string
}

func (f fileSource) FetchTrace(_ context.Context, traceID string) (*trace.Trace, error) {
	spans, err := otlpingest.ReadTraceFile(f.path)
	if err != nil {
		return nil, err
	}
	if traceID == "" && len(spans) > 0 {
		traceID = spans[0].TraceID
	}

	var matched []trace.Span
	for _, s := range spans {
		if s.TraceID == traceID {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	trc := trace.New(traceID, matched)
	return &trc, nil
}

func runShow(ctx context.Context, cmd *cli.Command) error {
	traceID := cmd.Args().First()
	if traceID == "" && !cmd.IsSet("file") {
		return fmt.Errorf("trace id argument is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	width := cfg.UI.TerminalWidth
	if cmd.IsSet("width") {
		width = int(cmd.Int("width"))
	}

	var src view.Source
	if path := cmd.String("file"); path != "" {
		src = fileSource{path: path}
	} else {
		baseURL := cfg.Source.URL
		if cmd.IsSet("source") {
			baseURL = cmd.String("source")
		}
		if baseURL == "" {
			return fmt.Errorf("no trace source configured: pass --source or --file")
		}
		src = source.NewClient(baseURL, cfg.Source.GetTimeoutDuration(), nil)
	}

	coord := view.New(src)
	if cmd.String("view") == "tree" {
		coord.SetMode(view.ModeTree)
	}

	if err := coord.Load(ctx, traceID); err != nil {
		return fmt.Errorf("failed to load trace %s: %w", traceID, err)
	}

	trc := coord.Trace()
	if trc == nil || (trc.Status == trace.StatusNotFound && len(trc.Spans) == 0) {
		return fmt.Errorf("trace %s not found", traceID)
	}

	switch cmd.String("output") {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trc)
	case "yaml":
		data, err := yaml.Marshal(trc)
		if err != nil {
			return fmt.Errorf("failed to marshal trace: %w", err)
		}
		os.Stdout.Write(data)
		return nil
	case "text":
		// rendered below
	default:
		return fmt.Errorf("unknown output format %q", cmd.String("output"))
	}

	if coord.Mode() == view.ModeTree {
		fmt.Print(viz.Tree(*trc, width))
	} else {
		fmt.Print(viz.Waterfall(*trc, width))
	}

	for _, p := range coord.Problems() {
		fmt.Fprintln(os.Stderr, "warning:", p.String())
	}
	return nil
}
