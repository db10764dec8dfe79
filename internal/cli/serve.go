// Package cli defines the traceview command set.
package cli

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/vectorwave/traceview/internal/config"
	"github.com/vectorwave/traceview/internal/otlpingest"
	"github.com/vectorwave/traceview/internal/store"
	"github.com/vectorwave/traceview/internal/webui"
)

// ServeCommand returns the CLI command definition for the 'serve'
// subcommand: the OTLP ingest receiver plus the web UI.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the OTLP receiver and the trace web UI",
		Description: `Starts an OTLP gRPC receiver and an HTTP server exposing the trace
API, the embedded web UI, WebSocket live updates, and /metrics.
Instrumented programs send spans with OTEL_EXPORTER_OTLP_ENDPOINT.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "http-host",
				Usage: "Web UI bind address",
			},
			&cli.IntFlag{
				Name:  "http-port",
				Usage: "Web UI port",
			},
			&cli.StringFlag{
				Name:  "otlp-host",
				Usage: "OTLP receiver bind address",
			},
			&cli.IntFlag{
				Name:  "otlp-port",
				Usage: "OTLP receiver port (0 for ephemeral)",
			},
			&cli.IntFlag{
				Name:  "span-buffer-size",
				Usage: "Number of spans to buffer in memory",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
			},
		},
		Action: runServe,
	}
}

// runServe wires together store, OTLP receiver, and web UI.
func runServe(cliCtx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// CLI flags override the config file and environment.
	if cmd.IsSet("http-host") {
		cfg.App.Host = cmd.String("http-host")
	}
	if cmd.IsSet("http-port") {
		cfg.App.Port = int(cmd.Int("http-port"))
	}
	if cmd.IsSet("otlp-host") {
		cfg.Ingest.Host = cmd.String("otlp-host")
	}
	if cmd.IsSet("otlp-port") {
		cfg.Ingest.Port = int(cmd.Int("otlp-port"))
	}
	if cmd.IsSet("span-buffer-size") {
		cfg.Buffer.SpanCapacity = int(cmd.Int("span-buffer-size"))
	}
	verbose := cmd.Bool("verbose")

	logLevel := slog.LevelInfo
	if verbose || cfg.App.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if verbose {
		log.Println("🔧 Configuration:")
		log.Printf("  Span buffer: %d spans\n", cfg.Buffer.SpanCapacity)
		log.Printf("  OTLP bind: %s:%d\n", cfg.Ingest.Host, cfg.Ingest.Port)
		log.Printf("  HTTP bind: %s:%d\n", cfg.App.Host, cfg.App.Port)
	}

	traceStore := store.NewTraceStore(cfg.Buffer.SpanCapacity)

	ctx, cancel := context.WithCancel(cliCtx)
	defer cancel()

	if cfg.Ingest.Enabled {
		otlpServer, err := otlpingest.NewServer(
			otlpingest.Config{
				Host: cfg.Ingest.Host,
				Port: cfg.Ingest.Port,
			},
			traceStore,
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP server: %w", err)
		}

		go func() {
			if err := otlpServer.Start(ctx); err != nil {
				logger.Error("OTLP server stopped", "error", err)
			}
		}()
		defer otlpServer.Stop()

		log.Printf("🌐 OTLP gRPC receiver listening on %s\n", otlpServer.Endpoint())
		if verbose {
			log.Printf("   Send traces with: OTEL_EXPORTER_OTLP_ENDPOINT=%s\n", otlpServer.Endpoint())
		}
	}

	ui := webui.New(traceStore, cfg.UI.IndentPx, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		if verbose {
			log.Printf("📡 Received signal %v, shutting down...\n", sig)
		}
		cancel()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	log.Printf("🎯 Web UI ready on http://%s/ui/\n", addr)

	if err := ui.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("web UI server error: %w", err)
	}
	return nil
}
