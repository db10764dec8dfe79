package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vectorwave/traceview/internal/cli"
	cliframework "github.com/urfave/cli/v3"
)

const version = "0.1.0-dev"

func main() {
	app := &cliframework.Command{
		Name:    "traceview",
		Usage:   "Trace waterfall and tree viewer",
		Version: version,
		Commands: []*cliframework.Command{
			cli.ServeCommand(),
			cli.ShowCommand(),
			cli.DemoCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ error: %v\n", err)
		os.Exit(1)
	}
}
