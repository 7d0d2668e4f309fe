// Package main is the clinicops binary: the API server, the background worker and the operator
// commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:     "clinicops",
		Usage:    "Multi-tenant clinic booking, calendar sync and patient messaging",
		Version:  version,
		Commands: append(getSystemCommands(version), getOperationsCommands()...),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
