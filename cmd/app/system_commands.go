package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/clinicops/cmd/app/commands"
	"github.com/allisson/clinicops/internal/app"
	"github.com/allisson/clinicops/internal/config"
)

const systemCategory = "system"

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:     "server",
			Category: systemCategory,
			Usage:    "Start the HTTP API server",
			Action:   func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:     "worker",
			Category: systemCategory,
			Usage:    "Start the background workers (events, dispatch, retries, sweep, reminders, tasks)",
			Action:   func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunWorker(ctx, version)
			},
		},
		{
			Name:     "migrate",
			Category: systemCategory,
			Usage:    "Apply pending database migrations, or roll back with --steps",
			Flags:    []cli.Flag{
				&cli.StringFlag{
					Name:  "path",
					Value: "migrations",
					Usage: "Directory holding the postgresql/ and mysql/ migrations",
				},
				&cli.IntFlag{
					Name:  "steps",
					Value: 0,
					Usage: "0 applies everything pending; -N rolls back N migrations",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(
					container.Logger(),
					cfg.DBDriver,
					cfg.DBConnectionString,
					cmd.String("path"),
					int(cmd.Int("steps")),
				)
			},
		},
	}
}
