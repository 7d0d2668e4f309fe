package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/clinicops/cmd/app/commands"
	"github.com/allisson/clinicops/internal/app"
	"github.com/allisson/clinicops/internal/config"
)

const operationsCategory = "operations"

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getOperationsCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:     "sync-sweep",
			Category: operationsCategory,
			Usage:    "Schedule retries for tentative appointments that have none pending",
			Flags:    []cli.Flag{formatFlag()},
			Action:   func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				syncUseCase, err := container.SyncUseCase()
				if err != nil {
					return err
				}

				return commands.RunSyncSweep(
					ctx,
					syncUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:     "reset-calendar-sync",
			Category: operationsCategory,
			Usage:    "Give an appointment whose calendar sync failed a fresh retry budget",
			Flags:    []cli.Flag{
				&cli.StringFlag{
					Name:     "tenant-id",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Tenant ID (UUID)",
				},
				&cli.StringFlag{
					Name:     "appointment-id",
					Aliases:  []string{"a"},
					Required: true,
					Usage:    "Appointment ID (UUID)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				syncUseCase, err := container.SyncUseCase()
				if err != nil {
					return err
				}

				return commands.RunResetCalendarSync(
					ctx,
					syncUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("tenant-id"),
					cmd.String("appointment-id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:     "dispatch-messages",
			Category: operationsCategory,
			Usage:    "Send one batch of due outbound messages",
			Flags:    []cli.Flag{
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   50,
					Usage:   "Maximum number of messages to send",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatcher, err := container.DispatcherUseCase()
				if err != nil {
					return err
				}

				return commands.RunDispatchMessages(
					ctx,
					dispatcher,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("limit")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:     "connect-integration",
			Category: operationsCategory,
			Usage:    "Store a tenant's calendar or messaging credentials",
			Flags:    []cli.Flag{
				&cli.StringFlag{
					Name:     "tenant-id",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Tenant ID (UUID)",
				},
				&cli.StringFlag{
					Name:     "kind",
					Aliases:  []string{"k"},
					Required: true,
					Usage:    "Integration kind (calendar or messaging)",
				},
				&cli.StringFlag{
					Name:     "account",
					Required: true,
					Usage:    "Calendar id or messaging phone-number id",
				},
				&cli.StringFlag{
					Name:     "token",
					Required: true,
					Usage:    "Access token, encrypted with KMS_KEY_URI before it is stored",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				integrationUseCase, err := container.IntegrationUseCase()
				if err != nil {
					return err
				}

				return commands.RunConnectIntegration(
					ctx,
					integrationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("tenant-id"),
					cmd.String("kind"),
					cmd.String("account"),
					cmd.String("token"),
					cmd.String("format"),
				)
			},
		},
	}
}
