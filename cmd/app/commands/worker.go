package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/allisson/clinicops/internal/app"
	"github.com/allisson/clinicops/internal/config"
)

// RunWorker starts the background loops in one process: the domain event outbox, message
// dispatch, message retries, the calendar sync sweep, appointment reminders and the retry
// task server. Blocks until receiving SIGINT/SIGTERM or until a loop fails.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	// Building the outbox use case registers every event and task handler.
	outboxUseCase, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox use case: %w", err)
	}

	calendarWorker, err := container.CalendarSyncWorker()
	if err != nil {
		return fmt.Errorf("failed to initialize calendar sync worker: %w", err)
	}

	messagingWorker, err := container.MessagingWorker()
	if err != nil {
		return fmt.Errorf("failed to initialize messaging worker: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	var servers []stoppable
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}

	loops := []func(ctx context.Context) error{
		outboxUseCase.Start,
		messagingWorker.StartDispatch,
		messagingWorker.StartRetry,
		messagingWorker.StartReminders,
		calendarWorker.StartSweep,
		container.TaskServer().Start,
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runServers(ctx, logger, servers, loops)
}
