package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// SyncSweeper runs one calendar sync sweep.
type SyncSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RunSyncSweep schedules retries for TENTATIVE appointments that have none pending. It is the
// one-shot form of the worker's periodic sweep.
func RunSyncSweep(
	ctx context.Context,
	sweeper SyncSweeper,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("running calendar sync sweep")

	scheduled, err := sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep calendar sync: %w", err)
	}

	logger.Info("calendar sync sweep completed", slog.Int("scheduled", scheduled))

	if format == "json" {
		return writeJSON(writer, map[string]any{"scheduled": scheduled})
	}
	_, err = fmt.Fprintf(writer, "Scheduled %d calendar sync retry(ies)\n", scheduled)
	return err
}
