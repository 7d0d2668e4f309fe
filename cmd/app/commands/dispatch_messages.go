package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// MessageDispatcher sends one batch of due messages.
type MessageDispatcher interface {
	DispatchBatch(ctx context.Context, limit int) (int, error)
}

// RunDispatchMessages sends one batch of due outbound messages.
func RunDispatchMessages(
	ctx context.Context,
	dispatcher MessageDispatcher,
	logger *slog.Logger,
	writer io.Writer,
	limit int,
	format string,
) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be a positive number, got: %d", limit)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	sent, err := dispatcher.DispatchBatch(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to dispatch messages: %w", err)
	}

	logger.Info("dispatch completed", slog.Int("sent", sent), slog.Int("limit", limit))

	if format == "json" {
		return writeJSON(writer, map[string]any{"sent": sent, "limit": limit})
	}
	_, err = fmt.Fprintf(writer, "Sent %d message(s)\n", sent)
	return err
}
