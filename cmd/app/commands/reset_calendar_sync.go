package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
)

// SyncResetter gives a FAILED appointment a fresh retry budget.
type SyncResetter interface {
	ResetFailed(ctx context.Context, tenantID, appointmentID uuid.UUID) (*bookingDomain.Appointment, error)
}

// RunResetCalendarSync is the operator action for appointments whose calendar sync ran out
// of retries: the retry counter is cleared and a new attempt is scheduled.
func RunResetCalendarSync(
	ctx context.Context,
	resetter SyncResetter,
	logger *slog.Logger,
	writer io.Writer,
	tenantIDStr, appointmentIDStr, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}
	appointmentID, err := uuid.Parse(appointmentIDStr)
	if err != nil {
		return fmt.Errorf("invalid appointment id: %w", err)
	}

	appt, err := resetter.ResetFailed(ctx, tenantID, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to reset calendar sync: %w", err)
	}

	logger.Info("calendar sync reset",
		slog.String("tenant_id", tenantID.String()),
		slog.String("appointment_id", appt.ID.String()),
		slog.String("sync_status", string(appt.SyncStatus)),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"appointment_id": appt.ID.String(),
			"sync_status":    appt.SyncStatus,
			"retry_count":    appt.RetryCount,
		})
	}
	_, err = fmt.Fprintf(writer, "Appointment %s calendar sync reset to %s\n", appt.ID, appt.SyncStatus)
	return err
}
