package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
)

func TestRunResetCalendarSync(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tenantID := uuid.Must(uuid.NewV7())
	appointmentID := uuid.Must(uuid.NewV7())

	t.Run("text-output", func(t *testing.T) {
		resetter := &MockSyncResetter{}
		resetter.On("ResetFailed", ctx, tenantID, appointmentID).Return(&bookingDomain.Appointment{
			ID:         appointmentID,
			TenantID:   tenantID,
			SyncStatus: bookingDomain.SyncStatusTentative,
		}, nil)

		var out bytes.Buffer
		err := RunResetCalendarSync(ctx, resetter, logger, &out, tenantID.String(), appointmentID.String(), "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "calendar sync reset to tentative")
		resetter.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		resetter := &MockSyncResetter{}
		resetter.On("ResetFailed", ctx, tenantID, appointmentID).Return(&bookingDomain.Appointment{
			ID:         appointmentID,
			SyncStatus: bookingDomain.SyncStatusTentative,
		}, nil)

		var out bytes.Buffer
		err := RunResetCalendarSync(ctx, resetter, logger, &out, tenantID.String(), appointmentID.String(), "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"sync_status": "tentative"`)
		require.Contains(t, out.String(), `"retry_count": 0`)
	})

	t.Run("invalid-tenant-id", func(t *testing.T) {
		resetter := &MockSyncResetter{}

		err := RunResetCalendarSync(ctx, resetter, logger, &bytes.Buffer{}, "nope", appointmentID.String(), "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid tenant id")
		resetter.AssertNotCalled(t, "ResetFailed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid-appointment-id", func(t *testing.T) {
		resetter := &MockSyncResetter{}

		err := RunResetCalendarSync(ctx, resetter, logger, &bytes.Buffer{}, tenantID.String(), "", "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid appointment id")
	})

	t.Run("use-case-error", func(t *testing.T) {
		resetter := &MockSyncResetter{}
		resetter.On("ResetFailed", ctx, tenantID, appointmentID).
			Return(nil, bookingDomain.ErrAppointmentNotFound)

		err := RunResetCalendarSync(ctx, resetter, logger, &bytes.Buffer{}, tenantID.String(), appointmentID.String(), "text")

		require.ErrorIs(t, err, bookingDomain.ErrAppointmentNotFound)
	})
}
