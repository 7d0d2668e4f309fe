// Package usecase implements calendar sync: it reconciles TENTATIVE appointments with the
// tenant's external calendar and schedules their retries.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	calendarDomain "github.com/allisson/clinicops/internal/calendar/domain"
	"github.com/allisson/clinicops/internal/retry"
)

// TaskTypeSyncRetry is the task type of a scheduled calendar sync retry.
const TaskTypeSyncRetry = "calendar:sync_retry"

// Result is the outcome of one sync attempt.
type Result string

const (
	// ResultSynced means the remote event was created and linked.
	ResultSynced Result = "synced"
	// ResultRescheduled means the attempt failed and another one was scheduled.
	ResultRescheduled Result = "rescheduled"
	// ResultFailed means the attempt failed and the retry ceiling was reached.
	ResultFailed Result = "failed"
	// ResultSkipped means there was nothing to do.
	ResultSkipped Result = "skipped"
)

// AppointmentRepository defines the appointment operations calendar sync needs.
type AppointmentRepository interface {
	GetByID(ctx context.Context, appointmentID uuid.UUID) (*bookingDomain.Appointment, error)
	GetForUpdate(ctx context.Context, appointmentID uuid.UUID) (*bookingDomain.Appointment, error)
	Update(ctx context.Context, appt *bookingDomain.Appointment) error
	ListSyncPending(ctx context.Context, ceiling, limit int) ([]*bookingDomain.Appointment, error)
}

// ResourceRepository loads the resource an appointment is booked on.
type ResourceRepository interface {
	Get(ctx context.Context, tenantID, resourceID uuid.UUID) (*bookingDomain.Resource, error)
}

// CalendarGateway is the part of the external calendar that sync writes to.
type CalendarGateway interface {
	CreateEvent(ctx context.Context, req calendarDomain.EventRequest) (string, error)
	CancelEvent(ctx context.Context, tenantID uuid.UUID, externalRef string) error
}

// RetryScheduler schedules at most one pending retry per subject.
type RetryScheduler interface {
	ScheduleOnce(ctx context.Context, req retry.Request) (bool, error)
	Complete(ctx context.Context, subject string) error
}

// Config holds the calendar sync settings.
type Config struct {
	// Policy computes the delay before retry n.
	Policy retry.Policy
	// MaxAttempts is the retry ceiling after which an appointment becomes FAILED.
	MaxAttempts int
	// TokenTTL caps how long a retry token is held.
	TokenTTL time.Duration
	// GatewayTimeout bounds each create or cancel call.
	GatewayTimeout time.Duration
	// SweepBatchSize is the number of appointments inspected per sweep.
	SweepBatchSize int
}

// SyncUseCase defines the calendar sync operations.
type SyncUseCase interface {
	// HandleSyncRequested reacts to a booking: an unreachable calendar schedules a retry,
	// an available one is attempted right away.
	HandleSyncRequested(ctx context.Context, appointmentID uuid.UUID, outcome bookingDomain.SyncOutcome) error
	// Attempt creates the remote event for an appointment and applies the sync transition.
	Attempt(ctx context.Context, appointmentID uuid.UUID) (Result, error)
	// ScheduleRetry schedules the next attempt. It returns false when one is already pending.
	ScheduleRetry(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	// ExecuteRetry runs a scheduled attempt.
	ExecuteRetry(ctx context.Context, appointmentID uuid.UUID) (Result, error)
	// Sweep schedules retries for TENTATIVE appointments that lost theirs. Returns how many were scheduled.
	Sweep(ctx context.Context) (int, error)
	// CancelRemote removes a remote event. An event that is already gone counts as removed.
	CancelRemote(ctx context.Context, tenantID uuid.UUID, externalRef string) error
	// ResetFailed gives a FAILED appointment a fresh retry budget and schedules an attempt.
	ResetFailed(ctx context.Context, tenantID, appointmentID uuid.UUID) (*bookingDomain.Appointment, error)
}
