// Package usecase defines the interfaces and implementations for the booking ledger: it owns
// slot allocation and guarantees that active appointments of a resource never overlap.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	outboxDomain "github.com/allisson/clinicops/internal/outbox/domain"
)

// AppointmentRepository defines the interface for Appointment persistence operations.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *bookingDomain.Appointment) error
	Update(ctx context.Context, appt *bookingDomain.Appointment) error
	Get(ctx context.Context, tenantID, appointmentID uuid.UUID) (*bookingDomain.Appointment, error)
	GetForUpdate(ctx context.Context, appointmentID uuid.UUID) (*bookingDomain.Appointment, error)
	HasOverlap(
		ctx context.Context,
		tenantID, resourceID uuid.UUID,
		slot bookingDomain.TimeRange,
		excludeID *uuid.UUID,
	) (bool, error)
	LockResource(ctx context.Context, resourceID uuid.UUID) error
}

// ResourceRepository defines the interface for Resource read operations.
type ResourceRepository interface {
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*bookingDomain.Resource, error)
	Get(ctx context.Context, tenantID, resourceID uuid.UUID) (*bookingDomain.Resource, error)
}

// OutboxEventRepository defines the interface for writing domain events.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

// CalendarGateway is the part of the external calendar the ledger consults.
type CalendarGateway interface {
	Configured(ctx context.Context, tenantID uuid.UUID) (bool, error)
	FreeBusy(ctx context.Context, tenantID uuid.UUID, window bookingDomain.TimeRange) ([]bookingDomain.TimeRange, error)
	CancelEvent(ctx context.Context, tenantID uuid.UUID, externalRef string) error
}

// SyncScheduler schedules the first calendar sync retry for an appointment.
type SyncScheduler interface {
	ScheduleRetry(ctx context.Context, appointmentID uuid.UUID) (bool, error)
}

// Config holds the booking ledger settings.
type Config struct {
	// FreeBusyTimeout bounds the calendar conflict check made before booking.
	FreeBusyTimeout time.Duration
	// RemoteCancelTimeout bounds the inline remote cancel made after a cancellation.
	RemoteCancelTimeout time.Duration
}

// BookingUseCase defines the interface for booking business logic.
type BookingUseCase interface {
	// Reserve books the resource identified by code. It fails with ErrInvalidService,
	// ErrOutOfHours or ErrSlotTaken, and warns GOOGLE_TENTATIVE when the calendar is down.
	Reserve(ctx context.Context, input bookingDomain.ReserveInput) (*bookingDomain.BookingResult, error)
	// Reschedule moves an active appointment to a new start time.
	Reschedule(
		ctx context.Context,
		tenantID, appointmentID uuid.UUID,
		newStartAt time.Time,
	) (*bookingDomain.BookingResult, error)
	// Cancel cancels the appointment. Cancelling twice is a no-op.
	Cancel(ctx context.Context, tenantID, appointmentID uuid.UUID) (*bookingDomain.BookingResult, error)
}
