package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	"github.com/allisson/clinicops/internal/metrics"
)

// bookingUseCaseWithMetrics decorates BookingUseCase with metrics instrumentation.
type bookingUseCaseWithMetrics struct {
	next    BookingUseCase
	metrics metrics.BusinessMetrics
}

// NewBookingUseCaseWithMetrics wraps a BookingUseCase with metrics recording.
func NewBookingUseCaseWithMetrics(useCase BookingUseCase, m metrics.BusinessMetrics) BookingUseCase {
	return &bookingUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Reserve records metrics for reservations.
func (b *bookingUseCaseWithMetrics) Reserve(
	ctx context.Context,
	input bookingDomain.ReserveInput,
) (*bookingDomain.BookingResult, error) {
	start := time.Now()
	result, err := b.next.Reserve(ctx, input)

	b.record(ctx, "appointment_reserve", start, result, err)
	return result, err
}

// Reschedule records metrics for reschedules.
func (b *bookingUseCaseWithMetrics) Reschedule(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
	newStartAt time.Time,
) (*bookingDomain.BookingResult, error) {
	start := time.Now()
	result, err := b.next.Reschedule(ctx, tenantID, appointmentID, newStartAt)

	b.record(ctx, "appointment_reschedule", start, result, err)
	return result, err
}

// Cancel records metrics for cancellations.
func (b *bookingUseCaseWithMetrics) Cancel(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
) (*bookingDomain.BookingResult, error) {
	start := time.Now()
	result, err := b.next.Cancel(ctx, tenantID, appointmentID)

	b.record(ctx, "appointment_cancel", start, result, err)
	return result, err
}

// record uses "warning" as status for successful calls that came back degraded.
func (b *bookingUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	result *bookingDomain.BookingResult,
	err error,
) {
	status := metrics.StatusSuccess
	switch {
	case err != nil:
		status = metrics.StatusError
	case result != nil && result.Warning != bookingDomain.WarningNone:
		status = metrics.StatusWarning
	}

	b.metrics.RecordOperation(ctx, metrics.DomainBooking, operation, status)
	b.metrics.RecordDuration(ctx, metrics.DomainBooking, operation, time.Since(start), status)
}
