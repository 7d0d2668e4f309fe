package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	"github.com/allisson/clinicops/internal/database"
	apperrors "github.com/allisson/clinicops/internal/errors"
	outboxDomain "github.com/allisson/clinicops/internal/outbox/domain"
)

// bookingUseCase implements BookingUseCase.
type bookingUseCase struct {
	txManager       database.TxManager
	appointmentRepo AppointmentRepository
	resourceRepo    ResourceRepository
	outboxRepo      OutboxEventRepository
	calendar        CalendarGateway
	syncScheduler   SyncScheduler
	config          Config
	logger          *slog.Logger
}

// Reserve validates the request, consults the calendar outside any transaction and then
// inserts the appointment together with its domain events.
func (b *bookingUseCase) Reserve(
	ctx context.Context,
	input bookingDomain.ReserveInput,
) (*bookingDomain.BookingResult, error) {
	resource, err := b.resourceRepo.GetByCode(ctx, input.TenantID, input.ResourceCode)
	if err != nil {
		return nil, err
	}

	slot, err := b.validateSlot(resource, input.StartAt)
	if err != nil {
		return nil, err
	}

	outcome, err := b.consultCalendar(ctx, input.TenantID, slot)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	appt := &bookingDomain.Appointment{
		ID:              uuid.Must(uuid.NewV7()),
		TenantID:        input.TenantID,
		ResourceID:      resource.ID,
		Slot:            slot,
		Status:          bookingDomain.StatusBooked,
		ConversationRef: input.ConversationRef,
		Recipient:       input.Recipient,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	warning := appt.ApplySyncOutcome(outcome)

	err = b.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := b.appointmentRepo.LockResource(txCtx, resource.ID); err != nil {
			return err
		}

		overlap, err := b.appointmentRepo.HasOverlap(txCtx, appt.TenantID, resource.ID, slot, nil)
		if err != nil {
			return err
		}
		if overlap {
			return bookingDomain.ErrSlotTaken
		}

		if err := b.appointmentRepo.Create(txCtx, appt); err != nil {
			return err
		}

		if outcome != bookingDomain.SyncOutcomeAbsent {
			if err := b.emitSyncRequested(txCtx, appt, outcome); err != nil {
				return err
			}
		}

		if appt.Recipient != nil {
			return b.emit(txCtx, bookingDomain.EventBooked, bookingDomain.BookedEvent{
				AppointmentID:   appt.ID,
				TenantID:        appt.TenantID,
				ResourceName:    resource.Name,
				StartAt:         appt.Slot.Start.Format(time.RFC3339),
				Timezone:        resource.Timezone,
				Recipient:       *appt.Recipient,
				ConversationRef: appt.ConversationRef,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("appointment reserved",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("tenant_id", appt.TenantID.String()),
		slog.String("sync_outcome", string(outcome)),
	)

	if outcome == bookingDomain.SyncOutcomeUnreachable {
		b.scheduleFirstRetry(ctx, appt.ID)
	}

	return &bookingDomain.BookingResult{Appointment: appt, Warning: warning}, nil
}

// Reschedule moves an active appointment to a new slot. A linked remote event is unlinked
// and queued for cancellation; the sync fields start over.
func (b *bookingUseCase) Reschedule(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
	newStartAt time.Time,
) (*bookingDomain.BookingResult, error) {
	existing, err := b.appointmentRepo.Get(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive() {
		return nil, bookingDomain.ErrAppointmentNotActive
	}

	resource, err := b.resourceRepo.Get(ctx, tenantID, existing.ResourceID)
	if err != nil {
		return nil, err
	}

	slot, err := b.validateSlot(resource, newStartAt)
	if err != nil {
		return nil, err
	}

	outcome, err := b.consultCalendar(ctx, tenantID, slot)
	if err != nil {
		return nil, err
	}

	var appt *bookingDomain.Appointment
	var warning bookingDomain.Warning
	err = b.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := b.appointmentRepo.LockResource(txCtx, resource.ID); err != nil {
			return err
		}

		current, err := b.lockAppointment(txCtx, tenantID, appointmentID)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return bookingDomain.ErrAppointmentNotActive
		}

		overlap, err := b.appointmentRepo.HasOverlap(txCtx, tenantID, resource.ID, slot, &current.ID)
		if err != nil {
			return err
		}
		if overlap {
			return bookingDomain.ErrSlotTaken
		}

		oldRef, hadRef := current.ClearExternalEvent()
		current.Slot = slot
		current.Status = bookingDomain.StatusBooked
		current.UpdatedAt = time.Now().UTC()
		warning = current.ApplySyncOutcome(outcome)

		if err := b.appointmentRepo.Update(txCtx, current); err != nil {
			return err
		}

		if hadRef {
			if err := b.emitCancelRequested(txCtx, current, oldRef); err != nil {
				return err
			}
		}

		if outcome != bookingDomain.SyncOutcomeAbsent {
			if err := b.emitSyncRequested(txCtx, current, outcome); err != nil {
				return err
			}
		}

		appt = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("appointment rescheduled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("tenant_id", appt.TenantID.String()),
		slog.String("sync_outcome", string(outcome)),
	)

	if outcome == bookingDomain.SyncOutcomeUnreachable {
		b.scheduleFirstRetry(ctx, appt.ID)
	}

	return &bookingDomain.BookingResult{Appointment: appt, Warning: warning}, nil
}

// Cancel releases the slot. The remote event, if any, is cancelled inline after commit;
// when that fails the outbox event retries it and the caller gets GOOGLE_CANCEL_PENDING.
func (b *bookingUseCase) Cancel(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
) (*bookingDomain.BookingResult, error) {
	var appt *bookingDomain.Appointment
	var remoteRef string
	var hadRef bool

	err := b.txManager.WithTx(ctx, func(txCtx context.Context) error {
		current, err := b.lockAppointment(txCtx, tenantID, appointmentID)
		if err != nil {
			return err
		}
		appt = current

		switch current.Status {
		case bookingDomain.StatusCancelled:
			return nil
		case bookingDomain.StatusCompleted, bookingDomain.StatusRescheduled:
			return bookingDomain.ErrAppointmentNotActive
		case bookingDomain.StatusPending, bookingDomain.StatusBooked, bookingDomain.StatusConfirmed:
		default:
			return bookingDomain.ErrInvalidStatus
		}

		remoteRef, hadRef = current.ClearExternalEvent()
		current.Status = bookingDomain.StatusCancelled
		current.SyncStatus = bookingDomain.SyncStatusOK
		current.RetryCount = 0
		current.LastError = nil
		current.UpdatedAt = time.Now().UTC()

		if err := b.appointmentRepo.Update(txCtx, current); err != nil {
			return err
		}

		if hadRef {
			return b.emitCancelRequested(txCtx, current, remoteRef)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &bookingDomain.BookingResult{Appointment: appt, Warning: bookingDomain.WarningNone}
	if !hadRef {
		return result, nil
	}

	cancelCtx, cancel := context.WithTimeout(ctx, b.config.RemoteCancelTimeout)
	defer cancel()

	if err := b.calendar.CancelEvent(cancelCtx, tenantID, remoteRef); err != nil {
		b.logger.Warn("remote calendar cancel deferred",
			slog.String("appointment_id", appt.ID.String()),
			slog.String("external_ref", remoteRef),
			slog.Any("error", err),
		)
		result.Warning = bookingDomain.WarningCalendarCancelPending
	}

	return result, nil
}

// validateSlot checks that the resource is bookable and the slot fits its service hours.
func (b *bookingUseCase) validateSlot(
	resource *bookingDomain.Resource,
	startAt time.Time,
) (bookingDomain.TimeRange, error) {
	if !resource.Active || resource.DurationMinutes <= 0 {
		return bookingDomain.TimeRange{}, bookingDomain.ErrInvalidService
	}

	slot := resource.SlotAt(startAt)
	ok, err := resource.WithinHours(slot)
	if err != nil {
		return bookingDomain.TimeRange{}, err
	}
	if !ok {
		return bookingDomain.TimeRange{}, bookingDomain.ErrOutOfHours
	}
	return slot, nil
}

// consultCalendar asks the tenant's calendar about slot. A busy window rejects the booking;
// a failing calendar only degrades it to tentative.
func (b *bookingUseCase) consultCalendar(
	ctx context.Context,
	tenantID uuid.UUID,
	slot bookingDomain.TimeRange,
) (bookingDomain.SyncOutcome, error) {
	configured, err := b.calendar.Configured(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if !configured {
		return bookingDomain.SyncOutcomeAbsent, nil
	}

	freeBusyCtx, cancel := context.WithTimeout(ctx, b.config.FreeBusyTimeout)
	defer cancel()

	busy, err := b.calendar.FreeBusy(freeBusyCtx, tenantID, slot)
	if err != nil {
		b.logger.Warn("calendar unreachable, booking as tentative",
			slog.String("tenant_id", tenantID.String()),
			slog.Any("error", err),
		)
		return bookingDomain.SyncOutcomeUnreachable, nil
	}

	for _, window := range busy {
		if window.Overlaps(slot) {
			return "", bookingDomain.ErrSlotTaken
		}
	}
	return bookingDomain.SyncOutcomeAvailable, nil
}

// lockAppointment loads and row-locks the tenant's appointment.
func (b *bookingUseCase) lockAppointment(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	appt, err := b.appointmentRepo.GetForUpdate(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.TenantID != tenantID {
		return nil, bookingDomain.ErrAppointmentNotFound
	}
	return appt, nil
}

// scheduleFirstRetry asks the sync coordinator for the first retry right away. The
// sync_requested event does the same; the retry token collapses the two.
func (b *bookingUseCase) scheduleFirstRetry(ctx context.Context, appointmentID uuid.UUID) {
	if _, err := b.syncScheduler.ScheduleRetry(ctx, appointmentID); err != nil {
		b.logger.Warn("failed to schedule calendar sync retry",
			slog.String("appointment_id", appointmentID.String()),
			slog.Any("error", err),
		)
	}
}

func (b *bookingUseCase) emitSyncRequested(
	ctx context.Context,
	appt *bookingDomain.Appointment,
	outcome bookingDomain.SyncOutcome,
) error {
	return b.emit(ctx, bookingDomain.EventSyncRequested, bookingDomain.SyncRequestedEvent{
		AppointmentID: appt.ID,
		TenantID:      appt.TenantID,
		Outcome:       outcome,
	})
}

func (b *bookingUseCase) emitCancelRequested(ctx context.Context, appt *bookingDomain.Appointment, ref string) error {
	return b.emit(ctx, bookingDomain.EventCancelRequested, bookingDomain.CancelRequestedEvent{
		AppointmentID: appt.ID,
		TenantID:      appt.TenantID,
		ExternalRef:   ref,
	})
}

// emit writes a pending outbox event with the JSON encoded payload.
func (b *bookingUseCase) emit(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal event payload")
	}

	return b.outboxRepo.Create(ctx, &outboxDomain.OutboxEvent{
		ID:        uuid.Must(uuid.NewV7()),
		EventType: eventType,
		Payload:   string(data),
		Status:    outboxDomain.OutboxEventStatusPending,
	})
}

// NewBookingUseCase creates a new booking use case instance.
func NewBookingUseCase(
	txManager database.TxManager,
	appointmentRepo AppointmentRepository,
	resourceRepo ResourceRepository,
	outboxRepo OutboxEventRepository,
	calendar CalendarGateway,
	syncScheduler SyncScheduler,
	config Config,
	logger *slog.Logger,
) BookingUseCase {
	return &bookingUseCase{
		txManager:       txManager,
		appointmentRepo: appointmentRepo,
		resourceRepo:    resourceRepo,
		outboxRepo:      outboxRepo,
		calendar:        calendar,
		syncScheduler:   syncScheduler,
		config:          config,
		logger:          logger,
	}
}
