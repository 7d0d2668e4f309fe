package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	calendarDomain "github.com/allisson/clinicops/internal/calendar/domain"
	"github.com/allisson/clinicops/internal/database"
	apperrors "github.com/allisson/clinicops/internal/errors"
	"github.com/allisson/clinicops/internal/metrics"
	"github.com/allisson/clinicops/internal/retry"
)

// RetryPayload is the task payload of TaskTypeSyncRetry.
type RetryPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

// Subject returns the retry token key of an appointment.
func Subject(appointmentID uuid.UUID) string {
	return "calendar-sync:" + appointmentID.String()
}

type syncUseCase struct {
	txManager       database.TxManager
	appointmentRepo AppointmentRepository
	resourceRepo    ResourceRepository
	calendar        CalendarGateway
	scheduler       RetryScheduler
	metrics         metrics.BusinessMetrics
	config          Config
	logger          *slog.Logger
}

func (s *syncUseCase) HandleSyncRequested(
	ctx context.Context,
	appointmentID uuid.UUID,
	outcome bookingDomain.SyncOutcome,
) error {
	switch outcome {
	case bookingDomain.SyncOutcomeUnreachable:
		_, err := s.ScheduleRetry(ctx, appointmentID)
		return err
	case bookingDomain.SyncOutcomeAvailable:
		_, err := s.Attempt(ctx, appointmentID)
		return err
	case bookingDomain.SyncOutcomeAbsent:
		return nil
	default:
		return outcome.Validate()
	}
}

func (s *syncUseCase) Attempt(ctx context.Context, appointmentID uuid.UUID) (Result, error) {
	start := time.Now()
	result, err := s.attempt(ctx, appointmentID)

	status := string(result)
	if err != nil {
		status = metrics.StatusError
	}
	s.metrics.RecordOperation(ctx, metrics.DomainCalendarSync, "sync_attempt", status)
	s.metrics.RecordDuration(ctx, metrics.DomainCalendarSync, "sync_attempt", time.Since(start), status)

	return result, err
}

func (s *syncUseCase) attempt(ctx context.Context, appointmentID uuid.UUID) (Result, error) {
	appt, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		if apperrors.Is(err, bookingDomain.ErrAppointmentNotFound) {
			return ResultSkipped, nil
		}
		return "", err
	}
	if !appt.NeedsSync() {
		return ResultSkipped, nil
	}

	resource, err := s.resourceRepo.Get(ctx, appt.TenantID, appt.ResourceID)
	if err != nil {
		return "", err
	}

	createCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	externalRef, createErr := s.calendar.CreateEvent(createCtx, calendarDomain.EventRequest{
		TenantID:      appt.TenantID,
		AppointmentID: appt.ID,
		Summary:       resource.Name,
		Description:   fmt.Sprintf("Appointment %s", appt.ID),
		Start:         appt.Slot.Start,
		End:           appt.Slot.End,
		Timezone:      resource.Timezone,
	})
	cancel()

	var result Result
	var orphanRef string
	err = s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.appointmentRepo.GetForUpdate(txCtx, appointmentID)
		if err != nil {
			return err
		}

		// Cancelled, rescheduled or synced by someone else while the gateway call was in flight.
		if !current.NeedsSync() || !current.Slot.Equal(appt.Slot) {
			result = ResultSkipped
			if createErr == nil {
				orphanRef = externalRef
			}
			return nil
		}

		current.UpdatedAt = time.Now().UTC()
		if createErr == nil {
			current.MarkSynced(externalRef)
			result = ResultSynced
		} else if current.MarkSyncFailure(createErr.Error(), s.config.MaxAttempts) == bookingDomain.SyncStatusFailed {
			result = ResultFailed
		} else {
			result = ResultRescheduled
		}

		appt = current
		return s.appointmentRepo.Update(txCtx, current)
	})
	if err != nil {
		if createErr == nil {
			s.cancelOrphan(ctx, appt.TenantID, externalRef)
		}
		return "", err
	}

	switch result {
	case ResultSkipped:
		if orphanRef != "" {
			s.cancelOrphan(ctx, appt.TenantID, orphanRef)
		}
	case ResultSynced:
		s.logger.Info("calendar sync succeeded",
			slog.String("appointment_id", appt.ID.String()),
			slog.String("external_ref", externalRef),
		)
	case ResultRescheduled:
		s.logger.Warn("calendar sync failed, retrying",
			slog.String("appointment_id", appt.ID.String()),
			slog.Int("retry_count", appt.RetryCount),
			slog.Any("error", createErr),
		)
		if _, err := s.ScheduleRetry(ctx, appt.ID); err != nil {
			// The sweep picks the appointment up again.
			s.logger.Error("failed to schedule calendar sync retry",
				slog.String("appointment_id", appt.ID.String()),
				slog.Any("error", err),
			)
		}
	case ResultFailed:
		s.logger.Error("calendar sync exhausted retries",
			slog.String("appointment_id", appt.ID.String()),
			slog.String("tenant_id", appt.TenantID.String()),
			slog.Int("retry_count", appt.RetryCount),
			slog.Any("error", createErr),
		)
	}

	return result, nil
}

func (s *syncUseCase) ScheduleRetry(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	appt, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return false, err
	}
	if !appt.NeedsSync() || appt.SyncStatus != bookingDomain.SyncStatusTentative {
		return false, nil
	}

	delay := s.config.Policy.Delay(appt.RetryCount)
	ttl := delay
	if s.config.TokenTTL > 0 && s.config.TokenTTL < ttl {
		ttl = s.config.TokenTTL
	}

	payload, err := json.Marshal(RetryPayload{AppointmentID: appointmentID})
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal sync retry payload")
	}

	scheduled, err := s.scheduler.ScheduleOnce(ctx, retry.Request{
		Subject:  Subject(appointmentID),
		TaskID:   fmt.Sprintf("%s:%d", Subject(appointmentID), appt.RetryCount),
		TaskType: TaskTypeSyncRetry,
		Payload:  payload,
		Delay:    delay,
		TokenTTL: ttl,
	})
	if err != nil {
		return false, err
	}

	if scheduled {
		s.logger.Debug("calendar sync retry scheduled",
			slog.String("appointment_id", appointmentID.String()),
			slog.Int("retry_count", appt.RetryCount),
			slog.Duration("delay", delay),
		)
	}
	return scheduled, nil
}

func (s *syncUseCase) ExecuteRetry(ctx context.Context, appointmentID uuid.UUID) (Result, error) {
	if err := s.scheduler.Complete(ctx, Subject(appointmentID)); err != nil {
		s.logger.Warn("failed to release calendar sync token",
			slog.String("appointment_id", appointmentID.String()),
			slog.Any("error", err),
		)
	}
	return s.Attempt(ctx, appointmentID)
}

func (s *syncUseCase) Sweep(ctx context.Context) (int, error) {
	appts, err := s.appointmentRepo.ListSyncPending(ctx, s.config.MaxAttempts, s.config.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, appt := range appts {
		scheduled, err := s.ScheduleRetry(ctx, appt.ID)
		if err != nil {
			s.logger.Warn("sweep failed to schedule calendar sync retry",
				slog.String("appointment_id", appt.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		if scheduled {
			count++
		}
	}

	s.metrics.RecordBatch(ctx, metrics.DomainCalendarSync, "sweep_scheduled", count)
	if count > 0 {
		s.logger.Info("calendar sync sweep scheduled retries", slog.Int("count", count))
	}
	return count, nil
}

func (s *syncUseCase) CancelRemote(ctx context.Context, tenantID uuid.UUID, externalRef string) error {
	cancelCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	return s.calendar.CancelEvent(cancelCtx, tenantID, externalRef)
}

func (s *syncUseCase) ResetFailed(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	var appt *bookingDomain.Appointment
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.appointmentRepo.GetForUpdate(txCtx, appointmentID)
		if err != nil {
			return err
		}
		if current.TenantID != tenantID {
			return bookingDomain.ErrAppointmentNotFound
		}
		if err := current.ResetFailedSync(); err != nil {
			return err
		}
		current.UpdatedAt = time.Now().UTC()

		appt = current
		return s.appointmentRepo.Update(txCtx, current)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("calendar sync reset",
		slog.String("appointment_id", appointmentID.String()),
		slog.String("tenant_id", tenantID.String()),
	)

	if _, err := s.ScheduleRetry(ctx, appointmentID); err != nil {
		s.logger.Warn("failed to schedule calendar sync retry after reset",
			slog.String("appointment_id", appointmentID.String()),
			slog.Any("error", err),
		)
	}
	return appt, nil
}

// cancelOrphan removes a remote event that was created for an appointment that no longer wants it.
func (s *syncUseCase) cancelOrphan(ctx context.Context, tenantID uuid.UUID, externalRef string) {
	if err := s.CancelRemote(ctx, tenantID, externalRef); err != nil {
		s.logger.Warn("failed to cancel orphaned remote event",
			slog.String("tenant_id", tenantID.String()),
			slog.String("external_ref", externalRef),
			slog.Any("error", err),
		)
	}
}

// NewSyncUseCase creates a new calendar sync use case.
func NewSyncUseCase(
	txManager database.TxManager,
	appointmentRepo AppointmentRepository,
	resourceRepo ResourceRepository,
	calendar CalendarGateway,
	scheduler RetryScheduler,
	businessMetrics metrics.BusinessMetrics,
	config Config,
	logger *slog.Logger,
) SyncUseCase {
	return &syncUseCase{
		txManager:       txManager,
		appointmentRepo: appointmentRepo,
		resourceRepo:    resourceRepo,
		calendar:        calendar,
		scheduler:       scheduler,
		metrics:         businessMetrics,
		config:          config,
		logger:          logger,
	}
}
