// Package worker connects calendar sync to its triggers: outbox events, scheduled retry
// tasks and the periodic sweep.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	"github.com/allisson/clinicops/internal/calendarsync/usecase"
	apperrors "github.com/allisson/clinicops/internal/errors"
	outboxDomain "github.com/allisson/clinicops/internal/outbox/domain"
	outboxUsecase "github.com/allisson/clinicops/internal/outbox/usecase"
)

// EventRegistry accepts outbox event handlers.
type EventRegistry interface {
	Register(eventType string, handler outboxUsecase.EventHandler)
}

// TaskRegistry accepts task queue handlers.
type TaskRegistry interface {
	HandleFunc(taskType string, fn func(ctx context.Context, task *asynq.Task) error)
}

// Worker runs calendar sync in the background.
type Worker struct {
	syncUseCase   usecase.SyncUseCase
	sweepInterval time.Duration
	logger        *slog.Logger
}

// NewWorker creates a Worker.
func NewWorker(syncUseCase usecase.SyncUseCase, sweepInterval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		syncUseCase:   syncUseCase,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Register wires the worker handlers.
func (w *Worker) Register(events EventRegistry, tasks TaskRegistry) {
	events.Register(bookingDomain.EventSyncRequested, w.HandleSyncRequested)
	events.Register(bookingDomain.EventCancelRequested, w.HandleCancelRequested)
	tasks.HandleFunc(usecase.TaskTypeSyncRetry, w.HandleRetryTask)
}

// HandleSyncRequested reacts to appointment.sync_requested.
func (w *Worker) HandleSyncRequested(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	var payload bookingDomain.SyncRequestedEvent
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return apperrors.Wrap(err, "failed to decode sync requested event")
	}
	return w.syncUseCase.HandleSyncRequested(ctx, payload.AppointmentID, payload.Outcome)
}

// HandleCancelRequested removes the remote event of a cancelled or rescheduled appointment.
// Errors are returned so the outbox tries again.
func (w *Worker) HandleCancelRequested(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	var payload bookingDomain.CancelRequestedEvent
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return apperrors.Wrap(err, "failed to decode cancel requested event")
	}
	if payload.ExternalRef == "" {
		return nil
	}

	if err := w.syncUseCase.CancelRemote(ctx, payload.TenantID, payload.ExternalRef); err != nil {
		return err
	}

	w.logger.Info("remote calendar event cancelled",
		slog.String("appointment_id", payload.AppointmentID.String()),
		slog.String("external_ref", payload.ExternalRef),
	)
	return nil
}

// HandleRetryTask runs a scheduled sync retry. It never fails the task: the use case
// schedules the next attempt itself and the sweep catches anything lost.
func (w *Worker) HandleRetryTask(ctx context.Context, task *asynq.Task) error {
	var payload usecase.RetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.logger.Error("invalid calendar sync retry payload", slog.Any("error", err))
		return nil
	}

	result, err := w.syncUseCase.ExecuteRetry(ctx, payload.AppointmentID)
	if err != nil {
		w.logger.Error("calendar sync retry failed",
			slog.String("appointment_id", payload.AppointmentID.String()),
			slog.Any("error", err),
		)
		return nil
	}

	w.logger.Debug("calendar sync retry executed",
		slog.String("appointment_id", payload.AppointmentID.String()),
		slog.String("result", string(result)),
	)
	return nil
}

// StartSweep runs the sync sweep every sweep interval until ctx is done.
func (w *Worker) StartSweep(ctx context.Context) error {
	w.logger.Info("starting calendar sync sweep", slog.Duration("interval", w.sweepInterval))

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping calendar sync sweep")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.syncUseCase.Sweep(ctx); err != nil {
				w.logger.Error("calendar sync sweep failed", slog.Any("error", err))
			}
		}
	}
}
