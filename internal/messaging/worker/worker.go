// Package worker runs outbound messaging in the background: the dispatch loop, retry and
// stale recovery, reminder scheduling and the handlers fed by the outbox and task queue.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	apperrors "github.com/allisson/clinicops/internal/errors"
	"github.com/allisson/clinicops/internal/messaging/usecase"
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

// Config holds the loop intervals.
type Config struct {
	DispatchInterval  time.Duration
	DispatchBatchSize int
	RetryInterval     time.Duration
	ReminderInterval  time.Duration
}

// Worker runs the messaging loops.
type Worker struct {
	dispatcher    usecase.DispatcherUseCase
	notifications usecase.NotificationUseCase
	config        Config
	logger        *slog.Logger
}

// NewWorker creates a Worker.
func NewWorker(
	dispatcher usecase.DispatcherUseCase,
	notifications usecase.NotificationUseCase,
	config Config,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		dispatcher:    dispatcher,
		notifications: notifications,
		config:        config,
		logger:        logger,
	}
}

// Register wires the worker handlers.
func (w *Worker) Register(events EventRegistry, tasks TaskRegistry) {
	events.Register(bookingDomain.EventBooked, w.HandleBooked)
	tasks.HandleFunc(usecase.TaskTypeOutboundRetry, w.HandleRetryTask)
}

// HandleBooked sends the booking confirmation. Errors are returned so the outbox tries again.
func (w *Worker) HandleBooked(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	var payload bookingDomain.BookedEvent
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return apperrors.Wrap(err, "failed to decode booked event")
	}
	return w.notifications.NotifyBooked(ctx, payload)
}

// HandleRetryTask promotes a FAILED message back to PENDING. It never fails the task:
// RetryFailures promotes anything the task misses.
func (w *Worker) HandleRetryTask(ctx context.Context, task *asynq.Task) error {
	var payload usecase.RetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.logger.Error("invalid message retry payload", slog.Any("error", err))
		return nil
	}

	promoted, err := w.dispatcher.ExecuteRetry(ctx, payload.MessageID)
	if err != nil {
		w.logger.Error("message retry failed",
			slog.String("message_id", payload.MessageID.String()),
			slog.Any("error", err),
		)
		return nil
	}

	w.logger.Debug("message retry executed",
		slog.String("message_id", payload.MessageID.String()),
		slog.Bool("promoted", promoted),
	)
	return nil
}

// StartDispatch sends due messages every dispatch interval until ctx is done.
func (w *Worker) StartDispatch(ctx context.Context) error {
	return w.runEvery(ctx, "message dispatch", w.config.DispatchInterval, func(ctx context.Context) error {
		_, err := w.dispatcher.DispatchBatch(ctx, w.config.DispatchBatchSize)
		return err
	})
}

// StartRetry requeues due failures and recovers stale sends every retry interval.
func (w *Worker) StartRetry(ctx context.Context) error {
	return w.runEvery(ctx, "message retry", w.config.RetryInterval, func(ctx context.Context) error {
		if _, err := w.dispatcher.RecoverStale(ctx); err != nil {
			w.logger.Error("stale message recovery failed", slog.Any("error", err))
		}
		_, err := w.dispatcher.RetryFailures(ctx)
		return err
	})
}

// StartReminders queues appointment reminders every reminder interval.
func (w *Worker) StartReminders(ctx context.Context) error {
	return w.runEvery(ctx, "appointment reminders", w.config.ReminderInterval, func(ctx context.Context) error {
		_, err := w.notifications.ScheduleReminders(ctx)
		return err
	})
}

func (w *Worker) runEvery(
	ctx context.Context,
	name string,
	interval time.Duration,
	fn func(ctx context.Context) error,
) error {
	w.logger.Info("starting "+name, slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping " + name)
			return ctx.Err()
		case <-ticker.C:
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error(name+" failed", slog.Any("error", err))
			}
		}
	}
}
