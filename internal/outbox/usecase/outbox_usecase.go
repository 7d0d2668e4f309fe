// Package usecase relays committed outbox events to the components that react to them.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/clinicops/internal/database"
	"github.com/allisson/clinicops/internal/outbox/domain"
)

// Config holds outbox use case configuration
type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// ProcessingLease is how long a claimed event stays with its worker. It must cover the
	// handlers of a whole batch.
	ProcessingLease time.Duration
}

// OutboxEventRepository defines outbox event repository operations
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	GetPendingEvents(ctx context.Context, leaseExpiredBefore time.Time, limit int) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
}

// EventProcessor defines the interface for processing different event types
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase defines the interface for outbox use cases
type UseCase interface {
	Start(ctx context.Context) error
	ProcessEvents(ctx context.Context) error
}

// OutboxUseCase polls pending events and hands them to an EventProcessor.
type OutboxUseCase struct {
	config         Config
	txManager      database.TxManager
	outboxRepo     OutboxEventRepository
	eventProcessor EventProcessor
	logger         *slog.Logger
	now            func() time.Time
}

// NewOutboxUseCase creates a new OutboxUseCase
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	eventProcessor EventProcessor,
	logger *slog.Logger,
) *OutboxUseCase {
	return &OutboxUseCase{
		config:         config,
		txManager:      txManager,
		outboxRepo:     outboxRepo,
		eventProcessor: eventProcessor,
		logger:         logger,
		now:            time.Now,
	}
}

// Start runs ProcessEvents every Interval until ctx is done.
func (uc *OutboxUseCase) Start(ctx context.Context) error {
	uc.logger.Info("starting outbox event processor",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping outbox event processor")
			return ctx.Err()
		case <-ticker.C:
			if err := uc.ProcessEvents(ctx); err != nil {
				uc.logger.Error("failed to process events", slog.Any("error", err))
			}
		}
	}
}

// ProcessEvents claims a batch of pending events and runs their handlers. The claim is a
// short transaction; handlers run after it commits, so no row lock is held across their
// gateway calls.
func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) error {
	events, err := uc.claim(ctx)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	uc.logger.Debug("processing events", slog.Int("count", len(events)))

	for _, event := range events {
		if err := uc.eventProcessor.Process(ctx, event); err != nil {
			event.MarkAttemptFailed(err, uc.config.MaxRetries)

			level := slog.LevelWarn
			if event.Status == domain.OutboxEventStatusFailed {
				level = slog.LevelError
			}
			uc.logger.Log(ctx, level, "failed to process event",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.EventType),
				slog.Int("retries", event.Retries),
				slog.Any("error", err),
			)
		} else {
			event.MarkProcessed(uc.now().UTC())
		}

		// Events left processing are claimed again once their lease expires.
		if err := uc.outboxRepo.Update(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

// claim marks up to BatchSize events as processing and commits.
func (uc *OutboxUseCase) claim(ctx context.Context) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent
	err := uc.txManager.WithTx(ctx, func(txCtx context.Context) error {
		leaseExpiredBefore := uc.now().UTC().Add(-uc.config.ProcessingLease)
		claimed, err := uc.outboxRepo.GetPendingEvents(txCtx, leaseExpiredBefore, uc.config.BatchSize)
		if err != nil {
			return err
		}
		for _, event := range claimed {
			event.MarkProcessing()
			if err := uc.outboxRepo.Update(txCtx, event); err != nil {
				return err
			}
		}
		events = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
