package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/clinicops/internal/errors"
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
	"github.com/allisson/clinicops/internal/metrics"
)

// dispatcherUseCaseWithMetrics decorates DispatcherUseCase with metrics instrumentation.
type dispatcherUseCaseWithMetrics struct {
	next    DispatcherUseCase
	metrics metrics.BusinessMetrics
}

// NewDispatcherUseCaseWithMetrics wraps a DispatcherUseCase with metrics recording.
func NewDispatcherUseCaseWithMetrics(useCase DispatcherUseCase, m metrics.BusinessMetrics) DispatcherUseCase {
	return &dispatcherUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Enqueue records "rejected" for policy violations.
func (d *dispatcherUseCaseWithMetrics) Enqueue(
	ctx context.Context,
	req messagingDomain.EnqueueRequest,
) (*messagingDomain.OutboundMessage, error) {
	start := time.Now()
	msg, err := d.next.Enqueue(ctx, req)

	status := metrics.StatusSuccess
	switch {
	case apperrors.Is(err, apperrors.ErrPolicyViolation):
		status = "rejected"
	case err != nil:
		status = metrics.StatusError
	}
	d.record(ctx, "message_enqueue", start, status)
	return msg, err
}

func (d *dispatcherUseCaseWithMetrics) DispatchBatch(ctx context.Context, limit int) (int, error) {
	start := time.Now()
	sent, err := d.next.DispatchBatch(ctx, limit)

	d.record(ctx, "message_dispatch_batch", start, statusOf(err))
	return sent, err
}

func (d *dispatcherUseCaseWithMetrics) RetryFailures(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := d.next.RetryFailures(ctx)

	d.record(ctx, "message_retry_failures", start, statusOf(err))
	return count, err
}

func (d *dispatcherUseCaseWithMetrics) ExecuteRetry(ctx context.Context, messageID uuid.UUID) (bool, error) {
	start := time.Now()
	promoted, err := d.next.ExecuteRetry(ctx, messageID)

	d.record(ctx, "message_retry", start, statusOf(err))
	return promoted, err
}

func (d *dispatcherUseCaseWithMetrics) RecoverStale(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := d.next.RecoverStale(ctx)

	d.record(ctx, "message_recover_stale", start, statusOf(err))
	return count, err
}

func (d *dispatcherUseCaseWithMetrics) HandleReceipt(
	ctx context.Context,
	receipt messagingDomain.Receipt,
) (*messagingDomain.OutboundMessage, error) {
	start := time.Now()
	msg, err := d.next.HandleReceipt(ctx, receipt)

	d.record(ctx, "message_receipt", start, statusOf(err))
	return msg, err
}

func (d *dispatcherUseCaseWithMetrics) RecordInbound(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
	at time.Time,
) error {
	start := time.Now()
	err := d.next.RecordInbound(ctx, tenantID, conversationRef, at)

	d.record(ctx, "message_inbound", start, statusOf(err))
	return err
}

func (d *dispatcherUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, status string) {
	d.metrics.RecordOperation(ctx, metrics.DomainMessaging, operation, status)
	d.metrics.RecordDuration(ctx, metrics.DomainMessaging, operation, time.Since(start), status)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
