package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/clinicops/internal/database"
	apperrors "github.com/allisson/clinicops/internal/errors"
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
	"github.com/allisson/clinicops/internal/metrics"
	"github.com/allisson/clinicops/internal/retry"
)

// staleSendingError is stored on messages recovered from SENDING.
const staleSendingError = "send did not complete"

// RetryPayload is the task payload of TaskTypeOutboundRetry.
type RetryPayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

// Subject returns the retry token key of a message.
func Subject(messageID uuid.UUID) string {
	return "outbound:" + messageID.String()
}

type dispatcherUseCase struct {
	txManager    database.TxManager
	messageRepo  MessageRepository
	templateRepo TemplateRepository
	provider     Provider
	scheduler    RetryScheduler
	limiter      SendLimiter
	metrics      metrics.BusinessMetrics
	config       Config
	logger       *slog.Logger
	now          func() time.Time
}

func (d *dispatcherUseCase) Enqueue(
	ctx context.Context,
	req messagingDomain.EnqueueRequest,
) (*messagingDomain.OutboundMessage, error) {
	if strings.TrimSpace(req.Recipient) == "" {
		return nil, messagingDomain.ErrRecipientRequired
	}
	if req.Classification != messagingDomain.ClassificationTemplated &&
		req.Classification != messagingDomain.ClassificationFreeform {
		return nil, messagingDomain.ErrInvalidClassification
	}

	language := req.Language
	if language == "" {
		language = d.config.DefaultLanguage
	}
	now := d.now().UTC()

	sessionOpen, err := d.sessionOpen(ctx, req.TenantID, req.ConversationRef, now)
	if err != nil {
		return nil, err
	}

	msg := &messagingDomain.OutboundMessage{
		ID:              uuid.Must(uuid.NewV7()),
		TenantID:        req.TenantID,
		ConversationRef: req.ConversationRef,
		Recipient:       req.Recipient,
		Status:          messagingDomain.StatusPending,
		MaxAttempts:     d.config.MaxAttempts,
		ScheduledFor:    d.scheduledFor(req, now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if req.Classification == messagingDomain.ClassificationTemplated || !sessionOpen {
		if req.TemplateName == "" {
			return nil, messagingDomain.ErrTemplateRequired
		}
		tmpl, err := d.templateRepo.FindApproved(ctx, req.TenantID, req.TemplateName, language)
		if err != nil {
			if apperrors.Is(err, messagingDomain.ErrTemplateNotFound) {
				return nil, messagingDomain.ErrTemplateNotApproved
			}
			return nil, err
		}
		msg.Classification = messagingDomain.ClassificationTemplated
		msg.TemplateName = &tmpl.Name
		msg.TemplateLanguage = &tmpl.Language
		msg.Payload = messagingDomain.Render(tmpl.Body, req.Variables)
		msg.IdempotencyKey = req.IdempotencyKey
		if msg.IdempotencyKey == "" {
			msg.IdempotencyKey = messagingDomain.DeriveIdempotencyKey(req.TenantID, req.ConversationRef,
				msg.Classification, tmpl.Name, tmpl.Language, msg.Payload, req.Variables)
		}
	} else {
		if strings.TrimSpace(req.Body) == "" {
			return nil, messagingDomain.ErrBodyRequired
		}
		msg.Classification = messagingDomain.ClassificationFreeform
		msg.Payload = req.Body
		msg.IdempotencyKey = req.IdempotencyKey
		if msg.IdempotencyKey == "" {
			msg.IdempotencyKey = messagingDomain.DeriveIdempotencyKey(req.TenantID, req.ConversationRef,
				msg.Classification, "", "", req.Body, nil)
		}
	}

	result, err := d.getOrCreate(ctx, msg)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("message enqueued",
		slog.String("message_id", result.ID.String()),
		slog.String("tenant_id", result.TenantID.String()),
		slog.String("status", string(result.Status)),
		slog.String("classification", string(result.Classification)),
	)
	return result, nil
}

// sessionOpen reports whether freeform messages are allowed: the conversation already had an
// outbound message and its last inbound falls within the session window.
func (d *dispatcherUseCase) sessionOpen(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef *string,
	now time.Time,
) (bool, error) {
	if conversationRef == nil || *conversationRef == "" {
		return false, nil
	}

	hasOutbound, err := d.messageRepo.HasOutbound(ctx, tenantID, *conversationRef)
	if err != nil {
		return false, err
	}
	if !hasOutbound {
		return false, nil
	}

	activity, err := d.templateRepo.GetActivity(ctx, tenantID, *conversationRef)
	if err != nil {
		return false, err
	}
	return activity.SessionOpen(now, d.config.SessionWindow), nil
}

func (d *dispatcherUseCase) scheduledFor(req messagingDomain.EnqueueRequest, now time.Time) time.Time {
	if req.NotBefore != nil {
		if req.NotBefore.Before(now) {
			return now
		}
		return req.NotBefore.UTC()
	}

	delay := req.Delay
	if delay < 0 {
		delay = 0
	}
	if delay > d.config.MaxInitialDelay {
		delay = d.config.MaxInitialDelay
	}
	return now.Add(delay)
}

// getOrCreate stores msg unless its idempotency key is taken. An existing PENDING or FAILED
// message gets the new content; any other existing message is returned unchanged. Keys are
// unique across tenants, so a key held by another tenant is a conflict.
func (d *dispatcherUseCase) getOrCreate(
	ctx context.Context,
	msg *messagingDomain.OutboundMessage,
) (*messagingDomain.OutboundMessage, error) {
	var result *messagingDomain.OutboundMessage
	err := d.txManager.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := d.messageRepo.GetByIdempotencyKeyForUpdate(txCtx, msg.IdempotencyKey)
		if err != nil {
			if apperrors.Is(err, messagingDomain.ErrMessageNotFound) {
				result = msg
				return d.messageRepo.Create(txCtx, msg)
			}
			return err
		}

		if existing.TenantID != msg.TenantID {
			return messagingDomain.ErrIdempotencyKeyInUse
		}

		result = existing
		if !existing.Refreshable() {
			return nil
		}

		existing.Refresh(messagingDomain.Content{
			Recipient:        msg.Recipient,
			TemplateName:     msg.TemplateName,
			TemplateLanguage: msg.TemplateLanguage,
			Payload:          msg.Payload,
			ScheduledFor:     msg.ScheduledFor,
		})
		existing.UpdatedAt = msg.UpdatedAt
		return d.messageRepo.Update(txCtx, existing)
	})
	if err != nil {
		if apperrors.Is(err, messagingDomain.ErrIdempotencyKeyTaken) {
			// Lost the insert race; the winner's row is the message.
			winner, err := d.messageRepo.GetByIdempotencyKey(ctx, msg.IdempotencyKey)
			if err != nil {
				return nil, err
			}
			if winner.TenantID != msg.TenantID {
				return nil, messagingDomain.ErrIdempotencyKeyInUse
			}
			return winner, nil
		}
		return nil, err
	}
	return result, nil
}

func (d *dispatcherUseCase) DispatchBatch(ctx context.Context, limit int) (int, error) {
	now := d.now().UTC()

	var claimed []*messagingDomain.OutboundMessage
	err := d.txManager.WithTx(ctx, func(txCtx context.Context) error {
		messages, err := d.messageRepo.ListDue(txCtx, now, limit)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			msg.MarkSending(now)
			if err := d.messageRepo.Update(txCtx, msg); err != nil {
				return err
			}
		}
		claimed = messages
		return nil
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range claimed {
		// Messages left SENDING here are picked up by RecoverStale.
		if err := d.limiter.Wait(ctx); err != nil {
			return sent, err
		}

		if d.send(ctx, msg) {
			sent++
		}
	}

	d.metrics.RecordBatch(ctx, metrics.DomainMessaging, "dispatch_claimed", len(claimed))
	if len(claimed) > 0 {
		d.logger.Debug("dispatch batch finished", slog.Int("claimed", len(claimed)), slog.Int("sent", sent))
	}
	return sent, nil
}

// send calls the provider for a claimed message and records the outcome.
func (d *dispatcherUseCase) send(ctx context.Context, msg *messagingDomain.OutboundMessage) bool {
	sendCtx, cancel := context.WithTimeout(ctx, d.config.ProviderTimeout)
	providerMessageID, sendErr := d.provider.Send(sendCtx, msg)
	cancel()

	var status messagingDomain.Status
	var recorded bool
	err := d.txManager.WithTx(ctx, func(txCtx context.Context) error {
		current, err := d.messageRepo.GetForUpdate(txCtx, msg.ID)
		if err != nil {
			return err
		}

		now := d.now().UTC()
		switch {
		case sendErr == nil && current.Status.IsTerminalSuccess():
			// A receipt already moved it on.
			if current.ProviderMessageID != nil {
				status = current.Status
				return nil
			}
			current.ProviderMessageID = &providerMessageID
		case sendErr == nil:
			// The provider accepted it, even if stale recovery gave up on this attempt meanwhile.
			current.MarkSent(providerMessageID, now)
		case current.Status != messagingDomain.StatusSending:
			// Stale recovery or a receipt already recorded a failure for this attempt.
			status = current.Status
			return nil
		default:
			current.MarkSendFailure(sendErr.Error(), now, d.config.Backoff.Delay(current.Attempts))
		}

		status = current.Status
		current.UpdatedAt = now
		*msg = *current
		recorded = true
		return d.messageRepo.Update(txCtx, current)
	})
	if err != nil {
		d.logger.Error("failed to record send outcome",
			slog.String("message_id", msg.ID.String()),
			slog.Any("send_error", sendErr),
			slog.Any("error", err),
		)
		return sendErr == nil
	}

	if sendErr != nil && recorded {
		d.afterFailure(ctx, msg, status, sendErr)
	}
	d.metrics.RecordOperation(ctx, metrics.DomainMessaging, "message_send", sendStatus(status, sendErr))
	return sendErr == nil
}

// afterFailure schedules the retry of a FAILED message and alerts on a CANCELLED one.
func (d *dispatcherUseCase) afterFailure(
	ctx context.Context,
	msg *messagingDomain.OutboundMessage,
	status messagingDomain.Status,
	cause error,
) {
	switch status {
	case messagingDomain.StatusFailed:
		d.logger.Warn("message send failed, retrying",
			slog.String("message_id", msg.ID.String()),
			slog.Int("attempts", msg.Attempts),
			slog.Time("scheduled_for", msg.ScheduledFor),
			slog.Any("error", cause),
		)
		if _, err := d.scheduleRetry(ctx, msg); err != nil {
			// RetryFailures promotes it anyway.
			d.logger.Warn("failed to schedule message retry",
				slog.String("message_id", msg.ID.String()),
				slog.Any("error", err),
			)
		}
	case messagingDomain.StatusCancelled:
		d.logger.Error("message exhausted its attempts",
			slog.String("message_id", msg.ID.String()),
			slog.String("tenant_id", msg.TenantID.String()),
			slog.Int("attempts", msg.Attempts),
			slog.Any("error", cause),
		)
		d.metrics.RecordOperation(ctx, metrics.DomainMessaging, "message_exhausted", metrics.StatusError)
	}
}

func sendStatus(status messagingDomain.Status, sendErr error) string {
	if sendErr == nil {
		return "success"
	}
	return string(status)
}

// scheduleRetry schedules a single-message retry at the message's next scheduled time.
func (d *dispatcherUseCase) scheduleRetry(ctx context.Context, msg *messagingDomain.OutboundMessage) (bool, error) {
	delay := msg.ScheduledFor.Sub(d.now())
	if delay < 0 {
		delay = 0
	}
	ttl := delay
	if d.config.RetryTokenTTL > 0 && d.config.RetryTokenTTL < ttl {
		ttl = d.config.RetryTokenTTL
	}

	payload, err := json.Marshal(RetryPayload{MessageID: msg.ID})
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal message retry payload")
	}

	return d.scheduler.ScheduleOnce(ctx, retry.Request{
		Subject:  Subject(msg.ID),
		TaskID:   fmt.Sprintf("%s:%d", Subject(msg.ID), msg.Attempts),
		TaskType: TaskTypeOutboundRetry,
		Payload:  payload,
		Delay:    delay,
		TokenTTL: ttl,
	})
}

func (d *dispatcherUseCase) RetryFailures(ctx context.Context) (int64, error) {
	count, err := d.messageRepo.PromoteDue(ctx, d.now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		d.logger.Info("failed messages requeued", slog.Int64("count", count))
	}
	return count, nil
}

func (d *dispatcherUseCase) ExecuteRetry(ctx context.Context, messageID uuid.UUID) (bool, error) {
	if err := d.scheduler.Complete(ctx, Subject(messageID)); err != nil {
		d.logger.Warn("failed to release message retry token",
			slog.String("message_id", messageID.String()),
			slog.Any("error", err),
		)
	}
	return d.messageRepo.PromoteOne(ctx, messageID, d.now().UTC())
}

func (d *dispatcherUseCase) RecoverStale(ctx context.Context) (int, error) {
	now := d.now().UTC()
	cutoff := now.Add(-d.config.StaleSendingAfter)

	var recovered []*messagingDomain.OutboundMessage
	err := d.txManager.WithTx(ctx, func(txCtx context.Context) error {
		messages, err := d.messageRepo.ListStaleSending(txCtx, cutoff, d.config.StaleBatchSize)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			msg.MarkSendFailure(staleSendingError, now, d.config.Backoff.Delay(msg.Attempts))
			msg.UpdatedAt = now
			if err := d.messageRepo.Update(txCtx, msg); err != nil {
				return err
			}
		}
		recovered = messages
		return nil
	})
	if err != nil {
		return 0, err
	}

	d.metrics.RecordBatch(ctx, metrics.DomainMessaging, "stale_recovered", len(recovered))
	for _, msg := range recovered {
		d.afterFailure(ctx, msg, msg.Status, fmt.Errorf("%s", staleSendingError))
	}
	if len(recovered) > 0 {
		d.logger.Warn("stale sending messages recovered", slog.Int("count", len(recovered)))
	}
	return len(recovered), nil
}

func (d *dispatcherUseCase) HandleReceipt(
	ctx context.Context,
	receipt messagingDomain.Receipt,
) (*messagingDomain.OutboundMessage, error) {
	if err := receipt.Validate(); err != nil {
		return nil, err
	}

	found, err := d.findByReceipt(ctx, receipt)
	if err != nil {
		return nil, err
	}

	at := receipt.At
	if at.IsZero() {
		at = d.now()
	}
	at = at.UTC()

	var result *messagingDomain.OutboundMessage
	var failed bool
	err = d.txManager.WithTx(ctx, func(txCtx context.Context) error {
		msg, err := d.messageRepo.GetForUpdate(txCtx, found.ID)
		if err != nil {
			return err
		}
		result = msg

		if receipt.ProviderMessageID != "" && msg.ProviderMessageID == nil {
			providerMessageID := receipt.ProviderMessageID
			msg.ProviderMessageID = &providerMessageID
		}

		switch receipt.Status {
		case messagingDomain.ReceiptStatusSent:
			if msg.Status == messagingDomain.StatusSending {
				msg.Status = messagingDomain.StatusSent
				msg.SentAt = &at
				msg.LastError = nil
			}
		case messagingDomain.ReceiptStatusDelivered:
			if err := msg.MarkDelivered(at); err != nil {
				return err
			}
		case messagingDomain.ReceiptStatusFailed:
			cause := receipt.Error
			if cause == "" {
				cause = "provider reported failure"
			}
			switch msg.Status {
			case messagingDomain.StatusSending:
				msg.MarkSendFailure(cause, at, d.config.Backoff.Delay(msg.Attempts))
				failed = true
			case messagingDomain.StatusSent:
				msg.LastError = &cause
			default:
				return nil
			}
		}

		msg.UpdatedAt = d.now().UTC()
		return d.messageRepo.Update(txCtx, msg)
	})
	if err != nil {
		return nil, err
	}

	if failed {
		d.afterFailure(ctx, result, result.Status, fmt.Errorf("%s", *result.LastError))
	}
	return result, nil
}

// findByReceipt looks the message up by provider id, then by idempotency key.
func (d *dispatcherUseCase) findByReceipt(
	ctx context.Context,
	receipt messagingDomain.Receipt,
) (*messagingDomain.OutboundMessage, error) {
	if receipt.ProviderMessageID != "" {
		msg, err := d.messageRepo.GetByProviderMessageID(ctx, receipt.ProviderMessageID)
		if err == nil {
			return msg, nil
		}
		if !apperrors.Is(err, messagingDomain.ErrMessageNotFound) || receipt.IdempotencyKey == "" {
			return nil, err
		}
	}
	return d.messageRepo.GetByIdempotencyKey(ctx, receipt.IdempotencyKey)
}

func (d *dispatcherUseCase) RecordInbound(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
	at time.Time,
) error {
	if strings.TrimSpace(conversationRef) == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "conversation ref is required")
	}
	if at.IsZero() {
		at = d.now()
	}
	return d.templateRepo.RecordInbound(ctx, tenantID, conversationRef, at.UTC())
}

// NewDispatcherUseCase creates a new outbound message dispatcher.
func NewDispatcherUseCase(
	txManager database.TxManager,
	messageRepo MessageRepository,
	templateRepo TemplateRepository,
	provider Provider,
	scheduler RetryScheduler,
	limiter SendLimiter,
	businessMetrics metrics.BusinessMetrics,
	config Config,
	logger *slog.Logger,
) DispatcherUseCase {
	return &dispatcherUseCase{
		txManager:    txManager,
		messageRepo:  messageRepo,
		templateRepo: templateRepo,
		provider:     provider,
		scheduler:    scheduler,
		limiter:      limiter,
		metrics:      businessMetrics,
		config:       config,
		logger:       logger,
		now:          time.Now,
	}
}
