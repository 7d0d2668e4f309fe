// Package usecase implements the outbound message dispatcher: policy-checked enqueue,
// leased batch sends, retries, delivery receipts and appointment notifications.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
	"github.com/allisson/clinicops/internal/retry"
)

// TaskTypeOutboundRetry is the task type of a scheduled single-message retry.
const TaskTypeOutboundRetry = "outbound:retry"

// MessageRepository defines outbound message persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg *messagingDomain.OutboundMessage) error
	Update(ctx context.Context, msg *messagingDomain.OutboundMessage) error
	GetByID(ctx context.Context, messageID uuid.UUID) (*messagingDomain.OutboundMessage, error)
	GetForUpdate(ctx context.Context, messageID uuid.UUID) (*messagingDomain.OutboundMessage, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*messagingDomain.OutboundMessage, error)
	GetByIdempotencyKeyForUpdate(ctx context.Context, key string) (*messagingDomain.OutboundMessage, error)
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*messagingDomain.OutboundMessage, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*messagingDomain.OutboundMessage, error)
	ListStaleSending(ctx context.Context, cutoff time.Time, limit int) ([]*messagingDomain.OutboundMessage, error)
	PromoteDue(ctx context.Context, now time.Time) (int64, error)
	PromoteOne(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error)
	HasOutbound(ctx context.Context, tenantID uuid.UUID, conversationRef string) (bool, error)
}

// TemplateRepository reads templates and conversation activity.
type TemplateRepository interface {
	FindApproved(ctx context.Context, tenantID uuid.UUID, name, language string) (*messagingDomain.MessageTemplate, error)
	GetActivity(ctx context.Context, tenantID uuid.UUID, conversationRef string) (*messagingDomain.ConversationActivity, error)
	RecordInbound(ctx context.Context, tenantID uuid.UUID, conversationRef string, at time.Time) error
}

// Provider sends one message and returns the provider message id.
type Provider interface {
	Send(ctx context.Context, msg *messagingDomain.OutboundMessage) (string, error)
}

// RetryScheduler schedules at most one pending retry per subject.
type RetryScheduler interface {
	ScheduleOnce(ctx context.Context, req retry.Request) (bool, error)
	Complete(ctx context.Context, subject string) error
}

// SendLimiter throttles provider sends. *rate.Limiter implements it.
type SendLimiter interface {
	Wait(ctx context.Context) error
}

// Config holds the dispatcher settings.
type Config struct {
	DefaultLanguage string
	// SessionWindow is how long after the last inbound message freeform messages are allowed.
	SessionWindow   time.Duration
	MaxInitialDelay time.Duration
	MaxAttempts     int
	// Backoff computes the wait after attempt n.
	Backoff         retry.Policy
	ProviderTimeout time.Duration
	// StaleSendingAfter is how long a message may stay SENDING before RecoverStale fails it.
	StaleSendingAfter time.Duration
	StaleBatchSize    int
	RetryTokenTTL     time.Duration
}

// DispatcherUseCase defines the outbound message operations.
type DispatcherUseCase interface {
	// Enqueue applies the messaging policy and gets or creates the message for its idempotency key.
	Enqueue(ctx context.Context, req messagingDomain.EnqueueRequest) (*messagingDomain.OutboundMessage, error)
	// DispatchBatch claims up to limit due messages and sends them. Returns the number sent.
	DispatchBatch(ctx context.Context, limit int) (int, error)
	// RetryFailures moves due FAILED messages with attempts left back to PENDING.
	RetryFailures(ctx context.Context) (int64, error)
	// ExecuteRetry runs a scheduled single-message retry.
	ExecuteRetry(ctx context.Context, messageID uuid.UUID) (bool, error)
	// RecoverStale fails messages stuck in SENDING.
	RecoverStale(ctx context.Context) (int, error)
	// HandleReceipt applies a provider delivery callback.
	HandleReceipt(ctx context.Context, receipt messagingDomain.Receipt) (*messagingDomain.OutboundMessage, error)
	// RecordInbound records an inbound message, opening the conversation's session window.
	RecordInbound(ctx context.Context, tenantID uuid.UUID, conversationRef string, at time.Time) error
}

// AppointmentRepository lists appointments that need notifications.
type AppointmentRepository interface {
	ListUpcomingWithRecipient(ctx context.Context, from, to time.Time, limit int) ([]*bookingDomain.Appointment, error)
}

// ResourceRepository loads the resource an appointment is booked on.
type ResourceRepository interface {
	Get(ctx context.Context, tenantID, resourceID uuid.UUID) (*bookingDomain.Resource, error)
}

// NotificationConfig holds the appointment notification settings.
type NotificationConfig struct {
	Reminder24hTemplate      string
	Reminder2hTemplate       string
	BookingConfirmedTemplate string
	// ReminderBatchSize bounds the appointments inspected per scan.
	ReminderBatchSize int
	// Lookahead extends the 24h scan window so the 24h reminder is queued before its send time.
	Lookahead time.Duration
}

// NotificationUseCase turns appointment events into outbound messages.
type NotificationUseCase interface {
	// ScheduleReminders enqueues the 24h and 2h reminders of upcoming appointments.
	// Returns the number of reminders queued.
	ScheduleReminders(ctx context.Context) (int, error)
	// NotifyBooked enqueues the booking confirmation.
	NotifyBooked(ctx context.Context, event bookingDomain.BookedEvent) error
}
