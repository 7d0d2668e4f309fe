// Package domain defines outbound messages, the templates they are rendered from and the
// conversation activity that decides whether freeform replies are allowed.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the delivery status of an outbound message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	// StatusCancelled is terminal; the message exhausted its attempts.
	StatusCancelled Status = "cancelled"
)

// IsTerminalSuccess reports whether the provider accepted the message.
func (s Status) IsTerminalSuccess() bool {
	return s == StatusSent || s == StatusDelivered
}

// Validate checks if the status is known.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusSending, StatusSent, StatusDelivered, StatusFailed, StatusCancelled:
		return nil
	default:
		return ErrInvalidStatus
	}
}

// Classification decides whether a message needs an approved template.
type Classification string

const (
	// ClassificationTemplated messages are always rendered from an approved template.
	ClassificationTemplated Classification = "templated"
	// ClassificationFreeform messages carry their own body and need an open session.
	ClassificationFreeform Classification = "freeform"
)

// ParseClassification accepts the canonical names and the "restricted" and "session" aliases.
func ParseClassification(value string) (Classification, error) {
	switch value {
	case "templated", "restricted":
		return ClassificationTemplated, nil
	case "freeform", "session":
		return ClassificationFreeform, nil
	default:
		return "", ErrInvalidClassification
	}
}

// OutboundMessage is a message waiting for, or done with, delivery through the provider.
type OutboundMessage struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	ConversationRef  *string
	Recipient        string
	Classification   Classification
	TemplateName     *string
	TemplateLanguage *string
	// Payload is the rendered text sent to the provider.
	Payload        string
	IdempotencyKey string
	ScheduledFor   time.Time
	Status         Status
	Attempts       int
	MaxAttempts    int
	LastError      *string
	// ProviderMessageID is set once the provider accepted the message.
	ProviderMessageID *string
	SentAt            *time.Time
	DeliveredAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Content is the part of a message that a repeated enqueue refreshes.
type Content struct {
	Recipient        string
	TemplateName     *string
	TemplateLanguage *string
	Payload          string
	ScheduledFor     time.Time
}

// Refreshable reports whether a repeated enqueue may overwrite the content.
func (m *OutboundMessage) Refreshable() bool {
	return m.Status == StatusPending || m.Status == StatusFailed
}

// Refresh replaces the content of a PENDING or FAILED message. Attempts are kept.
func (m *OutboundMessage) Refresh(content Content) {
	m.Recipient = content.Recipient
	m.TemplateName = content.TemplateName
	m.TemplateLanguage = content.TemplateLanguage
	m.Payload = content.Payload
	m.ScheduledFor = content.ScheduledFor
}

// Exhausted reports whether no attempt is left.
func (m *OutboundMessage) Exhausted() bool {
	return m.Attempts >= m.MaxAttempts
}

// MarkSending claims the message for one attempt.
func (m *OutboundMessage) MarkSending(now time.Time) {
	m.Status = StatusSending
	m.Attempts++
	m.UpdatedAt = now
}

// MarkSent records the provider's acceptance.
func (m *OutboundMessage) MarkSent(providerMessageID string, now time.Time) {
	m.Status = StatusSent
	m.ProviderMessageID = &providerMessageID
	m.SentAt = &now
	m.LastError = nil
}

// MarkDelivered records a delivery receipt. Only SENDING and SENT messages can be delivered.
func (m *OutboundMessage) MarkDelivered(now time.Time) error {
	switch m.Status {
	case StatusSending, StatusSent:
		m.Status = StatusDelivered
		m.DeliveredAt = &now
		if m.SentAt == nil {
			m.SentAt = &now
		}
		return nil
	case StatusDelivered:
		return nil
	default:
		return ErrInvalidTransition
	}
}

// MarkSendFailure records a failed attempt. With attempts left the message becomes FAILED
// and waits backoff before it is eligible again; otherwise it is CANCELLED.
// It returns the resulting status.
func (m *OutboundMessage) MarkSendFailure(cause string, now time.Time, backoff time.Duration) Status {
	m.LastError = &cause
	if m.Exhausted() {
		m.Status = StatusCancelled
		return m.Status
	}
	m.Status = StatusFailed
	m.ScheduledFor = now.Add(backoff)
	return m.Status
}
