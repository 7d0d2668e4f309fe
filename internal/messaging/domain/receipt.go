package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReceiptStatus is the status reported by a provider delivery callback.
type ReceiptStatus string

const (
	ReceiptStatusSent      ReceiptStatus = "sent"
	ReceiptStatusDelivered ReceiptStatus = "delivered"
	ReceiptStatusFailed    ReceiptStatus = "failed"
)

// Receipt is a provider delivery callback. The message is found by provider id first and
// idempotency key second.
type Receipt struct {
	ProviderMessageID string
	IdempotencyKey    string
	Status            ReceiptStatus
	Error             string
	At                time.Time
}

// Validate checks the receipt names a message and a known status.
func (r Receipt) Validate() error {
	if r.ProviderMessageID == "" && r.IdempotencyKey == "" {
		return ErrInvalidReceipt
	}
	switch r.Status {
	case ReceiptStatusSent, ReceiptStatusDelivered, ReceiptStatusFailed:
		return nil
	default:
		return ErrInvalidReceipt
	}
}

// ConversationActivity is the last inbound message time of a conversation.
type ConversationActivity struct {
	TenantID        uuid.UUID
	ConversationRef string
	LastInboundAt   time.Time
}

// SessionOpen reports whether freeform messages are allowed at now.
func (a *ConversationActivity) SessionOpen(now time.Time, window time.Duration) bool {
	if a == nil {
		return false
	}
	return now.Sub(a.LastInboundAt) <= window
}
