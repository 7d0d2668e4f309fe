// Package dto provides data transfer objects for the messaging HTTP endpoints.
package dto

import (
	"errors"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
	customValidation "github.com/allisson/clinicops/internal/validation"
)

// maxDelaySeconds bounds delay_seconds before the use case clamps it further.
const maxDelaySeconds = 7 * 24 * 60 * 60

// validateClassification accepts the classification names and their aliases.
func validateClassification(value any) error {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if _, err := messagingDomain.ParseClassification(s); err != nil {
		return errors.New("must be templated or freeform")
	}
	return nil
}

// EnqueueRequest contains the parameters for queueing an outbound message.
type EnqueueRequest struct {
	ConversationRef *string           `json:"conversation_ref,omitempty"`
	Recipient       string            `json:"recipient"`
	Classification  string            `json:"classification"`
	TemplateName    string            `json:"template_name,omitempty"`
	Language        string            `json:"language,omitempty"`
	Variables       map[string]string `json:"variables,omitempty"`
	Body            string            `json:"body,omitempty"`
	IdempotencyKey  string            `json:"idempotency_key,omitempty"`
	NotBefore       string            `json:"not_before,omitempty"`
	DelaySeconds    int               `json:"delay_seconds,omitempty"`
}

// Validate checks if the enqueue request is valid. Messaging policy is checked by the use case.
func (r *EnqueueRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ConversationRef,
			validation.NilOrNotEmpty,
			validation.Length(1, 255),
		),
		validation.Field(&r.Recipient,
			validation.Required,
			customValidation.Recipient,
		),
		validation.Field(&r.Classification,
			validation.Required,
			validation.By(validateClassification),
		),
		validation.Field(&r.TemplateName,
			customValidation.NoWhitespace,
			validation.Length(0, 128),
		),
		validation.Field(&r.Language, customValidation.Language),
		validation.Field(&r.Body, validation.Length(0, 4096)),
		validation.Field(&r.IdempotencyKey,
			customValidation.NoWhitespace,
			validation.Length(0, 128),
		),
		validation.Field(&r.NotBefore, customValidation.RFC3339),
		validation.Field(&r.DelaySeconds, validation.Min(0), validation.Max(maxDelaySeconds)),
	)
}

// ToRequest converts the request into the use case input. Validate must have passed.
func (r *EnqueueRequest) ToRequest(tenantID uuid.UUID) messagingDomain.EnqueueRequest {
	classification, _ := messagingDomain.ParseClassification(r.Classification)
	req := messagingDomain.EnqueueRequest{
		TenantID:        tenantID,
		ConversationRef: r.ConversationRef,
		Recipient:       r.Recipient,
		Classification:  classification,
		TemplateName:    r.TemplateName,
		Language:        r.Language,
		Variables:       r.Variables,
		Body:            r.Body,
		IdempotencyKey:  r.IdempotencyKey,
		Delay:           time.Duration(r.DelaySeconds) * time.Second,
	}
	if r.NotBefore != "" {
		notBefore, _ := time.Parse(time.RFC3339, r.NotBefore)
		req.NotBefore = &notBefore
	}
	return req
}

// ReceiptRequest is a provider delivery callback.
type ReceiptRequest struct {
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	IdempotencyKey    string `json:"idempotency_key,omitempty"`
	Status            string `json:"status"`
	Error             string `json:"error,omitempty"`
	At                string `json:"at,omitempty"`
}

// Validate checks if the receipt request is valid.
func (r *ReceiptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProviderMessageID,
			validation.When(r.IdempotencyKey == "", validation.Required.Error("provider_message_id or idempotency_key is required")),
			validation.Length(0, 255),
		),
		validation.Field(&r.IdempotencyKey, validation.Length(0, 128)),
		validation.Field(&r.Status,
			validation.Required,
			validation.In(
				string(messagingDomain.ReceiptStatusSent),
				string(messagingDomain.ReceiptStatusDelivered),
				string(messagingDomain.ReceiptStatusFailed),
			),
		),
		validation.Field(&r.Error, validation.Length(0, 1024)),
		validation.Field(&r.At, customValidation.RFC3339),
	)
}

// ToReceipt converts the request into a domain receipt. Validate must have passed.
func (r *ReceiptRequest) ToReceipt() messagingDomain.Receipt {
	receipt := messagingDomain.Receipt{
		ProviderMessageID: r.ProviderMessageID,
		IdempotencyKey:    r.IdempotencyKey,
		Status:            messagingDomain.ReceiptStatus(r.Status),
		Error:             r.Error,
	}
	if r.At != "" {
		receipt.At, _ = time.Parse(time.RFC3339, r.At)
	}
	return receipt
}

// InboundRequest records an inbound message on a conversation.
type InboundRequest struct {
	TenantID        string `json:"tenant_id"`
	ConversationRef string `json:"conversation_ref"`
	ReceivedAt      string `json:"received_at,omitempty"`
}

// Validate checks if the inbound request is valid.
func (r *InboundRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TenantID, validation.Required, customValidation.UUID),
		validation.Field(&r.ConversationRef,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.ReceivedAt, customValidation.RFC3339),
	)
}

// Parsed returns the typed tenant id and receive time. Validate must have passed.
func (r *InboundRequest) Parsed() (uuid.UUID, time.Time) {
	tenantID, _ := uuid.Parse(r.TenantID)
	var receivedAt time.Time
	if r.ReceivedAt != "" {
		receivedAt, _ = time.Parse(time.RFC3339, r.ReceivedAt)
	}
	return tenantID, receivedAt
}
