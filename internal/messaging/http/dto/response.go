package dto

import (
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
)

// EnqueueResponse is returned when a message is accepted for delivery.
type EnqueueResponse struct {
	OutboundMessageID string `json:"outbound_message_id"`
	Status            string `json:"status"`
	IdempotencyKey    string `json:"idempotency_key"`
}

// MapMessageToEnqueueResponse converts an outbound message to an enqueue response.
func MapMessageToEnqueueResponse(msg *messagingDomain.OutboundMessage) EnqueueResponse {
	return EnqueueResponse{
		OutboundMessageID: msg.ID.String(),
		Status:            string(msg.Status),
		IdempotencyKey:    msg.IdempotencyKey,
	}
}

// ReceiptResponse reports the message status after a receipt was applied.
type ReceiptResponse struct {
	OutboundMessageID string `json:"outbound_message_id"`
	Status            string `json:"status"`
}

// MapMessageToReceiptResponse converts an outbound message to a receipt response.
func MapMessageToReceiptResponse(msg *messagingDomain.OutboundMessage) ReceiptResponse {
	return ReceiptResponse{
		OutboundMessageID: msg.ID.String(),
		Status:            string(msg.Status),
	}
}
