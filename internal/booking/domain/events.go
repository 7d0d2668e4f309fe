package domain

import (
	"github.com/google/uuid"
)

// Domain event types written to the outbox in the same transaction as the appointment.
const (
	EventSyncRequested   = "appointment.sync_requested"
	EventCancelRequested = "appointment.cancel_requested"
	EventBooked          = "appointment.booked"
)

// SyncRequestedEvent asks the calendar sync to reconcile an appointment.
type SyncRequestedEvent struct {
	AppointmentID uuid.UUID   `json:"appointment_id"`
	TenantID      uuid.UUID   `json:"tenant_id"`
	Outcome       SyncOutcome `json:"outcome"`
}

// CancelRequestedEvent asks the calendar sync to remove a remote event that was unlinked.
type CancelRequestedEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	ExternalRef   string    `json:"external_ref"`
}

// BookedEvent announces a new booking that has someone to notify.
type BookedEvent struct {
	AppointmentID   uuid.UUID `json:"appointment_id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	ResourceName    string    `json:"resource_name"`
	StartAt         string    `json:"start_at"`
	Timezone        string    `json:"timezone"`
	Recipient       string    `json:"recipient"`
	ConversationRef *string   `json:"conversation_ref,omitempty"`
}
