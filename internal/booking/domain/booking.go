package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReserveInput is a request to book a resource at a start time.
type ReserveInput struct {
	TenantID        uuid.UUID
	ResourceCode    string
	StartAt         time.Time
	ConversationRef *string
	Recipient       *string
}

// BookingResult is returned by reserve, reschedule and cancel.
type BookingResult struct {
	Appointment *Appointment
	Warning     Warning
}
