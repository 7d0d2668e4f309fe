// Package domain defines the core booking domain models: appointments, their sync state
// with the external calendar, and the bookable resources with their service hours.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of an appointment.
type Status string

const (
	StatusPending     Status = "pending"
	StatusBooked      Status = "booked"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// ActiveStatuses are the statuses that hold a slot. Active appointments of the same
// tenant and resource never overlap.
var ActiveStatuses = []Status{StatusPending, StatusBooked, StatusConfirmed}

// IsActive reports whether the status holds a slot.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusBooked, StatusConfirmed:
		return true
	case StatusCompleted, StatusCancelled, StatusRescheduled:
		return false
	default:
		return false
	}
}

// Validate checks if the status is known.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusBooked, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled:
		return nil
	default:
		return ErrInvalidStatus
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Appointment is a booked slot on a resource.
type Appointment struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ResourceID uuid.UUID
	// Slot is the half-open interval [StartAt, EndAt).
	Slot   TimeRange
	Status Status
	// SyncStatus tracks reconciliation with the tenant's external calendar.
	SyncStatus SyncStatus
	RetryCount int
	LastError  *string
	// ExternalEventRef is the remote calendar event id, unique per tenant when set.
	ExternalEventRef *string
	ConversationRef  *string
	// Recipient is the messaging address notifications are sent to.
	Recipient *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the appointment holds its slot.
func (a *Appointment) IsActive() bool {
	return a.Status.IsActive()
}

// HasExternalEvent reports whether a remote calendar event is linked.
func (a *Appointment) HasExternalEvent() bool {
	return a.ExternalEventRef != nil && *a.ExternalEventRef != ""
}

// ClearExternalEvent unlinks the remote event and returns the previous ref, if any.
func (a *Appointment) ClearExternalEvent() (string, bool) {
	if !a.HasExternalEvent() {
		a.ExternalEventRef = nil
		return "", false
	}
	ref := *a.ExternalEventRef
	a.ExternalEventRef = nil
	return ref, true
}
