// Package domain defines the requests and errors exchanged with the external calendar.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/clinicops/internal/errors"
)

// EventRequest describes the remote event that mirrors an appointment.
type EventRequest struct {
	TenantID      uuid.UUID
	AppointmentID uuid.UUID
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	// Timezone is the IANA zone the event is displayed in.
	Timezone string
}

var (
	// ErrCalendarNotConfigured indicates the tenant has no calendar integration.
	ErrCalendarNotConfigured = errors.Wrap(errors.ErrGateway, "calendar not configured")

	// ErrCalendarUnavailable indicates the calendar API failed or timed out.
	ErrCalendarUnavailable = errors.Wrap(errors.ErrGateway, "calendar unavailable")
)
