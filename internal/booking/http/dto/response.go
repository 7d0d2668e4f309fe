package dto

import (
	"time"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
)

// AppointmentResponse represents an appointment in API responses.
type AppointmentResponse struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	ResourceID       string    `json:"resource_id"`
	StartAt          time.Time `json:"start_at"`
	EndAt            time.Time `json:"end_at"`
	Status           string    `json:"status"`
	SyncStatus       string    `json:"sync_status"`
	RetryCount       int       `json:"retry_count"`
	LastError        *string   `json:"last_error,omitempty"`
	ExternalEventRef *string   `json:"external_event_ref,omitempty"`
	ConversationRef  *string   `json:"conversation_ref,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BookingResponse is returned by reserve, reschedule and cancel.
type BookingResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Warning     string              `json:"warning,omitempty"`
}

// MapAppointmentToResponse converts a domain appointment to an API response.
func MapAppointmentToResponse(appt *bookingDomain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               appt.ID.String(),
		TenantID:         appt.TenantID.String(),
		ResourceID:       appt.ResourceID.String(),
		StartAt:          appt.Slot.Start,
		EndAt:            appt.Slot.End,
		Status:           appt.Status.String(),
		SyncStatus:       appt.SyncStatus.String(),
		RetryCount:       appt.RetryCount,
		LastError:        appt.LastError,
		ExternalEventRef: appt.ExternalEventRef,
		ConversationRef:  appt.ConversationRef,
		CreatedAt:        appt.CreatedAt,
		UpdatedAt:        appt.UpdatedAt,
	}
}

// MapBookingResultToResponse converts a booking result to an API response.
func MapBookingResultToResponse(result *bookingDomain.BookingResult) BookingResponse {
	return BookingResponse{
		Appointment: MapAppointmentToResponse(result.Appointment),
		Warning:     string(result.Warning),
	}
}
