// Package dto provides data transfer objects for the booking HTTP endpoints.
package dto

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	customValidation "github.com/allisson/clinicops/internal/validation"
)

// ReserveRequest contains the parameters for reserving a slot.
type ReserveRequest struct {
	ResourceCode    string  `json:"resource_code"`
	StartAt         string  `json:"start_at"`
	ConversationRef *string `json:"conversation_ref,omitempty"`
	Recipient       *string `json:"recipient,omitempty"`
}

// Validate checks if the reserve request is valid.
func (r *ReserveRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ResourceCode,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 64),
		),
		validation.Field(&r.StartAt,
			validation.Required,
			customValidation.RFC3339,
		),
		validation.Field(&r.ConversationRef,
			validation.NilOrNotEmpty,
			validation.Length(1, 255),
		),
		validation.Field(&r.Recipient,
			validation.NilOrNotEmpty,
			customValidation.Recipient,
		),
	)
}

// ToInput converts the request into the use case input. Validate must have passed.
func (r *ReserveRequest) ToInput(tenantID uuid.UUID) bookingDomain.ReserveInput {
	startAt, _ := time.Parse(time.RFC3339, r.StartAt)
	return bookingDomain.ReserveInput{
		TenantID:        tenantID,
		ResourceCode:    r.ResourceCode,
		StartAt:         startAt,
		ConversationRef: r.ConversationRef,
		Recipient:       r.Recipient,
	}
}

// RescheduleRequest contains the parameters for moving an appointment.
type RescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	NewStartAt    string `json:"new_start_at"`
}

// Validate checks if the reschedule request is valid.
func (r *RescheduleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AppointmentID, validation.Required, customValidation.UUID),
		validation.Field(&r.NewStartAt, validation.Required, customValidation.RFC3339),
	)
}

// Parsed returns the typed appointment id and start. Validate must have passed.
func (r *RescheduleRequest) Parsed() (uuid.UUID, time.Time) {
	id, _ := uuid.Parse(r.AppointmentID)
	startAt, _ := time.Parse(time.RFC3339, r.NewStartAt)
	return id, startAt
}

// CancelRequest contains the parameters for cancelling an appointment.
type CancelRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// Validate checks if the cancel request is valid.
func (r *CancelRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AppointmentID, validation.Required, customValidation.UUID),
	)
}

// ParsedID returns the typed appointment id. Validate must have passed.
func (r *CancelRequest) ParsedID() uuid.UUID {
	id, _ := uuid.Parse(r.AppointmentID)
	return id
}
