package domain

import (
	"github.com/allisson/clinicops/internal/errors"
)

// Booking error definitions.
var (
	// ErrSlotTaken indicates the requested range overlaps an active appointment or a busy
	// window in the tenant's calendar.
	ErrSlotTaken = errors.Wrap(errors.ErrConflict, "slot taken")

	// ErrOutOfHours indicates the requested range is outside the resource's service hours.
	ErrOutOfHours = errors.Wrap(errors.ErrInvalidInput, "outside service hours")

	// ErrInvalidService indicates the resource does not exist or is not active.
	ErrInvalidService = errors.Wrap(errors.ErrInvalidInput, "invalid service")

	// ErrInvalidTimezone indicates the resource carries an unknown IANA timezone.
	ErrInvalidTimezone = errors.Wrap(errors.ErrInvalidInput, "invalid resource timezone")

	// ErrAppointmentNotFound indicates the appointment was not found for the tenant.
	ErrAppointmentNotFound = errors.Wrap(errors.ErrNotFound, "appointment not found")

	// ErrAppointmentNotActive indicates the appointment no longer holds a slot.
	ErrAppointmentNotActive = errors.Wrap(errors.ErrConflict, "appointment is not active")

	// ErrExternalRefTaken indicates another appointment of the tenant is linked to the same remote event.
	ErrExternalRefTaken = errors.Wrap(errors.ErrConflict, "external event ref already linked")

	// ErrSyncNotFailed indicates a sync reset was requested for an appointment that is not FAILED.
	ErrSyncNotFailed = errors.Wrap(errors.ErrConflict, "calendar sync is not failed")

	ErrInvalidStatus     = errors.Wrap(errors.ErrInvalidInput, "invalid appointment status")
	ErrInvalidSyncStatus = errors.Wrap(errors.ErrInvalidInput, "invalid sync status")
)
