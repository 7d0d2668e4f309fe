package domain

import (
	"fmt"
)

// SyncStatus is the state of an appointment's reconciliation with the external calendar.
//
//	OK <-> TENTATIVE -> FAILED
//
// FAILED is terminal until an administrative reset moves it back to TENTATIVE.
type SyncStatus string

const (
	SyncStatusOK        SyncStatus = "ok"
	SyncStatusTentative SyncStatus = "tentative"
	SyncStatusFailed    SyncStatus = "failed"
)

// Validate checks if the sync status is known.
func (s SyncStatus) Validate() error {
	switch s {
	case SyncStatusOK, SyncStatusTentative, SyncStatusFailed:
		return nil
	default:
		return ErrInvalidSyncStatus
	}
}

// String returns the string representation of the sync status.
func (s SyncStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	switch s {
	case SyncStatusOK:
		return next == SyncStatusOK || next == SyncStatusTentative
	case SyncStatusTentative:
		return next == SyncStatusOK || next == SyncStatusTentative || next == SyncStatusFailed
	case SyncStatusFailed:
		return next == SyncStatusFailed
	default:
		return false
	}
}

// SyncOutcome is what the calendar gateway said when a booking was made.
type SyncOutcome string

const (
	// SyncOutcomeAbsent means the tenant has no calendar integration.
	SyncOutcomeAbsent SyncOutcome = "absent"
	// SyncOutcomeUnreachable means the gateway errored or timed out.
	SyncOutcomeUnreachable SyncOutcome = "unreachable"
	// SyncOutcomeAvailable means the gateway confirmed the slot is free.
	SyncOutcomeAvailable SyncOutcome = "available"
)

// Validate checks if the outcome is known.
func (o SyncOutcome) Validate() error {
	switch o {
	case SyncOutcomeAbsent, SyncOutcomeUnreachable, SyncOutcomeAvailable:
		return nil
	default:
		return fmt.Errorf("invalid sync outcome %q", string(o))
	}
}

// Warning is a non-fatal notice returned with a booking result.
type Warning string

const (
	WarningNone Warning = ""
	// WarningCalendarTentative means the calendar could not be reached; the booking
	// stands and will be synced later.
	WarningCalendarTentative Warning = "GOOGLE_TENTATIVE"
	// WarningCalendarCancelPending means the remote event could not be removed yet.
	WarningCalendarCancelPending Warning = "GOOGLE_CANCEL_PENDING"
)

// LastErrorCalendarUnreachable is stored on appointments booked while the calendar was down.
const LastErrorCalendarUnreachable = "calendar unreachable at booking time"

// ApplySyncOutcome resets the sync fields of a freshly booked (or rescheduled) appointment
// and returns the warning the caller should see.
func (a *Appointment) ApplySyncOutcome(outcome SyncOutcome) Warning {
	a.RetryCount = 0
	a.LastError = nil

	switch outcome {
	case SyncOutcomeUnreachable:
		msg := LastErrorCalendarUnreachable
		a.SyncStatus = SyncStatusTentative
		a.LastError = &msg
		return WarningCalendarTentative
	case SyncOutcomeAvailable:
		a.SyncStatus = SyncStatusTentative
		return WarningNone
	case SyncOutcomeAbsent:
		a.SyncStatus = SyncStatusOK
		return WarningNone
	default:
		a.SyncStatus = SyncStatusOK
		return WarningNone
	}
}

// MarkSynced records a successful remote create.
func (a *Appointment) MarkSynced(externalRef string) {
	a.SyncStatus = SyncStatusOK
	a.RetryCount = 0
	a.LastError = nil
	a.ExternalEventRef = &externalRef
}

// MarkSyncFailure records a failed remote create. The retry count grows; the appointment
// stays TENTATIVE while the new count is below ceiling and becomes FAILED otherwise.
// It returns the resulting status.
func (a *Appointment) MarkSyncFailure(cause string, ceiling int) SyncStatus {
	a.RetryCount++
	a.LastError = &cause
	if a.RetryCount < ceiling {
		a.SyncStatus = SyncStatusTentative
	} else {
		a.SyncStatus = SyncStatusFailed
	}
	return a.SyncStatus
}

// ResetFailedSync moves a FAILED appointment back to TENTATIVE with a fresh retry budget.
func (a *Appointment) ResetFailedSync() error {
	if a.SyncStatus != SyncStatusFailed {
		return ErrSyncNotFailed
	}
	a.SyncStatus = SyncStatusTentative
	a.RetryCount = 0
	a.LastError = nil
	return nil
}

// NeedsSync reports whether a remote create is still outstanding: the appointment is
// active, not FAILED, and has no linked remote event yet.
func (a *Appointment) NeedsSync() bool {
	if !a.IsActive() {
		return false
	}
	switch a.SyncStatus {
	case SyncStatusTentative:
		return !a.HasExternalEvent()
	case SyncStatusOK:
		return !a.HasExternalEvent()
	case SyncStatusFailed:
		return false
	default:
		return false
	}
}
