package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestStatus_IsActive(t *testing.T) {
	assert.True(t, StatusPending.IsActive())
	assert.True(t, StatusBooked.IsActive())
	assert.True(t, StatusConfirmed.IsActive())
	assert.False(t, StatusCompleted.IsActive())
	assert.False(t, StatusCancelled.IsActive())
	assert.False(t, StatusRescheduled.IsActive())
	assert.False(t, Status("unknown").IsActive())

	for _, status := range ActiveStatuses {
		assert.True(t, status.IsActive())
	}
}

func TestStatus_Validate(t *testing.T) {
	assert.NoError(t, StatusBooked.Validate())
	assert.ErrorIs(t, Status("archived").Validate(), ErrInvalidStatus)
}

func TestSyncStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     SyncStatus
		to       SyncStatus
		expected bool
	}{
		{from: SyncStatusOK, to: SyncStatusTentative, expected: true},
		{from: SyncStatusOK, to: SyncStatusFailed, expected: false},
		{from: SyncStatusTentative, to: SyncStatusOK, expected: true},
		{from: SyncStatusTentative, to: SyncStatusTentative, expected: true},
		{from: SyncStatusTentative, to: SyncStatusFailed, expected: true},
		{from: SyncStatusFailed, to: SyncStatusOK, expected: false},
		{from: SyncStatusFailed, to: SyncStatusTentative, expected: false},
		{from: SyncStatus("bogus"), to: SyncStatusOK, expected: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAppointment_ApplySyncOutcome(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		appt := &Appointment{RetryCount: 3, LastError: strPtr("old")}

		warning := appt.ApplySyncOutcome(SyncOutcomeAbsent)

		assert.Equal(t, WarningNone, warning)
		assert.Equal(t, SyncStatusOK, appt.SyncStatus)
		assert.Equal(t, 0, appt.RetryCount)
		assert.Nil(t, appt.LastError)
	})

	t.Run("unreachable", func(t *testing.T) {
		appt := &Appointment{}

		warning := appt.ApplySyncOutcome(SyncOutcomeUnreachable)

		assert.Equal(t, WarningCalendarTentative, warning)
		assert.Equal(t, SyncStatusTentative, appt.SyncStatus)
		assert.Equal(t, 0, appt.RetryCount)
		require.NotNil(t, appt.LastError)
		assert.Equal(t, LastErrorCalendarUnreachable, *appt.LastError)
	})

	t.Run("available", func(t *testing.T) {
		appt := &Appointment{LastError: strPtr("old")}

		warning := appt.ApplySyncOutcome(SyncOutcomeAvailable)

		assert.Equal(t, WarningNone, warning)
		assert.Equal(t, SyncStatusTentative, appt.SyncStatus)
		assert.Nil(t, appt.LastError)
	})
}

func TestAppointment_MarkSyncFailure(t *testing.T) {
	appt := &Appointment{Status: StatusBooked, SyncStatus: SyncStatusTentative}

	assert.Equal(t, SyncStatusTentative, appt.MarkSyncFailure("boom", 3))
	assert.Equal(t, 1, appt.RetryCount)
	assert.Equal(t, SyncStatusTentative, appt.MarkSyncFailure("boom", 3))
	assert.Equal(t, 2, appt.RetryCount)
	assert.Equal(t, SyncStatusFailed, appt.MarkSyncFailure("boom", 3))
	assert.Equal(t, 3, appt.RetryCount)
	require.NotNil(t, appt.LastError)
	assert.Equal(t, "boom", *appt.LastError)
}

func TestAppointment_MarkSynced(t *testing.T) {
	appt := &Appointment{SyncStatus: SyncStatusTentative, RetryCount: 2, LastError: strPtr("boom")}

	appt.MarkSynced("evt-1")

	assert.Equal(t, SyncStatusOK, appt.SyncStatus)
	assert.Equal(t, 0, appt.RetryCount)
	assert.Nil(t, appt.LastError)
	require.NotNil(t, appt.ExternalEventRef)
	assert.Equal(t, "evt-1", *appt.ExternalEventRef)
}

func TestAppointment_ResetFailedSync(t *testing.T) {
	t.Run("failed resets to tentative", func(t *testing.T) {
		appt := &Appointment{SyncStatus: SyncStatusFailed, RetryCount: 5, LastError: strPtr("boom")}

		require.NoError(t, appt.ResetFailedSync())
		assert.Equal(t, SyncStatusTentative, appt.SyncStatus)
		assert.Equal(t, 0, appt.RetryCount)
		assert.Nil(t, appt.LastError)
	})

	t.Run("not failed", func(t *testing.T) {
		appt := &Appointment{SyncStatus: SyncStatusTentative, RetryCount: 1}

		assert.ErrorIs(t, appt.ResetFailedSync(), ErrSyncNotFailed)
		assert.Equal(t, 1, appt.RetryCount)
	})
}

func TestAppointment_ClearExternalEvent(t *testing.T) {
	appt := &Appointment{ExternalEventRef: strPtr("evt-9")}

	ref, ok := appt.ClearExternalEvent()
	assert.True(t, ok)
	assert.Equal(t, "evt-9", ref)
	assert.Nil(t, appt.ExternalEventRef)

	ref, ok = appt.ClearExternalEvent()
	assert.False(t, ok)
	assert.Empty(t, ref)
}

func TestAppointment_NeedsSync(t *testing.T) {
	tests := []struct {
		name     string
		appt     Appointment
		expected bool
	}{
		{name: "tentative without ref", appt: Appointment{Status: StatusBooked, SyncStatus: SyncStatusTentative}, expected: true},
		{name: "ok with ref", appt: Appointment{Status: StatusBooked, SyncStatus: SyncStatusOK, ExternalEventRef: strPtr("e")}, expected: false},
		{name: "failed", appt: Appointment{Status: StatusBooked, SyncStatus: SyncStatusFailed}, expected: false},
		{name: "cancelled", appt: Appointment{Status: StatusCancelled, SyncStatus: SyncStatusTentative}, expected: false},
		{name: "completed", appt: Appointment{Status: StatusCompleted, SyncStatus: SyncStatusTentative}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appt.NeedsSync())
		})
	}
}
