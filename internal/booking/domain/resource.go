package domain

import (
	"time"

	"github.com/google/uuid"
)

// Resource is a bookable service of a tenant (a practitioner, a room, a procedure).
type Resource struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	// Code is unique per tenant and is what clients book by.
	Code            string
	Name            string
	DurationMinutes int
	// Timezone is an IANA zone name; service hours are expressed in it.
	Timezone  string
	Active    bool
	Hours     []ServiceHours
	CreatedAt time.Time
}

// ServiceHours is one weekly opening window, in minutes since local midnight.
// A weekday may have several windows.
type ServiceHours struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// Duration returns the length of one booking on this resource.
func (r *Resource) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// Location loads the resource's timezone, falling back to UTC when it is empty.
func (r *Resource) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	return loc, nil
}

// SlotAt returns the slot a booking starting at start would occupy.
func (r *Resource) SlotAt(start time.Time) TimeRange {
	return NewTimeRange(start.UTC(), r.Duration())
}

// WithinHours reports whether slot fits entirely inside one service-hours window of the
// weekday it starts on, evaluated in the resource's timezone.
func (r *Resource) WithinHours(slot TimeRange) (bool, error) {
	if !slot.Valid() {
		return false, nil
	}

	loc, err := r.Location()
	if err != nil {
		return false, err
	}

	local := slot.Start.In(loc)
	startMinute := local.Hour()*60 + local.Minute()
	if local.Second() != 0 || local.Nanosecond() != 0 {
		// A partial minute counts as the next one.
		startMinute++
	}
	endMinute := startMinute + int(slot.Duration().Minutes())

	for _, window := range r.Hours {
		if window.Weekday != local.Weekday() {
			continue
		}
		if startMinute >= window.StartMinute && endMinute <= window.EndMinute {
			return true, nil
		}
	}
	return false, nil
}
