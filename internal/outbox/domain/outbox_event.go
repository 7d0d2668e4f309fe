// Package domain defines the transactional outbox event written alongside appointment changes.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEventStatus represents the status of an outbox event
type OutboxEventStatus string

const (
	OutboxEventStatusPending OutboxEventStatus = "pending"
	// OutboxEventStatusProcessing marks an event claimed by a worker. The claim expires after
	// the processing lease, so a crashed worker's events are picked up again.
	OutboxEventStatusProcessing OutboxEventStatus = "processing"
	OutboxEventStatusProcessed  OutboxEventStatus = "processed"
	// OutboxEventStatusFailed is terminal; the event exhausted its handler attempts.
	OutboxEventStatusFailed OutboxEventStatus = "failed"
)

// OutboxEvent is a domain event committed in the same transaction as the state change it
// describes. Payload is JSON.
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Payload     string
	Status      OutboxEventStatus
	Retries     int
	LastError   *string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MarkProcessing claims the event for one handler run.
func (e *OutboxEvent) MarkProcessing() {
	e.Status = OutboxEventStatusProcessing
}

// MarkProcessed records a successful handler run.
func (e *OutboxEvent) MarkProcessed(now time.Time) {
	e.Status = OutboxEventStatusProcessed
	e.ProcessedAt = &now
	e.LastError = nil
}

// MarkAttemptFailed records a failed handler run. The event goes back to pending until it
// has failed maxRetries times.
func (e *OutboxEvent) MarkAttemptFailed(cause error, maxRetries int) {
	e.Retries++
	msg := cause.Error()
	e.LastError = &msg
	if e.Retries >= maxRetries {
		e.Status = OutboxEventStatusFailed
		return
	}
	e.Status = OutboxEventStatusPending
}
