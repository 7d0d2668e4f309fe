// Package repository implements data persistence for appointments and resources.
// Repositories support both PostgreSQL and MySQL. PostgreSQL enforces non-overlapping
// active appointments with an exclusion constraint; MySQL serializes bookings on the
// resource row.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	"github.com/allisson/clinicops/internal/database"
	apperrors "github.com/allisson/clinicops/internal/errors"
)

const postgresExternalRefConstraint = "appointments_tenant_external_ref_key"

const postgresAppointmentColumns = `id, tenant_id, resource_id, start_at, end_at, status, sync_status, retry_count,
			  last_error, external_event_ref, conversation_ref, recipient, created_at, updated_at`

// PostgreSQLAppointmentRepository implements Appointment persistence for PostgreSQL databases.
type PostgreSQLAppointmentRepository struct {
	db *sql.DB
}

// Create inserts a new appointment. An overlapping active appointment is reported as
// ErrSlotTaken by the appointments_no_overlap exclusion constraint.
func (p *PostgreSQLAppointmentRepository) Create(ctx context.Context, appt *bookingDomain.Appointment) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO appointments (id, tenant_id, resource_id, start_at, end_at, status, sync_status,
			  retry_count, last_error, external_event_ref, conversation_ref, recipient, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := querier.ExecContext(
		ctx,
		query,
		appt.ID,
		appt.TenantID,
		appt.ResourceID,
		appt.Slot.Start,
		appt.Slot.End,
		appt.Status,
		appt.SyncStatus,
		appt.RetryCount,
		appt.LastError,
		appt.ExternalEventRef,
		appt.ConversationRef,
		appt.Recipient,
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	if err != nil {
		return mapPostgresAppointmentError(err, "failed to create appointment")
	}
	return nil
}

// Update persists every mutable field of the appointment.
func (p *PostgreSQLAppointmentRepository) Update(ctx context.Context, appt *bookingDomain.Appointment) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE appointments
			  SET start_at = $1, end_at = $2, status = $3, sync_status = $4, retry_count = $5,
			      last_error = $6, external_event_ref = $7, conversation_ref = $8, recipient = $9, updated_at = $10
			  WHERE id = $11`

	result, err := querier.ExecContext(
		ctx,
		query,
		appt.Slot.Start,
		appt.Slot.End,
		appt.Status,
		appt.SyncStatus,
		appt.RetryCount,
		appt.LastError,
		appt.ExternalEventRef,
		appt.ConversationRef,
		appt.Recipient,
		appt.UpdatedAt,
		appt.ID,
	)
	if err != nil {
		return mapPostgresAppointmentError(err, "failed to update appointment")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return bookingDomain.ErrAppointmentNotFound
	}
	return nil
}

// Get retrieves an appointment of a tenant by ID.
func (p *PostgreSQLAppointmentRepository) Get(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresAppointmentColumns + `
			  FROM appointments
			  WHERE id = $1 AND tenant_id = $2`

	return p.scanOne(querier.QueryRowContext(ctx, query, appointmentID, tenantID), "failed to get appointment")
}

// GetByID retrieves an appointment by ID regardless of tenant.
func (p *PostgreSQLAppointmentRepository) GetByID(
	ctx context.Context,
	appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresAppointmentColumns + `
			  FROM appointments
			  WHERE id = $1`

	return p.scanOne(querier.QueryRowContext(ctx, query, appointmentID), "failed to get appointment by id")
}

// GetForUpdate retrieves an appointment and locks its row until the transaction ends.
// Must be called with a transaction context.
func (p *PostgreSQLAppointmentRepository) GetForUpdate(
	ctx context.Context,
	appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresAppointmentColumns + `
			  FROM appointments
			  WHERE id = $1
			  FOR UPDATE`

	return p.scanOne(querier.QueryRowContext(ctx, query, appointmentID), "failed to lock appointment")
}

// HasOverlap reports whether an active appointment of the same tenant and resource overlaps
// slot. excludeID, when set, is ignored (the appointment being rescheduled).
func (p *PostgreSQLAppointmentRepository) HasOverlap(
	ctx context.Context,
	tenantID, resourceID uuid.UUID,
	slot bookingDomain.TimeRange,
	excludeID *uuid.UUID,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT EXISTS (
			      SELECT 1 FROM appointments
			      WHERE tenant_id = $1 AND resource_id = $2
			        AND status IN ('pending', 'booked', 'confirmed')
			        AND start_at < $4 AND end_at > $3
			        AND ($5::uuid IS NULL OR id <> $5::uuid)
			  )`

	var exists bool
	err := querier.QueryRowContext(ctx, query, tenantID, resourceID, slot.Start, slot.End, excludeID).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check appointment overlap")
	}
	return exists, nil
}

// LockResource is a no-op on PostgreSQL: overlaps are rejected by the appointments_no_overlap
// exclusion constraint at write time.
func (p *PostgreSQLAppointmentRepository) LockResource(ctx context.Context, resourceID uuid.UUID) error {
	return nil
}

// ListSyncPending returns active TENTATIVE appointments without a remote event whose retry
// count is below ceiling, oldest first.
func (p *PostgreSQLAppointmentRepository) ListSyncPending(
	ctx context.Context,
	ceiling, limit int,
) ([]*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresAppointmentColumns + `
			  FROM appointments
			  WHERE sync_status = $1 AND retry_count < $2 AND external_event_ref IS NULL
			    AND status IN ('pending', 'booked', 'confirmed')
			  ORDER BY updated_at ASC
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, bookingDomain.SyncStatusTentative, ceiling, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list sync pending appointments")
	}
	return p.scanAll(rows)
}

// ListUpcomingWithRecipient returns active appointments with a recipient that start in [from, to).
func (p *PostgreSQLAppointmentRepository) ListUpcomingWithRecipient(
	ctx context.Context,
	from, to time.Time,
	limit int,
) ([]*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresAppointmentColumns + `
			  FROM appointments
			  WHERE start_at >= $1 AND start_at < $2 AND recipient IS NOT NULL
			    AND status IN ('pending', 'booked', 'confirmed')
			  ORDER BY start_at ASC
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list upcoming appointments")
	}
	return p.scanAll(rows)
}

func (p *PostgreSQLAppointmentRepository) scanOne(row *sql.Row, message string) (*bookingDomain.Appointment, error) {
	var appt bookingDomain.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.TenantID,
		&appt.ResourceID,
		&appt.Slot.Start,
		&appt.Slot.End,
		&appt.Status,
		&appt.SyncStatus,
		&appt.RetryCount,
		&appt.LastError,
		&appt.ExternalEventRef,
		&appt.ConversationRef,
		&appt.Recipient,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, bookingDomain.ErrAppointmentNotFound
		}
		return nil, apperrors.Wrap(err, message)
	}
	return &appt, nil
}

func (p *PostgreSQLAppointmentRepository) scanAll(rows *sql.Rows) ([]*bookingDomain.Appointment, error) {
	defer rows.Close() //nolint:errcheck

	var appointments []*bookingDomain.Appointment
	for rows.Next() {
		var appt bookingDomain.Appointment
		err := rows.Scan(
			&appt.ID,
			&appt.TenantID,
			&appt.ResourceID,
			&appt.Slot.Start,
			&appt.Slot.End,
			&appt.Status,
			&appt.SyncStatus,
			&appt.RetryCount,
			&appt.LastError,
			&appt.ExternalEventRef,
			&appt.ConversationRef,
			&appt.Recipient,
			&appt.CreatedAt,
			&appt.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan appointment")
		}
		appointments = append(appointments, &appt)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate appointments")
	}
	return appointments, nil
}

func mapPostgresAppointmentError(err error, message string) error {
	switch {
	case database.IsPostgresError(err, database.PostgresExclusionViolation):
		return bookingDomain.ErrSlotTaken
	case database.IsPostgresError(err, database.PostgresUniqueViolation) &&
		database.IsPostgresConstraint(err, postgresExternalRefConstraint):
		return bookingDomain.ErrExternalRefTaken
	case database.IsPostgresError(err, database.PostgresUniqueViolation):
		return apperrors.Wrap(apperrors.ErrConflict, message)
	default:
		return apperrors.Wrap(err, message)
	}
}

// NewPostgreSQLAppointmentRepository creates a new PostgreSQL Appointment repository instance.
func NewPostgreSQLAppointmentRepository(db *sql.DB) *PostgreSQLAppointmentRepository {
	return &PostgreSQLAppointmentRepository{db: db}
}
