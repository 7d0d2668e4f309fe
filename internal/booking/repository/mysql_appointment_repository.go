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

const mysqlAppointmentColumns = `id, tenant_id, resource_id, start_at, end_at, status, sync_status, retry_count,
			  last_error, external_event_ref, conversation_ref, recipient, created_at, updated_at`

// MySQLAppointmentRepository implements Appointment persistence for MySQL databases.
// MySQL has no exclusion constraints, so callers must hold LockResource inside the
// booking transaction before checking for overlaps.
type MySQLAppointmentRepository struct {
	db *sql.DB
}

// Create inserts a new appointment.
func (m *MySQLAppointmentRepository) Create(ctx context.Context, appt *bookingDomain.Appointment) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO appointments (id, tenant_id, resource_id, start_at, end_at, status, sync_status,
			  retry_count, last_error, external_event_ref, conversation_ref, recipient, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := appt.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal appointment id")
	}

	tenantID, err := appt.TenantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tenant id")
	}

	resourceID, err := appt.ResourceID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal resource id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		tenantID,
		resourceID,
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
		return mapMySQLAppointmentError(err, "failed to create appointment")
	}
	return nil
}

// Update persists every mutable field of the appointment.
func (m *MySQLAppointmentRepository) Update(ctx context.Context, appt *bookingDomain.Appointment) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE appointments
			  SET start_at = ?, end_at = ?, status = ?, sync_status = ?, retry_count = ?,
			      last_error = ?, external_event_ref = ?, conversation_ref = ?, recipient = ?, updated_at = ?
			  WHERE id = ?`

	id, err := appt.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal appointment id")
	}

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
		id,
	)
	if err != nil {
		return mapMySQLAppointmentError(err, "failed to update appointment")
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
func (m *MySQLAppointmentRepository) Get(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := appointmentID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal appointment id")
	}

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT ` + mysqlAppointmentColumns + `
			  FROM appointments
			  WHERE id = ? AND tenant_id = ?`

	return scanMySQLAppointment(querier.QueryRowContext(ctx, query, id, tenant), "failed to get appointment")
}

// GetByID retrieves an appointment by ID regardless of tenant.
func (m *MySQLAppointmentRepository) GetByID(
	ctx context.Context,
	appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := appointmentID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal appointment id")
	}

	query := `SELECT ` + mysqlAppointmentColumns + `
			  FROM appointments
			  WHERE id = ?`

	return scanMySQLAppointment(querier.QueryRowContext(ctx, query, id), "failed to get appointment by id")
}

// GetForUpdate retrieves an appointment and locks its row until the transaction ends.
func (m *MySQLAppointmentRepository) GetForUpdate(
	ctx context.Context,
	appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := appointmentID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal appointment id")
	}

	query := `SELECT ` + mysqlAppointmentColumns + `
			  FROM appointments
			  WHERE id = ?
			  FOR UPDATE`

	return scanMySQLAppointment(querier.QueryRowContext(ctx, query, id), "failed to lock appointment")
}

// HasOverlap reports whether an active appointment of the same tenant and resource overlaps
// slot, ignoring excludeID when set.
func (m *MySQLAppointmentRepository) HasOverlap(
	ctx context.Context,
	tenantID, resourceID uuid.UUID,
	slot bookingDomain.TimeRange,
	excludeID *uuid.UUID,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	resource, err := resourceID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal resource id")
	}

	query := `SELECT EXISTS (
			      SELECT 1 FROM appointments
			      WHERE tenant_id = ? AND resource_id = ?
			        AND status IN ('pending', 'booked', 'confirmed')
			        AND start_at < ? AND end_at > ?`
	args := []any{tenant, resource, slot.End, slot.Start}

	if excludeID != nil {
		exclude, err := excludeID.MarshalBinary()
		if err != nil {
			return false, apperrors.Wrap(err, "failed to marshal excluded appointment id")
		}
		query += ` AND id <> ?`
		args = append(args, exclude)
	}
	query += `)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check appointment overlap")
	}
	return exists, nil
}

// LockResource takes a row lock on the resource so concurrent bookings of it serialize.
// Must be called with a transaction context.
func (m *MySQLAppointmentRepository) LockResource(ctx context.Context, resourceID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	id, err := resourceID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal resource id")
	}

	var locked []byte
	err = querier.QueryRowContext(ctx, `SELECT id FROM resources WHERE id = ? FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if err == sql.ErrNoRows {
			return bookingDomain.ErrInvalidService
		}
		return apperrors.Wrap(err, "failed to lock resource")
	}
	return nil
}

// ListSyncPending returns active TENTATIVE appointments without a remote event whose retry
// count is below ceiling, oldest first.
func (m *MySQLAppointmentRepository) ListSyncPending(
	ctx context.Context,
	ceiling, limit int,
) ([]*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlAppointmentColumns + `
			  FROM appointments
			  WHERE sync_status = ? AND retry_count < ? AND external_event_ref IS NULL
			    AND status IN ('pending', 'booked', 'confirmed')
			  ORDER BY updated_at ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, bookingDomain.SyncStatusTentative, ceiling, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list sync pending appointments")
	}
	return scanMySQLAppointments(rows)
}

// ListUpcomingWithRecipient returns active appointments with a recipient that start in [from, to).
func (m *MySQLAppointmentRepository) ListUpcomingWithRecipient(
	ctx context.Context,
	from, to time.Time,
	limit int,
) ([]*bookingDomain.Appointment, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlAppointmentColumns + `
			  FROM appointments
			  WHERE start_at >= ? AND start_at < ? AND recipient IS NOT NULL
			    AND status IN ('pending', 'booked', 'confirmed')
			  ORDER BY start_at ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list upcoming appointments")
	}
	return scanMySQLAppointments(rows)
}

// mysqlScanner is satisfied by *sql.Row and *sql.Rows.
type mysqlScanner interface {
	Scan(dest ...any) error
}

func scanMySQLAppointmentFields(scanner mysqlScanner) (*bookingDomain.Appointment, error) {
	var appt bookingDomain.Appointment
	var id, tenantID, resourceID []byte

	err := scanner.Scan(
		&id,
		&tenantID,
		&resourceID,
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
		return nil, err
	}

	if err := appt.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal appointment id")
	}
	if err := appt.TenantID.UnmarshalBinary(tenantID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tenant id")
	}
	if err := appt.ResourceID.UnmarshalBinary(resourceID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal resource id")
	}

	appt.Slot.Start = appt.Slot.Start.UTC()
	appt.Slot.End = appt.Slot.End.UTC()
	return &appt, nil
}

func scanMySQLAppointment(row *sql.Row, message string) (*bookingDomain.Appointment, error) {
	appt, err := scanMySQLAppointmentFields(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, bookingDomain.ErrAppointmentNotFound
		}
		return nil, apperrors.Wrap(err, message)
	}
	return appt, nil
}

func scanMySQLAppointments(rows *sql.Rows) ([]*bookingDomain.Appointment, error) {
	defer rows.Close() //nolint:errcheck

	var appointments []*bookingDomain.Appointment
	for rows.Next() {
		appt, err := scanMySQLAppointmentFields(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan appointment")
		}
		appointments = append(appointments, appt)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate appointments")
	}
	return appointments, nil
}

func mapMySQLAppointmentError(err error, message string) error {
	if database.IsMySQLDuplicateEntry(err) {
		return bookingDomain.ErrExternalRefTaken
	}
	return apperrors.Wrap(err, message)
}

// NewMySQLAppointmentRepository creates a new MySQL Appointment repository instance.
func NewMySQLAppointmentRepository(db *sql.DB) *MySQLAppointmentRepository {
	return &MySQLAppointmentRepository{db: db}
}
