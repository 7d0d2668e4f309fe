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

// MySQLResourceRepository implements read access to resources and their service hours
// for MySQL databases.
type MySQLResourceRepository struct {
	db *sql.DB
}

// GetByCode retrieves a tenant's resource by code, including its service hours.
func (m *MySQLResourceRepository) GetByCode(
	ctx context.Context,
	tenantID uuid.UUID,
	code string,
) (*bookingDomain.Resource, error) {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, tenant_id, code, name, duration_minutes, timezone, active, created_at
			  FROM resources
			  WHERE tenant_id = ? AND code = ?`

	return m.getOne(ctx, querier.QueryRowContext(ctx, query, tenant, code))
}

// Get retrieves a tenant's resource by ID, including its service hours.
func (m *MySQLResourceRepository) Get(
	ctx context.Context,
	tenantID, resourceID uuid.UUID,
) (*bookingDomain.Resource, error) {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	id, err := resourceID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal resource id")
	}

	query := `SELECT id, tenant_id, code, name, duration_minutes, timezone, active, created_at
			  FROM resources
			  WHERE tenant_id = ? AND id = ?`

	return m.getOne(ctx, querier.QueryRowContext(ctx, query, tenant, id))
}

func (m *MySQLResourceRepository) getOne(ctx context.Context, row *sql.Row) (*bookingDomain.Resource, error) {
	var resource bookingDomain.Resource
	var id, tenantID []byte

	err := row.Scan(
		&id,
		&tenantID,
		&resource.Code,
		&resource.Name,
		&resource.DurationMinutes,
		&resource.Timezone,
		&resource.Active,
		&resource.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, bookingDomain.ErrInvalidService
		}
		return nil, apperrors.Wrap(err, "failed to get resource")
	}

	if err := resource.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal resource id")
	}
	if err := resource.TenantID.UnmarshalBinary(tenantID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tenant id")
	}

	hours, err := m.listHours(ctx, id)
	if err != nil {
		return nil, err
	}
	resource.Hours = hours

	return &resource, nil
}

func (m *MySQLResourceRepository) listHours(ctx context.Context, resourceID []byte) ([]bookingDomain.ServiceHours, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT weekday, start_minute, end_minute
			  FROM resource_hours
			  WHERE resource_id = ?
			  ORDER BY weekday, start_minute`

	rows, err := querier.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list resource hours")
	}
	defer rows.Close() //nolint:errcheck

	var hours []bookingDomain.ServiceHours
	for rows.Next() {
		var window bookingDomain.ServiceHours
		var weekday int
		if err := rows.Scan(&weekday, &window.StartMinute, &window.EndMinute); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan resource hours")
		}
		window.Weekday = time.Weekday(weekday)
		hours = append(hours, window)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate resource hours")
	}
	return hours, nil
}

// NewMySQLResourceRepository creates a new MySQL Resource repository instance.
func NewMySQLResourceRepository(db *sql.DB) *MySQLResourceRepository {
	return &MySQLResourceRepository{db: db}
}
