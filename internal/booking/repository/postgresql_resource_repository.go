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

// PostgreSQLResourceRepository implements read access to resources and their service hours
// for PostgreSQL databases.
type PostgreSQLResourceRepository struct {
	db *sql.DB
}

// GetByCode retrieves a tenant's resource by code, including its service hours.
func (p *PostgreSQLResourceRepository) GetByCode(
	ctx context.Context,
	tenantID uuid.UUID,
	code string,
) (*bookingDomain.Resource, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, tenant_id, code, name, duration_minutes, timezone, active, created_at
			  FROM resources
			  WHERE tenant_id = $1 AND code = $2`

	return p.getOne(ctx, querier.QueryRowContext(ctx, query, tenantID, code))
}

// Get retrieves a tenant's resource by ID, including its service hours.
func (p *PostgreSQLResourceRepository) Get(
	ctx context.Context,
	tenantID, resourceID uuid.UUID,
) (*bookingDomain.Resource, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, tenant_id, code, name, duration_minutes, timezone, active, created_at
			  FROM resources
			  WHERE tenant_id = $1 AND id = $2`

	return p.getOne(ctx, querier.QueryRowContext(ctx, query, tenantID, resourceID))
}

func (p *PostgreSQLResourceRepository) getOne(ctx context.Context, row *sql.Row) (*bookingDomain.Resource, error) {
	var resource bookingDomain.Resource
	err := row.Scan(
		&resource.ID,
		&resource.TenantID,
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

	hours, err := p.listHours(ctx, resource.ID)
	if err != nil {
		return nil, err
	}
	resource.Hours = hours

	return &resource, nil
}

func (p *PostgreSQLResourceRepository) listHours(
	ctx context.Context,
	resourceID uuid.UUID,
) ([]bookingDomain.ServiceHours, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT weekday, start_minute, end_minute
			  FROM resource_hours
			  WHERE resource_id = $1
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

// NewPostgreSQLResourceRepository creates a new PostgreSQL Resource repository instance.
func NewPostgreSQLResourceRepository(db *sql.DB) *PostgreSQLResourceRepository {
	return &PostgreSQLResourceRepository{db: db}
}
