// Package repository implements data persistence for tenant integrations.
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/clinicops/internal/database"
	apperrors "github.com/allisson/clinicops/internal/errors"
	integrationDomain "github.com/allisson/clinicops/internal/integration/domain"
)

// PostgreSQLIntegrationRepository implements Integration persistence for PostgreSQL databases.
type PostgreSQLIntegrationRepository struct {
	db *sql.DB
}

// Upsert creates the integration or replaces the account and token of the existing one
// for the same tenant and kind.
func (p *PostgreSQLIntegrationRepository) Upsert(
	ctx context.Context,
	integration *integrationDomain.Integration,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO tenant_integrations (id, tenant_id, kind, account_id, encrypted_token, active, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (tenant_id, kind) DO UPDATE
			  SET account_id = EXCLUDED.account_id, encrypted_token = EXCLUDED.encrypted_token,
			      active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`

	_, err := querier.ExecContext(
		ctx,
		query,
		integration.ID,
		integration.TenantID,
		integration.Kind,
		integration.AccountID,
		integration.EncryptedToken,
		integration.Active,
		integration.CreatedAt,
		integration.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert integration")
	}
	return nil
}

// Get retrieves the active integration of a tenant by kind.
func (p *PostgreSQLIntegrationRepository) Get(
	ctx context.Context,
	tenantID uuid.UUID,
	kind integrationDomain.Kind,
) (*integrationDomain.Integration, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, tenant_id, kind, account_id, encrypted_token, active, created_at, updated_at
			  FROM tenant_integrations
			  WHERE tenant_id = $1 AND kind = $2 AND active = TRUE`

	var integration integrationDomain.Integration
	err := querier.QueryRowContext(ctx, query, tenantID, kind).Scan(
		&integration.ID,
		&integration.TenantID,
		&integration.Kind,
		&integration.AccountID,
		&integration.EncryptedToken,
		&integration.Active,
		&integration.CreatedAt,
		&integration.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, integrationDomain.ErrIntegrationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get integration")
	}
	return &integration, nil
}

// NewPostgreSQLIntegrationRepository creates a new PostgreSQL Integration repository instance.
func NewPostgreSQLIntegrationRepository(db *sql.DB) *PostgreSQLIntegrationRepository {
	return &PostgreSQLIntegrationRepository{db: db}
}
