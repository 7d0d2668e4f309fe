package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/clinicops/internal/database"
	apperrors "github.com/allisson/clinicops/internal/errors"
	integrationDomain "github.com/allisson/clinicops/internal/integration/domain"
)

// MySQLIntegrationRepository implements Integration persistence for MySQL databases.
type MySQLIntegrationRepository struct {
	db *sql.DB
}

// Upsert creates the integration or replaces the account and token of the existing one
// for the same tenant and kind.
func (m *MySQLIntegrationRepository) Upsert(
	ctx context.Context,
	integration *integrationDomain.Integration,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO tenant_integrations (id, tenant_id, kind, account_id, encrypted_token, active, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			  account_id = VALUES(account_id), encrypted_token = VALUES(encrypted_token),
			  active = VALUES(active), updated_at = VALUES(updated_at)`

	id, err := integration.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal integration id")
	}

	tenantID, err := integration.TenantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tenant id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		tenantID,
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
func (m *MySQLIntegrationRepository) Get(
	ctx context.Context,
	tenantID uuid.UUID,
	kind integrationDomain.Kind,
) (*integrationDomain.Integration, error) {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, tenant_id, kind, account_id, encrypted_token, active, created_at, updated_at
			  FROM tenant_integrations
			  WHERE tenant_id = ? AND kind = ? AND active = TRUE`

	var integration integrationDomain.Integration
	var id, scannedTenant []byte

	err = querier.QueryRowContext(ctx, query, tenant, kind).Scan(
		&id,
		&scannedTenant,
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

	if err := integration.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal integration id")
	}
	if err := integration.TenantID.UnmarshalBinary(scannedTenant); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tenant id")
	}
	return &integration, nil
}

// NewMySQLIntegrationRepository creates a new MySQL Integration repository instance.
func NewMySQLIntegrationRepository(db *sql.DB) *MySQLIntegrationRepository {
	return &MySQLIntegrationRepository{db: db}
}
