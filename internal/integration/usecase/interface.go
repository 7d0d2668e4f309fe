// Package usecase manages tenant integrations: connecting an external account and handing
// out decrypted credentials to the calendar and messaging gateways.
package usecase

import (
	"context"

	"github.com/google/uuid"

	integrationDomain "github.com/allisson/clinicops/internal/integration/domain"
)

// IntegrationRepository defines the interface for Integration persistence operations.
type IntegrationRepository interface {
	Upsert(ctx context.Context, integration *integrationDomain.Integration) error
	Get(ctx context.Context, tenantID uuid.UUID, kind integrationDomain.Kind) (*integrationDomain.Integration, error)
}

// IntegrationUseCase defines the interface for integration business logic.
type IntegrationUseCase interface {
	// Connect stores (or replaces) the tenant's integration of the given kind, encrypting the token.
	Connect(
		ctx context.Context,
		tenantID uuid.UUID,
		kind integrationDomain.Kind,
		accountID, accessToken string,
	) (*integrationDomain.Integration, error)
	// Configured reports whether the tenant has an active integration of the given kind.
	Configured(ctx context.Context, tenantID uuid.UUID, kind integrationDomain.Kind) (bool, error)
	// Credential returns the decrypted credential, or ErrIntegrationNotFound.
	Credential(ctx context.Context, tenantID uuid.UUID, kind integrationDomain.Kind) (*integrationDomain.Credential, error)
}
