package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/clinicops/internal/errors"
	integrationDomain "github.com/allisson/clinicops/internal/integration/domain"
	integrationService "github.com/allisson/clinicops/internal/integration/service"
)

// integrationUseCase implements IntegrationUseCase with tokens encrypted by a KMS keeper.
type integrationUseCase struct {
	repo   IntegrationRepository
	keeper integrationService.Keeper
}

// Connect validates and stores the integration.
func (i *integrationUseCase) Connect(
	ctx context.Context,
	tenantID uuid.UUID,
	kind integrationDomain.Kind,
	accountID, accessToken string,
) (*integrationDomain.Integration, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(accessToken) == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "account id and access token are required")
	}

	encrypted, err := i.keeper.Encrypt(ctx, []byte(accessToken))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt access token")
	}

	now := time.Now().UTC()
	integration := &integrationDomain.Integration{
		ID:             uuid.Must(uuid.NewV7()),
		TenantID:       tenantID,
		Kind:           kind,
		AccountID:      accountID,
		EncryptedToken: encrypted,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := i.repo.Upsert(ctx, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

// Configured reports whether an active integration exists.
func (i *integrationUseCase) Configured(
	ctx context.Context,
	tenantID uuid.UUID,
	kind integrationDomain.Kind,
) (bool, error) {
	_, err := i.repo.Get(ctx, tenantID, kind)
	if err != nil {
		if errors.Is(err, integrationDomain.ErrIntegrationNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Credential loads and decrypts the integration.
func (i *integrationUseCase) Credential(
	ctx context.Context,
	tenantID uuid.UUID,
	kind integrationDomain.Kind,
) (*integrationDomain.Credential, error) {
	integration, err := i.repo.Get(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}

	token, err := i.keeper.Decrypt(ctx, integration.EncryptedToken)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to decrypt access token")
	}

	return &integrationDomain.Credential{
		TenantID:    integration.TenantID,
		Kind:        integration.Kind,
		AccountID:   integration.AccountID,
		AccessToken: string(token),
	}, nil
}

// NewIntegrationUseCase creates a new integration use case instance.
func NewIntegrationUseCase(repo IntegrationRepository, keeper integrationService.Keeper) IntegrationUseCase {
	return &integrationUseCase{
		repo:   repo,
		keeper: keeper,
	}
}
