package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	integrationDomain "github.com/allisson/clinicops/internal/integration/domain"
)

// IntegrationConnector stores a tenant's external account credentials.
type IntegrationConnector interface {
	Connect(
		ctx context.Context,
		tenantID uuid.UUID,
		kind integrationDomain.Kind,
		accountID, accessToken string,
	) (*integrationDomain.Integration, error)
}

// RunConnectIntegration stores (or replaces) a tenant's calendar or messaging credentials.
// The access token is encrypted with the keeper configured by KMS_KEY_URI.
//
// Requirements: Database must be migrated, KMS_KEY_URI must be set.
func RunConnectIntegration(
	ctx context.Context,
	connector IntegrationConnector,
	logger *slog.Logger,
	writer io.Writer,
	tenantIDStr, kindStr, accountID, accessToken, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}

	kind := integrationDomain.Kind(kindStr)
	if err := kind.Validate(); err != nil {
		return fmt.Errorf("invalid kind: %s (valid options: calendar, messaging)", kindStr)
	}

	integration, err := connector.Connect(ctx, tenantID, kind, accountID, accessToken)
	if err != nil {
		return fmt.Errorf("failed to connect integration: %w", err)
	}

	logger.Info("integration connected",
		slog.String("tenant_id", tenantID.String()),
		slog.String("kind", kind.String()),
		slog.String("integration_id", integration.ID.String()),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"id":         integration.ID.String(),
			"tenant_id":  integration.TenantID.String(),
			"kind":       integration.Kind,
			"account_id": integration.AccountID,
			"active":     integration.Active,
		})
	}
	_, err = fmt.Fprintf(writer, "Connected %s integration %s for tenant %s\n", kind, integration.ID, tenantID)
	return err
}
