package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/clinicops/internal/database"
	apperrors "github.com/allisson/clinicops/internal/errors"
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
)

// PostgreSQLTemplateRepository reads message templates and tracks conversation activity
// on PostgreSQL.
type PostgreSQLTemplateRepository struct {
	db *sql.DB
}

// FindApproved returns the approved template with the given name, preferring language and
// falling back to the first other approved language in alphabetical order.
func (p *PostgreSQLTemplateRepository) FindApproved(
	ctx context.Context,
	tenantID uuid.UUID,
	name, language string,
) (*messagingDomain.MessageTemplate, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, tenant_id, name, language, body, status, created_at
			  FROM message_templates
			  WHERE tenant_id = $1 AND name = $2 AND status = $3
			  ORDER BY (language = $4) DESC, language ASC
			  LIMIT 1`

	var tmpl messagingDomain.MessageTemplate
	err := querier.QueryRowContext(ctx, query, tenantID, name, messagingDomain.TemplateStatusApproved, language).Scan(
		&tmpl.ID,
		&tmpl.TenantID,
		&tmpl.Name,
		&tmpl.Language,
		&tmpl.Body,
		&tmpl.Status,
		&tmpl.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, messagingDomain.ErrTemplateNotFound
		}
		return nil, apperrors.Wrap(err, "failed to find approved template")
	}
	return &tmpl, nil
}

// GetActivity returns the conversation's last inbound time, or nil when it never had one.
func (p *PostgreSQLTemplateRepository) GetActivity(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
) (*messagingDomain.ConversationActivity, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT tenant_id, conversation_ref, last_inbound_at
			  FROM conversation_activity
			  WHERE tenant_id = $1 AND conversation_ref = $2`

	var activity messagingDomain.ConversationActivity
	err := querier.QueryRowContext(ctx, query, tenantID, conversationRef).Scan(
		&activity.TenantID,
		&activity.ConversationRef,
		&activity.LastInboundAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, "failed to get conversation activity")
	}
	return &activity, nil
}

// RecordInbound stores an inbound message time. Older times never overwrite newer ones.
func (p *PostgreSQLTemplateRepository) RecordInbound(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
	at time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO conversation_activity (tenant_id, conversation_ref, last_inbound_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (tenant_id, conversation_ref)
			  DO UPDATE SET last_inbound_at = GREATEST(conversation_activity.last_inbound_at, EXCLUDED.last_inbound_at)`

	if _, err := querier.ExecContext(ctx, query, tenantID, conversationRef, at); err != nil {
		return apperrors.Wrap(err, "failed to record inbound activity")
	}
	return nil
}

// NewPostgreSQLTemplateRepository creates a new PostgreSQL template repository.
func NewPostgreSQLTemplateRepository(db *sql.DB) *PostgreSQLTemplateRepository {
	return &PostgreSQLTemplateRepository{db: db}
}
