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

// MySQLTemplateRepository reads message templates and tracks conversation activity on MySQL.
type MySQLTemplateRepository struct {
	db *sql.DB
}

// FindApproved returns the approved template with the given name, preferring language and
// falling back to the first other approved language in alphabetical order.
func (m *MySQLTemplateRepository) FindApproved(
	ctx context.Context,
	tenantID uuid.UUID,
	name, language string,
) (*messagingDomain.MessageTemplate, error) {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, tenant_id, name, language, body, status, created_at
			  FROM message_templates
			  WHERE tenant_id = ? AND name = ? AND status = ?
			  ORDER BY (language = ?) DESC, language ASC
			  LIMIT 1`

	var tmpl messagingDomain.MessageTemplate
	var id, tenantBytes []byte
	err = querier.QueryRowContext(ctx, query, tenant, name, messagingDomain.TemplateStatusApproved, language).Scan(
		&id,
		&tenantBytes,
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

	if err := tmpl.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal template id")
	}
	if err := tmpl.TenantID.UnmarshalBinary(tenantBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tenant id")
	}
	return &tmpl, nil
}

// GetActivity returns the conversation's last inbound time, or nil when it never had one.
func (m *MySQLTemplateRepository) GetActivity(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
) (*messagingDomain.ConversationActivity, error) {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT conversation_ref, last_inbound_at
			  FROM conversation_activity
			  WHERE tenant_id = ? AND conversation_ref = ?`

	activity := messagingDomain.ConversationActivity{TenantID: tenantID}
	err = querier.QueryRowContext(ctx, query, tenant, conversationRef).Scan(
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
func (m *MySQLTemplateRepository) RecordInbound(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
	at time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `INSERT INTO conversation_activity (tenant_id, conversation_ref, last_inbound_at)
			  VALUES (?, ?, ?)
			  ON DUPLICATE KEY UPDATE last_inbound_at = GREATEST(last_inbound_at, VALUES(last_inbound_at))`

	if _, err := querier.ExecContext(ctx, query, tenant, conversationRef, at); err != nil {
		return apperrors.Wrap(err, "failed to record inbound activity")
	}
	return nil
}

// NewMySQLTemplateRepository creates a new MySQL template repository.
func NewMySQLTemplateRepository(db *sql.DB) *MySQLTemplateRepository {
	return &MySQLTemplateRepository{db: db}
}
