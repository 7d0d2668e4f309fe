// Package repository implements data persistence for outbound messages, message templates
// and conversation activity on PostgreSQL and MySQL.
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

const postgresMessageColumns = `id, tenant_id, conversation_ref, recipient, classification, template_name,
			  template_language, payload, idempotency_key, scheduled_for, status, attempts, max_attempts,
			  last_error, provider_message_id, sent_at, delivered_at, created_at, updated_at`

// PostgreSQLMessageRepository implements OutboundMessage persistence for PostgreSQL.
type PostgreSQLMessageRepository struct {
	db *sql.DB
}

// Create inserts a new message. A taken idempotency key is reported as ErrIdempotencyKeyTaken.
func (p *PostgreSQLMessageRepository) Create(ctx context.Context, msg *messagingDomain.OutboundMessage) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO outbound_messages (` + postgresMessageColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := querier.ExecContext(
		ctx,
		query,
		msg.ID,
		msg.TenantID,
		msg.ConversationRef,
		msg.Recipient,
		msg.Classification,
		msg.TemplateName,
		msg.TemplateLanguage,
		msg.Payload,
		msg.IdempotencyKey,
		msg.ScheduledFor,
		msg.Status,
		msg.Attempts,
		msg.MaxAttempts,
		msg.LastError,
		msg.ProviderMessageID,
		msg.SentAt,
		msg.DeliveredAt,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		if database.IsPostgresError(err, database.PostgresUniqueViolation) {
			return messagingDomain.ErrIdempotencyKeyTaken
		}
		return apperrors.Wrap(err, "failed to create outbound message")
	}
	return nil
}

// Update persists every mutable field of the message.
func (p *PostgreSQLMessageRepository) Update(ctx context.Context, msg *messagingDomain.OutboundMessage) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE outbound_messages
			  SET recipient = $1, template_name = $2, template_language = $3, payload = $4, scheduled_for = $5,
			      status = $6, attempts = $7, last_error = $8, provider_message_id = $9, sent_at = $10,
			      delivered_at = $11, updated_at = $12
			  WHERE id = $13`

	result, err := querier.ExecContext(
		ctx,
		query,
		msg.Recipient,
		msg.TemplateName,
		msg.TemplateLanguage,
		msg.Payload,
		msg.ScheduledFor,
		msg.Status,
		msg.Attempts,
		msg.LastError,
		msg.ProviderMessageID,
		msg.SentAt,
		msg.DeliveredAt,
		msg.UpdatedAt,
		msg.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbound message")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return messagingDomain.ErrMessageNotFound
	}
	return nil
}

// GetByID retrieves a message by ID.
func (p *PostgreSQLMessageRepository) GetByID(
	ctx context.Context,
	messageID uuid.UUID,
) (*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresMessageColumns + ` FROM outbound_messages WHERE id = $1`

	return scanPostgresMessage(querier.QueryRowContext(ctx, query, messageID), "failed to get outbound message")
}

// GetForUpdate retrieves a message and locks its row until the transaction ends.
func (p *PostgreSQLMessageRepository) GetForUpdate(
	ctx context.Context,
	messageID uuid.UUID,
) (*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresMessageColumns + ` FROM outbound_messages WHERE id = $1 FOR UPDATE`

	return scanPostgresMessage(querier.QueryRowContext(ctx, query, messageID), "failed to lock outbound message")
}

// GetByIdempotencyKey retrieves a message by idempotency key.
func (p *PostgreSQLMessageRepository) GetByIdempotencyKey(
	ctx context.Context,
	key string,
) (*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresMessageColumns + ` FROM outbound_messages WHERE idempotency_key = $1`

	return scanPostgresMessage(
		querier.QueryRowContext(ctx, query, key),
		"failed to get outbound message by idempotency key",
	)
}

// GetByIdempotencyKeyForUpdate retrieves a message by idempotency key and locks its row.
func (p *PostgreSQLMessageRepository) GetByIdempotencyKeyForUpdate(
	ctx context.Context,
	key string,
) (*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresMessageColumns + ` FROM outbound_messages WHERE idempotency_key = $1 FOR UPDATE`

	return scanPostgresMessage(
		querier.QueryRowContext(ctx, query, key),
		"failed to lock outbound message by idempotency key",
	)
}

// GetByProviderMessageID retrieves a message by the id the provider assigned to it.
func (p *PostgreSQLMessageRepository) GetByProviderMessageID(
	ctx context.Context,
	providerMessageID string,
) (*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresMessageColumns + ` FROM outbound_messages
			  WHERE provider_message_id = $1
			  ORDER BY created_at DESC
			  LIMIT 1`

	return scanPostgresMessage(
		querier.QueryRowContext(ctx, query, providerMessageID),
		"failed to get outbound message by provider id",
	)
}

// ListDue locks up to limit PENDING messages that are due and have attempts left, earliest
// first. Rows locked by another worker are skipped. Must be called with a transaction context.
func (p *PostgreSQLMessageRepository) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresMessageColumns + ` FROM outbound_messages
			  WHERE status = $1 AND scheduled_for <= $2 AND attempts < max_attempts
			  ORDER BY scheduled_for ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, messagingDomain.StatusPending, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list due outbound messages")
	}
	return scanPostgresMessages(rows)
}

// ListStaleSending locks up to limit SENDING messages last touched before cutoff.
// Must be called with a transaction context.
func (p *PostgreSQLMessageRepository) ListStaleSending(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresMessageColumns + ` FROM outbound_messages
			  WHERE status = $1 AND updated_at < $2
			  ORDER BY updated_at ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, messagingDomain.StatusSending, cutoff, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list stale outbound messages")
	}
	return scanPostgresMessages(rows)
}

// PromoteDue moves every FAILED message that is due and has attempts left back to PENDING.
func (p *PostgreSQLMessageRepository) PromoteDue(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE outbound_messages
			  SET status = $1, updated_at = $2
			  WHERE status = $3 AND attempts < max_attempts AND scheduled_for <= $2`

	result, err := querier.ExecContext(ctx, query, messagingDomain.StatusPending, now, messagingDomain.StatusFailed)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to promote failed outbound messages")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return rows, nil
}

// PromoteOne moves a single message back to PENDING under the PromoteDue predicate.
func (p *PostgreSQLMessageRepository) PromoteOne(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE outbound_messages
			  SET status = $1, updated_at = $2
			  WHERE id = $3 AND status = $4 AND attempts < max_attempts AND scheduled_for <= $2`

	result, err := querier.ExecContext(
		ctx,
		query,
		messagingDomain.StatusPending,
		now,
		messageID,
		messagingDomain.StatusFailed,
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to promote outbound message")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	return rows > 0, nil
}

// HasOutbound reports whether any message was ever queued for the conversation.
func (p *PostgreSQLMessageRepository) HasOutbound(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT EXISTS (
			      SELECT 1 FROM outbound_messages WHERE tenant_id = $1 AND conversation_ref = $2
			  )`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, tenantID, conversationRef).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check prior outbound messages")
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresMessageFields(row rowScanner, msg *messagingDomain.OutboundMessage) error {
	return row.Scan(
		&msg.ID,
		&msg.TenantID,
		&msg.ConversationRef,
		&msg.Recipient,
		&msg.Classification,
		&msg.TemplateName,
		&msg.TemplateLanguage,
		&msg.Payload,
		&msg.IdempotencyKey,
		&msg.ScheduledFor,
		&msg.Status,
		&msg.Attempts,
		&msg.MaxAttempts,
		&msg.LastError,
		&msg.ProviderMessageID,
		&msg.SentAt,
		&msg.DeliveredAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
}

func scanPostgresMessage(row *sql.Row, message string) (*messagingDomain.OutboundMessage, error) {
	var msg messagingDomain.OutboundMessage
	if err := scanPostgresMessageFields(row, &msg); err != nil {
		if err == sql.ErrNoRows {
			return nil, messagingDomain.ErrMessageNotFound
		}
		return nil, apperrors.Wrap(err, message)
	}
	return &msg, nil
}

func scanPostgresMessages(rows *sql.Rows) ([]*messagingDomain.OutboundMessage, error) {
	defer rows.Close() //nolint:errcheck

	var messages []*messagingDomain.OutboundMessage
	for rows.Next() {
		var msg messagingDomain.OutboundMessage
		if err := scanPostgresMessageFields(rows, &msg); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbound message")
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbound messages")
	}
	return messages, nil
}

// NewPostgreSQLMessageRepository creates a new PostgreSQL outbound message repository.
func NewPostgreSQLMessageRepository(db *sql.DB) *PostgreSQLMessageRepository {
	return &PostgreSQLMessageRepository{db: db}
}
