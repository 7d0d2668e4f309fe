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

const mysqlMessageColumns = postgresMessageColumns

// MySQLMessageRepository implements OutboundMessage persistence for MySQL. UUIDs are
// stored as BINARY(16).
type MySQLMessageRepository struct {
	db *sql.DB
}

// Create inserts a new message. A taken idempotency key is reported as ErrIdempotencyKeyTaken.
func (m *MySQLMessageRepository) Create(ctx context.Context, msg *messagingDomain.OutboundMessage) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO outbound_messages (` + mysqlMessageColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := msg.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal message id")
	}

	tenantID, err := msg.TenantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tenant id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		tenantID,
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
		if database.IsMySQLDuplicateEntry(err) {
			return messagingDomain.ErrIdempotencyKeyTaken
		}
		return apperrors.Wrap(err, "failed to create outbound message")
	}
	return nil
}

// Update persists every mutable field of the message.
func (m *MySQLMessageRepository) Update(ctx context.Context, msg *messagingDomain.OutboundMessage) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE outbound_messages
			  SET recipient = ?, template_name = ?, template_language = ?, payload = ?, scheduled_for = ?,
			      status = ?, attempts = ?, last_error = ?, provider_message_id = ?, sent_at = ?,
			      delivered_at = ?, updated_at = ?
			  WHERE id = ?`

	id, err := msg.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal message id")
	}

	_, err = querier.ExecContext(
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
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbound message")
	}
	// MySQL reports unchanged rows as unaffected, so a missing row is not detected here.
	return nil
}

// GetByID retrieves a message by ID.
func (m *MySQLMessageRepository) GetByID(
	ctx context.Context,
	messageID uuid.UUID,
) (*messagingDomain.OutboundMessage, error) {
	return m.getByBinaryID(ctx, messageID, "", "failed to get outbound message")
}

// GetForUpdate retrieves a message and locks its row until the transaction ends.
func (m *MySQLMessageRepository) GetForUpdate(
	ctx context.Context,
	messageID uuid.UUID,
) (*messagingDomain.OutboundMessage, error) {
	return m.getByBinaryID(ctx, messageID, " FOR UPDATE", "failed to lock outbound message")
}

func (m *MySQLMessageRepository) getByBinaryID(
	ctx context.Context,
	messageID uuid.UUID,
	suffix, message string,
) (*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := messageID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal message id")
	}

	query := `SELECT ` + mysqlMessageColumns + ` FROM outbound_messages WHERE id = ?` + suffix

	return scanMySQLMessage(querier.QueryRowContext(ctx, query, id), message)
}

// GetByIdempotencyKey retrieves a message by idempotency key.
func (m *MySQLMessageRepository) GetByIdempotencyKey(
	ctx context.Context,
	key string,
) (*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlMessageColumns + ` FROM outbound_messages WHERE idempotency_key = ?`

	return scanMySQLMessage(
		querier.QueryRowContext(ctx, query, key),
		"failed to get outbound message by idempotency key",
	)
}

// GetByIdempotencyKeyForUpdate retrieves a message by idempotency key and locks its row.
func (m *MySQLMessageRepository) GetByIdempotencyKeyForUpdate(
	ctx context.Context,
	key string,
) (*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlMessageColumns + ` FROM outbound_messages WHERE idempotency_key = ? FOR UPDATE`

	return scanMySQLMessage(
		querier.QueryRowContext(ctx, query, key),
		"failed to lock outbound message by idempotency key",
	)
}

// GetByProviderMessageID retrieves a message by the id the provider assigned to it.
func (m *MySQLMessageRepository) GetByProviderMessageID(
	ctx context.Context,
	providerMessageID string,
) (*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlMessageColumns + ` FROM outbound_messages
			  WHERE provider_message_id = ?
			  ORDER BY created_at DESC
			  LIMIT 1`

	return scanMySQLMessage(
		querier.QueryRowContext(ctx, query, providerMessageID),
		"failed to get outbound message by provider id",
	)
}

// ListDue locks up to limit PENDING messages that are due and have attempts left, earliest
// first. Rows locked by another worker are skipped. Must be called with a transaction context.
func (m *MySQLMessageRepository) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlMessageColumns + ` FROM outbound_messages
			  WHERE status = ? AND scheduled_for <= ? AND attempts < max_attempts
			  ORDER BY scheduled_for ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, messagingDomain.StatusPending, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list due outbound messages")
	}
	return scanMySQLMessages(rows)
}

// ListStaleSending locks up to limit SENDING messages last touched before cutoff.
func (m *MySQLMessageRepository) ListStaleSending(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*messagingDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlMessageColumns + ` FROM outbound_messages
			  WHERE status = ? AND updated_at < ?
			  ORDER BY updated_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, messagingDomain.StatusSending, cutoff, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list stale outbound messages")
	}
	return scanMySQLMessages(rows)
}

// PromoteDue moves every FAILED message that is due and has attempts left back to PENDING.
func (m *MySQLMessageRepository) PromoteDue(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE outbound_messages
			  SET status = ?, updated_at = ?
			  WHERE status = ? AND attempts < max_attempts AND scheduled_for <= ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		messagingDomain.StatusPending,
		now,
		messagingDomain.StatusFailed,
		now,
	)
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
func (m *MySQLMessageRepository) PromoteOne(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := messageID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal message id")
	}

	query := `UPDATE outbound_messages
			  SET status = ?, updated_at = ?
			  WHERE id = ? AND status = ? AND attempts < max_attempts AND scheduled_for <= ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		messagingDomain.StatusPending,
		now,
		id,
		messagingDomain.StatusFailed,
		now,
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
func (m *MySQLMessageRepository) HasOutbound(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT EXISTS (
			      SELECT 1 FROM outbound_messages WHERE tenant_id = ? AND conversation_ref = ?
			  )`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, tenant, conversationRef).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check prior outbound messages")
	}
	return exists, nil
}

func scanMySQLMessageFields(row rowScanner, msg *messagingDomain.OutboundMessage) error {
	var id, tenantID []byte
	err := row.Scan(
		&id,
		&tenantID,
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
	if err != nil {
		return err
	}

	if err := msg.ID.UnmarshalBinary(id); err != nil {
		return apperrors.Wrap(err, "failed to unmarshal message id")
	}
	if err := msg.TenantID.UnmarshalBinary(tenantID); err != nil {
		return apperrors.Wrap(err, "failed to unmarshal tenant id")
	}
	return nil
}

func scanMySQLMessage(row *sql.Row, message string) (*messagingDomain.OutboundMessage, error) {
	var msg messagingDomain.OutboundMessage
	if err := scanMySQLMessageFields(row, &msg); err != nil {
		if err == sql.ErrNoRows {
			return nil, messagingDomain.ErrMessageNotFound
		}
		return nil, apperrors.Wrap(err, message)
	}
	return &msg, nil
}

func scanMySQLMessages(rows *sql.Rows) ([]*messagingDomain.OutboundMessage, error) {
	defer rows.Close() //nolint:errcheck

	var messages []*messagingDomain.OutboundMessage
	for rows.Next() {
		var msg messagingDomain.OutboundMessage
		if err := scanMySQLMessageFields(rows, &msg); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbound message")
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbound messages")
	}
	return messages, nil
}

// NewMySQLMessageRepository creates a new MySQL outbound message repository.
func NewMySQLMessageRepository(db *sql.DB) *MySQLMessageRepository {
	return &MySQLMessageRepository{db: db}
}
