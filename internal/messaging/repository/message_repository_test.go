package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/clinicops/internal/database"
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
	"github.com/allisson/clinicops/internal/testutil"
)

func newTestMessage(tenantID uuid.UUID, key string, scheduledFor time.Time) *messagingDomain.OutboundMessage {
	conversation := "conv-" + key
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &messagingDomain.OutboundMessage{
		ID:              uuid.Must(uuid.NewV7()),
		TenantID:        tenantID,
		ConversationRef: &conversation,
		Recipient:       "+5215512345678",
		Classification:  messagingDomain.ClassificationFreeform,
		Payload:         "Hola",
		IdempotencyKey:  key,
		ScheduledFor:    scheduledFor.UTC().Truncate(time.Microsecond),
		Status:          messagingDomain.StatusPending,
		MaxAttempts:     3,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestPostgreSQLMessageRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())

	msg := newTestMessage(tenantID, "key-1", time.Now())
	require.NoError(t, repo.Create(ctx, msg))

	byID, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.IdempotencyKey, byID.IdempotencyKey)
	assert.Equal(t, msg.Payload, byID.Payload)

	byKey, err := repo.GetByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, byKey.ID)

	err = repo.Create(ctx, newTestMessage(tenantID, "key-1", time.Now()))
	assert.ErrorIs(t, err, messagingDomain.ErrIdempotencyKeyTaken)

	_, err = repo.GetByIdempotencyKey(ctx, "missing")
	assert.ErrorIs(t, err, messagingDomain.ErrMessageNotFound)

	exists, err := repo.HasOutbound(ctx, tenantID, "conv-key-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.HasOutbound(ctx, tenantID, "conv-other")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPostgreSQLMessageRepository_ListDueAndPromote(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	txManager := database.NewTxManager(db)
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()

	due := newTestMessage(tenantID, "due", now.Add(-time.Minute))
	future := newTestMessage(tenantID, "future", now.Add(time.Hour))
	exhausted := newTestMessage(tenantID, "exhausted", now.Add(-time.Minute))
	exhausted.Attempts = 3
	for _, msg := range []*messagingDomain.OutboundMessage{due, future, exhausted} {
		require.NoError(t, repo.Create(ctx, msg))
	}

	err := txManager.WithTx(ctx, func(txCtx context.Context) error {
		messages, err := repo.ListDue(txCtx, now, 10)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, due.ID, messages[0].ID)

		messages[0].MarkSending(now)
		return repo.Update(txCtx, messages[0])
	})
	require.NoError(t, err)

	sending, err := repo.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, messagingDomain.StatusSending, sending.Status)
	assert.Equal(t, 1, sending.Attempts)

	sending.MarkSendFailure("provider down", now.Add(-time.Second), 0)
	require.NoError(t, repo.Update(ctx, sending))

	promoted, err := repo.PromoteDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), promoted)

	ok, err := repo.PromoteOne(ctx, due.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgreSQLMessageRepository_ListStaleSending(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	txManager := database.NewTxManager(db)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := newTestMessage(uuid.Must(uuid.NewV7()), "stale", now)
	stale.Status = messagingDomain.StatusSending
	stale.UpdatedAt = now.Add(-10 * time.Minute)
	fresh := newTestMessage(uuid.Must(uuid.NewV7()), "fresh", now)
	fresh.Status = messagingDomain.StatusSending
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, fresh))

	err := txManager.WithTx(ctx, func(txCtx context.Context) error {
		messages, err := repo.ListStaleSending(txCtx, now.Add(-5*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, stale.ID, messages[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgreSQLMessageRepository_ErrorMapping(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	repo := NewPostgreSQLMessageRepository(db)
	ctx := context.Background()
	msg := newTestMessage(uuid.Must(uuid.NewV7()), "k", time.Now())

	mock.ExpectExec("INSERT INTO outbound_messages").WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, repo.Create(ctx, msg), messagingDomain.ErrIdempotencyKeyTaken)

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO outbound_messages").WillReturnError(boom)
	err = repo.Create(ctx, msg)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to create outbound message")

	mock.ExpectExec("UPDATE outbound_messages").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Update(ctx, msg), messagingDomain.ErrMessageNotFound)

	mock.ExpectQuery("SELECT (.+) FROM outbound_messages").WillReturnError(boom)
	_, err = repo.ListDue(ctx, time.Now(), 10)
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec("UPDATE outbound_messages").WillReturnResult(sqlmock.NewResult(0, 4))
	promoted, err := repo.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), promoted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLMessageRepository_ErrorMapping(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	repo := NewMySQLMessageRepository(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO outbound_messages").WillReturnError(&mysql.MySQLError{Number: 1062})
	err = repo.Create(ctx, newTestMessage(uuid.Must(uuid.NewV7()), "k", time.Now()))
	assert.ErrorIs(t, err, messagingDomain.ErrIdempotencyKeyTaken)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLMessageRepository_ScansBinaryIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	repo := NewMySQLMessageRepository(db)
	id := uuid.Must(uuid.NewV7())
	tenantID := uuid.Must(uuid.NewV7())
	idBytes, err := id.MarshalBinary()
	require.NoError(t, err)
	tenantBytes, err := tenantID.MarshalBinary()
	require.NoError(t, err)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "conversation_ref", "recipient", "classification", "template_name",
		"template_language", "payload", "idempotency_key", "scheduled_for", "status", "attempts",
		"max_attempts", "last_error", "provider_message_id", "sent_at", "delivered_at", "created_at", "updated_at",
	}).AddRow(idBytes, tenantBytes, nil, "+5215512345678", "templated", "reminder_24h", "es", "Hola",
		"key", now, "sent", 1, 5, nil, "wamid.1", now, nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM outbound_messages").WillReturnRows(rows)

	msg, err := repo.GetByProviderMessageID(context.Background(), "wamid.1")
	require.NoError(t, err)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, tenantID, msg.TenantID)
	assert.Equal(t, messagingDomain.StatusSent, msg.Status)
	assert.Nil(t, msg.ConversationRef)
	require.NotNil(t, msg.TemplateName)
	assert.Equal(t, "reminder_24h", *msg.TemplateName)

	mock.ExpectQuery("SELECT (.+) FROM outbound_messages").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, messagingDomain.ErrMessageNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLMessageRepository_Database(t *testing.T) {
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	repo := NewMySQLMessageRepository(db)
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())

	msg := newTestMessage(tenantID, "mysql-key", time.Now().Add(-time.Minute))
	require.NoError(t, repo.Create(ctx, msg))
	assert.ErrorIs(t, repo.Create(ctx, newTestMessage(tenantID, "mysql-key", time.Now())),
		messagingDomain.ErrIdempotencyKeyTaken)

	got, err := repo.GetByIdempotencyKey(ctx, "mysql-key")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, tenantID, got.TenantID)

	exists, err := repo.HasOutbound(ctx, tenantID, "conv-mysql-key")
	require.NoError(t, err)
	assert.True(t, exists)
}

type dueClaimer interface {
	Create(ctx context.Context, msg *messagingDomain.OutboundMessage) error
	Update(ctx context.Context, msg *messagingDomain.OutboundMessage) error
	GetByID(ctx context.Context, messageID uuid.UUID) (*messagingDomain.OutboundMessage, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*messagingDomain.OutboundMessage, error)
}

// assertConcurrentClaimsDisjoint runs two claim transactions that overlap: each one lists
// and locks its batch before either commits.
func assertConcurrentClaimsDisjoint(t *testing.T, repo dueClaimer, txManager database.TxManager) {
	t.Helper()
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()

	const eligible = 10
	for i := 0; i < eligible; i++ {
		msg := newTestMessage(tenantID, fmt.Sprintf("claim-%d", i), now.Add(-time.Minute))
		require.NoError(t, repo.Create(ctx, msg))
	}

	const workers = 2
	var listed, wg sync.WaitGroup
	listed.Add(workers)
	claims := make([][]uuid.UUID, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			errs[worker] = txManager.WithTx(ctx, func(txCtx context.Context) error {
				messages, err := repo.ListDue(txCtx, now, 6)
				listed.Done()
				listed.Wait()
				if err != nil {
					return err
				}
				for _, msg := range messages {
					msg.MarkSending(now)
					if err := repo.Update(txCtx, msg); err != nil {
						return err
					}
					claims[worker] = append(claims[worker], msg.ID)
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[uuid.UUID]int)
	for worker := 0; worker < workers; worker++ {
		require.NoError(t, errs[worker])
		for _, id := range claims[worker] {
			seen[id]++
		}
	}
	assert.Len(t, seen, eligible)
	assert.Equal(t, eligible, len(claims[0])+len(claims[1]), "a message was claimed twice")

	for id := range seen {
		msg, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, messagingDomain.StatusSending, msg.Status)
		assert.Equal(t, 1, msg.Attempts)
	}
}

func TestPostgreSQLMessageRepository_ConcurrentClaim(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	assertConcurrentClaimsDisjoint(t, NewPostgreSQLMessageRepository(db), database.NewTxManager(db))
}

func TestMySQLMessageRepository_ConcurrentClaim(t *testing.T) {
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	assertConcurrentClaimsDisjoint(t, NewMySQLMessageRepository(db), database.NewTxManager(db))
}
