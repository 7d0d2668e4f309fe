package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
	"github.com/allisson/clinicops/internal/retry"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// MockMessageRepository is a mock implementation of MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *messagingDomain.OutboundMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) Update(ctx context.Context, msg *messagingDomain.OutboundMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) message(args mock.Arguments) (*messagingDomain.OutboundMessage, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messagingDomain.OutboundMessage), args.Error(1)
}

func (m *MockMessageRepository) GetByID(
	ctx context.Context,
	messageID uuid.UUID,
) (*messagingDomain.OutboundMessage, error) {
	return m.message(m.Called(ctx, messageID))
}

func (m *MockMessageRepository) GetForUpdate(
	ctx context.Context,
	messageID uuid.UUID,
) (*messagingDomain.OutboundMessage, error) {
	return m.message(m.Called(ctx, messageID))
}

func (m *MockMessageRepository) GetByIdempotencyKey(
	ctx context.Context,
	key string,
) (*messagingDomain.OutboundMessage, error) {
	return m.message(m.Called(ctx, key))
}

func (m *MockMessageRepository) GetByIdempotencyKeyForUpdate(
	ctx context.Context,
	key string,
) (*messagingDomain.OutboundMessage, error) {
	return m.message(m.Called(ctx, key))
}

func (m *MockMessageRepository) GetByProviderMessageID(
	ctx context.Context,
	providerMessageID string,
) (*messagingDomain.OutboundMessage, error) {
	return m.message(m.Called(ctx, providerMessageID))
}

func (m *MockMessageRepository) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*messagingDomain.OutboundMessage, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*messagingDomain.OutboundMessage), args.Error(1)
}

func (m *MockMessageRepository) ListStaleSending(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*messagingDomain.OutboundMessage, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*messagingDomain.OutboundMessage), args.Error(1)
}

func (m *MockMessageRepository) PromoteDue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) PromoteOne(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, messageID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) HasOutbound(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
) (bool, error) {
	args := m.Called(ctx, tenantID, conversationRef)
	return args.Bool(0), args.Error(1)
}

// MockTemplateRepository is a mock implementation of TemplateRepository
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) FindApproved(
	ctx context.Context,
	tenantID uuid.UUID,
	name, language string,
) (*messagingDomain.MessageTemplate, error) {
	args := m.Called(ctx, tenantID, name, language)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messagingDomain.MessageTemplate), args.Error(1)
}

func (m *MockTemplateRepository) GetActivity(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
) (*messagingDomain.ConversationActivity, error) {
	args := m.Called(ctx, tenantID, conversationRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messagingDomain.ConversationActivity), args.Error(1)
}

func (m *MockTemplateRepository) RecordInbound(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
	at time.Time,
) error {
	args := m.Called(ctx, tenantID, conversationRef, at)
	return args.Error(0)
}

// MockProvider is a mock implementation of Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Send(ctx context.Context, msg *messagingDomain.OutboundMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// MockRetryScheduler is a mock implementation of RetryScheduler
type MockRetryScheduler struct {
	mock.Mock
}

func (m *MockRetryScheduler) ScheduleOnce(ctx context.Context, req retry.Request) (bool, error) {
	args := m.Called(ctx, req)
	return args.Bool(0), args.Error(1)
}

func (m *MockRetryScheduler) Complete(ctx context.Context, subject string) error {
	args := m.Called(ctx, subject)
	return args.Error(0)
}

// MockDispatcherUseCase is a mock implementation of DispatcherUseCase
type MockDispatcherUseCase struct {
	mock.Mock
}

func (m *MockDispatcherUseCase) Enqueue(
	ctx context.Context,
	req messagingDomain.EnqueueRequest,
) (*messagingDomain.OutboundMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messagingDomain.OutboundMessage), args.Error(1)
}

func (m *MockDispatcherUseCase) DispatchBatch(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockDispatcherUseCase) RetryFailures(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDispatcherUseCase) ExecuteRetry(ctx context.Context, messageID uuid.UUID) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDispatcherUseCase) RecoverStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockDispatcherUseCase) HandleReceipt(
	ctx context.Context,
	receipt messagingDomain.Receipt,
) (*messagingDomain.OutboundMessage, error) {
	args := m.Called(ctx, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messagingDomain.OutboundMessage), args.Error(1)
}

func (m *MockDispatcherUseCase) RecordInbound(
	ctx context.Context,
	tenantID uuid.UUID,
	conversationRef string,
	at time.Time,
) error {
	args := m.Called(ctx, tenantID, conversationRef, at)
	return args.Error(0)
}

// MockAppointmentRepository is a mock implementation of AppointmentRepository
type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) ListUpcomingWithRecipient(
	ctx context.Context,
	from, to time.Time,
	limit int,
) ([]*bookingDomain.Appointment, error) {
	args := m.Called(ctx, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bookingDomain.Appointment), args.Error(1)
}

// MockResourceRepository is a mock implementation of ResourceRepository
type MockResourceRepository struct {
	mock.Mock
}

func (m *MockResourceRepository) Get(
	ctx context.Context,
	tenantID, resourceID uuid.UUID,
) (*bookingDomain.Resource, error) {
	args := m.Called(ctx, tenantID, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Resource), args.Error(1)
}
