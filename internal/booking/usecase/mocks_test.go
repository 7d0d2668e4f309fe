package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	outboxDomain "github.com/allisson/clinicops/internal/outbox/domain"
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

// MockAppointmentRepository is a mock implementation of AppointmentRepository
type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) Create(ctx context.Context, appt *bookingDomain.Appointment) error {
	args := m.Called(ctx, appt)
	return args.Error(0)
}

func (m *MockAppointmentRepository) Update(ctx context.Context, appt *bookingDomain.Appointment) error {
	args := m.Called(ctx, appt)
	return args.Error(0)
}

func (m *MockAppointmentRepository) Get(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	args := m.Called(ctx, tenantID, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) GetForUpdate(
	ctx context.Context,
	appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	args := m.Called(ctx, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) HasOverlap(
	ctx context.Context,
	tenantID, resourceID uuid.UUID,
	slot bookingDomain.TimeRange,
	excludeID *uuid.UUID,
) (bool, error) {
	args := m.Called(ctx, tenantID, resourceID, slot, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAppointmentRepository) LockResource(ctx context.Context, resourceID uuid.UUID) error {
	args := m.Called(ctx, resourceID)
	return args.Error(0)
}

// MockResourceRepository is a mock implementation of ResourceRepository
type MockResourceRepository struct {
	mock.Mock
}

func (m *MockResourceRepository) GetByCode(
	ctx context.Context,
	tenantID uuid.UUID,
	code string,
) (*bookingDomain.Resource, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Resource), args.Error(1)
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

// MockOutboxEventRepository is a mock implementation of OutboxEventRepository
type MockOutboxEventRepository struct {
	mock.Mock
}

func (m *MockOutboxEventRepository) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockCalendarGateway is a mock implementation of CalendarGateway
type MockCalendarGateway struct {
	mock.Mock
}

func (m *MockCalendarGateway) Configured(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCalendarGateway) FreeBusy(
	ctx context.Context,
	tenantID uuid.UUID,
	window bookingDomain.TimeRange,
) ([]bookingDomain.TimeRange, error) {
	args := m.Called(ctx, tenantID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bookingDomain.TimeRange), args.Error(1)
}

func (m *MockCalendarGateway) CancelEvent(ctx context.Context, tenantID uuid.UUID, externalRef string) error {
	args := m.Called(ctx, tenantID, externalRef)
	return args.Error(0)
}

// MockSyncScheduler is a mock implementation of SyncScheduler
type MockSyncScheduler struct {
	mock.Mock
}

func (m *MockSyncScheduler) ScheduleRetry(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	args := m.Called(ctx, appointmentID)
	return args.Bool(0), args.Error(1)
}

// MockBookingUseCase is a mock implementation of BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) Reserve(
	ctx context.Context,
	input bookingDomain.ReserveInput,
) (*bookingDomain.BookingResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.BookingResult), args.Error(1)
}

func (m *MockBookingUseCase) Reschedule(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
	newStartAt time.Time,
) (*bookingDomain.BookingResult, error) {
	args := m.Called(ctx, tenantID, appointmentID, newStartAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.BookingResult), args.Error(1)
}

func (m *MockBookingUseCase) Cancel(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
) (*bookingDomain.BookingResult, error) {
	args := m.Called(ctx, tenantID, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.BookingResult), args.Error(1)
}
