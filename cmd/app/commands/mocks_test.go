package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	integrationDomain "github.com/allisson/clinicops/internal/integration/domain"
)

type MockSyncSweeper struct {
	mock.Mock
}

func (m *MockSyncSweeper) Sweep(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockSyncResetter struct {
	mock.Mock
}

func (m *MockSyncResetter) ResetFailed(
	ctx context.Context,
	tenantID, appointmentID uuid.UUID,
) (*bookingDomain.Appointment, error) {
	args := m.Called(ctx, tenantID, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Appointment), args.Error(1)
}

type MockMessageDispatcher struct {
	mock.Mock
}

func (m *MockMessageDispatcher) DispatchBatch(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

type MockIntegrationConnector struct {
	mock.Mock
}

func (m *MockIntegrationConnector) Connect(
	ctx context.Context,
	tenantID uuid.UUID,
	kind integrationDomain.Kind,
	accountID, accessToken string,
) (*integrationDomain.Integration, error) {
	args := m.Called(ctx, tenantID, kind, accountID, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationDomain.Integration), args.Error(1)
}
