package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
)

func newTestNotificationUseCase(
	dispatcher *MockDispatcherUseCase,
	appointmentRepo *MockAppointmentRepository,
	resourceRepo *MockResourceRepository,
) *notificationUseCase {
	uc := NewNotificationUseCase(
		dispatcher,
		appointmentRepo,
		resourceRepo,
		NotificationConfig{
			Reminder24hTemplate:      "reminder_24h",
			Reminder2hTemplate:       "reminder_2h",
			BookingConfirmedTemplate: "booking_confirmed",
			ReminderBatchSize:        100,
			Lookahead:                30 * time.Minute,
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	).(*notificationUseCase)
	uc.now = func() time.Time { return testNow }
	return uc
}

func upcomingAppointment(tenantID, resourceID uuid.UUID, start time.Time) *bookingDomain.Appointment {
	return &bookingDomain.Appointment{
		ID:         uuid.Must(uuid.NewV7()),
		TenantID:   tenantID,
		ResourceID: resourceID,
		Slot:       bookingDomain.NewTimeRange(start, 30*time.Minute),
		Status:     bookingDomain.StatusBooked,
		Recipient:  strPtr("+5511999990000"),
	}
}

func TestNotificationUseCase_ScheduleReminders(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())
	resource := &bookingDomain.Resource{
		ID:       uuid.Must(uuid.NewV7()),
		TenantID: tenantID,
		Name:     "Cleaning",
		Timezone: "America/Sao_Paulo",
	}

	t.Run("Success_QueuesRemindersStillAhead", func(t *testing.T) {
		dispatcher := &MockDispatcherUseCase{}
		appointmentRepo := &MockAppointmentRepository{}
		resourceRepo := &MockResourceRepository{}

		soon := upcomingAppointment(tenantID, resource.ID, testNow.Add(3*time.Hour))
		tomorrow := upcomingAppointment(tenantID, resource.ID, testNow.Add(24*time.Hour+10*time.Minute))
		withoutRecipient := upcomingAppointment(tenantID, resource.ID, testNow.Add(4*time.Hour))
		withoutRecipient.Recipient = nil

		appointmentRepo.On("ListUpcomingWithRecipient", ctx, testNow, testNow.Add(24*time.Hour+30*time.Minute), 100).
			Return([]*bookingDomain.Appointment{soon, tomorrow, withoutRecipient}, nil).
			Once()
		resourceRepo.On("Get", ctx, tenantID, resource.ID).Return(resource, nil).Once()

		dispatcher.On("Enqueue", ctx, mock.MatchedBy(func(req messagingDomain.EnqueueRequest) bool {
			return req.IdempotencyKey == "reminder:"+soon.ID.String()+":reminder_2h" &&
				req.NotBefore.Equal(soon.Slot.Start.Add(-2*time.Hour)) &&
				req.Classification == messagingDomain.ClassificationTemplated &&
				req.Variables["service"] == "Cleaning" &&
				req.Variables["time"] == "09:00"
		})).Return(&messagingDomain.OutboundMessage{}, nil).Once()
		dispatcher.On("Enqueue", ctx, mock.MatchedBy(func(req messagingDomain.EnqueueRequest) bool {
			return req.IdempotencyKey == "reminder:"+tomorrow.ID.String()+":reminder_24h" &&
				req.NotBefore.Equal(tomorrow.Slot.Start.Add(-24*time.Hour))
		})).Return(&messagingDomain.OutboundMessage{}, nil).Once()
		dispatcher.On("Enqueue", ctx, mock.MatchedBy(func(req messagingDomain.EnqueueRequest) bool {
			return req.IdempotencyKey == "reminder:"+tomorrow.ID.String()+":reminder_2h"
		})).Return(&messagingDomain.OutboundMessage{}, nil).Once()

		queued, err := newTestNotificationUseCase(dispatcher, appointmentRepo, resourceRepo).ScheduleReminders(ctx)

		require.NoError(t, err)
		assert.Equal(t, 3, queued)
		dispatcher.AssertExpectations(t)
		appointmentRepo.AssertExpectations(t)
		resourceRepo.AssertExpectations(t)
	})

	t.Run("Success_PolicyRejectionNotCounted", func(t *testing.T) {
		dispatcher := &MockDispatcherUseCase{}
		appointmentRepo := &MockAppointmentRepository{}
		resourceRepo := &MockResourceRepository{}

		soon := upcomingAppointment(tenantID, resource.ID, testNow.Add(3*time.Hour))
		appointmentRepo.On("ListUpcomingWithRecipient", ctx, testNow, mock.AnythingOfType("time.Time"), 100).
			Return([]*bookingDomain.Appointment{soon}, nil).
			Once()
		resourceRepo.On("Get", ctx, tenantID, resource.ID).Return(resource, nil).Once()
		dispatcher.On("Enqueue", ctx, mock.Anything).Return(nil, messagingDomain.ErrTemplateNotApproved).Once()

		queued, err := newTestNotificationUseCase(dispatcher, appointmentRepo, resourceRepo).ScheduleReminders(ctx)

		require.NoError(t, err)
		assert.Zero(t, queued)
		dispatcher.AssertExpectations(t)
	})

	t.Run("Error_ListFails", func(t *testing.T) {
		appointmentRepo := &MockAppointmentRepository{}
		appointmentRepo.On("ListUpcomingWithRecipient", ctx, testNow, mock.AnythingOfType("time.Time"), 100).
			Return(nil, errors.New("db down")).
			Once()

		_, err := newTestNotificationUseCase(&MockDispatcherUseCase{}, appointmentRepo, &MockResourceRepository{}).
			ScheduleReminders(ctx)

		assert.EqualError(t, err, "db down")
	})
}

func TestNotificationUseCase_NotifyBooked(t *testing.T) {
	ctx := context.Background()
	event := bookingDomain.BookedEvent{
		AppointmentID:   uuid.Must(uuid.NewV7()),
		TenantID:        uuid.Must(uuid.NewV7()),
		ResourceName:    "Cleaning",
		StartAt:         "2026-03-11T13:30:00Z",
		Timezone:        "America/Sao_Paulo",
		Recipient:       "+5511999990000",
		ConversationRef: strPtr("conv-1"),
	}

	t.Run("Success", func(t *testing.T) {
		dispatcher := &MockDispatcherUseCase{}
		dispatcher.On("Enqueue", ctx, mock.MatchedBy(func(req messagingDomain.EnqueueRequest) bool {
			return req.IdempotencyKey == "booking-confirmed:"+event.AppointmentID.String() &&
				req.TemplateName == "booking_confirmed" &&
				*req.ConversationRef == "conv-1" &&
				req.Variables["date"] == "2026-03-11" &&
				req.Variables["time"] == "10:30"
		})).Return(&messagingDomain.OutboundMessage{}, nil).Once()

		uc := newTestNotificationUseCase(dispatcher, &MockAppointmentRepository{}, &MockResourceRepository{})

		require.NoError(t, uc.NotifyBooked(ctx, event))
		dispatcher.AssertExpectations(t)
	})

	t.Run("Success_PolicyViolationSwallowed", func(t *testing.T) {
		dispatcher := &MockDispatcherUseCase{}
		dispatcher.On("Enqueue", ctx, mock.Anything).Return(nil, messagingDomain.ErrTemplateNotApproved).Once()

		uc := newTestNotificationUseCase(dispatcher, &MockAppointmentRepository{}, &MockResourceRepository{})

		assert.NoError(t, uc.NotifyBooked(ctx, event))
	})

	t.Run("Error_Propagated", func(t *testing.T) {
		dispatcher := &MockDispatcherUseCase{}
		dispatcher.On("Enqueue", ctx, mock.Anything).Return(nil, errors.New("db down")).Once()

		uc := newTestNotificationUseCase(dispatcher, &MockAppointmentRepository{}, &MockResourceRepository{})

		assert.EqualError(t, uc.NotifyBooked(ctx, event), "db down")
	})

	t.Run("Success_NoRecipient", func(t *testing.T) {
		dispatcher := &MockDispatcherUseCase{}
		noRecipient := event
		noRecipient.Recipient = ""

		uc := newTestNotificationUseCase(dispatcher, &MockAppointmentRepository{}, &MockResourceRepository{})

		assert.NoError(t, uc.NotifyBooked(ctx, noRecipient))
		dispatcher.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})
}
