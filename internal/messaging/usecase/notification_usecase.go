package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	apperrors "github.com/allisson/clinicops/internal/errors"
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
)

const reminderHorizon = 24 * time.Hour

type reminder struct {
	template string
	lead     time.Duration
}

type notificationUseCase struct {
	dispatcher      DispatcherUseCase
	appointmentRepo AppointmentRepository
	resourceRepo    ResourceRepository
	config          NotificationConfig
	logger          *slog.Logger
	now             func() time.Time
}

func (n *notificationUseCase) ScheduleReminders(ctx context.Context) (int, error) {
	now := n.now().UTC()

	appointments, err := n.appointmentRepo.ListUpcomingWithRecipient(
		ctx, now, now.Add(reminderHorizon+n.config.Lookahead), n.config.ReminderBatchSize,
	)
	if err != nil {
		return 0, err
	}

	reminders := []reminder{
		{template: n.config.Reminder24hTemplate, lead: 24 * time.Hour},
		{template: n.config.Reminder2hTemplate, lead: 2 * time.Hour},
	}
	resources := make(map[uuid.UUID]*bookingDomain.Resource)

	queued := 0
	for _, appt := range appointments {
		if appt.Recipient == nil || *appt.Recipient == "" {
			continue
		}
		resource, ok := resources[appt.ResourceID]
		if !ok {
			resource, err = n.resourceRepo.Get(ctx, appt.TenantID, appt.ResourceID)
			if err != nil {
				n.logger.Error("failed to load resource for reminder",
					slog.String("appointment_id", appt.ID.String()),
					slog.Any("error", err),
				)
				continue
			}
			resources[appt.ResourceID] = resource
		}

		variables := reminderVariables(resource, appt.Slot.Start)
		for _, r := range reminders {
			if r.template == "" {
				continue
			}
			sendAt := appt.Slot.Start.Add(-r.lead)
			if !sendAt.After(now) {
				continue
			}

			_, err := n.dispatcher.Enqueue(ctx, messagingDomain.EnqueueRequest{
				TenantID:        appt.TenantID,
				ConversationRef: appt.ConversationRef,
				Recipient:       *appt.Recipient,
				Classification:  messagingDomain.ClassificationTemplated,
				TemplateName:    r.template,
				Variables:       variables,
				IdempotencyKey:  fmt.Sprintf("reminder:%s:%s", appt.ID, r.template),
				NotBefore:       &sendAt,
			})
			if err != nil {
				n.logEnqueueError("reminder", appt.ID, r.template, err)
				continue
			}
			queued++
		}
	}

	if queued > 0 {
		n.logger.Info("appointment reminders queued", slog.Int("count", queued))
	}
	return queued, nil
}

func (n *notificationUseCase) NotifyBooked(ctx context.Context, event bookingDomain.BookedEvent) error {
	if n.config.BookingConfirmedTemplate == "" || event.Recipient == "" {
		return nil
	}

	startAt, err := time.Parse(time.RFC3339, event.StartAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "invalid booked event start_at")
	}
	resource := &bookingDomain.Resource{Name: event.ResourceName, Timezone: event.Timezone}

	_, err = n.dispatcher.Enqueue(ctx, messagingDomain.EnqueueRequest{
		TenantID:        event.TenantID,
		ConversationRef: event.ConversationRef,
		Recipient:       event.Recipient,
		Classification:  messagingDomain.ClassificationTemplated,
		TemplateName:    n.config.BookingConfirmedTemplate,
		Variables:       reminderVariables(resource, startAt),
		IdempotencyKey:  "booking-confirmed:" + event.AppointmentID.String(),
	})
	if err != nil {
		n.logEnqueueError("booking confirmation", event.AppointmentID, n.config.BookingConfirmedTemplate, err)
		if apperrors.Is(err, apperrors.ErrPolicyViolation) {
			return nil
		}
		return err
	}
	return nil
}

func (n *notificationUseCase) logEnqueueError(kind string, appointmentID uuid.UUID, template string, err error) {
	attrs := []any{
		slog.String("kind", kind),
		slog.String("appointment_id", appointmentID.String()),
		slog.String("template", template),
		slog.Any("error", err),
	}
	if apperrors.Is(err, apperrors.ErrPolicyViolation) {
		n.logger.Warn("notification rejected by messaging policy", attrs...)
		return
	}
	n.logger.Error("failed to enqueue notification", attrs...)
}

// reminderVariables renders the appointment time in the resource's timezone.
func reminderVariables(resource *bookingDomain.Resource, start time.Time) map[string]string {
	loc, err := resource.Location()
	if err != nil {
		loc = time.UTC
	}
	local := start.In(loc)
	return map[string]string{
		"service": resource.Name,
		"date":    local.Format("2006-01-02"),
		"time":    local.Format("15:04"),
	}
}

// NewNotificationUseCase creates the appointment notification use case.
func NewNotificationUseCase(
	dispatcher DispatcherUseCase,
	appointmentRepo AppointmentRepository,
	resourceRepo ResourceRepository,
	config NotificationConfig,
	logger *slog.Logger,
) NotificationUseCase {
	return &notificationUseCase{
		dispatcher:      dispatcher,
		appointmentRepo: appointmentRepo,
		resourceRepo:    resourceRepo,
		config:          config,
		logger:          logger,
		now:             time.Now,
	}
}
