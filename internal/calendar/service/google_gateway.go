// Package service implements the external calendar gateway on top of the Google Calendar API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	calendarDomain "github.com/allisson/clinicops/internal/calendar/domain"
	integrationDomain "github.com/allisson/clinicops/internal/integration/domain"
)

// appointmentProperty tags remote events with the appointment they mirror.
const appointmentProperty = "clinicops_appointment_id"

// CredentialProvider hands out decrypted tenant credentials.
type CredentialProvider interface {
	Configured(ctx context.Context, tenantID uuid.UUID, kind integrationDomain.Kind) (bool, error)
	Credential(ctx context.Context, tenantID uuid.UUID, kind integrationDomain.Kind) (*integrationDomain.Credential, error)
}

// GoogleGateway talks to Google Calendar with each tenant's own access token.
type GoogleGateway struct {
	credentials CredentialProvider
	httpClient  *http.Client
	endpoint    string
	logger      *slog.Logger
}

// NewGoogleGateway creates a GoogleGateway. endpoint overrides the API base URL when not empty.
func NewGoogleGateway(
	credentials CredentialProvider,
	httpClient *http.Client,
	endpoint string,
	logger *slog.Logger,
) *GoogleGateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleGateway{
		credentials: credentials,
		httpClient:  httpClient,
		endpoint:    endpoint,
		logger:      logger,
	}
}

// Configured reports whether the tenant has a calendar integration.
func (g *GoogleGateway) Configured(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	return g.credentials.Configured(ctx, tenantID, integrationDomain.KindCalendar)
}

// CreateEvent inserts the remote event and returns its id.
func (g *GoogleGateway) CreateEvent(ctx context.Context, req calendarDomain.EventRequest) (string, error) {
	svc, calendarID, err := g.service(ctx, req.TenantID)
	if err != nil {
		return "", err
	}

	event := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start: &calendar.EventDateTime{
			DateTime: req.Start.Format(time.RFC3339),
			TimeZone: req.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: req.End.Format(time.RFC3339),
			TimeZone: req.Timezone,
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{appointmentProperty: req.AppointmentID.String()},
		},
	}

	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", unavailable("create event", err)
	}
	if created.Id == "" {
		return "", fmt.Errorf("%w: create event returned no id", calendarDomain.ErrCalendarUnavailable)
	}
	return created.Id, nil
}

// CancelEvent deletes the remote event. An event that is already gone counts as cancelled.
func (g *GoogleGateway) CancelEvent(ctx context.Context, tenantID uuid.UUID, externalRef string) error {
	svc, calendarID, err := g.service(ctx, tenantID)
	if err != nil {
		return err
	}

	err = svc.Events.Delete(calendarID, externalRef).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			g.logger.Debug("calendar event already gone",
				slog.String("tenant_id", tenantID.String()),
				slog.String("external_ref", externalRef),
			)
			return nil
		}
		return unavailable("cancel event", err)
	}
	return nil
}

// FreeBusy returns the busy windows of the tenant's calendar inside window.
func (g *GoogleGateway) FreeBusy(
	ctx context.Context,
	tenantID uuid.UUID,
	window bookingDomain.TimeRange,
) ([]bookingDomain.TimeRange, error) {
	svc, calendarID, err := g.service(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: window.Start.UTC().Format(time.RFC3339),
		TimeMax: window.End.UTC().Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, unavailable("query free/busy", err)
	}

	busy, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, fmt.Errorf("%w: calendar %s missing from free/busy response", calendarDomain.ErrCalendarUnavailable, calendarID)
	}
	if len(busy.Errors) > 0 {
		return nil, fmt.Errorf("%w: free/busy: %s", calendarDomain.ErrCalendarUnavailable, busy.Errors[0].Reason)
	}

	windows := make([]bookingDomain.TimeRange, 0, len(busy.Busy))
	for _, period := range busy.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid busy start %q", calendarDomain.ErrCalendarUnavailable, period.Start)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid busy end %q", calendarDomain.ErrCalendarUnavailable, period.End)
		}
		windows = append(windows, bookingDomain.TimeRange{Start: start.UTC(), End: end.UTC()})
	}
	return windows, nil
}

// service builds a Calendar client authenticated as the tenant.
func (g *GoogleGateway) service(ctx context.Context, tenantID uuid.UUID) (*calendar.Service, string, error) {
	credential, err := g.credentials.Credential(ctx, tenantID, integrationDomain.KindCalendar)
	if err != nil {
		if errors.Is(err, integrationDomain.ErrIntegrationNotFound) {
			return nil, "", calendarDomain.ErrCalendarNotConfigured
		}
		return nil, "", fmt.Errorf("%w: %v", calendarDomain.ErrCalendarUnavailable, err)
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential.AccessToken})
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, g.httpClient), tokenSource)

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", calendarDomain.ErrCalendarUnavailable, err)
	}
	return svc, credential.AccountID, nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", calendarDomain.ErrCalendarUnavailable, op, err)
}
