package usecase

import (
	"context"
	"log/slog"

	"github.com/allisson/clinicops/internal/outbox/domain"
)

// EventHandler reacts to one outbox event. A returned error leaves the event pending for
// another attempt.
type EventHandler func(ctx context.Context, event *domain.OutboxEvent) error

// EventRouter dispatches events to the handler registered for their type.
type EventRouter struct {
	handlers map[string]EventHandler
	logger   *slog.Logger
}

// NewEventRouter creates an EventRouter with no handlers.
func NewEventRouter(logger *slog.Logger) *EventRouter {
	return &EventRouter{
		handlers: make(map[string]EventHandler),
		logger:   logger,
	}
}

// Register sets the handler for eventType, replacing any previous one.
func (r *EventRouter) Register(eventType string, handler EventHandler) {
	r.handlers[eventType] = handler
}

// Process implements EventProcessor. Unknown event types are logged and acknowledged.
func (r *EventRouter) Process(ctx context.Context, event *domain.OutboxEvent) error {
	handler, ok := r.handlers[event.EventType]
	if !ok {
		r.logger.Warn("unknown event type", slog.String("event_type", event.EventType))
		return nil
	}
	return handler(ctx, event)
}
