package app

import (
	"fmt"

	outboxUsecase "github.com/allisson/clinicops/internal/outbox/usecase"
)

// EventRouter returns the domain event router. Building it registers the calendar sync and
// messaging handlers on both the router and TaskServer.
func (c *Container) EventRouter() (*outboxUsecase.EventRouter, error) {
	var err error
	c.eventRouterInit.Do(func() {
		c.eventRouter, err = c.initEventRouter()
		if err != nil {
			c.initErrors["eventRouter"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["eventRouter"]; exists {
		return nil, storedErr
	}
	return c.eventRouter, nil
}

// OutboxUseCase returns the outbox use case instance.
func (c *Container) OutboxUseCase() (*outboxUsecase.OutboxUseCase, error) {
	var err error
	c.outboxUseCaseInit.Do(func() {
		c.outboxUseCase, err = c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxUseCase, nil
}

func (c *Container) initEventRouter() (*outboxUsecase.EventRouter, error) {
	calendarWorker, err := c.CalendarSyncWorker()
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar sync worker for event router: %w", err)
	}

	messagingWorker, err := c.MessagingWorker()
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging worker for event router: %w", err)
	}

	router := outboxUsecase.NewEventRouter(c.Logger())
	taskServer := c.TaskServer()

	calendarWorker.Register(router, taskServer)
	messagingWorker.Register(router, taskServer)

	return router, nil
}

// initOutboxUseCase creates the outbox use case with all its dependencies.
func (c *Container) initOutboxUseCase() (*outboxUsecase.OutboxUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	router, err := c.EventRouter()
	if err != nil {
		return nil, fmt.Errorf("failed to get event router for outbox use case: %w", err)
	}

	useCaseConfig := outboxUsecase.Config{
		Interval:        c.config.EventWorkerInterval,
		BatchSize:       c.config.EventWorkerBatchSize,
		MaxRetries:      c.config.EventWorkerMaxRetries,
		ProcessingLease: c.config.EventWorkerProcessingLease,
	}

	return outboxUsecase.NewOutboxUseCase(useCaseConfig, txManager, outboxRepo, router, c.Logger()), nil
}
