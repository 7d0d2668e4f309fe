package app

import (
	"context"
	"errors"
	"fmt"

	calendarService "github.com/allisson/clinicops/internal/calendar/service"
	calendarsyncUsecase "github.com/allisson/clinicops/internal/calendarsync/usecase"
	calendarsyncWorker "github.com/allisson/clinicops/internal/calendarsync/worker"
	integrationRepository "github.com/allisson/clinicops/internal/integration/repository"
	integrationService "github.com/allisson/clinicops/internal/integration/service"
	integrationUsecase "github.com/allisson/clinicops/internal/integration/usecase"
	"github.com/allisson/clinicops/internal/retry"
)

// KMSKeeper returns the keeper that encrypts tenant integration credentials.
func (c *Container) KMSKeeper() (integrationService.Keeper, error) {
	var err error
	c.keeperInit.Do(func() {
		c.keeper, err = c.initKMSKeeper()
		if err != nil {
			c.initErrors["keeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keeper"]; exists {
		return nil, storedErr
	}
	return c.keeper, nil
}

// IntegrationRepository returns the tenant integration repository for the configured driver.
func (c *Container) IntegrationRepository() (integrationUsecase.IntegrationRepository, error) {
	var err error
	c.integrationRepoInit.Do(func() {
		c.integrationRepo, err = c.initIntegrationRepository()
		if err != nil {
			c.initErrors["integrationRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["integrationRepo"]; exists {
		return nil, storedErr
	}
	return c.integrationRepo, nil
}

// IntegrationUseCase returns the integration use case. It is also the credential provider
// of the calendar and message gateways.
func (c *Container) IntegrationUseCase() (integrationUsecase.IntegrationUseCase, error) {
	var err error
	c.integrationUseCaseInit.Do(func() {
		c.integrationUseCase, err = c.initIntegrationUseCase()
		if err != nil {
			c.initErrors["integrationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["integrationUseCase"]; exists {
		return nil, storedErr
	}
	return c.integrationUseCase, nil
}

// CalendarGateway returns the Google Calendar gateway.
func (c *Container) CalendarGateway() (*calendarService.GoogleGateway, error) {
	var err error
	c.calendarGatewayInit.Do(func() {
		c.calendarGateway, err = c.initCalendarGateway()
		if err != nil {
			c.initErrors["calendarGateway"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["calendarGateway"]; exists {
		return nil, storedErr
	}
	return c.calendarGateway, nil
}

// SyncUseCase returns the calendar sync use case.
func (c *Container) SyncUseCase() (calendarsyncUsecase.SyncUseCase, error) {
	var err error
	c.syncUseCaseInit.Do(func() {
		c.syncUseCase, err = c.initSyncUseCase()
		if err != nil {
			c.initErrors["syncUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["syncUseCase"]; exists {
		return nil, storedErr
	}
	return c.syncUseCase, nil
}

// CalendarSyncWorker returns the calendar sync worker.
func (c *Container) CalendarSyncWorker() (*calendarsyncWorker.Worker, error) {
	var err error
	c.calendarWorkerInit.Do(func() {
		c.calendarWorker, err = c.initCalendarSyncWorker()
		if err != nil {
			c.initErrors["calendarWorker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["calendarWorker"]; exists {
		return nil, storedErr
	}
	return c.calendarWorker, nil
}

func (c *Container) initKMSKeeper() (integrationService.Keeper, error) {
	if c.config.KMSKeyURI == "" {
		return nil, errors.New("KMS_KEY_URI is required to encrypt integration credentials")
	}

	keeper, err := integrationService.NewKMSService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open kms keeper: %w", err)
	}
	return keeper, nil
}

func (c *Container) initIntegrationRepository() (integrationUsecase.IntegrationRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for integration repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return integrationRepository.NewPostgreSQLIntegrationRepository(db), nil
	case "mysql":
		return integrationRepository.NewMySQLIntegrationRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initIntegrationUseCase() (integrationUsecase.IntegrationUseCase, error) {
	repo, err := c.IntegrationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get integration repository for integration use case: %w", err)
	}

	keeper, err := c.KMSKeeper()
	if err != nil {
		return nil, fmt.Errorf("failed to get kms keeper for integration use case: %w", err)
	}

	return integrationUsecase.NewIntegrationUseCase(repo, keeper), nil
}

func (c *Container) initCalendarGateway() (*calendarService.GoogleGateway, error) {
	credentials, err := c.IntegrationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get integration use case for calendar gateway: %w", err)
	}

	return calendarService.NewGoogleGateway(
		credentials,
		nil,
		c.config.GoogleCalendarEndpoint,
		c.Logger(),
	), nil
}

func (c *Container) initSyncUseCase() (calendarsyncUsecase.SyncUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for sync use case: %w", err)
	}

	appointmentRepo, err := c.AppointmentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment repository for sync use case: %w", err)
	}

	resourceRepo, err := c.ResourceRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get resource repository for sync use case: %w", err)
	}

	calendarGateway, err := c.CalendarGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar gateway for sync use case: %w", err)
	}

	scheduler, err := c.RetryScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to get retry scheduler for sync use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for sync use case: %w", err)
	}

	return calendarsyncUsecase.NewSyncUseCase(
		txManager,
		appointmentRepo,
		resourceRepo,
		calendarGateway,
		scheduler,
		businessMetrics,
		calendarsyncUsecase.Config{
			Policy: retry.Policy{
				Base: c.config.CalendarSyncInitialDelay,
				Max:  c.config.CalendarSyncMaxDelay,
			},
			MaxAttempts:    c.config.CalendarSyncMaxAttempts,
			TokenTTL:       c.config.CalendarSyncTokenTTL,
			GatewayTimeout: c.config.CalendarSyncGatewayTimeout,
			SweepBatchSize: c.config.CalendarSyncSweepBatchSize,
		},
		c.Logger(),
	), nil
}

func (c *Container) initCalendarSyncWorker() (*calendarsyncWorker.Worker, error) {
	syncUseCase, err := c.SyncUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get sync use case for calendar sync worker: %w", err)
	}
	return calendarsyncWorker.NewWorker(syncUseCase, c.config.CalendarSyncSweepInterval, c.Logger()), nil
}
