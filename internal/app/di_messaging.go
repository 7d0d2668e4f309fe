package app

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	messagingHTTP "github.com/allisson/clinicops/internal/messaging/http"
	messagingRepository "github.com/allisson/clinicops/internal/messaging/repository"
	messagingService "github.com/allisson/clinicops/internal/messaging/service"
	messagingUsecase "github.com/allisson/clinicops/internal/messaging/usecase"
	messagingWorker "github.com/allisson/clinicops/internal/messaging/worker"
	"github.com/allisson/clinicops/internal/retry"
)

const (
	// backoffBase makes Delay(attempts) = min(MESSAGING_BACKOFF_MAX, 2^attempts s).
	backoffBase       = 2 * time.Second
	staleBatchSize    = 100
	reminderBatchSize = 500
)

// MessageRepository returns the outbound message repository for the configured driver.
func (c *Container) MessageRepository() (messagingUsecase.MessageRepository, error) {
	var err error
	c.messageRepoInit.Do(func() {
		c.messageRepo, err = c.initMessageRepository()
		if err != nil {
			c.initErrors["messageRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["messageRepo"]; exists {
		return nil, storedErr
	}
	return c.messageRepo, nil
}

// TemplateRepository returns the template and conversation activity repository.
func (c *Container) TemplateRepository() (messagingUsecase.TemplateRepository, error) {
	var err error
	c.templateRepoInit.Do(func() {
		c.templateRepo, err = c.initTemplateRepository()
		if err != nil {
			c.initErrors["templateRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["templateRepo"]; exists {
		return nil, storedErr
	}
	return c.templateRepo, nil
}

// MessageProvider returns the message provider gateway. The simulated provider is used
// when MESSAGING_PROVIDER_URL is empty.
func (c *Container) MessageProvider() (messagingUsecase.Provider, error) {
	var err error
	c.messageProviderInit.Do(func() {
		c.messageProvider, err = c.initMessageProvider()
		if err != nil {
			c.initErrors["messageProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["messageProvider"]; exists {
		return nil, storedErr
	}
	return c.messageProvider, nil
}

// DispatcherUseCase returns the outbound message dispatcher.
func (c *Container) DispatcherUseCase() (messagingUsecase.DispatcherUseCase, error) {
	var err error
	c.dispatcherUseCaseInit.Do(func() {
		c.dispatcherUseCase, err = c.initDispatcherUseCase()
		if err != nil {
			c.initErrors["dispatcherUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatcherUseCase"]; exists {
		return nil, storedErr
	}
	return c.dispatcherUseCase, nil
}

// NotificationUseCase returns the appointment notification use case.
func (c *Container) NotificationUseCase() (messagingUsecase.NotificationUseCase, error) {
	var err error
	c.notificationUseCaseInit.Do(func() {
		c.notificationUseCase, err = c.initNotificationUseCase()
		if err != nil {
			c.initErrors["notificationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["notificationUseCase"]; exists {
		return nil, storedErr
	}
	return c.notificationUseCase, nil
}

// MessageHandler returns the messaging HTTP handler.
func (c *Container) MessageHandler() (*messagingHTTP.MessageHandler, error) {
	var err error
	c.messageHandlerInit.Do(func() {
		c.messageHandler, err = c.initMessageHandler()
		if err != nil {
			c.initErrors["messageHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["messageHandler"]; exists {
		return nil, storedErr
	}
	return c.messageHandler, nil
}

// MessagingWorker returns the messaging worker.
func (c *Container) MessagingWorker() (*messagingWorker.Worker, error) {
	var err error
	c.messagingWorkerInit.Do(func() {
		c.messagingWorker, err = c.initMessagingWorker()
		if err != nil {
			c.initErrors["messagingWorker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["messagingWorker"]; exists {
		return nil, storedErr
	}
	return c.messagingWorker, nil
}

func (c *Container) initMessageRepository() (messagingUsecase.MessageRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for message repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return messagingRepository.NewPostgreSQLMessageRepository(db), nil
	case "mysql":
		return messagingRepository.NewMySQLMessageRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initTemplateRepository() (messagingUsecase.TemplateRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for template repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return messagingRepository.NewPostgreSQLTemplateRepository(db), nil
	case "mysql":
		return messagingRepository.NewMySQLTemplateRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initMessageProvider() (messagingUsecase.Provider, error) {
	logger := c.Logger()

	if c.config.MessagingProviderURL == "" {
		logger.Warn("MESSAGING_PROVIDER_URL is empty, using the simulated message provider")
		return messagingService.NewSimulatedProvider(logger), nil
	}

	credentials, err := c.IntegrationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get integration use case for message provider: %w", err)
	}

	return messagingService.NewHTTPProvider(
		credentials,
		&http.Client{Timeout: c.config.MessagingProviderTimeout},
		c.config.MessagingProviderURL,
		logger,
	), nil
}

func (c *Container) sendLimiter() *rate.Limiter {
	if c.config.MessagingSendRatePerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(c.config.MessagingSendRatePerSec), c.config.MessagingSendBurst)
}

func (c *Container) initDispatcherUseCase() (messagingUsecase.DispatcherUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for dispatcher use case: %w", err)
	}

	messageRepo, err := c.MessageRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get message repository for dispatcher use case: %w", err)
	}

	templateRepo, err := c.TemplateRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get template repository for dispatcher use case: %w", err)
	}

	provider, err := c.MessageProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get message provider for dispatcher use case: %w", err)
	}

	scheduler, err := c.RetryScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to get retry scheduler for dispatcher use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for dispatcher use case: %w", err)
	}

	baseUseCase := messagingUsecase.NewDispatcherUseCase(
		txManager,
		messageRepo,
		templateRepo,
		provider,
		scheduler,
		c.sendLimiter(),
		businessMetrics,
		messagingUsecase.Config{
			DefaultLanguage: c.config.MessagingDefaultLanguage,
			SessionWindow:   c.config.MessagingSessionWindow,
			MaxInitialDelay: c.config.MessagingMaxInitialDelay,
			MaxAttempts:     c.config.MessagingMaxAttempts,
			Backoff: retry.Policy{
				Base: backoffBase,
				Max:  c.config.MessagingBackoffMax,
			},
			ProviderTimeout:   c.config.MessagingProviderTimeout,
			StaleSendingAfter: c.config.MessagingStaleSendingAfter,
			StaleBatchSize:    staleBatchSize,
			RetryTokenTTL:     c.config.MessagingRetryTokenTTL,
		},
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		return messagingUsecase.NewDispatcherUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initNotificationUseCase() (messagingUsecase.NotificationUseCase, error) {
	dispatcher, err := c.DispatcherUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatcher use case for notification use case: %w", err)
	}

	appointmentRepo, err := c.AppointmentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment repository for notification use case: %w", err)
	}

	resourceRepo, err := c.ResourceRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get resource repository for notification use case: %w", err)
	}

	return messagingUsecase.NewNotificationUseCase(
		dispatcher,
		appointmentRepo,
		resourceRepo,
		messagingUsecase.NotificationConfig{
			Reminder24hTemplate:      c.config.Reminder24hTemplate,
			Reminder2hTemplate:       c.config.Reminder2hTemplate,
			BookingConfirmedTemplate: c.config.BookingConfirmedTemplate,
			ReminderBatchSize:        reminderBatchSize,
			Lookahead:                2 * c.config.ReminderInterval,
		},
		c.Logger(),
	), nil
}

func (c *Container) initMessageHandler() (*messagingHTTP.MessageHandler, error) {
	dispatcher, err := c.DispatcherUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatcher use case for message handler: %w", err)
	}
	return messagingHTTP.NewMessageHandler(dispatcher, c.Logger()), nil
}

func (c *Container) initMessagingWorker() (*messagingWorker.Worker, error) {
	dispatcher, err := c.DispatcherUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatcher use case for messaging worker: %w", err)
	}

	notifications, err := c.NotificationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get notification use case for messaging worker: %w", err)
	}

	return messagingWorker.NewWorker(
		dispatcher,
		notifications,
		messagingWorker.Config{
			DispatchInterval:  c.config.MessagingDispatchInterval,
			DispatchBatchSize: c.config.MessagingDispatchBatchSize,
			RetryInterval:     c.config.MessagingRetryInterval,
			ReminderInterval:  c.config.ReminderInterval,
		},
		c.Logger(),
	), nil
}
