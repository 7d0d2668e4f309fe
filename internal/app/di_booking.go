package app

import (
	"fmt"

	bookingHTTP "github.com/allisson/clinicops/internal/booking/http"
	bookingRepository "github.com/allisson/clinicops/internal/booking/repository"
	bookingUsecase "github.com/allisson/clinicops/internal/booking/usecase"
	calendarsyncUsecase "github.com/allisson/clinicops/internal/calendarsync/usecase"
	messagingUsecase "github.com/allisson/clinicops/internal/messaging/usecase"
	outboxRepository "github.com/allisson/clinicops/internal/outbox/repository"
	outboxUsecase "github.com/allisson/clinicops/internal/outbox/usecase"
)

// appointmentRepository is the appointment store shared by booking, calendar sync and reminders.
type appointmentRepository interface {
	bookingUsecase.AppointmentRepository
	calendarsyncUsecase.AppointmentRepository
	messagingUsecase.AppointmentRepository
}

// AppointmentRepository returns the appointment repository for the configured driver.
func (c *Container) AppointmentRepository() (appointmentRepository, error) {
	var err error
	c.appointmentRepoInit.Do(func() {
		c.appointmentRepo, err = c.initAppointmentRepository()
		if err != nil {
			c.initErrors["appointmentRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["appointmentRepo"]; exists {
		return nil, storedErr
	}
	return c.appointmentRepo, nil
}

// ResourceRepository returns the resource repository for the configured driver.
func (c *Container) ResourceRepository() (bookingUsecase.ResourceRepository, error) {
	var err error
	c.resourceRepoInit.Do(func() {
		c.resourceRepo, err = c.initResourceRepository()
		if err != nil {
			c.initErrors["resourceRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["resourceRepo"]; exists {
		return nil, storedErr
	}
	return c.resourceRepo, nil
}

// OutboxRepository returns the outbox event repository instance.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	var err error
	c.outboxRepoInit.Do(func() {
		c.outboxRepo, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// BookingUseCase returns the booking ledger use case.
func (c *Container) BookingUseCase() (bookingUsecase.BookingUseCase, error) {
	var err error
	c.bookingUseCaseInit.Do(func() {
		c.bookingUseCase, err = c.initBookingUseCase()
		if err != nil {
			c.initErrors["bookingUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["bookingUseCase"]; exists {
		return nil, storedErr
	}
	return c.bookingUseCase, nil
}

// BookingHandler returns the booking HTTP handler.
func (c *Container) BookingHandler() (*bookingHTTP.BookingHandler, error) {
	var err error
	c.bookingHandlerInit.Do(func() {
		c.bookingHandler, err = c.initBookingHandler()
		if err != nil {
			c.initErrors["bookingHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["bookingHandler"]; exists {
		return nil, storedErr
	}
	return c.bookingHandler, nil
}

func (c *Container) initAppointmentRepository() (appointmentRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for appointment repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return bookingRepository.NewPostgreSQLAppointmentRepository(db), nil
	case "mysql":
		return bookingRepository.NewMySQLAppointmentRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initResourceRepository() (bookingUsecase.ResourceRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for resource repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return bookingRepository.NewPostgreSQLResourceRepository(db), nil
	case "mysql":
		return bookingRepository.NewMySQLResourceRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOutboxRepository creates the outbox event repository instance.
func (c *Container) initOutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initBookingUseCase creates the booking use case with all its dependencies.
func (c *Container) initBookingUseCase() (bookingUsecase.BookingUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for booking use case: %w", err)
	}

	appointmentRepo, err := c.AppointmentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment repository for booking use case: %w", err)
	}

	resourceRepo, err := c.ResourceRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get resource repository for booking use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for booking use case: %w", err)
	}

	calendarGateway, err := c.CalendarGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar gateway for booking use case: %w", err)
	}

	syncUseCase, err := c.SyncUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get sync use case for booking use case: %w", err)
	}

	baseUseCase := bookingUsecase.NewBookingUseCase(
		txManager,
		appointmentRepo,
		resourceRepo,
		outboxRepo,
		calendarGateway,
		syncUseCase,
		bookingUsecase.Config{
			FreeBusyTimeout:     c.config.BookingFreeBusyTimeout,
			RemoteCancelTimeout: c.config.BookingRemoteCancelTimeout,
		},
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for booking use case: %w", err)
		}
		return bookingUsecase.NewBookingUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initBookingHandler() (*bookingHTTP.BookingHandler, error) {
	useCase, err := c.BookingUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get booking use case for booking handler: %w", err)
	}
	return bookingHTTP.NewBookingHandler(useCase, c.Logger()), nil
}
