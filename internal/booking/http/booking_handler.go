// Package http provides HTTP handlers for the booking ledger: reserve, reschedule and cancel.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/clinicops/internal/booking/http/dto"
	bookingUseCase "github.com/allisson/clinicops/internal/booking/usecase"
	"github.com/allisson/clinicops/internal/httputil"
	customValidation "github.com/allisson/clinicops/internal/validation"
)

// BookingHandler handles HTTP requests for appointment bookings.
type BookingHandler struct {
	bookingUseCase bookingUseCase.BookingUseCase
	logger         *slog.Logger
}

// NewBookingHandler creates a new booking handler with required dependencies.
func NewBookingHandler(bookingUseCase bookingUseCase.BookingUseCase, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		bookingUseCase: bookingUseCase,
		logger:         logger,
	}
}

// ReserveHandler books a slot on a resource.
// POST /v1/tenants/:tenant_id/appointments/reserve
func (h *BookingHandler) ReserveHandler(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.bookingUseCase.Reserve(c.Request.Context(), req.ToInput(tenantID))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapBookingResultToResponse(result))
}

// RescheduleHandler moves an appointment to a new start time.
// POST /v1/tenants/:tenant_id/appointments/reschedule
func (h *BookingHandler) RescheduleHandler(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	appointmentID, newStartAt := req.Parsed()
	result, err := h.bookingUseCase.Reschedule(c.Request.Context(), tenantID, appointmentID, newStartAt)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapBookingResultToResponse(result))
}

// CancelHandler cancels an appointment. Cancelling twice returns the cancelled appointment.
// POST /v1/tenants/:tenant_id/appointments/cancel
func (h *BookingHandler) CancelHandler(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.bookingUseCase.Cancel(c.Request.Context(), tenantID, req.ParsedID())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapBookingResultToResponse(result))
}

func (h *BookingHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid tenant_id: %w", err), h.logger)
		return uuid.Nil, false
	}
	return tenantID, true
}
