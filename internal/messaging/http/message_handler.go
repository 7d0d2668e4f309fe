// Package http provides HTTP handlers for outbound messaging: enqueue plus the provider
// receipt and inbound webhooks.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/clinicops/internal/httputil"
	"github.com/allisson/clinicops/internal/messaging/http/dto"
	messagingUseCase "github.com/allisson/clinicops/internal/messaging/usecase"
	customValidation "github.com/allisson/clinicops/internal/validation"
)

// MessageHandler handles HTTP requests for outbound messages.
type MessageHandler struct {
	dispatcherUseCase messagingUseCase.DispatcherUseCase
	logger            *slog.Logger
}

// NewMessageHandler creates a new message handler with required dependencies.
func NewMessageHandler(dispatcherUseCase messagingUseCase.DispatcherUseCase, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		dispatcherUseCase: dispatcherUseCase,
		logger:            logger,
	}
}

// EnqueueHandler queues an outbound message. Repeating a request returns the same message.
// POST /v1/tenants/:tenant_id/messages
func (h *MessageHandler) EnqueueHandler(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid tenant_id: %w", err), h.logger)
		return
	}

	var req dto.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	msg, err := h.dispatcherUseCase.Enqueue(c.Request.Context(), req.ToRequest(tenantID))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.MapMessageToEnqueueResponse(msg))
}

// ReceiptHandler applies a provider delivery callback.
// POST /v1/webhooks/messages/receipts
func (h *MessageHandler) ReceiptHandler(c *gin.Context) {
	var req dto.ReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	msg, err := h.dispatcherUseCase.HandleReceipt(c.Request.Context(), req.ToReceipt())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapMessageToReceiptResponse(msg))
}

// InboundHandler records an inbound message, opening the conversation's session window.
// POST /v1/webhooks/messages/inbound
func (h *MessageHandler) InboundHandler(c *gin.Context) {
	var req dto.InboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	tenantID, receivedAt := req.Parsed()
	if err := h.dispatcherUseCase.RecordInbound(c.Request.Context(), tenantID, req.ConversationRef, receivedAt); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
