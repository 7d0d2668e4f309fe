// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	bookingDomain "github.com/allisson/clinicops/internal/booking/domain"
	apperrors "github.com/allisson/clinicops/internal/errors"
)

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeSlotTaken       = "SLOT_TAKEN"
	CodeOutOfHours      = "OUT_OF_HOURS"
	CodeInvalidService  = "INVALID_SERVICE"
	CodePolicyViolation = "POLICY_VIOLATION"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// HandleErrorGin maps domain errors to HTTP status codes and returns a JSON response using Gin.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	statusCode, errorResponse := mapError(err)

	// Log the full error details (including wrapped errors)
	if logger != nil {
		level := slog.LevelWarn
		if statusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed",
			slog.Int("status_code", statusCode),
			slog.String("error_code", errorResponse.Error),
			slog.Any("error", err),
		)
	}

	c.JSON(statusCode, errorResponse)
}

func mapError(err error) (int, ErrorResponse) {
	// Booking errors carry a stable code and are checked before their sentinels.
	switch {
	case apperrors.Is(err, bookingDomain.ErrSlotTaken):
		return http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: "The requested slot is no longer available",
			Code:    CodeSlotTaken,
		}

	case apperrors.Is(err, bookingDomain.ErrOutOfHours):
		return http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: "The requested slot is outside service hours",
			Code:    CodeOutOfHours,
		}

	case apperrors.Is(err, bookingDomain.ErrInvalidService):
		return http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: "The requested service does not exist or is not active",
			Code:    CodeInvalidService,
		}
	}

	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "The requested resource was not found",
		}

	case apperrors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
		}

	case apperrors.Is(err, apperrors.ErrPolicyViolation):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "policy_violation",
			Message: err.Error(),
			Code:    CodePolicyViolation,
		}

	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_input",
			Message: err.Error(),
		}

	case apperrors.Is(err, apperrors.ErrGateway):
		return http.StatusBadGateway, ErrorResponse{
			Error:   "gateway_error",
			Message: "An upstream service failed",
		}

	default:
		// For unknown/internal errors, don't expose details to the client
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		}
	}
}

// HandleBadRequestGin writes a 400 Bad Request response for malformed JSON or parameters using Gin.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}

	errorResponse := ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	}

	c.JSON(http.StatusBadRequest, errorResponse)
}

// HandleValidationErrorGin writes a 422 Unprocessable Entity response for validation errors using Gin.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}

	errorResponse := ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	}

	c.JSON(http.StatusUnprocessableEntity, errorResponse)
}
