package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"villagelink/internal/repository"
	"villagelink/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidOperatorID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidStop),
		errors.Is(err, service.ErrInvalidPassengerID),
		errors.Is(err, service.ErrInvalidPassengerCount),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidTicketID),
		errors.Is(err, service.ErrInvalidOwnerID),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrSelfTransfer),
		errors.Is(err, service.ErrInvalidPassID),
		errors.Is(err, service.ErrInvalidPassType),
		errors.Is(err, service.ErrInvalidValidity),
		errors.Is(err, service.ErrEmptyPayload),
		errors.Is(err, service.ErrInvalidPayload):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTicketTransition),
		errors.Is(err, service.ErrChainIntegrity),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	// Business rule errors
	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusPaymentRequired

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// queryFloat parses a required float query parameter.
func queryFloat(c *gin.Context, name string) (float64, bool) {
	v, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: name + " must be a number"})
		return 0, false
	}
	return v, true
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: name + " must be an integer"})
		return 0, false
	}
	return v, true
}
