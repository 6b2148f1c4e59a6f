// Package apierrors provides error codes and JSON error responses for the HTTP API.
package apierrors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrorCodeServiceDown    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// WriteValidationError writes a validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

// WriteInternalError writes an internal error response.
func (h *Handler) WriteInternalError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeInternalError, message, requestID)
}

// WriteServiceUnavailable writes a service unavailable response.
func (h *Handler) WriteServiceUnavailable(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusServiceUnavailable, ErrorCodeServiceDown, message, requestID)
}

// WriteRateLimited writes a rate limit exceeded response.
func (h *Handler) WriteRateLimited(w http.ResponseWriter, requestID string) {
	w.Header().Set("Retry-After", "60")
	h.WriteErrorResponse(w, http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded", requestID)
}
