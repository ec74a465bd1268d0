package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
)

// ApiResponse is the standard success envelope.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidationErrorResponse is returned with 422 when input fails validation.
type ValidationErrorResponse struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Messages []string `json:"messages"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeSuccess wraps data in ApiResponse.
func writeSuccess(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError writes an error response and logs encoding failures.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps a service error onto an HTTP status. Unclassified
// errors are logged and reported as 500 with failCode.
func writeServiceError(w http.ResponseWriter, err error, failCode string, logger *zap.Logger) {
	if ve, ok := apperrors.AsValidation(err); ok {
		resp := ValidationErrorResponse{Error: "validation_failed", Message: ve.Error(), Messages: ve.Messages}
		if err := WriteJSON(w, http.StatusUnprocessableEntity, resp); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if rl, ok := apperrors.AsRateLimit(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds))
		writeError(w, http.StatusTooManyRequests, "rate_limited", rl.Error(), logger)
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Resource not found", logger)
	case errors.Is(err, apperrors.ErrNotInConflictSet):
		writeError(w, http.StatusConflict, "not_in_conflict_set", err.Error(), logger)
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error(), logger)
	case errors.Is(err, apperrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), logger)
	case errors.Is(err, apperrors.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error(), logger)
	default:
		logger.Error("Request failed", zap.String("error_code", failCode), zap.Error(err))
		writeError(w, http.StatusInternalServerError, failCode, "Internal server error", logger)
	}
}

// decodeBody decodes the JSON request body into dst, writing 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", logger)
		return false
	}
	return true
}
