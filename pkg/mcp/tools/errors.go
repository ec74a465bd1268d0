package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Returned as tool content so the calling agent can read and act on it
// instead of the error being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can fix (bad parameters, unknown ids).
// System failures still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// resultForError converts actionable service errors into structured results.
// Anything else is returned unchanged as a Go error.
func resultForError(err error) (*mcp.CallToolResult, error) {
	if ve, ok := apperrors.AsValidation(err); ok {
		return NewErrorResultWithDetails("validation_error", ve.Error(), map[string]any{"messages": ve.Messages}), nil
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error()), nil
	case errors.Is(err, apperrors.ErrNotInConflictSet):
		return NewErrorResult("not_in_conflict_set", err.Error()), nil
	case errors.Is(err, apperrors.ErrConflict):
		return NewErrorResult("conflict", err.Error()), nil
	case errors.Is(err, apperrors.ErrUnavailable):
		return NewErrorResult("unavailable", err.Error()), nil
	}
	return nil, err
}
