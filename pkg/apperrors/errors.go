package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrNotInConflictSet = errors.New("chosen fact is not part of the pending conflict set")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnavailable      = errors.New("service unavailable")
)

// ValidationError carries the human-readable messages produced by schema
// validation. An empty Messages slice is never wrapped in a ValidationError.
type ValidationError struct {
	Subject  string
	Messages []string
}

func (e *ValidationError) Error() string {
	if e.Subject == "" {
		return strings.Join(e.Messages, "; ")
	}
	return fmt.Sprintf("%s: %s", e.Subject, strings.Join(e.Messages, "; "))
}

// NewValidationError returns nil when there are no messages.
func NewValidationError(subject string, messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Subject: subject, Messages: messages}
}

// RateLimitError is returned when a fixed-window bucket is exhausted.
// It is the only error kind callers are expected to retry automatically,
// after RetryAfterSeconds.
type RateLimitError struct {
	Key               string
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q, retry after %ds", e.Key, e.RetryAfterSeconds)
}

// IsRetryable implements the retry.RetryableError interface.
func (e *RateLimitError) IsRetryable() bool {
	return true
}

// AsRateLimit extracts a *RateLimitError from err.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// AsValidation extracts a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
