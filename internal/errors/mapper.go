package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorMapper maps external errors to the Hearth error taxonomy
type ErrorMapper interface {
	MapError(err error) error
	IsRetryable(err error) bool
	Category(err error) string
	HTTPStatus(err error) int
}

// DefaultErrorMapper implements the Hearth error taxonomy mapping
type DefaultErrorMapper struct{}

func NewDefaultErrorMapper() *DefaultErrorMapper {
	return &DefaultErrorMapper{}
}

// MapError maps errors that do not already carry a category.
func (m *DefaultErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w", ErrTransient)
	}

	if m.Category(err) != "Unknown" {
		return err
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "does not exist"):
		return fmt.Errorf("resource not found: %w", ErrNotFound)

	case strings.Contains(errStr, "invalid"), strings.Contains(errStr, "malformed"), strings.Contains(errStr, "bad request"):
		return fmt.Errorf("invalid request: %w", ErrInvalidInput)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return fmt.Errorf("request timeout: %w", ErrTransient)

	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "unreachable"), strings.Contains(errStr, "network"):
		return fmt.Errorf("network error: %w", ErrTransient)

	case strings.Contains(errStr, "already exists"), strings.Contains(errStr, "conflict"):
		return fmt.Errorf("conflict: %w", ErrConflict)

	default:
		return fmt.Errorf("%s: %w", err.Error(), ErrInternal)
	}
}

// IsRetryable reports whether the orchestration layer may retry. Nothing in
// the core retries on its own.
func (m *DefaultErrorMapper) IsRetryable(err error) bool {
	return IsRetryable(err)
}

// Category returns the sentinel name for an error.
func (m *DefaultErrorMapper) Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNoSkillMatched):
		return "ErrNoSkillMatched"
	case errors.Is(err, ErrSkillFailure):
		return "ErrSkillFailure"
	case errors.Is(err, ErrDuplicateSkillName):
		return "ErrDuplicateSkillName"
	case errors.Is(err, ErrRegistrySealed):
		return "ErrRegistrySealed"
	case errors.Is(err, ErrApprovalExpired):
		return "ErrApprovalExpired"
	case errors.Is(err, ErrAlreadyDecided):
		return "ErrAlreadyDecided"
	case errors.Is(err, ErrNotPrompted):
		return "ErrNotPrompted"
	case errors.Is(err, ErrDuplicateEvent):
		return "ErrDuplicateEvent"
	case errors.Is(err, ErrInvalidInput):
		return "ErrInvalidInput"
	case errors.Is(err, ErrNotFound):
		return "ErrNotFound"
	case errors.Is(err, ErrConflict):
		return "ErrConflict"
	case errors.Is(err, ErrTransient):
		return "ErrTransient"
	case errors.Is(err, ErrInternal):
		return "ErrInternal"
	default:
		return "Unknown"
	}
}

// HTTPStatus picks the response code the daemon API uses for an error.
func (m *DefaultErrorMapper) HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrApprovalExpired):
		return http.StatusGone
	case errors.Is(err, ErrAlreadyDecided), errors.Is(err, ErrDuplicateEvent), errors.Is(err, ErrConflict), errors.Is(err, ErrNotPrompted):
		return http.StatusConflict
	case errors.Is(err, ErrNoSkillMatched), errors.Is(err, ErrSkillFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// IsCategory checks if error belongs to specific category
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// NotFound wraps error as not found
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Conflict wraps error as conflict
func Conflict(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConflict)
}

// Transient wraps error as transient
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// Internal wraps error as internal
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}

// IsRetryable checks if an error is transient or conflict related
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrAlreadyDecided) || errors.Is(err, ErrDuplicateEvent) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrConflict)
}
