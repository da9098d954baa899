package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategory(t *testing.T) {
	m := NewDefaultErrorMapper()

	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("route: %w", ErrNoSkillMatched), "ErrNoSkillMatched"},
		{fmt.Errorf("telephony: %w", ErrSkillFailure), "ErrSkillFailure"},
		{fmt.Errorf("register: %w", ErrDuplicateSkillName), "ErrDuplicateSkillName"},
		{fmt.Errorf("decide: %w", ErrAlreadyDecided), "ErrAlreadyDecided"},
		{NotFound("approval 01H"), "ErrNotFound"},
		{errors.New("something odd"), "Unknown"},
		{nil, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Category(tt.err))
	}
}

func TestHTTPStatus(t *testing.T) {
	m := NewDefaultErrorMapper()

	assert.Equal(t, http.StatusOK, m.HTTPStatus(nil))
	assert.Equal(t, http.StatusNotFound, m.HTTPStatus(NotFound("x")))
	assert.Equal(t, http.StatusConflict, m.HTTPStatus(fmt.Errorf("x: %w", ErrAlreadyDecided)))
	assert.Equal(t, http.StatusConflict, m.HTTPStatus(fmt.Errorf("x: %w", ErrDuplicateEvent)))
	assert.Equal(t, http.StatusGone, m.HTTPStatus(fmt.Errorf("x: %w", ErrApprovalExpired)))
	assert.Equal(t, http.StatusUnprocessableEntity, m.HTTPStatus(fmt.Errorf("x: %w", ErrNoSkillMatched)))
	assert.Equal(t, http.StatusBadRequest, m.HTTPStatus(InvalidInput("x")))
	assert.Equal(t, http.StatusInternalServerError, m.HTTPStatus(errors.New("boom")))
}

func TestMapError(t *testing.T) {
	m := NewDefaultErrorMapper()

	assert.Nil(t, m.MapError(nil))
	assert.ErrorIs(t, m.MapError(context.Canceled), context.Canceled)
	assert.ErrorIs(t, m.MapError(context.DeadlineExceeded), ErrTransient)
	assert.ErrorIs(t, m.MapError(errors.New("connection refused")), ErrTransient)
	assert.ErrorIs(t, m.MapError(errors.New("record does not exist")), ErrNotFound)

	already := fmt.Errorf("decide: %w", ErrAlreadyDecided)
	assert.Same(t, already, m.MapError(already))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Transient("redis down")))
	assert.True(t, IsRetryable(Conflict("lease held")))
	assert.False(t, IsRetryable(fmt.Errorf("x: %w", ErrAlreadyDecided)))
	assert.False(t, IsRetryable(fmt.Errorf("x: %w", ErrSkillFailure)))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(nil))
}
