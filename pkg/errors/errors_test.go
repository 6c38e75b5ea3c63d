package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorString(t *testing.T) {
	withInner := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: fmt.Errorf("db down")}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db down", withInner.Error())

	plain := &AppError{Code: "NOT_FOUND", Message: "missing"}
	assert.Equal(t, "NOT_FOUND: missing", plain.Error())
	assert.Nil(t, plain.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("execution", "e-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("instance", "date", "2026-01-01"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("bad"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("who"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("nope"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("busy"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"unprocessable", Unprocessable("MISSION_COMPLETION_FAILED", "exp grant failed"), "MISSION_COMPLETION_FAILED", http.StatusUnprocessableEntity, ErrUnprocessable},
		{"service unavailable", ServiceUnavailable("later"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestUnprocessable_KeepsMessageVerbatim(t *testing.T) {
	err := Unprocessable("MISSION_COMPLETION_FAILED", "user experience could not be granted")
	assert.Equal(t, "user experience could not be granted", err.Message)
}

func TestInternal_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Internal(cause)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("get mission: %w", ErrNotFound)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Wrap(ErrConflict, "lock")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("plain")))
}
