package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	t.Run("without underlying error", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		assert.Equal(t, "NOT_FOUND: resource not found", err.Error())
	})

	t.Run("with underlying error", func(t *testing.T) {
		underlying := errors.New("connection refused")
		err := Wrap(CodeInternal, "database error", underlying)
		assert.Contains(t, err.Error(), "INTERNAL: database error")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("original error")
	err := Wrap(CodeInternal, "wrapped", underlying)

	assert.True(t, errors.Is(err, underlying))
}

func TestError_Is(t *testing.T) {
	err1 := New(CodeInvalidState, "state 1")
	err2 := New(CodeInvalidState, "state 2")
	err3 := New(CodeInternal, "internal")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestError_WithDetails(t *testing.T) {
	err := New(CodeProviderExchange, "exchange rejected")
	details := map[string]string{"provider_body": `{"error":"invalid_grant"}`}

	withDetails := err.WithDetails(details)

	assert.Equal(t, err.Code, withDetails.Code)
	assert.Equal(t, err.Message, withDetails.Message)
	assert.Equal(t, details, withDetails.Details)
}

func TestError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeInvalidState, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeInvalidCredentials, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeAlreadyExists, http.StatusConflict},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeFailedPrecond, http.StatusPreconditionFailed},
		{CodeProviderExchange, http.StatusInternalServerError},
		{CodeProviderProfile, http.StatusInternalServerError},
		{CodeProviderRefresh, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, New(tt.code, "msg").HTTPStatusCode())
		})
	}
}

func TestIsCode(t *testing.T) {
	err := InvalidCredentials("invalid email or password")

	assert.True(t, IsCode(err, CodeInvalidCredentials))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(errors.New("plain"), CodeInvalidCredentials))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeAlreadyExists, GetCode(AlreadyExists("taken")))
	assert.Equal(t, CodeInternal, GetCode(errors.New("plain")))
}
