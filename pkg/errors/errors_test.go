package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrInvalidCredentials,
		ErrNotVerified, ErrUnauthorized, ErrForbidden, ErrTokenExpired,
		ErrTokenInvalid, ErrRateLimited,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	withInner := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withInner.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "account not found"}
	assert.Equal(t, "NOT_FOUND: account not found", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("account", "42"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("account", "email", "a@b.com"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("email is required"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"invalid credentials", InvalidCredentials(), "INVALID_CREDENTIALS", http.StatusBadRequest, ErrInvalidCredentials},
		{"not verified", NotVerified(), "NOT_VERIFIED", http.StatusBadRequest, ErrNotVerified},
		{"unauthorized", Unauthorized("missing token"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("refresh token revoked"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"token expired", TokenExpired("link expired"), "TOKEN_EXPIRED", http.StatusBadRequest, ErrTokenExpired},
		{"token invalid", TokenInvalid("bad link"), "TOKEN_INVALID", http.StatusBadRequest, ErrTokenInvalid},
		{"rate limited", RateLimited("slow down"), "RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestNotFound_MessageWithoutID(t *testing.T) {
	assert.Equal(t, "account not found", NotFound("account", "").Message)
	assert.Equal(t, "account 42 not found", NotFound("account", "42").Message)
}

func TestAlreadyExists_NamesField(t *testing.T) {
	err := AlreadyExists("account", "username", "alice")
	assert.Contains(t, err.Message, "username")
	assert.Contains(t, err.Message, "alice")
}

func TestInternal_HidesCause(t *testing.T) {
	err := Internal(fmt.Errorf("pool exhausted"))
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Contains(t, err.Error(), "pool exhausted")
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "get account")
	assert.Contains(t, wrapped.Error(), "get account")
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestHTTPStatus_SentinelErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrInvalidCredentials, http.StatusBadRequest},
		{ErrNotVerified, http.StatusBadRequest},
		{ErrTokenExpired, http.StatusBadRequest},
		{ErrTokenInvalid, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrTokenExpired)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(wrapped))
}

func TestHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("unknown")))
}
