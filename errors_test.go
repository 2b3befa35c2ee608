package goIdentity

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCodeAndStatus(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{nil, "", http.StatusOK},
		{ErrValidation, CodeValidation, http.StatusBadRequest},
		{ErrAuthFailed, CodeAuthFailed, http.StatusUnauthorized},
		{ErrAccountLocked, CodeAuthFailed, http.StatusUnauthorized},
		{ErrInvalidCredentials, CodeInvalidCredentials, http.StatusUnauthorized},
		{ErrOTPInvalid, CodeOTPInvalid, http.StatusUnauthorized},
		{ErrInvalidBiometric, CodeInvalidBiometric, http.StatusUnauthorized},
		{ErrIncompleteBiometric, CodeIncompleteBiometric, http.StatusBadRequest},
		{ErrAccountExists, CodeAccountExists, http.StatusConflict},
		{ErrTokenInvalid, CodeTokenInvalid, http.StatusUnauthorized},
		{ErrUnauthorized, CodeUnauthorized, http.StatusUnauthorized},
		{ErrRateLimited, CodeRateLimited, http.StatusTooManyRequests},
		{ErrServer, CodeServer, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", ErrOTPInvalid), CodeOTPInvalid, http.StatusUnauthorized},
		{errors.New("something else"), CodeServer, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := ErrorCode(c.err); got != c.code {
			t.Errorf("ErrorCode(%v) = %q, want %q", c.err, got, c.code)
		}
		if got := HTTPStatus(c.err); got != c.status {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.status)
		}
	}
}

func TestPublicErrorHidesLock(t *testing.T) {
	if got := publicError(ErrAccountLocked); got != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", got)
	}
	if got := publicError(ErrOTPInvalid); got != ErrOTPInvalid {
		t.Fatalf("expected passthrough, got %v", got)
	}
}
