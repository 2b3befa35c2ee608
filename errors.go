package goIdentity

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation is returned for malformed input: unparseable contact values, missing fields.
	ErrValidation = errors.New("validation failed")
	// ErrAuthFailed is the generic authentication failure. It never says which check failed.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrOTPInvalid is returned when a one-time code is wrong, expired or already used.
	ErrOTPInvalid = errors.New("invalid one-time code")
	// ErrInvalidBiometric is returned when a biometric signature does not verify.
	ErrInvalidBiometric = errors.New("invalid biometric signature")
	// ErrIncompleteBiometric is returned when a biometric login omits a required field.
	ErrIncompleteBiometric = errors.New("incomplete biometric request")
	// ErrAccountLocked marks a locked account. Callers only ever see [ErrAuthFailed];
	// the lock is recorded in audit and metrics.
	ErrAccountLocked = fmt.Errorf("%w: account locked", ErrAuthFailed)
	// ErrAccountExists is returned when signup targets a credential that already has an owner.
	ErrAccountExists = errors.New("account already exists")
	// ErrTokenInvalid is returned for malformed, expired or revoked tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrUnauthorized is returned when a valid token no longer grants access.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is returned when a rate-limit policy denies a request.
	ErrRateLimited = errors.New("rate limited")
	// ErrServer is returned for internal failures. Details go to logs and audit only.
	ErrServer = errors.New("internal server error")
	// ErrEngineNotReady is returned by methods called on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Stable machine-readable error codes.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeAuthFailed          = "AUTH_FAILED"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeOTPInvalid          = "AUTH_OTP_INVALID"
	CodeInvalidBiometric    = "AUTH_INVALID_BIOMETRIC"
	CodeIncompleteBiometric = "AUTH_INCOMPLETE_BIOMETRIC"
	CodeAccountExists       = "ACCOUNT_EXISTS"
	CodeTokenInvalid        = "AUTH_TOKEN_INVALID"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeServer              = "SERVER_ERROR"
)

var errorTable = []struct {
	err    error
	code   string
	status int
}{
	{ErrValidation, CodeValidation, http.StatusBadRequest},
	{ErrIncompleteBiometric, CodeIncompleteBiometric, http.StatusBadRequest},
	{ErrAuthFailed, CodeAuthFailed, http.StatusUnauthorized},
	{ErrInvalidCredentials, CodeInvalidCredentials, http.StatusUnauthorized},
	{ErrOTPInvalid, CodeOTPInvalid, http.StatusUnauthorized},
	{ErrInvalidBiometric, CodeInvalidBiometric, http.StatusUnauthorized},
	{ErrTokenInvalid, CodeTokenInvalid, http.StatusUnauthorized},
	{ErrUnauthorized, CodeUnauthorized, http.StatusUnauthorized},
	{ErrAccountExists, CodeAccountExists, http.StatusConflict},
	{ErrRateLimited, CodeRateLimited, http.StatusTooManyRequests},
	{ErrServer, CodeServer, http.StatusInternalServerError},
	{ErrEngineNotReady, CodeServer, http.StatusServiceUnavailable},
}

// ErrorCode maps err to its stable code. Unknown errors map to [CodeServer]; nil maps to "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, row := range errorTable {
		if errors.Is(err, row.err) {
			return row.code
		}
	}
	return CodeServer
}

// HTTPStatus maps err to the HTTP status a handler should answer with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, row := range errorTable {
		if errors.Is(err, row.err) {
			return row.status
		}
	}
	return http.StatusInternalServerError
}
