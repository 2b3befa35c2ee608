package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Envelope is the JSON body of every response written by this package.
type Envelope struct {
	Data    any            `json:"data"`
	Message string         `json:"message,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError carries a stable error code for clients.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteData writes a 200 envelope around data.
func WriteData(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Data: data})
}

// WriteError maps err to its HTTP status and error code.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, goIdentity.HTTPStatus(err), Envelope{Error: &EnvelopeError{
		Code:    goIdentity.ErrorCode(err),
		Message: publicMessage(err),
	}})
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, goIdentity.ErrValidation):
		return "invalid request"
	case errors.Is(err, goIdentity.ErrInvalidCredentials),
		errors.Is(err, goIdentity.ErrOTPInvalid),
		errors.Is(err, goIdentity.ErrInvalidBiometric),
		errors.Is(err, goIdentity.ErrAuthFailed):
		return "authentication failed"
	case errors.Is(err, goIdentity.ErrIncompleteBiometric):
		return "incomplete biometric payload"
	case errors.Is(err, goIdentity.ErrAccountExists):
		return "account already exists"
	case errors.Is(err, goIdentity.ErrTokenInvalid), errors.Is(err, goIdentity.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, goIdentity.ErrRateLimited):
		return rateLimitedMessage
	default:
		return "internal error"
	}
}
