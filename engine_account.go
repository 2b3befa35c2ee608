package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

// SendOTP issues a one-time code for an email or phone and delivers it. The code is echoed
// in the result only outside production.
func (e *Engine) SendOTP(ctx context.Context, req OTPRequest) (*OTPResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	out, err := e.flow.SendOTP(ctx, flows.OTPInput{
		Target:  req.Target,
		Channel: req.Channel,
		Region:  req.Region,
	})
	if err != nil {
		return nil, err
	}
	return &OTPResult{
		Channel:     string(out.Channel),
		Destination: out.Destination,
		ExpiresIn:   out.ExpiresIn,
		Code:        out.Code,
	}, nil
}

// Lookup reports which login method a value maps to, whether an account owns it, and
// whether that account has a verified contact or device.
func (e *Engine) Lookup(ctx context.Context, value, region string) (*LookupResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	out, err := e.flow.Lookup(ctx, value, region)
	if err != nil {
		return nil, err
	}
	return &LookupResult{Method: out.Method, Exists: out.Exists, Secured: out.Secured}, nil
}

// ConfirmEmail completes a magic-link signup. It returns the identity id.
func (e *Engine) ConfirmEmail(ctx context.Context, token string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	return e.flow.ConfirmEmail(ctx, token)
}

// RejectDevice unlinks the device named in a new-device alert and revokes every refresh
// token of its identity. It returns the identity id.
func (e *Engine) RejectDevice(ctx context.Context, token string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	return e.flow.RejectDevice(ctx, token)
}
