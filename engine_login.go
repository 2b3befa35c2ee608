package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

// Login authenticates with whichever method the populated fields select, links the
// device and mints a token pair. Biometric is tried first, then phone, email and username.
//
// A locked account fails with [ErrAuthFailed]; the lock is visible only in audit and metrics.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*ProfileState, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := e.now()
	defer e.metricObserve(MetricLoginLatency, start)

	p, err := e.flow.Login(ctx, flows.LoginInput{
		Value:      req.Value,
		Region:     req.Region,
		Password:   req.Password,
		Code:       req.Code,
		IdentityID: req.IdentityID,
		Signature:  req.Signature,
		Payload:    req.Payload,
		Device:     deviceInput(req.Device),
	})
	if err != nil {
		return nil, publicError(err)
	}
	return profileState(p), nil
}

// Signup creates an identity from a verified email or phone, or starts a magic-link
// signup when an email arrives without a code. An already-owned credential logs its owner in.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*ProfileState, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	p, err := e.flow.Signup(ctx, flows.SignupInput{
		Value:    req.Value,
		Region:   req.Region,
		Code:     req.Code,
		Username: req.Username,
		Device:   deviceInput(req.Device),
	})
	if err != nil {
		return nil, publicError(err)
	}
	return profileState(p), nil
}

func deviceInput(d *DeviceInfo) *flows.DeviceInput {
	if d == nil {
		return nil
	}
	return &flows.DeviceInput{
		UniqueID:  d.UniqueID,
		Name:      d.Name,
		Platform:  d.Platform,
		PublicKey: d.PublicKey,
	}
}

func profileState(p *flows.Profile) *ProfileState {
	if p == nil || p.Identity == nil {
		return nil
	}
	out := &ProfileState{
		IdentityID:       p.Identity.ID,
		Username:         p.Identity.Username,
		Roles:            append([]string(nil), p.Identity.Roles...),
		Restrictions:     append([]string(nil), p.Identity.Restrictions...),
		Emails:           make([]ContactInfo, 0, len(p.Emails)),
		Phones:           make([]ContactInfo, 0, len(p.Phones)),
		Method:           p.Method,
		Created:          p.Created,
		AccessToken:      p.Tokens.AccessToken,
		AccessExpiresAt:  p.Tokens.AccessExpiresAt,
		RefreshToken:     p.Tokens.RefreshToken,
		RefreshExpiresAt: p.Tokens.RefreshExpiresAt,
	}
	for i := range p.Emails {
		r := &p.Emails[i]
		out.Emails = append(out.Emails, ContactInfo{Value: r.Email, IsDefault: r.IsDefault, Verified: r.Verified()})
	}
	for i := range p.Phones {
		r := &p.Phones[i]
		out.Phones = append(out.Phones, ContactInfo{Value: r.Phone, IsDefault: r.IsDefault, Verified: r.Verified()})
	}
	if d := p.Device; d != nil {
		out.Device = &DeviceState{
			ID:         d.ID,
			UniqueID:   d.UniqueDeviceID,
			Name:       d.Name,
			Platform:   d.Platform,
			VerifiedAt: d.VerifiedAt,
		}
	}
	return out
}
