package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/identity"
)

var errOTPIssue = errors.New("otp cache returned no code")

// RunConfirmEmail verifies a magic-link token and makes the email verified and default.
// It returns the identity id.
func RunConfirmEmail(ctx context.Context, token string, d Deps) (string, error) {
	d = d.withDefaults()

	claims, err := d.Tokens.ParseAction(token, ActionEmailConfirm)
	if err != nil || claims.Ref == "" {
		return "", d.Errors.TokenInvalid
	}

	emails, err := d.Store.ListEmails(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return "", d.Errors.TokenInvalid
		}
		return "", d.serverError(ctx, "confirm list emails", claims.Subject, err)
	}
	var target *identity.EmailRecord
	for i := range emails {
		if emails[i].ID == claims.Ref {
			target = &emails[i]
			break
		}
	}
	if target == nil {
		return "", d.Errors.TokenInvalid
	}

	if err := d.Store.ClearDefaultFlag(ctx, claims.Subject, identity.KindEmail); err != nil {
		return "", d.serverError(ctx, "confirm clear default", claims.Subject, err)
	}
	if err := d.Store.MarkEmailVerified(ctx, target.ID, true); err != nil {
		return "", d.serverError(ctx, "confirm mark verified", claims.Subject, err)
	}

	d.MetricInc(d.Metrics.EmailConfirmed)
	d.EmitAudit(ctx, d.Events.EmailConfirmed, true, claims.Subject, nil, nil)
	return claims.Subject, nil
}

// RunRejectDevice verifies a new-device rejection token, unlinks that device and revokes
// every refresh token of the identity. It returns the identity id.
func RunRejectDevice(ctx context.Context, token string, d Deps) (string, error) {
	d = d.withDefaults()

	claims, err := d.Tokens.ParseAction(token, ActionDeviceReject)
	if err != nil || claims.Ref == "" {
		return "", d.Errors.TokenInvalid
	}

	if err := d.Store.SoftDeleteDevice(ctx, claims.Ref); err != nil && !errors.Is(err, identity.ErrNotFound) {
		return "", d.serverError(ctx, "reject soft delete device", claims.Subject, err)
	}
	if err := d.Store.UpdateRefreshTokens(ctx, claims.Subject, nil, identity.RefreshInitialize); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return "", d.Errors.TokenInvalid
		}
		return "", d.serverError(ctx, "reject revoke tokens", claims.Subject, err)
	}

	d.MetricInc(d.Metrics.DeviceRejected)
	d.EmitAudit(ctx, d.Events.DeviceRejected, true, claims.Subject, nil, nil)
	return claims.Subject, nil
}
