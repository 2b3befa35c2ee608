package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/identity"
)

// issueTokens mints a pair for ident and records the refresh token. RefreshInitialize
// replaces the list; RefreshAppend appends, replacing with a pruned list instead once the
// list would exceed MaxRefreshTokens.
func issueTokens(ctx context.Context, d Deps, ident *identity.Identity, mode identity.RefreshTokenMode) (TokenPair, error) {
	access, accessExp, err := d.Tokens.CreateAccess(ident.ID)
	if err != nil {
		return TokenPair{}, d.serverError(ctx, "create access token", ident.ID, err)
	}
	refresh, refreshExp, err := d.Tokens.CreateRefresh(ident.ID)
	if err != nil {
		return TokenPair{}, d.serverError(ctx, "create refresh token", ident.ID, err)
	}

	tokens := []string{refresh}
	if mode == identity.RefreshAppend && d.MaxRefreshTokens > 0 && len(ident.RefreshTokens)+1 > d.MaxRefreshTokens {
		keep := ident.RefreshTokens[len(ident.RefreshTokens)-(d.MaxRefreshTokens-1):]
		tokens = append(append(make([]string, 0, d.MaxRefreshTokens), keep...), refresh)
		mode = identity.RefreshInitialize
	}
	if err := d.Store.UpdateRefreshTokens(ctx, ident.ID, tokens, mode); err != nil {
		return TokenPair{}, d.serverError(ctx, "update refresh tokens", ident.ID, err)
	}

	if mode == identity.RefreshInitialize {
		ident.RefreshTokens = tokens
	} else {
		ident.RefreshTokens = append(ident.RefreshTokens, refresh)
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// RunRefresh rotates a refresh token. The presented token must verify, belong to a live,
// unlocked identity and still be on that identity's list. It stays valid until pruned or
// logged out.
func RunRefresh(ctx context.Context, refreshToken string, d Deps) (*RefreshOutput, error) {
	d = d.withDefaults()

	fail := func(identityID, reason string) error {
		d.MetricInc(d.Metrics.RefreshFailure)
		d.EmitAudit(ctx, d.Events.RefreshFailure, false, identityID, d.Errors.Unauthorized, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return d.Errors.Unauthorized
	}

	claims, err := d.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, fail("", "invalid_token")
	}

	ident, err := d.Store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, fail(claims.Subject, "identity_not_found")
		}
		return nil, d.serverError(ctx, "refresh find identity", claims.Subject, err)
	}
	if ident.Deleted() || ident.Locked() {
		return nil, fail(ident.ID, "identity_inactive")
	}
	if !containsToken(ident.RefreshTokens, refreshToken) {
		return nil, fail(ident.ID, "token_not_on_file")
	}

	pair, err := issueTokens(ctx, d, ident, identity.RefreshAppend)
	if err != nil {
		return nil, err
	}

	d.MetricInc(d.Metrics.RefreshSuccess)
	d.EmitAudit(ctx, d.Events.RefreshSuccess, true, ident.ID, nil, nil)
	return &RefreshOutput{IdentityID: ident.ID, Tokens: pair}, nil
}

// RunLogout removes refreshToken from its identity's list. An unverifiable or unknown token
// reports false without error.
func RunLogout(ctx context.Context, refreshToken string, d Deps) (bool, error) {
	d = d.withDefaults()

	claims, err := d.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return false, nil
	}
	ident, err := d.Store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, d.serverError(ctx, "logout find identity", claims.Subject, err)
	}
	if !containsToken(ident.RefreshTokens, refreshToken) {
		return false, nil
	}

	remaining := make([]string, 0, len(ident.RefreshTokens))
	for _, t := range ident.RefreshTokens {
		if t != refreshToken {
			remaining = append(remaining, t)
		}
	}
	if err := d.Store.UpdateRefreshTokens(ctx, ident.ID, remaining, identity.RefreshInitialize); err != nil {
		return false, d.serverError(ctx, "logout update refresh tokens", ident.ID, err)
	}

	d.MetricInc(d.Metrics.Logout)
	d.EmitAudit(ctx, d.Events.Logout, true, ident.ID, nil, nil)
	return true, nil
}

func containsToken(list []string, token string) bool {
	for _, t := range list {
		if t == token {
			return true
		}
	}
	return false
}
