package goIdentity

import "context"

// Refresh exchanges a refresh token on file for a new pair. The presented token stays on
// file until pruned or logged out. Any failure is [ErrUnauthorized] or [ErrServer].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	out, err := e.flow.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, publicError(err)
	}
	return &RefreshResult{
		IdentityID:       out.IdentityID,
		AccessToken:      out.Tokens.AccessToken,
		AccessExpiresAt:  out.Tokens.AccessExpiresAt,
		RefreshToken:     out.Tokens.RefreshToken,
		RefreshExpiresAt: out.Tokens.RefreshExpiresAt,
	}, nil
}

// Logout removes refreshToken from its identity's list. An invalid or unknown token
// reports LoggedOut=false without an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) (LogoutResult, error) {
	if !e.ready() {
		return LogoutResult{}, ErrEngineNotReady
	}
	ok, err := e.flow.Logout(ctx, refreshToken)
	if err != nil {
		return LogoutResult{}, err
	}
	return LogoutResult{LoggedOut: ok}, nil
}

// IsRefreshValid verifies a refresh token's signature, type and expiry without touching the
// store and returns its subject.
func (e *Engine) IsRefreshValid(refreshToken string) (string, bool) {
	if !e.ready() {
		return "", false
	}
	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

// SubjectFromAccessToken verifies an access token and returns the identity id it was
// issued to.
func (e *Engine) SubjectFromAccessToken(accessToken string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
