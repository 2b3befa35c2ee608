// Package jwt issues and verifies the signed tokens used by goIdentity: short-lived access
// tokens, longer-lived refresh tokens signed with a separate secret, and purpose-bound action
// tokens (email confirmation, device rejection links).
//
// Every token carries a "typ" claim and is signed with the secret for its type, so a token of
// one type never verifies as another even when secrets are misconfigured to be equal.
package jwt
