// Package goIdentity issues sessions for identities that log in by email, phone,
// username or a device-bound biometric signature.
//
// An [Engine] is assembled once through [Builder.Build] and shared; its methods are safe to
// call from multiple goroutines. It owns four collaborators: a salted secret hasher, a
// Redis-backed one-time-code cache, a token service minting access/refresh/action JWTs and
// a distributed fixed-window rate limiter. The identity store and the messenger are
// supplied by the host.
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config], errors with
// stable codes ([ErrorCode]) and request/result value types. Dispatch, device linking,
// code caching, rate limiting and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Tell a caller which authentication check failed. Locked, unknown and mismatched
//     accounts all fail with [ErrAuthFailed] or a method-specific code.
//   - Hold in-process locks over store state. Concurrent requests across instances rely on
//     the store's uniqueness constraints and Redis atomic operations.
//   - Import any sub-package that re-imports goIdentity.
package goIdentity
