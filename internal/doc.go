// Package internal holds small helpers private to goIdentity: OTP generation and device
// fingerprints.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - credential: email and phone parsing
//   - flows: login, signup, device linking and token flows behind every Engine operation
//   - otp: one-time-code cache
//   - rate: Redis-backed request limiter
package internal
