// Package otp is the one-time-code cache.
//
// A code for a target is stored under Digest(code+targetDigest, salt) with the code as the
// value and a fixed TTL. Validation derives the same key, compares, and deletes on match.
//
// The default validation is GET followed by DEL: two concurrent validations of one live code
// can both succeed. Config.AtomicConsume switches to GETDEL so exactly one caller wins.
//
// Issuing a new code for a target does not invalidate earlier codes for that target; each
// expires on its own TTL.
package otp
