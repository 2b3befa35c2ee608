// Package hashing implements the secret hasher: a deterministic salted digest used to derive
// one-time-code keys from identity values, and a slow salted password hash (Argon2id, PHC
// encoded) with verification of legacy bcrypt hashes.
//
// # What this package must NOT do
//
//   - Use the deterministic digest for passwords.
//   - Compare secrets with non-constant-time equality.
//   - Read process environment. Salt material is passed in by the caller.
package hashing
