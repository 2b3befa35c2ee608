// Package identity defines the account model consumed by the goIdentity engine and the
// storage and messaging contracts the engine requires from its collaborators.
//
// # Architecture boundaries
//
// identity owns plain data types and interfaces only. Persistence lives in sub-packages
// (identity/memory, identity/postgres) or in caller code; delivery of mail and SMS lives behind
// [Messenger].
//
// # What this package must NOT do
//
//   - Import goIdentity or any internal package.
//   - Perform I/O.
//   - Encode policy decisions (locking, precedence, token rules). Those belong to the engine.
package identity
