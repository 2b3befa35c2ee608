// Package flows holds the orchestration behind every Engine operation: the login and signup
// dispatchers, the device linker, token rotation, OTP delivery, lookup and the action-link
// flows (email confirmation, device rejection).
//
// Each Run function takes a [Deps] value and keeps no state between calls. Resources
// (identity store, OTP cache, token manager, messenger) are owned by the Engine and reached
// only through Deps.
//
// Login method precedence lives in [ClassifyLogin] and signup method selection in
// [ClassifySignup]; both are pure.
package flows
