// Package middleware adapts the identity engine to net/http.
//
//   - [ClientContext] records the caller IP and User-Agent on the request context.
//   - [Guard] requires a bearer access token and attaches its subject.
//   - [RateLimit] counts the request against a named policy before the handler runs.
//
// Responses use the [Envelope] shape. A denial on a soft-fail route is written as a
// 200 envelope carrying only a message, with no rate-limit headers, so scripted
// clients cannot tell a throttled request from an ordinary rejection.
//
// The package makes no authentication decisions of its own; everything is delegated
// to the engine.
package middleware
