// Package audit dispatches security events asynchronously.
//
// [Dispatcher] buffers [Event] values and forwards them to a [Sink] from one goroutine, with
// drop-if-full or block-if-full semantics. Sinks here are plain: no-op, channel, JSON lines,
// fan-out and type filter. Deciding which events to emit belongs to the Engine and flows.
package audit
