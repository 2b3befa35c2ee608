package goIdentity

import (
	"io"

	"github.com/MrEthical07/goIdentity/internal/audit"
)

// AuditEvent is one security-relevant record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink writes events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// MultiSink forwards every event to each sink in order.
type MultiSink = audit.MultiSink

// FilterSink forwards only the event types listed in Types.
type FilterSink = audit.FilterSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// Audit event types.
const (
	AuditLoginSuccess      = "login_success"
	AuditLoginFailure      = "login_failure"
	AuditAccountLocked     = "account_locked"
	AuditSignupSuccess     = "signup_success"
	AuditSignupFailure     = "signup_failure"
	AuditOTPSent           = "otp_sent"
	AuditRefreshSuccess    = "refresh_success"
	AuditRefreshFailure    = "refresh_failure"
	AuditLogout            = "logout"
	AuditDeviceLinked      = "device_linked"
	AuditDeviceTransferred = "device_transferred"
	AuditDeviceAlertSent   = "device_alert_sent"
	AuditDeviceAlertFailed = "device_alert_failed"
	AuditDeviceRejected    = "device_rejected"
	AuditEmailConfirmed    = "email_confirmed"
	AuditRateLimited       = "rate_limited"
	AuditServerError       = "server_error"
)
