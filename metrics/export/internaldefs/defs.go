package internaldefs

import (
	"strconv"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const AuditDroppedName = "identity_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "identity_login_success_total", Help: "Successful logins."},
	{ID: goIdentity.MetricLoginFailure, Name: "identity_login_failure_total", Help: "Failed logins."},
	{ID: goIdentity.MetricAccountLocked, Name: "identity_account_locked_total", Help: "Logins refused because the account is locked."},
	{ID: goIdentity.MetricSignupSuccess, Name: "identity_signup_success_total", Help: "Accounts created."},
	{ID: goIdentity.MetricSignupFailure, Name: "identity_signup_failure_total", Help: "Rejected signups."},
	{ID: goIdentity.MetricOTPIssued, Name: "identity_otp_issued_total", Help: "One-time codes issued."},
	{ID: goIdentity.MetricOTPIssueFailed, Name: "identity_otp_issue_failed_total", Help: "One-time codes that could not be stored or delivered."},
	{ID: goIdentity.MetricOTPAccepted, Name: "identity_otp_accepted_total", Help: "One-time codes accepted."},
	{ID: goIdentity.MetricOTPRejected, Name: "identity_otp_rejected_total", Help: "One-time codes rejected."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "identity_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goIdentity.MetricRefreshFailure, Name: "identity_refresh_failure_total", Help: "Rejected token refreshes."},
	{ID: goIdentity.MetricLogout, Name: "identity_logout_total", Help: "Refresh tokens revoked by logout."},
	{ID: goIdentity.MetricDeviceLinked, Name: "identity_device_linked_total", Help: "Devices linked to an identity."},
	{ID: goIdentity.MetricDeviceTransferred, Name: "identity_device_transferred_total", Help: "Devices moved from one identity to another."},
	{ID: goIdentity.MetricDeviceAlertSent, Name: "identity_device_alert_sent_total", Help: "New-device alerts delivered."},
	{ID: goIdentity.MetricDeviceAlertFailed, Name: "identity_device_alert_failed_total", Help: "New-device alerts that failed to send."},
	{ID: goIdentity.MetricDeviceRejected, Name: "identity_device_rejected_total", Help: "Devices rejected through an alert link."},
	{ID: goIdentity.MetricEmailConfirmed, Name: "identity_email_confirmed_total", Help: "Email addresses confirmed."},
	{ID: goIdentity.MetricRateLimitAdmitted, Name: "identity_rate_limit_admitted_total", Help: "Requests admitted by the rate limiter."},
	{ID: goIdentity.MetricRateLimitDenied, Name: "identity_rate_limit_denied_total", Help: "Requests denied by the rate limiter."},
	{ID: goIdentity.MetricRateLimitBypassed, Name: "identity_rate_limit_bypassed_total", Help: "Requests that skipped the rate limiter in development."},
	{ID: goIdentity.MetricRateLimitBackendError, Name: "identity_rate_limit_backend_error_total", Help: "Rate limiter checks that failed to reach the backend."},
	{ID: goIdentity.MetricServerError, Name: "identity_server_error_total", Help: "Operations that failed with an internal error."},
}

var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricLoginLatency, Name: "identity_login_latency_seconds", Help: "Login latency."},
}

// HistogramBounds are the "le" labels for the engine latency buckets, in seconds.
var HistogramBounds = boundLabels(goIdentity.HistogramBounds())

func boundLabels(bounds []time.Duration) []string {
	out := make([]string, 0, len(bounds)+1)
	for _, d := range bounds {
		out = append(out, strconv.FormatFloat(d.Seconds(), 'g', -1, 64))
	}
	return append(out, "+Inf")
}

// NormalizeBuckets fits raw to one slot per label in [HistogramBounds].
func NormalizeBuckets(raw []uint64) []uint64 {
	out := make([]uint64, len(HistogramBounds))
	copy(out, raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals in place.
func CumulativeBuckets(buckets []uint64) []uint64 {
	for i := 1; i < len(buckets); i++ {
		buckets[i] += buckets[i-1]
	}
	return buckets
}
