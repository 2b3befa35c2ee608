package goIdentity

import (
	"fmt"
	"time"
)

// LintWarning is a configuration smell that Validate accepts but an operator should review.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the ordered result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports risky but valid settings.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if c.RateLimit.DevBypass && c.Environment.IsProduction() {
		add("dev_bypass_ignored", "RATE_LIMIT_DEV_BYPASS has no effect in %s", c.Environment)
	}
	if c.RateLimit.FailOpen {
		add("rate_limit_fail_open", "rate limiting admits every request while Redis is unreachable")
	}
	if !c.OTP.AtomicConsume {
		add("otp_consume_not_atomic", "concurrent submissions of one code can both succeed")
	}
	if c.JWT.AccessTTL > time.Hour {
		add("access_ttl_long", "access tokens live %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL > 90*24*time.Hour {
		add("refresh_ttl_long", "refresh tokens live %s", c.JWT.RefreshTTL)
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", "clock skew leeway is %s", c.JWT.Leeway)
	}
	if c.Device.AlertsEnabled && c.Device.RejectURL == "" {
		add("device_reject_url_missing", "new-device alerts are sent without a rejection link")
	}
	if c.Signup.ConfirmURL == "" {
		add("confirm_url_missing", "magic-link signup sends links without a base URL")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "security events are not recorded")
	}
	return ws
}
