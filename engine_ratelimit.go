package goIdentity

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/rate"
)

// Rate-limit policy names.
const (
	PolicyAccountCreation = rate.PolicyAccountCreation
	PolicyAuthLookup      = rate.PolicyAuthLookup
	PolicyLogin           = rate.PolicyLogin
	PolicyStandard        = rate.PolicyStandard
	PolicyStrict          = rate.PolicyStrict
	PolicyVeryStrict      = rate.PolicyVeryStrict
)

// RateLimit counts one request against policy.
//
// A denial returns the decision with [ErrRateLimited]. A counter backend failure returns
// [ErrServer] unless RateLimit.FailOpen is set, in which case the request is admitted.
// Unknown policies are a configuration mistake and fail with [ErrServer].
func (e *Engine) RateLimit(ctx context.Context, policy string, in KeyInput) (RateDecision, error) {
	if !e.ready() {
		return RateDecision{}, ErrEngineNotReady
	}

	d, err := e.limiter.Hit(ctx, policy, rateKeyInput(in))
	out := rateDecision(d)
	if err != nil {
		if errors.Is(err, rate.ErrUnknownPolicy) {
			log.Printf("goIdentity: rate limit: %v", err)
			return out, ErrServer
		}
		log.Printf("goIdentity: rate limit backend failure for policy %s: %v", policy, err)
		e.metricInc(MetricRateLimitBackendError)
		e.emitAudit(ctx, AuditServerError, false, in.SubjectID, ErrServer, func() map[string]string {
			return map[string]string{"op": "rate limit", "policy": policy}
		})
		if out.Allowed {
			return out, nil
		}
		return out, ErrServer
	}

	switch {
	case out.Bypassed:
		e.metricInc(MetricRateLimitBypassed)
	case out.Allowed:
		e.metricInc(MetricRateLimitAdmitted)
	default:
		e.emitRateLimited(ctx, out)
		return out, ErrRateLimited
	}
	return out, nil
}

// RateLimitKey returns the counter key a request maps to under policy without counting it.
func (e *Engine) RateLimitKey(policy string, in KeyInput) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	return e.limiter.Key(policy, rateKeyInput(in))
}

// Policy returns the effective settings of a named policy.
func (e *Engine) Policy(name string) (RatePolicy, bool) {
	if !e.ready() {
		return RatePolicy{}, false
	}
	p, ok := e.limiter.Policy(name)
	if !ok {
		return RatePolicy{}, false
	}
	return RatePolicy{Name: p.Name, Limit: p.Limit, Window: p.Window, LoginKeyed: p.Strategy == rate.KeyLogin}, true
}

// SoftFailRoute reports whether a denial on path should be answered with a success envelope
// instead of 429. Trailing slashes are ignored.
func (e *Engine) SoftFailRoute(path string) bool {
	if e == nil || len(e.softFail) == 0 {
		return false
	}
	if e.softFail[path] {
		return true
	}
	trimmed := strings.TrimRight(path, "/")
	for route := range e.softFail {
		if strings.TrimRight(route, "/") == trimmed {
			return true
		}
	}
	return false
}

// rateLimitBypassed is consulted by the limiter on every hit.
func (e *Engine) rateLimitBypassed() bool {
	return e.config.RateLimit.DevBypass && e.config.Environment.IsDevelopment()
}

func rateKeyInput(in KeyInput) rate.KeyInput {
	return rate.KeyInput{
		SubjectID:  in.SubjectID,
		Credential: in.Credential,
		Region:     in.Region,
		DeviceID:   in.DeviceID,
		IP:         in.IP,
	}
}

func rateDecision(d rate.Decision) RateDecision {
	return RateDecision{
		Policy:     d.Policy,
		Key:        d.Key,
		Allowed:    d.Allowed,
		Bypassed:   d.Bypassed,
		Count:      d.Count,
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		ResetAfter: d.ResetAfter,
	}
}
