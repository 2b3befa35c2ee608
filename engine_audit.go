package goIdentity

import (
	"context"
	"strconv"
	"strings"
	"time"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		IdentityID: identityID,
		Method:     metadata["method"],
		Device:     metadata["device"],
		IP:         ClientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Success:    success,
		Error:      ErrorCode(err),
		Metadata:   metadata,
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimited(ctx context.Context, d RateDecision) {
	e.metricInc(MetricRateLimitDenied)
	e.emitAudit(ctx, AuditRateLimited, false, "", ErrRateLimited, func() map[string]string {
		return map[string]string{
			"policy": d.Policy,
			"scope":  keyScope(d.Key),
			"count":  strconv.Itoa(d.Count),
		}
	})
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, start time.Time) {
	if e == nil {
		return
	}
	e.metrics.Observe(id, e.now().Sub(start))
}

// keyScope strips the value from a rate-limit key so credentials never reach audit sinks.
func keyScope(key string) string {
	scope, _, _ := strings.Cut(key, ":")
	return scope
}
