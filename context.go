package goIdentity

import "context"

type contextKey uint8

const (
	clientIPKey contextKey = iota
	userAgentKey
	subjectKey
)

// WithClientIP attaches the caller's IP address to ctx. The engine uses it for
// rate-limit keys, audit events and new-device alerts.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// WithSubjectID attaches the authenticated identity id. The standard rate-limit
// key strategy prefers it over the caller IP.
func WithSubjectID(ctx context.Context, identityID string) context.Context {
	return context.WithValue(ctx, subjectKey, identityID)
}

// SubjectIDFromContext returns the identity id attached by [WithSubjectID].
func SubjectIDFromContext(ctx context.Context) (string, bool) {
	id := stringValue(ctx, subjectKey)
	return id, id != ""
}

// ClientIPFromContext returns the IP attached by [WithClientIP].
func ClientIPFromContext(ctx context.Context) string {
	return stringValue(ctx, clientIPKey)
}

func userAgentFromContext(ctx context.Context) string {
	return stringValue(ctx, userAgentKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
