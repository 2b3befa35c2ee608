package main

import (
	"context"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/getsentry/sentry-go"
)

func initSentry(dsn string, environment goIdentity.Environment) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      string(environment),
		AttachStacktrace: true,
	})
}

func flushSentry() {
	sentry.Flush(2 * time.Second)
}

// sentrySink reports audit events to Sentry. It is wrapped in a FilterSink so only
// failures reach it.
type sentrySink struct {
	hub *sentry.Hub
}

func newSentrySink() goIdentity.AuditSink {
	return goIdentity.FilterSink{
		Types: map[string]bool{
			goIdentity.AuditServerError:       true,
			goIdentity.AuditDeviceAlertFailed: true,
		},
		Next: sentrySink{hub: sentry.CurrentHub()},
	}
}

func (s sentrySink) Emit(_ context.Context, e goIdentity.AuditEvent) {
	if s.hub == nil || s.hub.Client() == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("event_type", e.EventType)
		if e.Error != "" {
			scope.SetTag("error_code", e.Error)
		}
		if e.IdentityID != "" {
			scope.SetUser(sentry.User{ID: e.IdentityID, IPAddress: e.IP})
		}
		extra := sentry.Context{}
		for k, v := range e.Metadata {
			extra[k] = v
		}
		scope.SetContext("audit", extra)
		s.hub.CaptureMessage("identity: " + e.EventType)
	})
}
