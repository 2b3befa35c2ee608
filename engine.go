package goIdentity

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/hashing"
	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/otp"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/redis/go-redis/v9"
)

// Engine issues sessions for identities. Build one with [New] and share it; every method is
// safe for concurrent use.
type Engine struct {
	config    Config
	store     identity.Store
	messenger identity.Messenger
	redis     redis.UniversalClient
	clock     func() time.Time

	passwords *hashing.PasswordHasher
	tokens    *jwt.Manager
	otp       *otp.Cache
	limiter   *rate.Limiter
	flow      flows.Service

	audit    *audit.Dispatcher
	metrics  *Metrics
	softFail map[string]bool

	bgMu   sync.Mutex
	bg     sync.WaitGroup
	closed bool
}

// Close waits for in-flight device alerts, then drains and stops the audit dispatcher.
// Alerts scheduled after Close are dropped.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.bgMu.Lock()
	e.closed = true
	e.bgMu.Unlock()

	e.bg.Wait()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Environment returns the configured deployment posture.
func (e *Engine) Environment() Environment {
	return e.config.Environment
}

// HashPassword returns an Argon2id PHC string suitable for [identity.Identity.PasswordHash].
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	return e.passwords.Hash(plaintext)
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

// goBackground runs fn on its own goroutine and tracks it for Close.
func (e *Engine) goBackground(fn func(context.Context)) {
	e.bgMu.Lock()
	if e.closed {
		e.bgMu.Unlock()
		log.Printf("goIdentity: background task dropped: engine closed")
		return
	}
	e.bg.Add(1)
	e.bgMu.Unlock()

	go func() {
		defer e.bg.Done()
		fn(context.Background())
	}()
}

// exposeOTP reports whether issued codes may be returned to callers.
func (e *Engine) exposeOTP() bool {
	return !e.config.Environment.IsProduction()
}

// publicError hides which authentication check failed.
func publicError(err error) error {
	if errors.Is(err, ErrAccountLocked) {
		return ErrAuthFailed
	}
	return err
}

func (e *Engine) flowDeps() flows.Deps {
	cfg := e.config
	return flows.Deps{
		Store:     e.store,
		OTP:       e.otp,
		Tokens:    e.tokens,
		Passwords: e.passwords,
		Messenger: e.messenger,

		DefaultRegion:    cfg.Login.DefaultRegion,
		CreateOnOTP:      cfg.Login.CreateOnOTP,
		MaxRefreshTokens: cfg.JWT.MaxRefreshTokens,
		AlertsEnabled:    cfg.Device.AlertsEnabled,
		DeviceRejectURL:  cfg.Device.RejectURL,
		ConfirmURL:       cfg.Signup.ConfirmURL,
		ActionTTL:        cfg.JWT.ActionTTL,

		ExposeOTP: e.exposeOTP,
		Go:        e.goBackground,

		Now:                  e.now,
		ClientIPFromContext:  ClientIPFromContext,
		UserAgentFromContext: userAgentFromContext,

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Warn:      log.Printf,

		Metrics: flows.Metrics{
			LoginSuccess:      int(MetricLoginSuccess),
			LoginFailure:      int(MetricLoginFailure),
			AccountLocked:     int(MetricAccountLocked),
			SignupSuccess:     int(MetricSignupSuccess),
			SignupFailure:     int(MetricSignupFailure),
			OTPIssued:         int(MetricOTPIssued),
			OTPIssueFailed:    int(MetricOTPIssueFailed),
			OTPAccepted:       int(MetricOTPAccepted),
			OTPRejected:       int(MetricOTPRejected),
			RefreshSuccess:    int(MetricRefreshSuccess),
			RefreshFailure:    int(MetricRefreshFailure),
			Logout:            int(MetricLogout),
			DeviceLinked:      int(MetricDeviceLinked),
			DeviceTransferred: int(MetricDeviceTransferred),
			DeviceAlertSent:   int(MetricDeviceAlertSent),
			DeviceAlertFailed: int(MetricDeviceAlertFailed),
			DeviceRejected:    int(MetricDeviceRejected),
			EmailConfirmed:    int(MetricEmailConfirmed),
			ServerError:       int(MetricServerError),
		},
		Events: flows.Events{
			LoginSuccess:      AuditLoginSuccess,
			LoginFailure:      AuditLoginFailure,
			AccountLocked:     AuditAccountLocked,
			SignupSuccess:     AuditSignupSuccess,
			SignupFailure:     AuditSignupFailure,
			OTPSent:           AuditOTPSent,
			RefreshSuccess:    AuditRefreshSuccess,
			RefreshFailure:    AuditRefreshFailure,
			Logout:            AuditLogout,
			DeviceLinked:      AuditDeviceLinked,
			DeviceTransferred: AuditDeviceTransferred,
			DeviceAlertSent:   AuditDeviceAlertSent,
			DeviceAlertFailed: AuditDeviceAlertFailed,
			DeviceRejected:    AuditDeviceRejected,
			EmailConfirmed:    AuditEmailConfirmed,
			ServerError:       AuditServerError,
		},
		Errors: flows.Errors{
			Validation:          ErrValidation,
			AuthFailed:          ErrAuthFailed,
			InvalidCredentials:  ErrInvalidCredentials,
			OTPInvalid:          ErrOTPInvalid,
			InvalidBiometric:    ErrInvalidBiometric,
			IncompleteBiometric: ErrIncompleteBiometric,
			AccountLocked:       ErrAccountLocked,
			AccountExists:       ErrAccountExists,
			TokenInvalid:        ErrTokenInvalid,
			Unauthorized:        ErrUnauthorized,
			Server:              ErrServer,
		},
	}
}
