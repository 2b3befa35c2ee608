package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/jwt"
)

// OTPCache is the one-time-code cache the flows consume.
type OTPCache interface {
	TargetDigest(target string) string
	Issue(ctx context.Context, targetDigest string) string
	Validate(ctx context.Context, code, targetDigest string) bool
	TTL() time.Duration
}

// TokenIssuer mints and parses tokens.
type TokenIssuer interface {
	CreateAccess(subject string) (string, time.Time, error)
	CreateRefresh(subject string) (string, time.Time, error)
	CreateAction(purpose, subject, ref string, ttl time.Duration) (string, error)
	ParseRefresh(token string) (*jwt.Claims, error)
	ParseAction(token, purpose string) (*jwt.Claims, error)
}

// PasswordVerifier checks plaintext passwords against stored hashes.
type PasswordVerifier interface {
	Verify(encodedHash, plaintext string) (bool, error)
	VerifyDummy(plaintext string)
}

// Metrics carries metric IDs the flows increment.
type Metrics struct {
	LoginSuccess      int
	LoginFailure      int
	AccountLocked     int
	SignupSuccess     int
	SignupFailure     int
	OTPIssued         int
	OTPIssueFailed    int
	OTPAccepted       int
	OTPRejected       int
	RefreshSuccess    int
	RefreshFailure    int
	Logout            int
	DeviceLinked      int
	DeviceTransferred int
	DeviceAlertSent   int
	DeviceAlertFailed int
	DeviceRejected    int
	EmailConfirmed    int
	ServerError       int
}

// Events carries audit event names the flows emit.
type Events struct {
	LoginSuccess      string
	LoginFailure      string
	AccountLocked     string
	SignupSuccess     string
	SignupFailure     string
	OTPSent           string
	RefreshSuccess    string
	RefreshFailure    string
	Logout            string
	DeviceLinked      string
	DeviceTransferred string
	DeviceAlertSent   string
	DeviceAlertFailed string
	DeviceRejected    string
	EmailConfirmed    string
	ServerError       string
}

// Errors carries host-level sentinel errors returned by the flows.
type Errors struct {
	Validation          error
	AuthFailed          error
	InvalidCredentials  error
	OTPInvalid          error
	InvalidBiometric    error
	IncompleteBiometric error
	AccountLocked       error
	AccountExists       error
	TokenInvalid        error
	Unauthorized        error
	Server              error
}

// Deps captures every dependency the flows need. The root engine builds it once.
type Deps struct {
	Store     identity.Store
	OTP       OTPCache
	Tokens    TokenIssuer
	Passwords PasswordVerifier
	Messenger identity.Messenger

	DefaultRegion    string
	CreateOnOTP      bool
	MaxRefreshTokens int
	AlertsEnabled    bool
	DeviceRejectURL  string
	ConfirmURL       string
	ActionTTL        time.Duration

	// ExposeOTP is asked per call whether an issued code may be returned to the caller.
	ExposeOTP func() bool
	// Go runs best-effort background work (device alerts) tracked by the engine.
	Go func(func(context.Context))

	Now                  func() time.Time
	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string

	MetricInc func(int)
	EmitAudit func(ctx context.Context, eventType string, success bool, identityID string, err error, metadata func() map[string]string)
	Warn      func(string, ...any)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

// withDefaults fills optional hooks so flows never nil-check them.
func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if d.Warn == nil {
		d.Warn = func(string, ...any) {}
	}
	if d.ClientIPFromContext == nil {
		d.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if d.UserAgentFromContext == nil {
		d.UserAgentFromContext = func(context.Context) string { return "" }
	}
	if d.ExposeOTP == nil {
		d.ExposeOTP = func() bool { return false }
	}
	if d.Go == nil {
		d.Go = func(fn func(context.Context)) { go fn(context.Background()) }
	}
	if d.ActionTTL <= 0 {
		d.ActionTTL = 24 * time.Hour
	}
	return d
}

// serverError logs an unexpected store or cache failure with its context and returns the
// bare server sentinel so no internal detail reaches the caller.
func (d Deps) serverError(ctx context.Context, op, identityID string, err error) error {
	d.Warn("goIdentity: %s failed: %v", op, err)
	d.MetricInc(d.Metrics.ServerError)
	d.EmitAudit(ctx, d.Events.ServerError, false, identityID, d.Errors.Server, func() map[string]string {
		return map[string]string{"op": op, "detail": err.Error()}
	})
	return d.Errors.Server
}
