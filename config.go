package goIdentity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/caarlos0/env/v11"
)

// Environment is the deployment posture. Predicates are evaluated on every call, so a config
// loaded once drives every component consistently.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// IsProduction reports a production posture. Staging counts.
func (e Environment) IsProduction() bool {
	return e == EnvProduction || e == EnvStaging
}

// IsDevelopment reports a local posture where dev fallbacks and the rate-limit bypass apply.
func (e Environment) IsDevelopment() bool {
	return e == EnvDevelopment || e == EnvTest
}

func (e Environment) valid() bool {
	switch e {
	case EnvDevelopment, EnvTest, EnvStaging, EnvProduction:
		return true
	}
	return false
}

// Config is the complete engine configuration. Build clones it; later changes to the
// caller's copy have no effect.
type Config struct {
	Environment Environment `env:"APP_ENV"`
	Secrets     SecretsConfig
	JWT         JWTConfig
	OTP         OTPConfig
	RateLimit   RateLimitConfig
	Login       LoginConfig
	Device      DeviceConfig
	Signup      SignupConfig
	Password    PasswordConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
SECRETS
====================================
*/

// SecretsConfig holds every signing and digest secret. All four are required in production.
type SecretsConfig struct {
	// CryptKey signs action tokens (confirmation and device-rejection links).
	CryptKey         string `env:"CRYPT_KEY"`
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET"`
	// OTPSalt keys the digest that derives one-time-code cache keys.
	OTPSalt string `env:"OTP_SALT"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig tunes token lifetimes and claims.
type JWTConfig struct {
	AccessTTL     time.Duration `env:"JWT_ACCESS_TTL"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TTL"`
	ActionTTL     time.Duration `env:"JWT_ACTION_TTL"`
	SigningMethod string        `env:"JWT_SIGNING_METHOD"` // hs256 (default), hs384, hs512
	Issuer        string        `env:"JWT_ISSUER"`
	Audience      string        `env:"JWT_AUDIENCE"`
	Leeway        time.Duration `env:"JWT_LEEWAY"`
	MaxFutureIAT  time.Duration `env:"JWT_MAX_FUTURE_IAT"`
	// MaxRefreshTokens caps the refresh-token list kept per identity. The oldest are dropped.
	MaxRefreshTokens int `env:"JWT_MAX_REFRESH_TOKENS"`
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig tunes the one-time-code cache.
type OTPConfig struct {
	TTL    time.Duration `env:"OTP_TTL"`
	Digits int           `env:"OTP_DIGITS"`
	// AtomicConsume validates with GETDEL so concurrent submissions of one code have a single
	// winner. Off keeps the read-then-delete behavior.
	AtomicConsume bool   `env:"OTP_ATOMIC_CONSUME"`
	RedisPrefix   string `env:"OTP_REDIS_PREFIX"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// PolicyConfig overrides one rate-limit policy.
type PolicyConfig struct {
	Limit  int           `env:"LIMIT"`
	Window time.Duration `env:"WINDOW"`
}

// RateLimitConfig holds the six named policies and limiter behavior.
type RateLimitConfig struct {
	// DevBypass disables limiting while the environment is development or test.
	DevBypass bool `env:"RATE_LIMIT_DEV_BYPASS"`
	// FailOpen admits requests when the counter backend is unreachable.
	FailOpen bool `env:"RATE_LIMIT_FAIL_OPEN"`
	// SoftFailRoutes answer a denial with a success envelope instead of 429.
	SoftFailRoutes []string `env:"RATE_LIMIT_SOFT_FAIL_ROUTES" envSeparator:","`

	AccountCreation PolicyConfig `envPrefix:"RATE_LIMIT_ACCOUNT_CREATION_"`
	AuthLookup      PolicyConfig `envPrefix:"RATE_LIMIT_AUTH_LOOKUP_"`
	Login           PolicyConfig `envPrefix:"RATE_LIMIT_LOGIN_"`
	Standard        PolicyConfig `envPrefix:"RATE_LIMIT_STANDARD_"`
	Strict          PolicyConfig `envPrefix:"RATE_LIMIT_STRICT_"`
	VeryStrict      PolicyConfig `envPrefix:"RATE_LIMIT_VERY_STRICT_"`
}

// policies merges overrides onto the built-in table. Zero fields keep the default.
func (c RateLimitConfig) policies() map[string]rate.Policy {
	out := rate.DefaultPolicies()
	overrides := map[string]PolicyConfig{
		rate.PolicyAccountCreation: c.AccountCreation,
		rate.PolicyAuthLookup:      c.AuthLookup,
		rate.PolicyLogin:           c.Login,
		rate.PolicyStandard:        c.Standard,
		rate.PolicyStrict:          c.Strict,
		rate.PolicyVeryStrict:      c.VeryStrict,
	}
	for name, o := range overrides {
		p := out[name]
		if o.Limit != 0 {
			p.Limit = o.Limit
		}
		if o.Window != 0 {
			p.Window = o.Window
		}
		out[name] = p
	}
	return out
}

/*
====================================
LOGIN / DEVICE / SIGNUP CONFIG
====================================
*/

// LoginConfig tunes the login dispatcher.
type LoginConfig struct {
	// DefaultRegion is the ISO 3166 region used for phone numbers without a country code.
	DefaultRegion string `env:"LOGIN_DEFAULT_REGION"`
	// CreateOnOTP creates an identity when a valid code is presented for an unknown credential.
	CreateOnOTP bool `env:"LOGIN_CREATE_ON_OTP"`
}

// DeviceConfig tunes the device linker.
type DeviceConfig struct {
	AlertsEnabled bool `env:"DEVICE_ALERTS_ENABLED"`
	// RejectURL is the base of the link in new-device alerts. The signed token is appended.
	RejectURL string `env:"DEVICE_REJECT_URL"`
}

// SignupConfig tunes the signup dispatcher.
type SignupConfig struct {
	// ConfirmURL is the base of magic-link confirmation links.
	ConfirmURL string `env:"SIGNUP_CONFIRM_URL"`
}

/*
====================================
PASSWORD / AUDIT / METRICS CONFIG
====================================
*/

// PasswordConfig tunes Argon2id.
type PasswordConfig struct {
	Memory      uint32 `env:"PASSWORD_MEMORY_KB"`
	Time        uint32 `env:"PASSWORD_TIME"`
	Parallelism uint8  `env:"PASSWORD_PARALLELISM"`
	SaltLength  uint32 `env:"PASSWORD_SALT_LENGTH"`
	KeyLength   uint32 `env:"PASSWORD_KEY_LENGTH"`
}

// AuditConfig tunes the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"AUDIT_ENABLED"`
	BufferSize int  `env:"AUDIT_BUFFER_SIZE"`
	DropIfFull bool `env:"AUDIT_DROP_IF_FULL"`
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"METRICS_ENABLED"`
	EnableLatencyHistograms bool `env:"METRICS_LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// Well-known development secrets. ApplyDevFallbacks only installs them outside production,
// and Validate rejects them in production.
const (
	devCryptKey         = "dev-only-crypt-key-change-me-0000000000"
	devJWTAccessSecret  = "dev-only-jwt-access-secret-0000000000000"
	devJWTRefreshSecret = "dev-only-jwt-refresh-secret-000000000000"
	devOTPSalt          = "dev-only-otp-salt-00000000000000000000000"
)

// DefaultConfig returns a development configuration with the built-in policy table and no
// secrets.
func DefaultConfig() Config {
	return Config{
		Environment: EnvDevelopment,
		JWT: JWTConfig{
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       30 * 24 * time.Hour,
			ActionTTL:        24 * time.Hour,
			SigningMethod:    "hs256",
			MaxFutureIAT:     10 * time.Minute,
			MaxRefreshTokens: 10,
		},
		OTP: OTPConfig{
			TTL:         120 * time.Second,
			Digits:      6,
			RedisPrefix: "otp:",
		},
		Login: LoginConfig{
			DefaultRegion: "US",
		},
		Device: DeviceConfig{
			AlertsEnabled: true,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// LoadConfigFromEnv overlays process environment variables onto [DefaultConfig].
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("goIdentity: parse environment: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromMap overlays vars onto [DefaultConfig] without reading the process
// environment.
func LoadConfigFromMap(vars map[string]string) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("goIdentity: parse environment: %w", err)
	}
	return cfg, nil
}

// ApplyDevFallbacks fills empty secrets with well-known development values. It does
// nothing unless the environment is development or test.
func (c *Config) ApplyDevFallbacks() {
	if !c.Environment.IsDevelopment() {
		return
	}
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	fill(&c.Secrets.CryptKey, devCryptKey)
	fill(&c.Secrets.JWTAccessSecret, devJWTAccessSecret)
	fill(&c.Secrets.JWTRefreshSecret, devJWTRefreshSecret)
	fill(&c.Secrets.OTPSalt, devOTPSalt)
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.RateLimit.SoftFailRoutes != nil {
		out.RateLimit.SoftFailRoutes = append([]string(nil), cfg.RateLimit.SoftFailRoutes...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if !c.Environment.valid() {
		return fmt.Errorf("Environment %q is not one of development, test, staging, production", c.Environment)
	}

	// Secrets
	secrets := []struct {
		name, value, dev string
	}{
		{"CRYPT_KEY", c.Secrets.CryptKey, devCryptKey},
		{"JWT_ACCESS_SECRET", c.Secrets.JWTAccessSecret, devJWTAccessSecret},
		{"JWT_REFRESH_SECRET", c.Secrets.JWTRefreshSecret, devJWTRefreshSecret},
		{"OTP_SALT", c.Secrets.OTPSalt, devOTPSalt},
	}
	for _, s := range secrets {
		if strings.TrimSpace(s.value) == "" {
			return fmt.Errorf("%s must be set", s.name)
		}
		if c.Environment.IsProduction() && s.value == s.dev {
			return fmt.Errorf("%s must not use the development fallback in %s", s.name, c.Environment)
		}
	}
	if c.Secrets.JWTAccessSecret == c.Secrets.JWTRefreshSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.ActionTTL <= 0 {
		return errors.New("JWT ActionTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "hs384", "hs512":
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return errors.New("JWT MaxFutureIAT must be >= 0")
	}
	if c.JWT.MaxRefreshTokens < 1 {
		return errors.New("JWT MaxRefreshTokens must be >= 1")
	}

	// OTP
	if c.OTP.TTL < time.Second {
		return errors.New("OTP TTL must be >= 1s")
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 4 and 10")
	}

	// Rate limits
	for _, p := range c.RateLimit.policies() {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, route := range c.RateLimit.SoftFailRoutes {
		if !strings.HasPrefix(strings.TrimSpace(route), "/") {
			return fmt.Errorf("RateLimit SoftFailRoutes entry %q must be an absolute path", route)
		}
	}

	// Login
	if len(strings.TrimSpace(c.Login.DefaultRegion)) != 2 {
		return errors.New("Login DefaultRegion must be a two-letter region code")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
