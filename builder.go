package goIdentity

import (
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/hashing"
	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/otp"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/notify"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	store     identity.Store
	messenger identity.Messenger
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the one-time-code cache and rate-limit counters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the identity store. Required.
func (b *Builder) WithIdentityStore(store identity.Store) *Builder {
	b.store = store
	return b
}

// WithMessenger sets the delivery channel for codes, links and alerts. Outside production
// a log-backed messenger is used when none is set.
func (b *Builder) WithMessenger(m identity.Messenger) *Builder {
	b.messenger = m
	return b
}

// WithAuditSink sets where audit events are delivered.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source for tokens, audit and device timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	cfg.ApplyDevFallbacks()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("identity store required")
	}

	messenger := b.messenger
	if messenger == nil {
		if cfg.Environment.IsProduction() {
			return nil, errors.New("messenger required in production")
		}
		messenger = notify.NewLogMessenger(nil)
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		store:     b.store,
		messenger: messenger,
		redis:     b.redis,
		clock:     now,
		softFail:  make(map[string]bool, len(cfg.RateLimit.SoftFailRoutes)),
	}
	for _, route := range cfg.RateLimit.SoftFailRoutes {
		engine.softFail[route] = true
	}

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	ph, err := hashing.NewPasswordHasher(hashing.PasswordConfig{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwords = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  []byte(cfg.Secrets.JWTAccessSecret),
		RefreshSecret: []byte(cfg.Secrets.JWTRefreshSecret),
		ActionSecret:  []byte(cfg.Secrets.CryptKey),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		Clock:         now,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	engine.otp = otp.New(otp.NewRedisStore(b.redis, cfg.OTP.RedisPrefix), otp.Config{
		Salt:          cfg.Secrets.OTPSalt,
		TTL:           cfg.OTP.TTL,
		Digits:        cfg.OTP.Digits,
		AtomicConsume: cfg.OTP.AtomicConsume,
	})

	limiter, err := rate.New(b.redis, rate.Config{
		Policies: cfg.RateLimit.policies(),
		FailOpen: cfg.RateLimit.FailOpen,
		Bypass:   engine.rateLimitBypassed,
	})
	if err != nil {
		return nil, err
	}
	engine.limiter = limiter

	engine.flow = flows.New(engine.flowDeps())

	b.built = true
	return engine, nil
}
