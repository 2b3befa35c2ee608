package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// serverConfig holds process wiring that the engine itself does not need.
type serverConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	SentryDSN       string        `env:"SENTRY_DSN"`
	TrustProxy      bool          `env:"TRUST_PROXY"`
	AuditLog        bool          `env:"AUDIT_LOG" envDefault:"true"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func loadServerConfig() (serverConfig, error) {
	var sc serverConfig
	if err := env.Parse(&sc); err != nil {
		return serverConfig{}, fmt.Errorf("parse server config: %w", err)
	}
	return sc, nil
}
