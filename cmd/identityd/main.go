// Command identityd serves the identity engine over HTTP.
//
// Configuration comes from the environment, optionally seeded from a .env file. Without
// REDIS_ADDR or DATABASE_URL the server falls back to an embedded miniredis and an
// in-memory store; both fallbacks are refused in staging and production.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/identity/memory"
	"github.com/MrEthical07/goIdentity/identity/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("identityd: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := goIdentity.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	sc, err := loadServerConfig()
	if err != nil {
		return err
	}
	for _, w := range cfg.Lint() {
		log.Printf("identityd: config warning %s: %s", w.Code, w.Message)
	}

	if err := initSentry(sc.SentryDSN, cfg.Environment); err != nil {
		log.Printf("identityd: init sentry: %v", err)
	}
	defer flushSentry()

	ctx := context.Background()

	rdb, closeRedis, err := openRedis(sc, cfg.Environment)
	if err != nil {
		return err
	}
	defer closeRedis()

	store, closeStore, err := openStore(ctx, sc, cfg.Environment)
	if err != nil {
		return err
	}
	defer closeStore()

	sinks := goIdentity.MultiSink{newSentrySink()}
	if sc.AuditLog {
		sinks = append(sinks, goIdentity.NewJSONWriterSink(os.Stdout))
	}

	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(store).
		WithAuditSink(sinks).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              sc.HTTPAddr,
		Handler:           newRouter(engine, sc.TrustProxy),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("identityd: listening on %s (%s)", sc.HTTPAddr, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	log.Println("identityd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openRedis(sc serverConfig, environment goIdentity.Environment) (redis.UniversalClient, func(), error) {
	if sc.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: sc.RedisAddr, Password: sc.RedisPassword})
		return rdb, func() { _ = rdb.Close() }, nil
	}
	if environment.IsProduction() {
		return nil, nil, errors.New("REDIS_ADDR is required in " + string(environment))
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	log.Printf("identityd: REDIS_ADDR unset, using embedded miniredis at %s", mr.Addr())
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}, nil
}

func openStore(ctx context.Context, sc serverConfig, environment goIdentity.Environment) (identity.Store, func(), error) {
	if sc.DatabaseURL != "" {
		db, err := postgres.Open(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.New(db), func() { _ = db.Close() }, nil
	}
	if environment.IsProduction() {
		return nil, nil, errors.New("DATABASE_URL is required in " + string(environment))
	}

	log.Println("identityd: DATABASE_URL unset, using in-memory identity store")
	return memory.New(), func() {}, nil
}
