// Command ratelimit-loadtest drives the distributed limiter from many goroutines and
// checks that concurrent hits on one key never admit more than the policy limit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type options struct {
	keys        int
	concurrency int
	ops         int
	limit       int
	redisAddr   string
}

func main() {
	var o options
	flag.IntVar(&o.keys, "keys", 10000, "distinct callers in the spread phase")
	flag.IntVar(&o.concurrency, "concurrency", 256, "concurrent workers")
	flag.IntVar(&o.ops, "ops", 200000, "hits per phase")
	flag.IntVar(&o.limit, "limit", 1000, "policy limit for the contended phase")
	flag.StringVar(&o.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; miniredis when empty")
	flag.Parse()

	log.SetFlags(0)
	if o.keys <= 0 || o.concurrency <= 0 || o.ops <= 0 || o.limit <= 0 {
		log.Fatal("keys, concurrency, ops and limit must be > 0")
	}
	if err := run(context.Background(), o); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, o options) error {
	client, closeClient, err := connect(o.redisAddr)
	if err != nil {
		return err
	}
	defer closeClient()

	limiter, err := rate.New(client, rate.Config{Policies: map[string]rate.Policy{
		"contended": {Limit: o.limit, Window: time.Hour, Strategy: rate.KeyLogin},
		"spread":    {Limit: 1 << 30, Window: time.Hour, Strategy: rate.KeyStandard},
	}})
	if err != nil {
		return fmt.Errorf("limiter: %w", err)
	}

	// Per-run key suffix so repeated runs against a shared redis start from zero.
	tag := strconv.FormatInt(time.Now().UnixNano()%1000, 10)
	credential := "load-" + tag + "@example.com"

	contended := runPhase("contended", o.ops, o.concurrency, func(*rand.Rand, int) (bool, error) {
		d, err := limiter.Hit(ctx, "contended", rate.KeyInput{Credential: credential})
		return d.Allowed, err
	})
	spread := runPhase("spread", o.ops, o.concurrency, func(rng *rand.Rand, _ int) (bool, error) {
		d, err := limiter.Hit(ctx, "spread", rate.KeyInput{IP: fmt.Sprintf("10.%s.%d", tag, rng.IntN(o.keys))})
		return d.Allowed, err
	})

	log.Println(contended)
	log.Println(spread)

	if want := int64(min(o.limit, o.ops)); contended.admitted != want {
		return fmt.Errorf("contended key admitted %d hits, want %d", contended.admitted, want)
	}
	return nil
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		log.Printf("redis at %s", addr)
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	log.Printf("miniredis at %s", mr.Addr())
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}
