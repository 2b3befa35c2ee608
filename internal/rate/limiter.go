package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning.
type Config struct {
	// Policies by name. Nil means DefaultPolicies.
	Policies map[string]Policy
	// FailOpen admits requests when Redis is unreachable. The error is still returned.
	FailOpen bool
	// Bypass is consulted on every call; true disables limiting for that call.
	Bypass func() bool
}

// Decision is the outcome of one hit.
type Decision struct {
	Policy     string
	Key        string
	Allowed    bool
	Bypassed   bool
	Count      int
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter enforces policies using Redis counters.
type Limiter struct {
	redis    redis.UniversalClient
	policies map[string]Policy
	failOpen bool
	bypass   func() bool
}

var hitScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {c, ttl}
`)

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) (*Limiter, error) {
	policies := cfg.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}
	copied := make(map[string]Policy, len(policies))
	for name, p := range policies {
		if p.Name == "" {
			p.Name = name
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		copied[name] = p
	}
	return &Limiter{
		redis:    redisClient,
		policies: copied,
		failOpen: cfg.FailOpen,
		bypass:   cfg.Bypass,
	}, nil
}

// Policy returns the named policy.
func (l *Limiter) Policy(name string) (Policy, bool) {
	p, ok := l.policies[name]
	return p, ok
}

// Key returns the counter key a request maps to under the named policy.
func (l *Limiter) Key(name string, in KeyInput) (string, error) {
	p, ok := l.policies[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
	return GenerateKey(p.Strategy, in), nil
}

// Hit counts one request against the named policy.
//
// On a backend failure the returned Decision admits the request only when FailOpen is set;
// the error is returned either way.
func (l *Limiter) Hit(ctx context.Context, name string, in KeyInput) (Decision, error) {
	p, ok := l.policies[name]
	if !ok {
		return Decision{Policy: name}, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
	key := GenerateKey(p.Strategy, in)
	d := Decision{Policy: p.Name, Key: key, Limit: p.Limit, Remaining: p.Limit}

	if l.bypass != nil && l.bypass() {
		d.Allowed = true
		d.Bypassed = true
		return d, nil
	}

	res, err := hitScript.Run(ctx, l.redis, []string{counterKey(p.Name, key)}, p.Window.Milliseconds()).Int64Slice()
	if err != nil {
		d.Allowed = l.failOpen
		return d, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		d.Allowed = l.failOpen
		return d, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	d.Count = int(res[0])
	d.ResetAfter = time.Duration(res[1]) * time.Millisecond
	d.Allowed = d.Count <= p.Limit
	d.Remaining = p.Limit - d.Count
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}

// Check is Hit folded into a single error: nil when admitted, ErrRateLimited when denied.
func (l *Limiter) Check(ctx context.Context, name string, in KeyInput) error {
	d, err := l.Hit(ctx, name, in)
	if err != nil && !d.Allowed {
		return err
	}
	if !d.Allowed {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter a request maps to.
func (l *Limiter) Reset(ctx context.Context, name string, in KeyInput) error {
	p, ok := l.policies[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
	key := GenerateKey(p.Strategy, in)
	if err := l.redis.Del(ctx, counterKey(p.Name, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
