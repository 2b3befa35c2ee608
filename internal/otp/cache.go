package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"time"

	"github.com/MrEthical07/goIdentity/hashing"
	"github.com/MrEthical07/goIdentity/internal"
)

const (
	DefaultTTL    = 120 * time.Second
	DefaultDigits = 6
)

// Config configures a Cache.
type Config struct {
	Salt          string
	TTL           time.Duration
	Digits        int
	AtomicConsume bool
}

// Cache issues and validates one-time codes.
type Cache struct {
	store    Store
	cfg      Config
	generate func(int) (string, error)
}

// New returns a Cache over store. Zero TTL and Digits take the defaults.
func New(store Store, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Digits <= 0 {
		cfg.Digits = DefaultDigits
	}
	return &Cache{store: store, cfg: cfg, generate: internal.NewOTP}
}

// TTL returns the lifetime of an issued code.
func (c *Cache) TTL() time.Duration { return c.cfg.TTL }

// TargetDigest returns the salted digest identifying a normalized email or E.164 phone.
func (c *Cache) TargetDigest(target string) string {
	return hashing.Digest(target, c.cfg.Salt)
}

func (c *Cache) key(code, targetDigest string) string {
	return hashing.Digest(code+targetDigest, c.cfg.Salt)
}

// Issue generates and stores a code for targetDigest. It returns "" when generation or
// storage fails.
func (c *Cache) Issue(ctx context.Context, targetDigest string) string {
	if targetDigest == "" {
		return ""
	}
	code, err := c.generate(c.cfg.Digits)
	if err != nil {
		log.Printf("goIdentity: otp generate failed: %v", err)
		return ""
	}
	if err := c.store.Set(ctx, c.key(code, targetDigest), code, c.cfg.TTL); err != nil {
		log.Printf("goIdentity: otp store failed: %v", err)
		return ""
	}
	return code
}

// Validate reports whether code was issued for targetDigest and is still live, consuming it
// on success. Lookup errors count as invalid.
func (c *Cache) Validate(ctx context.Context, code, targetDigest string) bool {
	if code == "" || targetDigest == "" || len(code) != c.cfg.Digits {
		return false
	}
	key := c.key(code, targetDigest)

	if c.cfg.AtomicConsume {
		stored, err := c.store.GetDel(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrMiss) {
				log.Printf("goIdentity: otp consume failed: %v", err)
			}
			return false
		}
		return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1
	}

	stored, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Printf("goIdentity: otp lookup failed: %v", err)
		}
		return false
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false
	}
	if err := c.store.Del(ctx, key); err != nil {
		log.Printf("goIdentity: otp delete failed: %v", err)
	}
	return true
}
