package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

var (
	// ErrEmptyPassword is returned when hashing an empty plaintext.
	ErrEmptyPassword = errors.New("hashing: empty password")
	// ErrUnsupportedHash is returned when a stored hash is neither Argon2id PHC nor bcrypt.
	ErrUnsupportedHash = errors.New("hashing: unsupported hash format")
	// ErrMalformedHash is returned for an Argon2id hash that cannot be decoded.
	ErrMalformedHash = errors.New("hashing: malformed hash")
)

// PasswordConfig tunes Argon2id.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPasswordConfig returns production Argon2id parameters.
func DefaultPasswordConfig() PasswordConfig {
	return PasswordConfig{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// PasswordHasher hashes and verifies passwords. It is safe for concurrent use.
type PasswordHasher struct {
	config PasswordConfig
	dummy  string
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

// NewPasswordHasher validates cfg and returns a hasher.
func NewPasswordHasher(cfg PasswordConfig) (*PasswordHasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	h := &PasswordHasher{config: cfg}
	dummy, err := h.Hash("timing-parity-placeholder")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash returns a PHC-encoded Argon2id hash of plaintext with a fresh random salt.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	c := h.config
	key := argon2.IDKey([]byte(plaintext), salt, c.Time, c.Memory, c.Parallelism, c.KeyLength)
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version, c.Memory, c.Time, c.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether plaintext matches encodedHash. Argon2id PHC strings and bcrypt
// ($2a$, $2b$, $2y$) hashes are accepted.
func (h *PasswordHasher) Verify(encodedHash, plaintext string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		parsed, err := parsePHC(encodedHash)
		if err != nil {
			return false, err
		}
		computed := argon2.IDKey([]byte(plaintext), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, parsed.keyLength)
		return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(plaintext))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	default:
		return false, ErrUnsupportedHash
	}
}

// VerifyDummy burns the same work as a real verification against a throwaway hash. Callers
// use it when no identity matched so that response timing does not reveal account existence.
func (h *PasswordHasher) VerifyDummy(plaintext string) {
	_, _ = h.Verify(h.dummy, plaintext)
}

// NeedsUpgrade reports whether encodedHash should be replaced with a hash under the current
// parameters. bcrypt hashes always need an upgrade.
func (h *PasswordHasher) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	return h.config.Memory > parsed.memory ||
		h.config.Time > parsed.time ||
		h.config.Parallelism > parsed.parallelism ||
		h.config.KeyLength != parsed.keyLength, nil
}

func isBcrypt(encodedHash string) bool {
	for _, prefix := range [...]string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encodedHash, prefix) {
			return true
		}
	}
	return false
}

// parsePHC decodes "$argon2id$v=19$m=..,t=..,p=..$salt$hash".
func parsePHC(encodedHash string) (*parsedPHC, error) {
	fields := strings.Split(encodedHash, "$")
	if len(fields) != 6 || fields[0] != "" {
		return nil, ErrMalformedHash
	}
	if fields[1] != algorithmID {
		return nil, ErrUnsupportedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[2])
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: argon2 version %d", ErrUnsupportedHash, version)
	}

	out := &parsedPHC{}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &out.memory, &out.time, &out.parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters %q", ErrMalformedHash, fields[3])
	}
	if out.memory < minMemoryKB || out.time < minTimeCost || out.parallelism < minParallelism {
		return nil, fmt.Errorf("%w: parameters below minimum", ErrMalformedHash)
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if out.hash, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(out.hash) == 0 {
		return nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	out.keyLength = uint32(len(out.hash))
	return out, nil
}

func validateConfig(cfg PasswordConfig) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return fmt.Errorf("hashing: memory must be at least %d KiB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return fmt.Errorf("hashing: time cost must be at least %d", minTimeCost)
	case cfg.Parallelism < minParallelism:
		return fmt.Errorf("hashing: parallelism must be at least %d", minParallelism)
	case cfg.SaltLength < minSaltLength:
		return fmt.Errorf("hashing: salt length must be at least %d bytes", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return fmt.Errorf("hashing: key length must be at least %d bytes", minKeyLength)
	}
	return nil
}
