package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the HMAC variant used for every token type.
type SigningMethod string

const (
	MethodHS256 SigningMethod = "hs256"
	MethodHS384 SigningMethod = "hs384"
	MethodHS512 SigningMethod = "hs512"
)

// TokenType is carried in the "typ" claim.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
	TypeAction  TokenType = "action"
)

var (
	// ErrInvalidToken is returned for any token that fails parsing, signature, expiry or type checks.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrActionKeyMissing is returned when action tokens are requested without an action secret.
	ErrActionKeyMissing = errors.New("jwt: action secret not configured")
)

// Config holds signing secrets and lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	ActionSecret  []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	Clock         func() time.Time
}

// Claims is the claim set shared by all token types. Subject is the identity id.
type Claims struct {
	Type    TokenType `json:"typ"`
	Purpose string    `json:"pur,omitempty"`
	Ref     string    `json:"ref,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It holds no mutable state and is safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("access secret required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("refresh secret required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	switch cfg.SigningMethod {
	case "":
		cfg.SigningMethod = MethodHS256
	case MethodHS256, MethodHS384, MethodHS512:
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// CreateAccess signs an access token for subject.
func (m *Manager) CreateAccess(subject string) (string, time.Time, error) {
	return m.create(TypeAccess, subject, "", "", m.config.AccessTTL, m.config.AccessSecret)
}

// CreateRefresh signs a refresh token for subject. Every refresh token carries a unique jti so
// two tokens minted within the same second remain distinguishable in the stored list.
func (m *Manager) CreateRefresh(subject string) (string, time.Time, error) {
	return m.create(TypeRefresh, subject, "", "", m.config.RefreshTTL, m.config.RefreshSecret)
}

// CreateAction signs a purpose-bound token. ref names the record the action applies to.
func (m *Manager) CreateAction(purpose, subject, ref string, ttl time.Duration) (string, error) {
	if len(m.config.ActionSecret) == 0 {
		return "", ErrActionKeyMissing
	}
	if ttl <= 0 {
		return "", errors.New("invalid action TTL")
	}
	token, _, err := m.create(TypeAction, subject, purpose, ref, ttl, m.config.ActionSecret)
	return token, err
}

// ParseAccess verifies an access token.
func (m *Manager) ParseAccess(token string) (*Claims, error) {
	return m.parse(token, TypeAccess, m.config.AccessSecret)
}

// ParseRefresh verifies a refresh token.
func (m *Manager) ParseRefresh(token string) (*Claims, error) {
	return m.parse(token, TypeRefresh, m.config.RefreshSecret)
}

// ParseAction verifies an action token and its purpose.
func (m *Manager) ParseAction(token, purpose string) (*Claims, error) {
	if len(m.config.ActionSecret) == 0 {
		return nil, ErrActionKeyMissing
	}
	claims, err := m.parse(token, TypeAction, m.config.ActionSecret)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) create(typ TokenType, subject, purpose, ref string, ttl time.Duration, secret []byte) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject required")
	}

	now := m.config.Clock()
	exp := now.Add(ttl)
	claims := Claims{
		Type:    typ,
		Purpose: purpose,
		Ref:     ref,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(m.method(), claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *Manager) parse(tokenStr string, typ TokenType, secret []byte) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.config.Clock),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != typ || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.config.Clock().Add(m.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalidToken)
	}
	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS384:
		return jwt.SigningMethodHS384
	case MethodHS512:
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}
