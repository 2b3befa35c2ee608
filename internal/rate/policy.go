package rate

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal/credential"
)

// Policy names.
const (
	PolicyAccountCreation = "account-creation"
	PolicyAuthLookup      = "auth-lookup"
	PolicyLogin           = "login"
	PolicyStandard        = "standard"
	PolicyStrict          = "strict"
	PolicyVeryStrict      = "very-strict"
)

// KeyStrategy selects how a request is mapped to a counter key.
type KeyStrategy int

const (
	// KeyStandard keys on the authenticated subject, else the caller IP.
	KeyStandard KeyStrategy = iota
	// KeyLogin keys on the normalized credential, else the device id, else the caller IP.
	KeyLogin
)

func (s KeyStrategy) String() string {
	if s == KeyLogin {
		return "login"
	}
	return "standard"
}

// Policy is one named limit.
type Policy struct {
	Name     string
	Limit    int
	Window   time.Duration
	Strategy KeyStrategy
}

// Validate checks that the policy can be enforced.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("rate: policy name must not be empty")
	}
	if p.Limit <= 0 {
		return fmt.Errorf("rate: policy %q limit must be > 0", p.Name)
	}
	if p.Window < time.Millisecond {
		return fmt.Errorf("rate: policy %q window must be >= 1ms", p.Name)
	}
	return nil
}

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		PolicyAccountCreation: {Name: PolicyAccountCreation, Limit: 20, Window: 60 * time.Minute, Strategy: KeyLogin},
		PolicyAuthLookup:      {Name: PolicyAuthLookup, Limit: 20, Window: 3 * time.Minute, Strategy: KeyLogin},
		PolicyLogin:           {Name: PolicyLogin, Limit: 15, Window: 5 * time.Minute, Strategy: KeyLogin},
		PolicyStandard:        {Name: PolicyStandard, Limit: 500, Window: time.Minute, Strategy: KeyStandard},
		PolicyStrict:          {Name: PolicyStrict, Limit: 100, Window: 3 * time.Minute, Strategy: KeyStandard},
		PolicyVeryStrict:      {Name: PolicyVeryStrict, Limit: 3, Window: 10 * time.Minute, Strategy: KeyStandard},
	}
}

// KeyInput carries the request attributes a key strategy may use.
type KeyInput struct {
	SubjectID  string
	Credential string
	Region     string
	DeviceID   string
	IP         string
}

// GenerateKey maps a request to its counter key under strategy. Credentials are normalized so
// case and formatting variants of one email or phone share a counter.
func GenerateKey(strategy KeyStrategy, in KeyInput) string {
	switch strategy {
	case KeyLogin:
		if c := strings.TrimSpace(in.Credential); c != "" {
			return "cred:" + credential.Normalize(c, in.Region)
		}
		if d := strings.TrimSpace(in.DeviceID); d != "" {
			return "dev:" + d
		}
	default:
		if s := strings.TrimSpace(in.SubjectID); s != "" {
			return "sub:" + s
		}
	}
	if ip := strings.TrimSpace(in.IP); ip != "" {
		return "ip:" + ip
	}
	return "anon"
}

func counterKey(policy, key string) string {
	return "rl:" + policy + ":" + key
}
