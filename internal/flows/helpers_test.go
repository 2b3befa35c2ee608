package flows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/hashing"
	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/identity/memory"
	"github.com/MrEthical07/goIdentity/internal/otp"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var (
	errValidation          = errors.New("validation failed")
	errAuthFailed          = errors.New("auth failed")
	errInvalidCredentials  = errors.New("invalid credentials")
	errOTPInvalid          = errors.New("otp invalid")
	errInvalidBiometric    = errors.New("invalid biometric")
	errIncompleteBiometric = errors.New("incomplete biometric")
	errAccountLocked       = fmt.Errorf("%w: account locked", errAuthFailed)
	errAccountExists       = errors.New("account exists")
	errTokenInvalid        = errors.New("token invalid")
	errUnauthorized        = errors.New("unauthorized")
	errServer              = errors.New("server error")
)

type sentOTP struct {
	channel     identity.Channel
	destination string
	code        string
}

type recordingMessenger struct {
	mu            sync.Mutex
	confirmations []string
	otps          []sentOTP
	alerts        []identity.AccountAlert
	failAlerts    bool
}

func (m *recordingMessenger) SendConfirmation(_ context.Context, _ string, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations = append(m.confirmations, link)
	return nil
}

func (m *recordingMessenger) SendOTP(_ context.Context, channel identity.Channel, destination, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps = append(m.otps, sentOTP{channel, destination, code})
	return nil
}

func (m *recordingMessenger) SendAccountAlert(_ context.Context, alert identity.AccountAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAlerts {
		return errors.New("smtp down")
	}
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *recordingMessenger) Alerts() []identity.AccountAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]identity.AccountAlert(nil), m.alerts...)
}

type auditRecord struct {
	eventType  string
	success    bool
	identityID string
	err        error
}

type harness struct {
	deps      Deps
	store     *memory.Store
	cache     *otp.Cache
	tokens    *jwt.Manager
	hasher    *hashing.PasswordHasher
	messenger *recordingMessenger
	redis     *miniredis.Miniredis

	mu     sync.Mutex
	audits []auditRecord
}

func (h *harness) events(eventType string) []auditRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []auditRecord
	for _, a := range h.audits {
		if a.eventType == eventType {
			out = append(out, a)
		}
	}
	return out
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithOTPStore(t, nil)
}

// newHarnessWithOTPStore builds flows deps over miniredis, the memory store and real
// token/hash managers. wrap, when set, decorates the OTP store.
func newHarnessWithOTPStore(t *testing.T, wrap func(otp.Store) otp.Store) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var otpStore otp.Store = otp.NewRedisStore(rdb, "")
	if wrap != nil {
		otpStore = wrap(otpStore)
	}
	cache := otp.New(otpStore, otp.Config{Salt: "test-otp-salt"})

	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  []byte("access-secret-for-tests-0123456789"),
		RefreshSecret: []byte("refresh-secret-for-tests-012345678"),
		ActionSecret:  []byte("action-secret-for-tests-0123456789"),
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "goIdentity-test",
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	hasher, err := hashing.NewPasswordHasher(hashing.PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	h := &harness{
		store:     memory.New(),
		cache:     cache,
		tokens:    tokens,
		hasher:    hasher,
		messenger: &recordingMessenger{},
		redis:     mr,
	}
	h.deps = Deps{
		Store:            h.store,
		OTP:              cache,
		Tokens:           tokens,
		Passwords:        hasher,
		Messenger:        h.messenger,
		DefaultRegion:    "US",
		CreateOnOTP:      true,
		MaxRefreshTokens: 10,
		AlertsEnabled:    true,
		DeviceRejectURL:  "https://id.example.com/devices/reject?token=",
		ConfirmURL:       "https://id.example.com/confirm?token=",
		Go:               func(fn func(context.Context)) { fn(context.Background()) },
		EmitAudit: func(_ context.Context, eventType string, success bool, identityID string, err error, _ func() map[string]string) {
			h.mu.Lock()
			h.audits = append(h.audits, auditRecord{eventType, success, identityID, err})
			h.mu.Unlock()
		},
		Events: Events{
			LoginSuccess:      "login_success",
			LoginFailure:      "login_failure",
			AccountLocked:     "account_locked",
			SignupSuccess:     "signup_success",
			SignupFailure:     "signup_failure",
			OTPSent:           "otp_sent",
			RefreshSuccess:    "refresh_success",
			RefreshFailure:    "refresh_failure",
			Logout:            "logout",
			DeviceLinked:      "device_linked",
			DeviceTransferred: "device_transferred",
			DeviceAlertSent:   "device_alert_sent",
			DeviceAlertFailed: "device_alert_failed",
			DeviceRejected:    "device_rejected",
			EmailConfirmed:    "email_confirmed",
			ServerError:       "server_error",
		},
		Errors: Errors{
			Validation:          errValidation,
			AuthFailed:          errAuthFailed,
			InvalidCredentials:  errInvalidCredentials,
			OTPInvalid:          errOTPInvalid,
			InvalidBiometric:    errInvalidBiometric,
			IncompleteBiometric: errIncompleteBiometric,
			AccountLocked:       errAccountLocked,
			AccountExists:       errAccountExists,
			TokenInvalid:        errTokenInvalid,
			Unauthorized:        errUnauthorized,
			Server:              errServer,
		},
	}
	return h
}

// seedPasswordIdentity stores an identity with a verified email and the given password.
func (h *harness) seedPasswordIdentity(t *testing.T, email, username, password string, restrictions ...string) *identity.Identity {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ident := h.store.PutIdentity(identity.Identity{
		Username:     username,
		PasswordHash: hash,
		Restrictions: restrictions,
	})
	now := time.Now().UTC()
	h.store.PutEmail(identity.EmailRecord{
		IdentityID: ident.ID,
		Email:      email,
		IsDefault:  true,
		VerifiedAt: &now,
	})
	return ident
}

func (h *harness) issueCode(t *testing.T, target string) string {
	t.Helper()
	code := h.cache.Issue(context.Background(), h.cache.TargetDigest(target))
	if code == "" {
		t.Fatal("expected issued code")
	}
	return code
}
