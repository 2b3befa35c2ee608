package goIdentity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/identity/memory"
	"github.com/MrEthical07/goIdentity/notify"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type collectingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *collectingSink) Emit(_ context.Context, e AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *collectingSink) byType(eventType string) []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AuditEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testEngine struct {
	*Engine
	store     *memory.Store
	messenger *notify.Recorder
	sink      *collectingSink
	redis     *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvTest
	cfg.Password = PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.Login.CreateOnOTP = true
	cfg.Device.RejectURL = "https://id.example.com/devices/reject?token="
	cfg.Signup.ConfirmURL = "https://id.example.com/confirm?token="
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEngine {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	mr, rdb := newTestRedis(t)

	te := &testEngine{
		store:     memory.New(),
		messenger: &notify.Recorder{},
		sink:      &collectingSink{},
		redis:     mr,
	}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(te.store).
		WithMessenger(te.messenger).
		WithAuditSink(te.sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	te.Engine = engine
	return te
}

func (te *testEngine) seedPasswordUser(t *testing.T, email, password string, restrictions ...string) *identity.Identity {
	t.Helper()
	hash, err := te.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	ident := te.store.PutIdentity(identity.Identity{
		Username:     strings.Split(email, "@")[0],
		PasswordHash: hash,
		Restrictions: restrictions,
	})
	verified := time.Now()
	te.store.PutEmail(identity.EmailRecord{
		IdentityID: ident.ID,
		Email:      email,
		IsDefault:  true,
		VerifiedAt: &verified,
	})
	return ident
}

func TestBuildRequiresDependencies(t *testing.T) {
	_, rdb := newTestRedis(t)

	if _, err := New().WithConfig(testConfig()).WithIdentityStore(memory.New()).Build(); err == nil {
		t.Fatal("expected error without redis")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without identity store")
	}

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithIdentityStore(memory.New())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected builder reuse to fail")
	}
}

func TestBuildProductionRequiresSecretsAndMessenger(t *testing.T) {
	_, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.Environment = EnvProduction
	if _, err := New().WithConfig(cfg).WithRedis(rdb).WithIdentityStore(memory.New()).WithMessenger(&notify.Recorder{}).Build(); err == nil {
		t.Fatal("expected production build without secrets to fail")
	}

	cfg.Secrets = SecretsConfig{
		CryptKey:         "prod-crypt-key-0123456789abcdef",
		JWTAccessSecret:  "prod-access-secret-0123456789abcdef",
		JWTRefreshSecret: "prod-refresh-secret-0123456789abcdef",
		OTPSalt:          "prod-otp-salt-0123456789abcdef",
	}
	if _, err := New().WithConfig(cfg).WithRedis(rdb).WithIdentityStore(memory.New()).Build(); err == nil {
		t.Fatal("expected production build without messenger to fail")
	}

	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithIdentityStore(memory.New()).WithMessenger(&notify.Recorder{}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	engine.Close()
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), LoginRequest{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Refresh(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
	if got := e.AuditDropped(); got != 0 {
		t.Fatalf("expected 0 dropped, got %d", got)
	}
}

func TestLoginRefreshLogoutLifecycle(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	ident := te.seedPasswordUser(t, "alice@example.com", "correct horse")

	profile, err := te.Login(ctx, LoginRequest{Value: "Alice@Example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if profile.IdentityID != ident.ID || profile.Method != "email_password" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.AccessToken == "" || profile.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
	if len(profile.Emails) != 1 || !profile.Emails[0].Verified {
		t.Fatalf("expected hydrated verified email, got %+v", profile.Emails)
	}

	subject, err := te.SubjectFromAccessToken(profile.AccessToken)
	if err != nil || subject != ident.ID {
		t.Fatalf("SubjectFromAccessToken = %q, %v", subject, err)
	}
	if subject, ok := te.IsRefreshValid(profile.RefreshToken); !ok || subject != ident.ID {
		t.Fatalf("IsRefreshValid = %q, %v", subject, ok)
	}

	rotated, err := te.Refresh(ctx, profile.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == profile.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	out, err := te.Logout(ctx, profile.RefreshToken)
	if err != nil || !out.LoggedOut {
		t.Fatalf("Logout = %+v, %v", out, err)
	}
	if _, err := te.Refresh(ctx, profile.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}
	if _, err := te.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("expected other token to survive logout, got %v", err)
	}

	out, err = te.Logout(ctx, "not-a-token")
	if err != nil || out.LoggedOut {
		t.Fatalf("Logout(invalid) = %+v, %v", out, err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	te := newTestEngine(t, nil)
	te.seedPasswordUser(t, "bob@example.com", "right")

	_, err := te.Login(context.Background(), LoginRequest{Value: "bob@example.com", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := te.MetricsSnapshot().Counters[MetricLoginFailure]; got != 1 {
		t.Fatalf("expected 1 login failure, got %d", got)
	}
}

func TestLockedAccountLooksLikeGenericFailure(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := WithClientIP(context.Background(), "203.0.113.7")
	te.seedPasswordUser(t, "carol@example.com", "pw", "fraud", "chargeback")

	_, err := te.Login(ctx, LoginRequest{Value: "carol@example.com", Password: "pw"})
	if err != ErrAuthFailed {
		t.Fatalf("expected bare ErrAuthFailed, got %v", err)
	}
	if ErrorCode(err) != CodeAuthFailed {
		t.Fatalf("expected %s, got %s", CodeAuthFailed, ErrorCode(err))
	}
	if got := te.MetricsSnapshot().Counters[MetricAccountLocked]; got != 1 {
		t.Fatalf("expected account locked metric, got %d", got)
	}

	te.Close()
	locked := te.sink.byType(AuditAccountLocked)
	if len(locked) != 1 {
		t.Fatalf("expected one account_locked event, got %d", len(locked))
	}
	if locked[0].IP != "203.0.113.7" {
		t.Fatalf("expected client IP on audit event, got %q", locked[0].IP)
	}
}

func TestSendOTPThenSignupByPhone(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := te.SendOTP(ctx, OTPRequest{Target: "+12015550123"})
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if res.Channel != "sms" || res.Code == "" {
		t.Fatalf("expected exposed sms code outside production, got %+v", res)
	}
	if sent, ok := te.messenger.LastCode("+12015550123"); !ok || sent != res.Code {
		t.Fatalf("expected delivered code %q, got %q", res.Code, sent)
	}

	profile, err := te.Signup(ctx, SignupRequest{
		Value:  "+12015550123",
		Code:   res.Code,
		Device: &DeviceInfo{UniqueID: "device-1", Name: "Pixel", Platform: "android"},
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if !profile.Created || profile.Method != "phone_otp" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.Device == nil || profile.Device.UniqueID != "device-1" {
		t.Fatalf("expected linked device, got %+v", profile.Device)
	}

	if _, err := te.Signup(ctx, SignupRequest{Value: "+12015550123", Code: res.Code}); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected code reuse to fail with ErrOTPInvalid, got %v", err)
	}
}

func TestSendOTPThenLoginByPossibleNumber(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := te.SendOTP(ctx, OTPRequest{Target: "5551234567", Region: "US"})
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if res.Channel != "sms" || res.Destination != "+15551234567" || res.Code == "" {
		t.Fatalf("unexpected send result %+v", res)
	}

	profile, err := te.Login(ctx, LoginRequest{Value: "5551234567", Region: "US", Code: res.Code})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !profile.Created || profile.Method != "phone_otp" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if len(profile.Phones) != 1 || profile.Phones[0].Value != "+15551234567" || !profile.Phones[0].Verified {
		t.Fatalf("expected verified phone +15551234567, got %+v", profile.Phones)
	}
}

func TestSendOTPHidesCodeInProduction(t *testing.T) {
	te := newTestEngine(t, func(c *Config) {
		c.Environment = EnvProduction
		c.Secrets = SecretsConfig{
			CryptKey:         "prod-crypt-key-0123456789abcdef",
			JWTAccessSecret:  "prod-access-secret-0123456789abcdef",
			JWTRefreshSecret: "prod-refresh-secret-0123456789abcdef",
			OTPSalt:          "prod-otp-salt-0123456789abcdef",
		}
	})

	res, err := te.SendOTP(context.Background(), OTPRequest{Target: "dave@example.com"})
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if res.Code != "" {
		t.Fatal("code must not be returned in production")
	}
	if _, ok := te.messenger.LastCode("dave@example.com"); !ok {
		t.Fatal("expected the code to be delivered")
	}
}

func TestMagicLinkSignupThenConfirm(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	profile, err := te.Signup(ctx, SignupRequest{Value: "erin@example.com"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if profile.Method != "email_magic_link" || !profile.Created {
		t.Fatalf("unexpected profile %+v", profile)
	}

	links := te.messenger.ConfirmationLinks()
	if len(links) != 1 {
		t.Fatalf("expected one confirmation link, got %d", len(links))
	}
	token := strings.TrimPrefix(links[0].Link, "https://id.example.com/confirm?token=")

	id, err := te.ConfirmEmail(ctx, token)
	if err != nil || id != profile.IdentityID {
		t.Fatalf("ConfirmEmail = %q, %v", id, err)
	}

	if _, err := te.Signup(ctx, SignupRequest{Value: "erin@example.com"}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if _, err := te.ConfirmEmail(ctx, "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestNewDeviceAlertDeliveredBeforeClose(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.seedPasswordUser(t, "frank@example.com", "pw")

	login := func(device string) {
		t.Helper()
		_, err := te.Login(ctx, LoginRequest{
			Value:    "frank@example.com",
			Password: "pw",
			Device:   &DeviceInfo{UniqueID: device, Name: device},
		})
		if err != nil {
			t.Fatalf("Login(%s): %v", device, err)
		}
	}
	login("laptop")
	login("phone")

	te.Close()
	if got := te.messenger.AlertCount(); got != 1 {
		t.Fatalf("expected one new-device alert, got %d", got)
	}
	alert := te.messenger.Alerts[0]
	if alert.Destination != "frank@example.com" || !strings.HasPrefix(alert.RejectLink, "https://id.example.com/devices/reject?token=") {
		t.Fatalf("unexpected alert %+v", alert)
	}
}

func TestRejectDeviceRevokesRefreshTokens(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.seedPasswordUser(t, "gina@example.com", "pw")

	first, err := te.Login(ctx, LoginRequest{Value: "gina@example.com", Password: "pw", Device: &DeviceInfo{UniqueID: "tablet"}})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := te.Login(ctx, LoginRequest{Value: "gina@example.com", Password: "pw", Device: &DeviceInfo{UniqueID: "stolen"}}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	te.Close()

	alert := te.messenger.Alerts[0]
	token := strings.TrimPrefix(alert.RejectLink, "https://id.example.com/devices/reject?token=")
	if _, err := te.RejectDevice(ctx, token); err != nil {
		t.Fatalf("RejectDevice: %v", err)
	}
	if _, err := te.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected every refresh token revoked, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	te := newTestEngine(t, nil)
	te.seedPasswordUser(t, "hank@example.com", "pw")

	res, err := te.Lookup(context.Background(), "HANK@example.com", "")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Method != "email" || !res.Exists || !res.Secured {
		t.Fatalf("unexpected lookup %+v", res)
	}

	res, err = te.Lookup(context.Background(), "nobody@example.com", "")
	if err != nil || res.Exists {
		t.Fatalf("Lookup(unknown) = %+v, %v", res, err)
	}
}

func TestLoginLatencyObserved(t *testing.T) {
	te := newTestEngine(t, nil)
	_, _ = te.Login(context.Background(), LoginRequest{Value: "nobody@example.com", Password: "x"})

	buckets := te.MetricsSnapshot().Histograms[MetricLoginLatency]
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}
