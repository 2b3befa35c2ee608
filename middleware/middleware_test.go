package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/identity/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newEngine(t *testing.T, mutate func(*goIdentity.Config)) (*goIdentity.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := goIdentity.DefaultConfig()
	cfg.Environment = goIdentity.EnvTest
	cfg.Login.CreateOnOTP = true
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(memory.New()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteData(w, map[string]string{"ok": "yes"})
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestGuardRejectsMissingAndBadTokens(t *testing.T) {
	engine, _ := newEngine(t, nil)
	h := Guard(engine)(okHandler(t))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, rec.Code)
		}
		env := decodeEnvelope(t, rec)
		if env.Error == nil || env.Error.Code != goIdentity.CodeUnauthorized {
			t.Fatalf("%q: unexpected body %+v", header, env)
		}
	}
}

func TestGuardAttachesSubject(t *testing.T) {
	engine, _ := newEngine(t, nil)
	ctx := context.Background()

	otp, err := engine.SendOTP(ctx, goIdentity.OTPRequest{Target: "+12015550123"})
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	profile, err := engine.Signup(ctx, goIdentity.SignupRequest{Value: "+12015550123", Code: otp.Code})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	var seen string
	h := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = goIdentity.SubjectIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+profile.AccessToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen != profile.IdentityID {
		t.Fatalf("expected subject %q, got %q", profile.IdentityID, seen)
	}
}

func TestGuardNilEngine(t *testing.T) {
	rec := httptest.NewRecorder()
	Guard(nil)(okHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClientContext(t *testing.T) {
	var ip string
	h := ClientContext(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = goIdentity.ClientIPFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if ip != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %q", ip)
	}

	h = ClientContext(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = goIdentity.ClientIPFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if ip != "10.0.0.1" {
		t.Fatalf("expected remote addr host, got %q", ip)
	}
}

func TestRateLimitHeadersAndTooManyRequests(t *testing.T) {
	engine, _ := newEngine(t, nil)
	h := ClientContext(false)(RateLimit(engine, goIdentity.PolicyVeryStrict)(okHandler(t)))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/signup", nil)
		req.RemoteAddr = "198.51.100.4:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		rec := send()
		if rec.Code != http.StatusOK {
			t.Fatalf("hit %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("RateLimit-Limit"); got != "3" {
			t.Fatalf("hit %d: RateLimit-Limit = %q", i+1, got)
		}
	}

	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("RateLimit-Remaining") != "0" {
		t.Fatalf("missing rate headers: %v", rec.Header())
	}
	if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != goIdentity.CodeRateLimited {
		t.Fatalf("unexpected body %+v", env)
	}
}

func TestRateLimitSoftFailRoute(t *testing.T) {
	engine, _ := newEngine(t, func(c *goIdentity.Config) {
		c.RateLimit.SoftFailRoutes = []string{"/auth/lookup"}
	})
	h := RateLimit(engine, goIdentity.PolicyVeryStrict)(okHandler(t))

	var rec *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/lookup", nil)
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected soft-fail 200, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "" || rec.Header().Get("RateLimit-Limit") != "" {
		t.Fatalf("soft fail must not leak limiter headers: %v", rec.Header())
	}
	env := decodeEnvelope(t, rec)
	if env.Error != nil || env.Data != nil || env.Message == "" {
		t.Fatalf("unexpected soft-fail body %+v", env)
	}
}

func TestRateLimitLoginKeysOnCredentialAndRestoresBody(t *testing.T) {
	engine, _ := newEngine(t, func(c *goIdentity.Config) {
		c.RateLimit.Login = goIdentity.PolicyConfig{Limit: 2}
	})

	var bodies []string
	h := RateLimit(engine, goIdentity.PolicyLogin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i, ip := range []string{"1.1.1.1:1", "2.2.2.2:2", "3.3.3.3:3"} {
		body := `{"value":"Dana@Example.com","password":"x"}`
		if i == 1 {
			body = `{"value":" dana@example.com ","password":"x"}`
		}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected credential-keyed limit across ips, got %v", codes)
	}
	if len(bodies) != 2 || !strings.Contains(bodies[0], "Dana@Example.com") {
		t.Fatalf("handler did not see the original body: %q", bodies)
	}
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func TestRateLimitPassesOversizedBodyIntact(t *testing.T) {
	engine, _ := newEngine(t, nil)

	body := `{"value":"dana@example.com","password":"` + strings.Repeat("p", maxPeekBytes) + `"}`
	src := &trackedBody{Reader: strings.NewReader(body)}

	var got string
	var closedEarly bool
	h := RateLimit(engine, goIdentity.PolicyLogin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		closedEarly = src.closed
		raw, _ := io.ReadAll(r.Body)
		got = string(raw)
		_ = r.Body.Close()
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Body = src
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if closedEarly {
		t.Fatal("original body was closed before the handler ran")
	}
	if got != body {
		t.Fatalf("handler saw %d of %d body bytes", len(got), len(body))
	}
	if !src.closed {
		t.Fatal("closing the restored body must close the original")
	}
}

func TestRateLimitBackendFailureIsServerError(t *testing.T) {
	engine, mr := newEngine(t, nil)
	mr.Close()

	rec := httptest.NewRecorder()
	RateLimit(engine, goIdentity.PolicyStandard)(okHandler(t)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != goIdentity.CodeServer {
		t.Fatalf("unexpected body %+v", env)
	}
}
