package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goIdentity/identity"
)

func TestSendOTPEmail(t *testing.T) {
	h := newHarness(t)
	h.deps.ExposeOTP = func() bool { return true }

	out, err := RunSendOTP(context.Background(), OTPInput{Target: "Alice@Example.com", Channel: "email"}, h.deps)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Channel != identity.ChannelEmail || out.Destination != "alice@example.com" || len(out.Code) != 6 {
		t.Fatalf("unexpected output %+v", out)
	}
	if len(h.messenger.otps) != 1 || h.messenger.otps[0].code != out.Code {
		t.Fatal("expected code delivered through messenger")
	}

	if _, err := RunLogin(context.Background(), LoginInput{Value: "alice@example.com", Code: out.Code}, h.deps); err != nil {
		t.Fatalf("login with sent code: %v", err)
	}
}

func TestSendOTPHidesCodeWhenNotExposed(t *testing.T) {
	h := newHarness(t)
	out, err := RunSendOTP(context.Background(), OTPInput{Target: "2015550123", Region: "US"}, h.deps)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Code != "" {
		t.Fatal("code must not be exposed")
	}
	if out.Channel != identity.ChannelSMS || out.Destination != "+12015550123" {
		t.Fatalf("unexpected output %+v", out)
	}
	if len(h.messenger.otps) != 1 || h.messenger.otps[0].code == "" {
		t.Fatal("code must still be delivered")
	}
}

func TestSentSMSCodeLogsInPossibleNumber(t *testing.T) {
	h := newHarness(t)
	h.deps.ExposeOTP = func() bool { return true }

	for _, channel := range []string{"sms", ""} {
		out, err := RunSendOTP(context.Background(), OTPInput{Target: "5551234567", Region: "US", Channel: channel}, h.deps)
		if err != nil {
			t.Fatalf("channel %q: send: %v", channel, err)
		}
		if out.Channel != identity.ChannelSMS || out.Destination != "+15551234567" {
			t.Fatalf("channel %q: unexpected output %+v", channel, out)
		}

		p, err := RunLogin(context.Background(), LoginInput{Value: "5551234567", Region: "US", Code: out.Code}, h.deps)
		if err != nil {
			t.Fatalf("channel %q: login with sent code: %v", channel, err)
		}
		if p.Method != "phone_otp" {
			t.Fatalf("channel %q: unexpected method %q", channel, p.Method)
		}
	}
	if h.store.IdentityCount() != 1 {
		t.Fatalf("expected one identity bound to the number, got %d", h.store.IdentityCount())
	}
}

func TestSendOTPValidation(t *testing.T) {
	h := newHarness(t)
	bad := []OTPInput{
		{Target: "not-an-email", Channel: "email"},
		{Target: "12", Channel: "sms"},
		{Target: "alice@example.com", Channel: "sms"},
		{Target: "alice@example.com", Channel: "pigeon"},
		{Target: "alice"},
	}
	for _, in := range bad {
		if _, err := RunSendOTP(context.Background(), in, h.deps); !errors.Is(err, errValidation) {
			t.Fatalf("%+v: expected validation error, got %v", in, err)
		}
	}
}

func TestSendOTPServerErrorWhenCacheDown(t *testing.T) {
	h := newHarness(t)
	h.redis.Close()
	if _, err := RunSendOTP(context.Background(), OTPInput{Target: "alice@example.com"}, h.deps); !errors.Is(err, errServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if len(h.events("server_error")) != 1 {
		t.Fatal("expected server_error audit")
	}
}

func TestLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedPasswordIdentity(t, "a@example.com", "alice", "correct-horse")
	h.store.PutIdentity(identity.Identity{Username: "nopass"})

	cases := []struct {
		value   string
		method  string
		exists  bool
		secured bool
	}{
		{"A@example.com", "email", true, true},
		{"alice", "username", true, true},
		{"nopass", "username", true, false},
		{"ghost@example.com", "email", false, false},
		{"5551234567", "phone", false, false},
	}
	for _, tc := range cases {
		out, err := RunLookup(ctx, tc.value, "", h.deps)
		if err != nil {
			t.Fatalf("%s: %v", tc.value, err)
		}
		if out.Method != tc.method || out.Exists != tc.exists || out.Secured != tc.secured {
			t.Fatalf("%s: got %+v", tc.value, out)
		}
	}

	if _, err := RunLookup(ctx, "  ", "", h.deps); !errors.Is(err, errValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
