package rate

import (
	"testing"
	"time"
)

func TestDefaultPolicies(t *testing.T) {
	want := map[string]struct {
		limit  int
		window time.Duration
	}{
		PolicyAccountCreation: {20, 60 * time.Minute},
		PolicyAuthLookup:      {20, 3 * time.Minute},
		PolicyLogin:           {15, 5 * time.Minute},
		PolicyStandard:        {500, time.Minute},
		PolicyStrict:          {100, 3 * time.Minute},
		PolicyVeryStrict:      {3, 10 * time.Minute},
	}
	got := DefaultPolicies()
	if len(got) != len(want) {
		t.Fatalf("expected %d policies, got %d", len(want), len(got))
	}
	for name, w := range want {
		p, ok := got[name]
		if !ok {
			t.Fatalf("missing policy %q", name)
		}
		if p.Limit != w.limit || p.Window != w.window {
			t.Fatalf("%s: got %d/%v, want %d/%v", name, p.Limit, p.Window, w.limit, w.window)
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if got[PolicyLogin].Strategy != KeyLogin {
		t.Fatal("login policy must key on credential")
	}
}

func TestGenerateKey(t *testing.T) {
	cases := []struct {
		name     string
		strategy KeyStrategy
		in       KeyInput
		want     string
	}{
		{"standard subject", KeyStandard, KeyInput{SubjectID: "u1", IP: "1.1.1.1"}, "sub:u1"},
		{"standard ip", KeyStandard, KeyInput{IP: "1.1.1.1"}, "ip:1.1.1.1"},
		{"standard ignores credential", KeyStandard, KeyInput{Credential: "a@b.co", IP: "1.1.1.1"}, "ip:1.1.1.1"},
		{"login email", KeyLogin, KeyInput{Credential: " A@B.co ", DeviceID: "d", IP: "1.1.1.1"}, "cred:a@b.co"},
		{"login phone", KeyLogin, KeyInput{Credential: "(555) 123-4567", Region: "US"}, "cred:+15551234567"},
		{"login device", KeyLogin, KeyInput{DeviceID: "dev-1", IP: "1.1.1.1"}, "dev:dev-1"},
		{"login ip", KeyLogin, KeyInput{IP: "1.1.1.1"}, "ip:1.1.1.1"},
		{"nothing", KeyLogin, KeyInput{}, "anon"},
	}
	for _, tc := range cases {
		if got := GenerateKey(tc.strategy, tc.in); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
