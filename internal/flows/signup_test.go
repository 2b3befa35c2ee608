package flows

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/goIdentity/identity"
)

func TestSignupEmailOTPCreatesOneVerifiedEmail(t *testing.T) {
	h := newHarness(t)
	code := h.issueCode(t, "new@example.com")

	p, err := RunSignup(context.Background(), SignupInput{Value: "new@example.com", Code: code}, h.deps)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !p.Created || p.Method != "email_otp" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if h.store.IdentityCount() != 1 {
		t.Fatalf("expected exactly one identity, got %d", h.store.IdentityCount())
	}
	emails, _ := h.store.ListEmails(context.Background(), p.Identity.ID)
	if len(emails) != 1 || emails[0].Email != "new@example.com" || emails[0].VerifiedAt == nil {
		t.Fatalf("expected one verified email record, got %+v", emails)
	}

	stored, _ := h.store.FindByID(context.Background(), p.Identity.ID)
	if len(stored.RefreshTokens) != 1 {
		t.Fatalf("expected initialized refresh list, got %v", stored.RefreshTokens)
	}
}

func TestSignupOTPExistingOwnerBecomesLoginTarget(t *testing.T) {
	h := newHarness(t)
	ident := h.seedPasswordIdentity(t, "taken@example.com", "taken", "correct-horse")

	p, err := RunSignup(context.Background(), SignupInput{Value: "taken@example.com", Code: h.issueCode(t, "taken@example.com")}, h.deps)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if p.Created || p.Identity.ID != ident.ID {
		t.Fatalf("expected existing owner, got %+v", p)
	}
	if h.store.IdentityCount() != 1 {
		t.Fatal("no new identity expected")
	}
}

func TestSignupRejectsBadCodeBeforeTouchingAccounts(t *testing.T) {
	h := newHarness(t)
	_, err := RunSignup(context.Background(), SignupInput{Value: "new@example.com", Code: "000000"}, h.deps)
	if !errors.Is(err, errOTPInvalid) {
		t.Fatalf("expected otp invalid, got %v", err)
	}
	if h.store.IdentityCount() != 0 {
		t.Fatal("no identity should be created")
	}
}

func TestSignupPhone(t *testing.T) {
	h := newHarness(t)
	code := h.issueCode(t, "+12015550123")

	p, err := RunSignup(context.Background(), SignupInput{
		Value:    "2015550123",
		Region:   "US",
		Code:     code,
		Username: "carol",
		Device:   &DeviceInput{UniqueID: "ios-1", Name: "Carol's phone", Platform: "ios"},
	}, h.deps)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !p.Created || p.Identity.Username != "carol" {
		t.Fatalf("unexpected profile %+v", p.Identity)
	}
	if len(p.Phones) != 1 || p.Phones[0].Phone != "+12015550123" {
		t.Fatalf("expected phone record, got %+v", p.Phones)
	}
	if p.Device == nil || p.Device.UniqueDeviceID != "ios-1" {
		t.Fatalf("expected linked device, got %+v", p.Device)
	}
	if len(h.messenger.Alerts()) != 0 {
		t.Fatal("first device must not alert")
	}
}

func TestSignupPhoneClaimsUnverifiedRecord(t *testing.T) {
	h := newHarness(t)
	owner := h.store.PutIdentity(identity.Identity{Username: "dana"})
	h.store.PutPhone(identity.PhoneRecord{IdentityID: owner.ID, Phone: "+12015550123", IsDefault: true})

	p, err := RunSignup(context.Background(), SignupInput{
		Value:  "2015550123",
		Region: "US",
		Code:   h.issueCode(t, "+12015550123"),
	}, h.deps)
	if err != nil {
		t.Fatalf("signup over unverified phone: %v", err)
	}
	if p.Created || p.Identity.ID != owner.ID {
		t.Fatalf("expected existing owner %s, got created=%v id=%s", owner.ID, p.Created, p.Identity.ID)
	}
	if len(p.Phones) != 1 || !p.Phones[0].Verified() {
		t.Fatalf("expected phone to be verified by the code, got %+v", p.Phones)
	}
	if h.store.IdentityCount() != 1 {
		t.Fatalf("expected no second identity, got %d", h.store.IdentityCount())
	}
}

func TestSignupLockedOwnerReportsLock(t *testing.T) {
	h := newHarness(t)
	h.seedPasswordIdentity(t, "locked@example.com", "locked", "correct-horse", "fraud", "chargeback")

	_, err := RunSignup(context.Background(), SignupInput{
		Value: "locked@example.com",
		Code:  h.issueCode(t, "locked@example.com"),
	}, h.deps)
	if !errors.Is(err, errAuthFailed) || !errors.Is(err, errAccountLocked) {
		t.Fatalf("expected locked auth failure, got %v", err)
	}
	if len(h.events("account_locked")) != 1 {
		t.Fatal("expected account_locked audit")
	}
	if len(h.events("signup_failure")) != 1 {
		t.Fatal("expected signup_failure audit")
	}
}

func TestSignupMagicLinkAndConfirm(t *testing.T) {
	h := newHarness(t)

	p, err := RunSignup(context.Background(), SignupInput{Value: "Magic@Example.com"}, h.deps)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !p.Created || p.Method != "email_magic_link" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if len(p.Emails) != 1 || p.Emails[0].Verified() {
		t.Fatalf("expected one unverified email, got %+v", p.Emails)
	}
	if len(h.messenger.confirmations) != 1 {
		t.Fatalf("expected one confirmation, got %d", len(h.messenger.confirmations))
	}
	link := h.messenger.confirmations[0]
	if !strings.HasPrefix(link, h.deps.ConfirmURL) {
		t.Fatalf("unexpected link %q", link)
	}

	id, err := RunConfirmEmail(context.Background(), strings.TrimPrefix(link, h.deps.ConfirmURL), h.deps)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if id != p.Identity.ID {
		t.Fatalf("confirmed wrong identity %q", id)
	}
	emails, _ := h.store.ListEmails(context.Background(), id)
	if !emails[0].Verified() || !emails[0].IsDefault {
		t.Fatalf("expected verified default email, got %+v", emails[0])
	}

	if _, err := RunConfirmEmail(context.Background(), "garbage", h.deps); !errors.Is(err, errTokenInvalid) {
		t.Fatalf("expected token invalid, got %v", err)
	}
}

func TestSignupMagicLinkExistingEmail(t *testing.T) {
	h := newHarness(t)
	h.seedPasswordIdentity(t, "taken@example.com", "taken", "correct-horse")

	_, err := RunSignup(context.Background(), SignupInput{Value: "taken@example.com"}, h.deps)
	if !errors.Is(err, errAccountExists) {
		t.Fatalf("expected account exists, got %v", err)
	}
	if len(h.messenger.confirmations) != 0 {
		t.Fatal("no confirmation expected")
	}
}

func TestSignupUnrecognizedPayload(t *testing.T) {
	h := newHarness(t)
	h.deps.Store = untouchableStore{}
	for _, in := range []SignupInput{{}, {Value: "alice", Code: "123456"}, {Value: "2015550123"}} {
		if _, err := RunSignup(context.Background(), in, h.deps); !errors.Is(err, errValidation) {
			t.Fatalf("payload %+v: expected validation error, got %v", in, err)
		}
	}
}

func TestSignupUsernameConflict(t *testing.T) {
	h := newHarness(t)
	h.store.PutIdentity(identity.Identity{Username: "dave"})

	_, err := RunSignup(context.Background(), SignupInput{
		Value: "dave@example.com", Code: h.issueCode(t, "dave@example.com"), Username: "Dave",
	}, h.deps)
	if !errors.Is(err, errAccountExists) {
		t.Fatalf("expected account exists for taken username, got %v", err)
	}
}
