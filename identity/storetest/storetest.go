// Package storetest is a behavioral test suite shared by identity.Store implementations.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/identity"
)

// Run exercises store through every identity.Store operation. newStore must return an
// empty store for each call.
func Run(t *testing.T, newStore func(t *testing.T) identity.Store) {
	t.Run("CreateFromEmail", func(t *testing.T) { testCreateFromEmail(t, newStore(t)) })
	t.Run("CreateFromPhone", func(t *testing.T) { testCreateFromPhone(t, newStore(t)) })
	t.Run("PhoneClaim", func(t *testing.T) { testPhoneClaim(t, newStore(t)) })
	t.Run("UsernameUnique", func(t *testing.T) { testUsernameUnique(t, newStore(t)) })
	t.Run("RefreshTokens", func(t *testing.T) { testRefreshTokens(t, newStore(t)) })
	t.Run("EmailVerification", func(t *testing.T) { testEmailVerification(t, newStore(t)) })
	t.Run("Devices", func(t *testing.T) { testDevices(t, newStore(t)) })
	t.Run("ConcurrentDeviceCreate", func(t *testing.T) { testConcurrentDeviceCreate(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

func testCreateFromEmail(t *testing.T, s identity.Store) {
	ctx := context.Background()

	id, rec, err := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "Erin@Example.com", Username: "erin"})
	if err != nil {
		t.Fatalf("CreateFromEmail: %v", err)
	}
	if id.ID == "" || rec.IdentityID != id.ID || !rec.IsDefault || rec.Verified() {
		t.Fatalf("unexpected records %+v %+v", id, rec)
	}
	if rec.Email != "erin@example.com" {
		t.Fatalf("email not normalized: %q", rec.Email)
	}

	got, err := s.FindByEmail(ctx, "ERIN@example.com")
	if err != nil || got.ID != id.ID {
		t.Fatalf("FindByEmail = %+v, %v", got, err)
	}
	if got, err := s.FindByUsername(ctx, "Erin"); err != nil || got.ID != id.ID {
		t.Fatalf("FindByUsername = %+v, %v", got, err)
	}

	if _, _, err := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "erin@example.com"}); !errors.Is(err, identity.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	secured, err := s.HasSecuredAccount(ctx, id.ID)
	if err != nil || secured {
		t.Fatalf("HasSecuredAccount = %v, %v", secured, err)
	}
}

func testCreateFromPhone(t *testing.T, s identity.Store) {
	ctx := context.Background()

	unverified, _, err := s.CreateFromPhone(ctx, identity.CreatePhoneInput{Phone: "+12015550100", Region: "US"})
	if err != nil {
		t.Fatalf("CreateFromPhone: %v", err)
	}
	if _, err := s.FindByPhone(ctx, "+12015550100"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("unverified phone must not resolve, got %v", err)
	}
	if _, err := s.GetVerifiedPhone(ctx, unverified.ID); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected no verified phone, got %v", err)
	}

	id, rec, err := s.CreateFromPhone(ctx, identity.CreatePhoneInput{Phone: "+12015550101", Region: "US", Verified: true})
	if err != nil {
		t.Fatalf("CreateFromPhone: %v", err)
	}
	if !rec.Verified() || rec.Region != "US" {
		t.Fatalf("unexpected phone record %+v", rec)
	}
	if got, err := s.FindByPhone(ctx, "+12015550101"); err != nil || got.ID != id.ID {
		t.Fatalf("FindByPhone = %+v, %v", got, err)
	}
	if got, err := s.GetVerifiedPhone(ctx, id.ID); err != nil || got.Phone != "+12015550101" {
		t.Fatalf("GetVerifiedPhone = %+v, %v", got, err)
	}

	phones, err := s.ListPhones(ctx, id.ID)
	if err != nil || len(phones) != 1 {
		t.Fatalf("ListPhones = %+v, %v", phones, err)
	}
	if err := s.ClearDefaultFlag(ctx, id.ID, identity.KindPhone); err != nil {
		t.Fatalf("ClearDefaultFlag: %v", err)
	}
	phones, _ = s.ListPhones(ctx, id.ID)
	if len(phones) != 1 || phones[0].IsDefault {
		t.Fatalf("expected default cleared, got %+v", phones)
	}

	if _, _, err := s.CreateFromPhone(ctx, identity.CreatePhoneInput{Phone: "+12015550101"}); !errors.Is(err, identity.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate phone, got %v", err)
	}
}

func testPhoneClaim(t *testing.T, s identity.Store) {
	ctx := context.Background()

	owner, rec, err := s.CreateFromPhone(ctx, identity.CreatePhoneInput{Phone: "+12015550123", Region: "US"})
	if err != nil {
		t.Fatalf("CreateFromPhone: %v", err)
	}
	got, err := s.FindPhoneRecord(ctx, "+12015550123")
	if err != nil || got.ID != rec.ID || got.IdentityID != owner.ID || got.Verified() {
		t.Fatalf("FindPhoneRecord = %+v, %v", got, err)
	}

	if err := s.MarkPhoneVerified(ctx, rec.ID); err != nil {
		t.Fatalf("MarkPhoneVerified: %v", err)
	}
	first, _ := s.FindPhoneRecord(ctx, "+12015550123")
	if !first.Verified() {
		t.Fatalf("expected verified record, got %+v", first)
	}
	if err := s.MarkPhoneVerified(ctx, rec.ID); err != nil {
		t.Fatalf("MarkPhoneVerified must be idempotent: %v", err)
	}
	again, _ := s.FindPhoneRecord(ctx, "+12015550123")
	if !again.VerifiedAt.Equal(*first.VerifiedAt) {
		t.Fatalf("verified_at moved from %v to %v", first.VerifiedAt, again.VerifiedAt)
	}
	if ident, err := s.FindByPhone(ctx, "+12015550123"); err != nil || ident.ID != owner.ID {
		t.Fatalf("FindByPhone after verification = %+v, %v", ident, err)
	}

	if _, err := s.FindPhoneRecord(ctx, "+12015550199"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown phone, got %v", err)
	}
}

func testUsernameUnique(t *testing.T, s identity.Store) {
	ctx := context.Background()
	if _, _, err := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "a@example.com", Username: "sam"}); err != nil {
		t.Fatalf("CreateFromEmail: %v", err)
	}
	if _, _, err := s.CreateFromPhone(ctx, identity.CreatePhoneInput{Phone: "+12015550102", Username: "SAM"}); !errors.Is(err, identity.ErrConflict) {
		t.Fatalf("expected username conflict, got %v", err)
	}
	if _, _, err := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "b@example.com"}); err != nil {
		t.Fatalf("empty usernames must not conflict: %v", err)
	}
	if _, _, err := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "c@example.com"}); err != nil {
		t.Fatalf("empty usernames must not conflict: %v", err)
	}
}

func testRefreshTokens(t *testing.T, s identity.Store) {
	ctx := context.Background()
	id, _, err := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "tok@example.com"})
	if err != nil {
		t.Fatalf("CreateFromEmail: %v", err)
	}

	if err := s.UpdateRefreshTokens(ctx, id.ID, []string{"a", "b"}, identity.RefreshInitialize); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := s.UpdateRefreshTokens(ctx, id.ID, []string{"c"}, identity.RefreshAppend); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, _ := s.FindByID(ctx, id.ID)
	if len(got.RefreshTokens) != 3 || got.RefreshTokens[2] != "c" {
		t.Fatalf("unexpected tokens %v", got.RefreshTokens)
	}

	if err := s.UpdateRefreshTokens(ctx, id.ID, []string{"z"}, identity.RefreshInitialize); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = s.FindByID(ctx, id.ID)
	if len(got.RefreshTokens) != 1 || got.RefreshTokens[0] != "z" {
		t.Fatalf("expected replaced list, got %v", got.RefreshTokens)
	}

	if err := s.UpdateRefreshTokens(ctx, "00000000-0000-0000-0000-000000000000", nil, identity.RefreshInitialize); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testEmailVerification(t *testing.T, s identity.Store) {
	ctx := context.Background()
	id, rec, err := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "verify@example.com"})
	if err != nil {
		t.Fatalf("CreateFromEmail: %v", err)
	}
	if _, err := s.GetVerifiedEmail(ctx, id.ID); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected no verified email, got %v", err)
	}

	if err := s.ClearDefaultFlag(ctx, id.ID, identity.KindEmail); err != nil {
		t.Fatalf("ClearDefaultFlag: %v", err)
	}
	if err := s.MarkEmailVerified(ctx, rec.ID, true); err != nil {
		t.Fatalf("MarkEmailVerified: %v", err)
	}

	got, err := s.GetVerifiedEmail(ctx, id.ID)
	if err != nil || got.ID != rec.ID || !got.IsDefault || !got.Verified() {
		t.Fatalf("GetVerifiedEmail = %+v, %v", got, err)
	}
	emails, err := s.ListEmails(ctx, id.ID)
	if err != nil || len(emails) != 1 {
		t.Fatalf("ListEmails = %+v, %v", emails, err)
	}
}

func testDevices(t *testing.T, s identity.Store) {
	ctx := context.Background()
	owner, _, _ := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "owner@example.com"})
	other, _, _ := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "other@example.com"})

	if ok, err := s.HasVerifiedDevice(ctx, owner.ID); err != nil || ok {
		t.Fatalf("HasVerifiedDevice = %v, %v", ok, err)
	}

	now := time.Now().UTC()
	d, err := s.CreateDevice(ctx, identity.Device{
		IdentityID:     owner.ID,
		UniqueDeviceID: "dev-1",
		Name:           "Laptop",
		Platform:       "linux",
		PublicKey:      "pk",
		VerifiedAt:     &now,
	})
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if d.ID == "" || d.PublicKey != "pk" {
		t.Fatalf("unexpected device %+v", d)
	}
	if ok, _ := s.HasVerifiedDevice(ctx, owner.ID); !ok {
		t.Fatal("expected a verified device")
	}
	if got, err := s.FindDevice(ctx, "dev-1"); err != nil || got.ID != d.ID {
		t.Fatalf("FindDevice = %+v, %v", got, err)
	}
	if got, err := s.GetConnectedDevice(ctx, owner.ID, "dev-1"); err != nil || got.ID != d.ID {
		t.Fatalf("GetConnectedDevice = %+v, %v", got, err)
	}
	if _, err := s.GetConnectedDevice(ctx, other.ID, "dev-1"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("device must not be connected to other identity, got %v", err)
	}

	if err := s.SetDevicePublicKey(ctx, d.ID, "pk2"); err != nil {
		t.Fatalf("SetDevicePublicKey: %v", err)
	}
	if got, _ := s.FindDevice(ctx, "dev-1"); got.PublicKey != "pk2" {
		t.Fatalf("expected updated key, got %q", got.PublicKey)
	}

	if _, err := s.CreateDevice(ctx, identity.Device{IdentityID: other.ID, UniqueDeviceID: "dev-1"}); !errors.Is(err, identity.ErrConflict) {
		t.Fatalf("expected ErrConflict for live device id, got %v", err)
	}

	if err := s.SoftDeleteDevice(ctx, d.ID); err != nil {
		t.Fatalf("SoftDeleteDevice: %v", err)
	}
	if err := s.SoftDeleteDevice(ctx, d.ID); err != nil {
		t.Fatalf("SoftDeleteDevice must be idempotent: %v", err)
	}
	if _, err := s.FindDevice(ctx, "dev-1"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("deleted device must not resolve, got %v", err)
	}
	if err := s.SetDevicePublicKey(ctx, d.ID, "pk3"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("deleted device key must not change, got %v", err)
	}
	if _, err := s.GetConnectedDevice(ctx, owner.ID, "dev-1"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("deleted device must not be connected, got %v", err)
	}

	moved, err := s.CreateDevice(ctx, identity.Device{IdentityID: other.ID, UniqueDeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("CreateDevice after transfer: %v", err)
	}
	if moved.ID == d.ID || moved.IdentityID != other.ID {
		t.Fatalf("unexpected transferred device %+v", moved)
	}
}

func testConcurrentDeviceCreate(t *testing.T, s identity.Store) {
	ctx := context.Background()
	owner, _, _ := s.CreateFromEmail(ctx, identity.CreateEmailInput{Email: "race@example.com"})

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, conflicts := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateDevice(ctx, identity.Device{IdentityID: owner.ID, UniqueDeviceID: "shared"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, identity.ErrConflict):
				conflicts++
			default:
				t.Errorf("CreateDevice: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || conflicts != workers-1 {
		t.Fatalf("expected one live row, got created=%d conflicts=%d", created, conflicts)
	}
}

func testNotFound(t *testing.T, s identity.Store) {
	ctx := context.Background()
	const missing = "00000000-0000-0000-0000-000000000000"

	if _, err := s.FindByID(ctx, missing); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("FindByID: %v", err)
	}
	if _, err := s.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("FindByEmail: %v", err)
	}
	if _, err := s.FindByUsername(ctx, ""); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("FindByUsername: %v", err)
	}
	if err := s.MarkEmailVerified(ctx, missing, false); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("MarkEmailVerified: %v", err)
	}
	if err := s.SoftDeleteDevice(ctx, missing); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("SoftDeleteDevice: %v", err)
	}
	if err := s.MarkPhoneVerified(ctx, missing); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("MarkPhoneVerified: %v", err)
	}
	if err := s.SetDevicePublicKey(ctx, missing, "pk"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("SetDevicePublicKey: %v", err)
	}
	if _, err := s.HasSecuredAccount(ctx, missing); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("HasSecuredAccount: %v", err)
	}
}
