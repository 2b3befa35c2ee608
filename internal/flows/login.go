package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/internal/credential"
)

// RunLogin classifies the payload, runs the matching method, links the device, mints tokens
// (appended to the refresh list) and returns the hydrated profile.
func RunLogin(ctx context.Context, in LoginInput, d Deps) (*Profile, error) {
	d = d.withDefaults()
	plan := ClassifyLogin(in, d.DefaultRegion)
	method := plan.Method.String()

	fail := func(identityID, reason string, err error) (*Profile, error) {
		d.MetricInc(d.Metrics.LoginFailure)
		d.EmitAudit(ctx, d.Events.LoginFailure, false, identityID, err, func() map[string]string {
			return map[string]string{"method": method, "reason": reason}
		})
		return nil, err
	}

	var (
		ident   *identity.Identity
		created bool
		err     error
	)
	switch plan.Method {
	case LoginBiometric:
		ident, err = loginBiometric(ctx, in, d)
	case LoginPhone:
		ident, created, err = loginPhone(ctx, in.Code, plan.Phone, d)
	case LoginEmailPassword:
		ident, err = loginPassword(ctx, in.Password, d, func() (*identity.Identity, error) {
			return d.Store.FindByEmail(ctx, plan.Email)
		})
	case LoginEmailOTP:
		ident, created, err = loginEmailOTP(ctx, in.Code, plan.Email, d)
	case LoginUsername:
		username := strings.TrimSpace(in.Value)
		ident, err = loginPassword(ctx, in.Password, d, func() (*identity.Identity, error) {
			return d.Store.FindByUsername(ctx, username)
		})
	default:
		return fail("", "no_method", d.Errors.AuthFailed)
	}
	if err != nil {
		id := ""
		if ident != nil {
			id = ident.ID
		}
		return fail(id, "method_failed", err)
	}

	if ident.Deleted() {
		return fail(ident.ID, "deleted", d.Errors.AuthFailed)
	}
	if ident.Locked() {
		d.MetricInc(d.Metrics.AccountLocked)
		d.EmitAudit(ctx, d.Events.AccountLocked, false, ident.ID, d.Errors.AccountLocked, func() map[string]string {
			return map[string]string{"method": method}
		})
		return fail(ident.ID, "locked", d.Errors.AccountLocked)
	}

	mode := identity.RefreshAppend
	if created {
		mode = identity.RefreshInitialize
	}
	profile, err := completeProfile(ctx, ident, in.Device, mode, d)
	if err != nil {
		return nil, err
	}
	profile.Method = method
	profile.Created = created

	d.MetricInc(d.Metrics.LoginSuccess)
	d.EmitAudit(ctx, d.Events.LoginSuccess, true, ident.ID, nil, func() map[string]string {
		return map[string]string{"method": method}
	})
	return profile, nil
}

func loginBiometric(ctx context.Context, in LoginInput, d Deps) (*identity.Identity, error) {
	if in.IdentityID == "" || in.Signature == "" || in.Payload == "" || in.Device == nil || in.Device.UniqueID == "" {
		return nil, d.Errors.IncompleteBiometric
	}

	ident, err := d.Store.FindByID(ctx, in.IdentityID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, d.Errors.AuthFailed
		}
		return nil, d.serverError(ctx, "biometric find identity", in.IdentityID, err)
	}

	dev, err := d.Store.GetConnectedDevice(ctx, ident.ID, in.Device.UniqueID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ident, d.Errors.InvalidBiometric
		}
		return ident, d.serverError(ctx, "biometric find device", ident.ID, err)
	}
	if dev.PublicKey == "" {
		return ident, d.Errors.InvalidBiometric
	}
	if err := VerifyBiometricSignature(dev.PublicKey, in.Payload, in.Signature); err != nil {
		return ident, d.Errors.InvalidBiometric
	}
	return ident, nil
}

func loginPhone(ctx context.Context, code string, phone credential.Phone, d Deps) (*identity.Identity, bool, error) {
	if !validateOTP(ctx, code, phone.E164, d) {
		return nil, false, d.Errors.OTPInvalid
	}

	ident, err := claimPhone(ctx, phone.E164, d)
	if err == nil {
		return ident, false, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, false, d.serverError(ctx, "login find phone", "", err)
	}
	if !d.CreateOnOTP {
		return nil, false, d.Errors.AuthFailed
	}
	return createFromPhone(ctx, phone, "", d)
}

func loginEmailOTP(ctx context.Context, code, email string, d Deps) (*identity.Identity, bool, error) {
	if !validateOTP(ctx, code, email, d) {
		return nil, false, d.Errors.OTPInvalid
	}

	ident, err := d.Store.FindByEmail(ctx, email)
	if err == nil {
		if err := markEmailVerified(ctx, ident.ID, email, d); err != nil {
			return ident, false, err
		}
		return ident, false, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, false, d.serverError(ctx, "login find email", "", err)
	}
	if !d.CreateOnOTP {
		return nil, false, d.Errors.AuthFailed
	}
	return createFromEmail(ctx, email, "", true, d)
}

// loginPassword verifies password against the identity find returns. A missing identity
// still costs one hash verification.
func loginPassword(ctx context.Context, password string, d Deps, find func() (*identity.Identity, error)) (*identity.Identity, error) {
	ident, err := find()
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			return nil, d.serverError(ctx, "login find identity", "", err)
		}
		d.Passwords.VerifyDummy(password)
		return nil, d.Errors.InvalidCredentials
	}
	if !ident.HasPassword() {
		d.Passwords.VerifyDummy(password)
		return ident, d.Errors.InvalidCredentials
	}

	ok, err := d.Passwords.Verify(ident.PasswordHash, password)
	if err != nil || !ok {
		return ident, d.Errors.InvalidCredentials
	}
	return ident, nil
}

func validateOTP(ctx context.Context, code, target string, d Deps) bool {
	ok := d.OTP.Validate(ctx, code, d.OTP.TargetDigest(target))
	if ok {
		d.MetricInc(d.Metrics.OTPAccepted)
	} else {
		d.MetricInc(d.Metrics.OTPRejected)
	}
	return ok
}

// markEmailVerified verifies the identity's unverified record for email, if any. Possession
// of a code sent to the address proves control of it.
func markEmailVerified(ctx context.Context, identityID, email string, d Deps) error {
	emails, err := d.Store.ListEmails(ctx, identityID)
	if err != nil {
		return d.serverError(ctx, "list emails", identityID, err)
	}
	for _, rec := range emails {
		if rec.Email != email || rec.Verified() {
			continue
		}
		if err := d.Store.MarkEmailVerified(ctx, rec.ID, false); err != nil {
			return d.serverError(ctx, "mark email verified", identityID, err)
		}
	}
	return nil
}

func createFromPhone(ctx context.Context, phone credential.Phone, username string, d Deps) (*identity.Identity, bool, error) {
	ident, _, err := d.Store.CreateFromPhone(ctx, identity.CreatePhoneInput{
		Phone:    phone.E164,
		Region:   phone.Region,
		Username: username,
		Verified: true,
	})
	if err == nil {
		return ident, true, nil
	}
	if !errors.Is(err, identity.ErrConflict) {
		return nil, false, d.serverError(ctx, "create identity from phone", "", err)
	}
	// Lost a race for the phone, or the username is taken.
	ident, ferr := claimPhone(ctx, phone.E164, d)
	if ferr != nil {
		return nil, false, d.Errors.AccountExists
	}
	return ident, false, nil
}

// claimPhone returns the owner of the live record for phone. The caller has just validated
// a code sent to the number, so an unverified record is marked verified first.
func claimPhone(ctx context.Context, phone string, d Deps) (*identity.Identity, error) {
	ident, err := d.Store.FindByPhone(ctx, phone)
	if !errors.Is(err, identity.ErrNotFound) {
		return ident, err
	}
	rec, err := d.Store.FindPhoneRecord(ctx, phone)
	if err != nil {
		return nil, err
	}
	if err := d.Store.MarkPhoneVerified(ctx, rec.ID); err != nil {
		return nil, err
	}
	return d.Store.FindByID(ctx, rec.IdentityID)
}

func createFromEmail(ctx context.Context, email, username string, verified bool, d Deps) (*identity.Identity, bool, error) {
	ident, _, err := d.Store.CreateFromEmail(ctx, identity.CreateEmailInput{
		Email:    email,
		Username: username,
		Verified: verified,
	})
	if err == nil {
		return ident, true, nil
	}
	if !errors.Is(err, identity.ErrConflict) {
		return nil, false, d.serverError(ctx, "create identity from email", "", err)
	}
	if !verified {
		return nil, false, d.Errors.AccountExists
	}
	ident, ferr := d.Store.FindByEmail(ctx, email)
	if ferr != nil {
		return nil, false, d.Errors.AccountExists
	}
	return ident, false, nil
}

// completeProfile links the device, mints tokens and hydrates email and phone records.
func completeProfile(ctx context.Context, ident *identity.Identity, dev *DeviceInput, mode identity.RefreshTokenMode, d Deps) (*Profile, error) {
	profile := &Profile{Identity: ident}

	if dev != nil && dev.UniqueID != "" {
		linked, err := LinkDevice(ctx, ident, *dev, d)
		if err != nil {
			return nil, err
		}
		profile.Device = linked
	}

	pair, err := issueTokens(ctx, d, ident, mode)
	if err != nil {
		return nil, err
	}
	profile.Tokens = pair

	if profile.Emails, err = d.Store.ListEmails(ctx, ident.ID); err != nil {
		return nil, d.serverError(ctx, "hydrate emails", ident.ID, err)
	}
	if profile.Phones, err = d.Store.ListPhones(ctx, ident.ID); err != nil {
		return nil, d.serverError(ctx, "hydrate phones", ident.ID, err)
	}
	return profile, nil
}
