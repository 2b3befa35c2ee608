package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/identity"
)

// RunSignup classifies the payload and creates the account.
//
// OTP methods validate the code first; if the email or phone is already claimed, the
// existing owner becomes the login target. Magic-link signup fails with AccountExists on a
// claimed email, otherwise creates an unverified email and sends a confirmation link.
// New identities get a fresh refresh-token list; existing owners get one appended.
func RunSignup(ctx context.Context, in SignupInput, d Deps) (*Profile, error) {
	d = d.withDefaults()
	plan := ClassifySignup(in, d.DefaultRegion)
	method := plan.Method.String()
	username := strings.TrimSpace(in.Username)

	fail := func(reason string, err error) (*Profile, error) {
		d.MetricInc(d.Metrics.SignupFailure)
		d.EmitAudit(ctx, d.Events.SignupFailure, false, "", err, func() map[string]string {
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
	case SignupPhone:
		if !validateOTP(ctx, in.Code, plan.Phone.E164, d) {
			return fail("otp_invalid", d.Errors.OTPInvalid)
		}
		ident, err = claimPhone(ctx, plan.Phone.E164, d)
		switch {
		case err == nil:
		case errors.Is(err, identity.ErrNotFound):
			ident, created, err = createFromPhone(ctx, plan.Phone, username, d)
		default:
			err = d.serverError(ctx, "signup find phone", "", err)
		}

	case SignupEmailOTP:
		if !validateOTP(ctx, in.Code, plan.Email, d) {
			return fail("otp_invalid", d.Errors.OTPInvalid)
		}
		ident, err = d.Store.FindByEmail(ctx, plan.Email)
		switch {
		case err == nil:
			err = markEmailVerified(ctx, ident.ID, plan.Email, d)
		case errors.Is(err, identity.ErrNotFound):
			ident, created, err = createFromEmail(ctx, plan.Email, username, true, d)
		default:
			err = d.serverError(ctx, "signup find email", "", err)
		}

	case SignupMagicLink:
		_, err = d.Store.FindByEmail(ctx, plan.Email)
		switch {
		case err == nil:
			return fail("exists", d.Errors.AccountExists)
		case !errors.Is(err, identity.ErrNotFound):
			return fail("lookup", d.serverError(ctx, "signup find email", "", err))
		}
		ident, created, err = createMagicLink(ctx, plan.Email, username, d)

	default:
		return fail("no_method", d.Errors.Validation)
	}
	if err != nil {
		return fail("create", err)
	}

	if ident.Deleted() {
		return fail("inactive", d.Errors.AuthFailed)
	}
	if ident.Locked() {
		d.MetricInc(d.Metrics.AccountLocked)
		d.EmitAudit(ctx, d.Events.AccountLocked, false, ident.ID, d.Errors.AccountLocked, func() map[string]string {
			return map[string]string{"method": method}
		})
		return fail("locked", d.Errors.AccountLocked)
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

	d.MetricInc(d.Metrics.SignupSuccess)
	d.EmitAudit(ctx, d.Events.SignupSuccess, true, ident.ID, nil, func() map[string]string {
		if created {
			return map[string]string{"method": method, "created": "true"}
		}
		return map[string]string{"method": method, "created": "false"}
	})
	return profile, nil
}

func createMagicLink(ctx context.Context, email, username string, d Deps) (*identity.Identity, bool, error) {
	ident, rec, err := d.Store.CreateFromEmail(ctx, identity.CreateEmailInput{
		Email:    email,
		Username: username,
	})
	if err != nil {
		if errors.Is(err, identity.ErrConflict) {
			return nil, false, d.Errors.AccountExists
		}
		return nil, false, d.serverError(ctx, "create identity from email", "", err)
	}

	token, err := d.Tokens.CreateAction(ActionEmailConfirm, ident.ID, rec.ID, d.ActionTTL)
	if err != nil {
		d.Warn("goIdentity: confirmation token failed: %v", err)
		return ident, true, nil
	}
	if d.Messenger != nil {
		if err := d.Messenger.SendConfirmation(ctx, email, d.ConfirmURL+token); err != nil {
			d.Warn("goIdentity: confirmation send failed: %v", err)
		}
	}
	return ident, true, nil
}
