package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/internal/credential"
)

// RunLookup reports whether value names an account and whether that account has a password.
func RunLookup(ctx context.Context, value, region string, d Deps) (*LookupOutput, error) {
	d = d.withDefaults()
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, d.Errors.Validation
	}
	if region == "" {
		region = d.DefaultRegion
	}

	var (
		out   LookupOutput
		ident *identity.Identity
		err   error
	)
	if email, ok := credential.ParseEmail(value); ok {
		out.Method = "email"
		ident, err = d.Store.FindByEmail(ctx, email)
	} else if p, ok := credential.ParsePhone(value, region); ok {
		out.Method = "phone"
		ident, err = d.Store.FindByPhone(ctx, p.E164)
	} else {
		out.Method = "username"
		ident, err = d.Store.FindByUsername(ctx, value)
	}

	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return &out, nil
		}
		return nil, d.serverError(ctx, "lookup", "", err)
	}
	if ident.Deleted() {
		return &out, nil
	}

	out.Exists = true
	secured, err := d.Store.HasSecuredAccount(ctx, ident.ID)
	if err != nil {
		return nil, d.serverError(ctx, "lookup secured", ident.ID, err)
	}
	out.Secured = secured
	return &out, nil
}
