package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/internal"
)

const (
	// ActionDeviceReject is the action-token purpose of a new-device rejection link.
	ActionDeviceReject = "device-reject"
	// ActionEmailConfirm is the action-token purpose of a magic-link confirmation.
	ActionEmailConfirm = "email-confirm"

	alertTimeout = 10 * time.Second
)

// LinkDevice attaches a device to ident. A live row already owned by ident is returned,
// taking the supplied public key when one is given. A live row owned by another identity is soft-deleted and a new row is created for
// ident. When ident already had a verified device before this call, a new-device alert is
// scheduled in the background.
func LinkDevice(ctx context.Context, ident *identity.Identity, in DeviceInput, d Deps) (*identity.Device, error) {
	d = d.withDefaults()
	if in.UniqueID == "" {
		return nil, d.Errors.Validation
	}

	hadVerified, err := d.Store.HasVerifiedDevice(ctx, ident.ID)
	if err != nil {
		return nil, d.serverError(ctx, "device verified lookup", ident.ID, err)
	}

	dev, created, err := findOrCreateDevice(ctx, ident, in, d, true)
	if err != nil {
		return nil, d.serverError(ctx, "device link", ident.ID, err)
	}
	if !created {
		return dev, nil
	}

	d.MetricInc(d.Metrics.DeviceLinked)
	d.EmitAudit(ctx, d.Events.DeviceLinked, true, ident.ID, nil, func() map[string]string {
		return map[string]string{"device": internal.DeviceFingerprint(in.UniqueID), "platform": in.Platform}
	})

	if hadVerified && d.AlertsEnabled && d.Messenger != nil {
		scheduleDeviceAlert(ctx, ident.ID, *dev, d)
	}
	return dev, nil
}

func findOrCreateDevice(ctx context.Context, ident *identity.Identity, in DeviceInput, d Deps, retry bool) (*identity.Device, bool, error) {
	existing, err := d.Store.FindDevice(ctx, in.UniqueID)
	switch {
	case err == nil && existing.IdentityID == ident.ID:
		if in.PublicKey != "" && in.PublicKey != existing.PublicKey {
			if err := d.Store.SetDevicePublicKey(ctx, existing.ID, in.PublicKey); err != nil {
				return nil, false, fmt.Errorf("set device public key: %w", err)
			}
			existing.PublicKey = in.PublicKey
		}
		return existing, false, nil
	case err == nil:
		if err := d.Store.SoftDeleteDevice(ctx, existing.ID); err != nil {
			return nil, false, fmt.Errorf("soft delete device: %w", err)
		}
		d.MetricInc(d.Metrics.DeviceTransferred)
		d.EmitAudit(ctx, d.Events.DeviceTransferred, true, ident.ID, nil, func() map[string]string {
			return map[string]string{
				"device":         internal.DeviceFingerprint(in.UniqueID),
				"previous_owner": existing.IdentityID,
			}
		})
	case !errors.Is(err, identity.ErrNotFound):
		return nil, false, fmt.Errorf("find device: %w", err)
	}

	now := d.Now().UTC()
	dev, err := d.Store.CreateDevice(ctx, identity.Device{
		IdentityID:     ident.ID,
		UniqueDeviceID: in.UniqueID,
		Name:           in.Name,
		Platform:       in.Platform,
		PublicKey:      in.PublicKey,
		VerifiedAt:     &now,
	})
	if errors.Is(err, identity.ErrConflict) && retry {
		// A concurrent link won the unique id; settle on whatever is there now.
		return findOrCreateDevice(ctx, ident, in, d, false)
	}
	if err != nil {
		return nil, false, fmt.Errorf("create device: %w", err)
	}
	return dev, true, nil
}

func scheduleDeviceAlert(ctx context.Context, identityID string, dev identity.Device, d Deps) {
	ip := d.ClientIPFromContext(ctx)
	ua := d.UserAgentFromContext(ctx)
	occurred := d.Now().UTC()

	d.Go(func(bg context.Context) {
		actx, cancel := context.WithTimeout(bg, alertTimeout)
		defer cancel()

		if err := sendDeviceAlert(actx, identityID, dev, ip, ua, occurred, d); err != nil {
			d.Warn("goIdentity: device alert failed: %v", err)
			d.MetricInc(d.Metrics.DeviceAlertFailed)
			d.EmitAudit(actx, d.Events.DeviceAlertFailed, false, identityID, err, func() map[string]string {
				return map[string]string{"device": internal.DeviceFingerprint(dev.UniqueDeviceID)}
			})
			return
		}
		d.MetricInc(d.Metrics.DeviceAlertSent)
		d.EmitAudit(actx, d.Events.DeviceAlertSent, true, identityID, nil, nil)
	})
}

func sendDeviceAlert(ctx context.Context, identityID string, dev identity.Device, ip, ua string, occurred time.Time, d Deps) error {
	alert := identity.AccountAlert{
		IdentityID: identityID,
		DeviceName: dev.Name,
		Platform:   dev.Platform,
		IP:         ip,
		UserAgent:  ua,
		OccurredAt: occurred,
	}

	email, err := d.Store.GetVerifiedEmail(ctx, identityID)
	switch {
	case err == nil:
		alert.Channel = identity.ChannelEmail
		alert.Destination = email.Email
	case errors.Is(err, identity.ErrNotFound):
		phone, perr := d.Store.GetVerifiedPhone(ctx, identityID)
		if perr != nil {
			return fmt.Errorf("no verified channel: %w", perr)
		}
		alert.Channel = identity.ChannelSMS
		alert.Destination = phone.Phone
	default:
		return fmt.Errorf("verified email lookup: %w", err)
	}

	token, err := d.Tokens.CreateAction(ActionDeviceReject, identityID, dev.ID, d.ActionTTL)
	if err != nil {
		return fmt.Errorf("reject token: %w", err)
	}
	alert.RejectLink = d.DeviceRejectURL + token

	return d.Messenger.SendAccountAlert(ctx, alert)
}
