package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/goIdentity/identity"
	"github.com/MrEthical07/goIdentity/internal/credential"
)

// RunSendOTP issues a code for an email or for any phone number phone login accepts, and
// delivers it.
func RunSendOTP(ctx context.Context, in OTPInput, d Deps) (*OTPOutput, error) {
	d = d.withDefaults()

	region := in.Region
	if region == "" {
		region = d.DefaultRegion
	}

	var (
		channel identity.Channel
		target  string
	)
	switch identity.Channel(strings.ToLower(strings.TrimSpace(in.Channel))) {
	case identity.ChannelEmail:
		email, ok := credential.ParseEmail(in.Target)
		if !ok {
			return nil, d.Errors.Validation
		}
		channel, target = identity.ChannelEmail, email
	case identity.ChannelSMS:
		p, ok := otpPhone(in.Target, region)
		if !ok {
			return nil, d.Errors.Validation
		}
		channel, target = identity.ChannelSMS, p.E164
	case "":
		if email, ok := credential.ParseEmail(in.Target); ok {
			channel, target = identity.ChannelEmail, email
		} else if p, ok := otpPhone(in.Target, region); ok {
			channel, target = identity.ChannelSMS, p.E164
		} else {
			return nil, d.Errors.Validation
		}
	default:
		return nil, d.Errors.Validation
	}

	code := d.OTP.Issue(ctx, d.OTP.TargetDigest(target))
	if code == "" {
		d.MetricInc(d.Metrics.OTPIssueFailed)
		return nil, d.serverError(ctx, "otp issue", "", errOTPIssue)
	}
	d.MetricInc(d.Metrics.OTPIssued)

	if d.Messenger != nil {
		if err := d.Messenger.SendOTP(ctx, channel, target, code); err != nil {
			return nil, d.serverError(ctx, "otp deliver", "", err)
		}
	}

	d.EmitAudit(ctx, d.Events.OTPSent, true, "", nil, func() map[string]string {
		return map[string]string{"channel": string(channel)}
	})

	out := &OTPOutput{Channel: channel, Destination: target, ExpiresIn: d.OTP.TTL()}
	if d.ExposeOTP() {
		out.Code = code
	}
	return out, nil
}
