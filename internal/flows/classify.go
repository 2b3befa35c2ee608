package flows

import (
	"strings"

	"github.com/MrEthical07/goIdentity/internal/credential"
)

// LoginMethod is the authentication method a login payload satisfies.
type LoginMethod int

const (
	LoginNone LoginMethod = iota
	LoginBiometric
	LoginPhone
	LoginEmailPassword
	LoginEmailOTP
	LoginUsername
)

func (m LoginMethod) String() string {
	switch m {
	case LoginBiometric:
		return "biometric"
	case LoginPhone:
		return "phone_otp"
	case LoginEmailPassword:
		return "email_password"
	case LoginEmailOTP:
		return "email_otp"
	case LoginUsername:
		return "username_password"
	default:
		return "none"
	}
}

// LoginPlan is the classified login payload.
type LoginPlan struct {
	Method LoginMethod
	Email  string
	Phone  credential.Phone
}

// ClassifyLogin decides which method a payload satisfies. First match wins, in this order:
//
//  1. biometric: a signature is present, or an identity id without a credential value
//  2. phone: the value is a possible phone number for the region and a code is present
//  3. email: the value is an email and a password (preferred) or a code is present
//  4. username: any other non-empty value with a password
//
// A phone-shaped value with a password and no code is treated as a username.
func ClassifyLogin(in LoginInput, defaultRegion string) LoginPlan {
	value := strings.TrimSpace(in.Value)
	region := in.Region
	if region == "" {
		region = defaultRegion
	}

	if in.Signature != "" || (in.IdentityID != "" && value == "") {
		return LoginPlan{Method: LoginBiometric}
	}
	if value == "" {
		return LoginPlan{}
	}

	if in.Code != "" {
		if p, ok := otpPhone(value, region); ok {
			return LoginPlan{Method: LoginPhone, Phone: p}
		}
	}

	if email, ok := credential.ParseEmail(value); ok {
		switch {
		case in.Password != "":
			return LoginPlan{Method: LoginEmailPassword, Email: email}
		case in.Code != "":
			return LoginPlan{Method: LoginEmailOTP, Email: email}
		default:
			return LoginPlan{}
		}
	}

	if in.Password != "" {
		return LoginPlan{Method: LoginUsername}
	}
	return LoginPlan{}
}

// SignupMethod is the account-creation method a signup payload satisfies.
type SignupMethod int

const (
	SignupNone SignupMethod = iota
	SignupPhone
	SignupEmailOTP
	SignupMagicLink
)

func (m SignupMethod) String() string {
	switch m {
	case SignupPhone:
		return "phone_otp"
	case SignupEmailOTP:
		return "email_otp"
	case SignupMagicLink:
		return "email_magic_link"
	default:
		return "none"
	}
}

// SignupPlan is the classified signup payload.
type SignupPlan struct {
	Method SignupMethod
	Email  string
	Phone  credential.Phone
}

// ClassifySignup decides which account-creation method a payload satisfies. Phone signup
// needs an SMS-capable number and a code; email signup with a code uses the OTP path, without
// one the magic-link path.
func ClassifySignup(in SignupInput, defaultRegion string) SignupPlan {
	value := strings.TrimSpace(in.Value)
	if value == "" {
		return SignupPlan{}
	}
	region := in.Region
	if region == "" {
		region = defaultRegion
	}

	if email, ok := credential.ParseEmail(value); ok {
		if in.Code != "" {
			return SignupPlan{Method: SignupEmailOTP, Email: email}
		}
		return SignupPlan{Method: SignupMagicLink, Email: email}
	}

	if in.Code == "" {
		return SignupPlan{}
	}
	if p, ok := credential.ParsePhone(value, region); ok && p.Mobile {
		return SignupPlan{Method: SignupPhone, Phone: p}
	}
	return SignupPlan{}
}

// otpPhone is the phone rule shared by phone login and SMS code issuance: any number that is
// possible in region. Signup is stricter and requires a valid mobile number.
func otpPhone(value, region string) (credential.Phone, bool) {
	return credential.ParsePhone(value, region)
}
