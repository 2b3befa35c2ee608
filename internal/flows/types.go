package flows

import (
	"time"

	"github.com/MrEthical07/goIdentity/identity"
)

// DeviceInput describes the device a request comes from.
type DeviceInput struct {
	UniqueID  string
	Name      string
	Platform  string
	PublicKey string
}

// LoginInput is the flow-local login payload.
type LoginInput struct {
	Value    string
	Region   string
	Password string
	Code     string

	// Biometric fields.
	IdentityID string
	Signature  string
	Payload    string

	Device *DeviceInput
}

// SignupInput is the flow-local signup payload.
type SignupInput struct {
	Value    string
	Region   string
	Code     string
	Username string
	Device   *DeviceInput
}

// TokenPair is a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Profile is the composed result of a successful login or signup.
type Profile struct {
	Identity *identity.Identity
	Emails   []identity.EmailRecord
	Phones   []identity.PhoneRecord
	Device   *identity.Device
	Method   string
	Created  bool
	Tokens   TokenPair
}

// RefreshOutput is the result of a refresh rotation.
type RefreshOutput struct {
	IdentityID string
	Tokens     TokenPair
}

// OTPInput asks for a code to be sent to Target over Channel ("email" or "sms"; empty infers
// from the target).
type OTPInput struct {
	Target  string
	Channel string
	Region  string
}

// OTPOutput reports where a code went. Code is set only when the engine allows exposure.
type OTPOutput struct {
	Channel     identity.Channel
	Destination string
	ExpiresIn   time.Duration
	Code        string
}

// LookupOutput reports whether a credential value belongs to an account.
type LookupOutput struct {
	Method  string
	Exists  bool
	Secured bool
}
