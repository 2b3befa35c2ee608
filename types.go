package goIdentity

import "time"

// DeviceInfo describes the client device a request comes from. UniqueID is generated and
// persisted by the client.
type DeviceInfo struct {
	UniqueID  string `json:"uniqueId"`
	Name      string `json:"name,omitempty"`
	Platform  string `json:"platform,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
}

// LoginRequest is the login payload. Which fields are set selects the method: a signature
// selects biometric, a code selects phone or email OTP, a password selects email or username.
type LoginRequest struct {
	Value    string `json:"value,omitempty"`
	Region   string `json:"region,omitempty"`
	Password string `json:"password,omitempty"`
	Code     string `json:"code,omitempty"`

	IdentityID string `json:"identityId,omitempty"`
	Signature  string `json:"signature,omitempty"`
	Payload    string `json:"payload,omitempty"`

	Device *DeviceInfo `json:"device,omitempty"`
}

// SignupRequest is the signup payload. An email without a code starts a magic-link signup.
type SignupRequest struct {
	Value    string      `json:"value"`
	Region   string      `json:"region,omitempty"`
	Code     string      `json:"code,omitempty"`
	Username string      `json:"username,omitempty"`
	Device   *DeviceInfo `json:"device,omitempty"`
}

// ContactInfo is one email address or phone number on a profile.
type ContactInfo struct {
	Value     string `json:"value"`
	IsDefault bool   `json:"isDefault"`
	Verified  bool   `json:"verified"`
}

// DeviceState is the device linked by a login or signup.
type DeviceState struct {
	ID         string     `json:"id"`
	UniqueID   string     `json:"uniqueId"`
	Name       string     `json:"name,omitempty"`
	Platform   string     `json:"platform,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

// ProfileState is returned by a successful login or signup.
type ProfileState struct {
	IdentityID   string        `json:"identityId"`
	Username     string        `json:"username,omitempty"`
	Roles        []string      `json:"roles,omitempty"`
	Restrictions []string      `json:"restrictions,omitempty"`
	Emails       []ContactInfo `json:"emails"`
	Phones       []ContactInfo `json:"phones"`
	Device       *DeviceState  `json:"device,omitempty"`
	Method       string        `json:"method"`
	Created      bool          `json:"created"`

	AccessToken      string    `json:"accessToken,omitempty"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt,omitzero"`
	RefreshToken     string    `json:"refreshToken,omitempty"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt,omitzero"`
}

// RefreshResult is a rotated token pair.
type RefreshResult struct {
	IdentityID       string    `json:"-"`
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// LogoutResult reports whether a refresh token was removed.
type LogoutResult struct {
	LoggedOut bool `json:"loggedOut"`
}

// OTPRequest asks for a one-time code. Channel is "email", "sms" or empty to infer it.
type OTPRequest struct {
	Target  string `json:"target"`
	Channel string `json:"channel,omitempty"`
	Region  string `json:"region,omitempty"`
}

// OTPResult reports where a code went. Code is only set outside production.
type OTPResult struct {
	Channel     string        `json:"channel"`
	Destination string        `json:"destination"`
	ExpiresIn   time.Duration `json:"expiresIn"`
	Code        string        `json:"code,omitempty"`
}

// LookupResult reports whether a credential value belongs to an account.
type LookupResult struct {
	Method  string `json:"method"`
	Exists  bool   `json:"exists"`
	Secured bool   `json:"secured"`
}

// KeyInput carries the request attributes rate-limit key strategies use.
type KeyInput struct {
	SubjectID  string
	Credential string
	Region     string
	DeviceID   string
	IP         string
}

// RatePolicy is one named limit.
type RatePolicy struct {
	Name   string
	Limit  int
	Window time.Duration
	// LoginKeyed reports the credential-first key strategy.
	LoginKeyed bool
}

// RateDecision is the outcome of one rate-limit hit.
type RateDecision struct {
	Policy     string
	Key        string
	Allowed    bool
	Bypassed   bool
	Count      int
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}
