package flows

import "context"

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps.withDefaults()}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Store != nil && s.deps.OTP != nil && s.deps.Tokens != nil && s.deps.Passwords != nil
}

func (s Service) Login(ctx context.Context, in LoginInput) (*Profile, error) {
	return RunLogin(ctx, in, s.deps)
}

func (s Service) Signup(ctx context.Context, in SignupInput) (*Profile, error) {
	return RunSignup(ctx, in, s.deps)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*RefreshOutput, error) {
	return RunRefresh(ctx, refreshToken, s.deps)
}

func (s Service) Logout(ctx context.Context, refreshToken string) (bool, error) {
	return RunLogout(ctx, refreshToken, s.deps)
}

func (s Service) SendOTP(ctx context.Context, in OTPInput) (*OTPOutput, error) {
	return RunSendOTP(ctx, in, s.deps)
}

func (s Service) Lookup(ctx context.Context, value, region string) (*LookupOutput, error) {
	return RunLookup(ctx, value, region, s.deps)
}

func (s Service) ConfirmEmail(ctx context.Context, token string) (string, error) {
	return RunConfirmEmail(ctx, token, s.deps)
}

func (s Service) RejectDevice(ctx context.Context, token string) (string, error) {
	return RunRejectDevice(ctx, token, s.deps)
}
