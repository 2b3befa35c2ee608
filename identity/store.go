package identity

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by lookups that match no live record.
	ErrNotFound = errors.New("identity: not found")
	// ErrConflict is returned when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("identity: conflict")
)

// CreateEmailInput is the input for [Store.CreateFromEmail].
type CreateEmailInput struct {
	Email    string
	Username string
	Verified bool
}

// CreatePhoneInput is the input for [Store.CreateFromPhone].
type CreatePhoneInput struct {
	Phone    string
	Region   string
	Username string
	Verified bool
}

// Store is the identity store the engine authenticates against. Implementations must be safe
// for concurrent use and must rely on uniqueness constraints (live email, live phone, live
// unique device id) rather than in-process locks for correctness across instances.
//
// Lookups return [ErrNotFound] when nothing matches. Soft-deleted records never match.
type Store interface {
	FindByID(ctx context.Context, identityID string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByPhone(ctx context.Context, phone string) (*Identity, error)
	FindByUsername(ctx context.Context, username string) (*Identity, error)

	CreateFromEmail(ctx context.Context, in CreateEmailInput) (*Identity, *EmailRecord, error)
	CreateFromPhone(ctx context.Context, in CreatePhoneInput) (*Identity, *PhoneRecord, error)

	UpdateRefreshTokens(ctx context.Context, identityID string, tokens []string, mode RefreshTokenMode) error

	ListEmails(ctx context.Context, identityID string) ([]EmailRecord, error)
	ListPhones(ctx context.Context, identityID string) ([]PhoneRecord, error)
	ClearDefaultFlag(ctx context.Context, identityID string, kind RecordKind) error
	MarkEmailVerified(ctx context.Context, emailID string, makeDefault bool) error
	GetVerifiedEmail(ctx context.Context, identityID string) (*EmailRecord, error)
	GetVerifiedPhone(ctx context.Context, identityID string) (*PhoneRecord, error)
	// FindPhoneRecord returns the live record holding phone, verified or not.
	FindPhoneRecord(ctx context.Context, phone string) (*PhoneRecord, error)
	MarkPhoneVerified(ctx context.Context, phoneID string) error

	FindDevice(ctx context.Context, uniqueDeviceID string) (*Device, error)
	GetConnectedDevice(ctx context.Context, identityID, uniqueDeviceID string) (*Device, error)
	CreateDevice(ctx context.Context, device Device) (*Device, error)
	SoftDeleteDevice(ctx context.Context, deviceID string) error
	SetDevicePublicKey(ctx context.Context, deviceID, publicKey string) error
	HasVerifiedDevice(ctx context.Context, identityID string) (bool, error)

	HasSecuredAccount(ctx context.Context, identityID string) (bool, error)
}
