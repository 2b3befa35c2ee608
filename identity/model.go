package identity

import "time"

// Identity is an account: the subject of authentication.
type Identity struct {
	ID            string
	Username      string
	PasswordHash  string
	Roles         []string
	Restrictions  []string
	RefreshTokens []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// Deleted reports whether the identity carries a delete marker.
func (i *Identity) Deleted() bool {
	return i != nil && i.DeletedAt != nil
}

// Locked reports whether the identity must reject all login attempts.
// A single restriction entry is informational; more than one locks the account.
func (i *Identity) Locked() bool {
	return i != nil && len(i.Restrictions) > 1
}

// HasPassword reports whether a password hash is on file.
func (i *Identity) HasPassword() bool {
	return i != nil && i.PasswordHash != ""
}

// EmailRecord belongs to exactly one identity.
type EmailRecord struct {
	ID         string
	IdentityID string
	Email      string
	IsDefault  bool
	VerifiedAt *time.Time
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// Verified reports whether the email has been confirmed.
func (r *EmailRecord) Verified() bool {
	return r != nil && r.VerifiedAt != nil
}

// PhoneRecord belongs to exactly one identity. Phone is stored in E.164 form.
type PhoneRecord struct {
	ID         string
	IdentityID string
	Phone      string
	Region     string
	IsDefault  bool
	VerifiedAt *time.Time
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// Verified reports whether the phone has been confirmed.
func (r *PhoneRecord) Verified() bool {
	return r != nil && r.VerifiedAt != nil
}

// Device is one linkage of a client-generated device id to an identity. Ownership transfer
// soft-deletes the old row and creates a new one.
type Device struct {
	ID             string
	IdentityID     string
	UniqueDeviceID string
	Name           string
	Platform       string
	PublicKey      string
	VerifiedAt     *time.Time
	CreatedAt      time.Time
	DeletedAt      *time.Time
}

// Verified reports whether the device was linked through a successful authentication.
func (d *Device) Verified() bool {
	return d != nil && d.VerifiedAt != nil
}

// RecordKind selects email or phone records in store operations shared by both.
type RecordKind uint8

const (
	KindEmail RecordKind = iota + 1
	KindPhone
)

func (k RecordKind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	default:
		return "unknown"
	}
}

// RefreshTokenMode distinguishes replacing the whole refresh-token list from appending to it.
type RefreshTokenMode uint8

const (
	// RefreshInitialize replaces the stored list with the supplied tokens.
	RefreshInitialize RefreshTokenMode = iota
	// RefreshAppend appends the supplied tokens to the stored list.
	RefreshAppend
)
