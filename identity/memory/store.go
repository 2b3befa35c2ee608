// Package memory provides a concurrency-safe in-memory [identity.Store].
//
// It enforces the same uniqueness rules a relational store would (one live row per email,
// phone and unique device id) so engine behavior under conflicts can be tested without a
// database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/identity"
	"github.com/google/uuid"
)

// Store is an in-memory identity store.
type Store struct {
	mu         sync.Mutex
	identities map[string]*identity.Identity
	emails     map[string]*identity.EmailRecord
	phones     map[string]*identity.PhoneRecord
	devices    map[string]*identity.Device
	now        func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		identities: map[string]*identity.Identity{},
		emails:     map[string]*identity.EmailRecord{},
		phones:     map[string]*identity.PhoneRecord{},
		devices:    map[string]*identity.Device{},
		now:        time.Now,
	}
}

// PutIdentity inserts or replaces an identity. Intended for seeding.
func (s *Store) PutIdentity(in identity.Identity) *identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now().UTC()
	}
	cp := cloneIdentity(&in)
	s.identities[cp.ID] = cp
	return cloneIdentity(cp)
}

// PutEmail inserts an email record. Intended for seeding.
func (s *Store) PutEmail(rec identity.EmailRecord) *identity.EmailRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	rec.Email = strings.ToLower(strings.TrimSpace(rec.Email))
	cp := rec
	s.emails[cp.ID] = &cp
	out := cp
	return &out
}

// PutPhone inserts a phone record. Intended for seeding.
func (s *Store) PutPhone(rec identity.PhoneRecord) *identity.PhoneRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	cp := rec
	s.phones[cp.ID] = &cp
	out := cp
	return &out
}

// Devices returns every device row, deleted ones included, ordered by creation.
func (s *Store) Devices() []identity.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]identity.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// IdentityCount returns the number of stored identities.
func (s *Store) IdentityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.identities)
}

func (s *Store) FindByID(ctx context.Context, identityID string) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.identities[identityID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return cloneIdentity(id), nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.emails {
		if rec.DeletedAt == nil && rec.Email == email {
			if id, ok := s.identities[rec.IdentityID]; ok {
				return cloneIdentity(id), nil
			}
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) FindByPhone(ctx context.Context, phone string) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.phones {
		if rec.DeletedAt == nil && rec.VerifiedAt != nil && rec.Phone == phone {
			if id, ok := s.identities[rec.IdentityID]; ok {
				return cloneIdentity(id), nil
			}
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, identity.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.identities {
		if strings.ToLower(id.Username) == username {
			return cloneIdentity(id), nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) CreateFromEmail(ctx context.Context, in identity.CreateEmailInput) (*identity.Identity, *identity.EmailRecord, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.emails {
		if rec.DeletedAt == nil && rec.Email == email {
			return nil, nil, identity.ErrConflict
		}
	}
	if err := s.usernameTakenLocked(in.Username); err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	id := &identity.Identity{
		ID:        uuid.NewString(),
		Username:  in.Username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec := &identity.EmailRecord{
		ID:         uuid.NewString(),
		IdentityID: id.ID,
		Email:      email,
		IsDefault:  true,
		CreatedAt:  now,
	}
	if in.Verified {
		rec.VerifiedAt = &now
	}
	s.identities[id.ID] = id
	s.emails[rec.ID] = rec

	out := *rec
	return cloneIdentity(id), &out, nil
}

func (s *Store) CreateFromPhone(ctx context.Context, in identity.CreatePhoneInput) (*identity.Identity, *identity.PhoneRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.phones {
		if rec.DeletedAt == nil && rec.Phone == in.Phone {
			return nil, nil, identity.ErrConflict
		}
	}
	if err := s.usernameTakenLocked(in.Username); err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	id := &identity.Identity{
		ID:        uuid.NewString(),
		Username:  in.Username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec := &identity.PhoneRecord{
		ID:         uuid.NewString(),
		IdentityID: id.ID,
		Phone:      in.Phone,
		Region:     in.Region,
		IsDefault:  true,
		CreatedAt:  now,
	}
	if in.Verified {
		rec.VerifiedAt = &now
	}
	s.identities[id.ID] = id
	s.phones[rec.ID] = rec

	out := *rec
	return cloneIdentity(id), &out, nil
}

func (s *Store) usernameTakenLocked(username string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil
	}
	for _, id := range s.identities {
		if strings.ToLower(id.Username) == username {
			return identity.ErrConflict
		}
	}
	return nil
}

func (s *Store) UpdateRefreshTokens(ctx context.Context, identityID string, tokens []string, mode identity.RefreshTokenMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.identities[identityID]
	if !ok {
		return identity.ErrNotFound
	}
	switch mode {
	case identity.RefreshAppend:
		id.RefreshTokens = append(id.RefreshTokens, tokens...)
	default:
		id.RefreshTokens = append([]string(nil), tokens...)
	}
	id.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ListEmails(ctx context.Context, identityID string) ([]identity.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]identity.EmailRecord, 0)
	for _, rec := range s.emails {
		if rec.IdentityID == identityID && rec.DeletedAt == nil {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListPhones(ctx context.Context, identityID string) ([]identity.PhoneRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]identity.PhoneRecord, 0)
	for _, rec := range s.phones {
		if rec.IdentityID == identityID && rec.DeletedAt == nil {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ClearDefaultFlag(ctx context.Context, identityID string, kind identity.RecordKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case identity.KindEmail:
		for _, rec := range s.emails {
			if rec.IdentityID == identityID {
				rec.IsDefault = false
			}
		}
	case identity.KindPhone:
		for _, rec := range s.phones {
			if rec.IdentityID == identityID {
				rec.IsDefault = false
			}
		}
	}
	return nil
}

func (s *Store) MarkEmailVerified(ctx context.Context, emailID string, makeDefault bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.emails[emailID]
	if !ok || rec.DeletedAt != nil {
		return identity.ErrNotFound
	}
	if rec.VerifiedAt == nil {
		now := s.now().UTC()
		rec.VerifiedAt = &now
	}
	if makeDefault {
		rec.IsDefault = true
	}
	return nil
}

func (s *Store) GetVerifiedEmail(ctx context.Context, identityID string) (*identity.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *identity.EmailRecord
	for _, rec := range s.emails {
		if rec.IdentityID != identityID || rec.DeletedAt != nil || rec.VerifiedAt == nil {
			continue
		}
		if best == nil || rec.VerifiedAt.After(*best.VerifiedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, identity.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (s *Store) GetVerifiedPhone(ctx context.Context, identityID string) (*identity.PhoneRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *identity.PhoneRecord
	for _, rec := range s.phones {
		if rec.IdentityID != identityID || rec.DeletedAt != nil || rec.VerifiedAt == nil {
			continue
		}
		if best == nil || rec.VerifiedAt.After(*best.VerifiedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, identity.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (s *Store) FindPhoneRecord(ctx context.Context, phone string) (*identity.PhoneRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.phones {
		if rec.DeletedAt == nil && rec.Phone == phone {
			out := *rec
			return &out, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) MarkPhoneVerified(ctx context.Context, phoneID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.phones[phoneID]
	if !ok || rec.DeletedAt != nil {
		return identity.ErrNotFound
	}
	if rec.VerifiedAt == nil {
		now := s.now().UTC()
		rec.VerifiedAt = &now
	}
	return nil
}

func (s *Store) FindDevice(ctx context.Context, uniqueDeviceID string) (*identity.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.devices {
		if d.DeletedAt == nil && d.UniqueDeviceID == uniqueDeviceID {
			out := *d
			return &out, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) GetConnectedDevice(ctx context.Context, identityID, uniqueDeviceID string) (*identity.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.devices {
		if d.DeletedAt == nil && d.IdentityID == identityID && d.UniqueDeviceID == uniqueDeviceID {
			out := *d
			return &out, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) CreateDevice(ctx context.Context, device identity.Device) (*identity.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.devices {
		if d.DeletedAt == nil && d.UniqueDeviceID == device.UniqueDeviceID {
			return nil, identity.ErrConflict
		}
	}
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = s.now().UTC()
	}
	cp := device
	s.devices[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) SoftDeleteDevice(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return identity.ErrNotFound
	}
	if d.DeletedAt == nil {
		now := s.now().UTC()
		d.DeletedAt = &now
	}
	return nil
}

func (s *Store) SetDevicePublicKey(ctx context.Context, deviceID, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok || d.DeletedAt != nil {
		return identity.ErrNotFound
	}
	d.PublicKey = publicKey
	return nil
}

func (s *Store) HasVerifiedDevice(ctx context.Context, identityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.devices {
		if d.IdentityID == identityID && d.DeletedAt == nil && d.VerifiedAt != nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) HasSecuredAccount(ctx context.Context, identityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.identities[identityID]
	if !ok {
		return false, identity.ErrNotFound
	}
	return id.PasswordHash != "", nil
}

func cloneIdentity(in *identity.Identity) *identity.Identity {
	out := *in
	out.Roles = append([]string(nil), in.Roles...)
	out.Restrictions = append([]string(nil), in.Restrictions...)
	out.RefreshTokens = append([]string(nil), in.RefreshTokens...)
	if in.DeletedAt != nil {
		t := *in.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

var _ identity.Store = (*Store)(nil)
