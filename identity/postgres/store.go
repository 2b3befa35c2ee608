// Package postgres is a PostgreSQL [identity.Store] over database/sql and the pgx driver.
//
// Uniqueness of live emails, phones, usernames and unique device ids is enforced by
// partial unique indexes, so concurrent engine instances cannot create duplicate rows.
// Schema changes ship as embedded goose migrations; call [Migrate] before use.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/identity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// Store implements identity.Store.
type Store struct {
	db *sql.DB
}

// Open connects to databaseURL with the pgx driver and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const identityColumns = `i.id, i.username, i.password_hash, i.roles, i.restrictions, i.refresh_tokens,
	i.created_at, i.updated_at, i.deleted_at`

func (s *Store) FindByID(ctx context.Context, identityID string) (*identity.Identity, error) {
	if !validID(identityID) {
		return nil, identity.ErrNotFound
	}
	return s.queryIdentity(ctx, `SELECT `+identityColumns+` FROM identities i WHERE i.id = $1`, identityID)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	return s.queryIdentity(ctx, `
		SELECT `+identityColumns+`
		FROM identities i
		JOIN emails e ON e.identity_id = i.id
		WHERE e.email = $1 AND e.deleted_at IS NULL
	`, normalizeEmail(email))
}

func (s *Store) FindByPhone(ctx context.Context, phone string) (*identity.Identity, error) {
	return s.queryIdentity(ctx, `
		SELECT `+identityColumns+`
		FROM identities i
		JOIN phones p ON p.identity_id = i.id
		WHERE p.phone = $1 AND p.deleted_at IS NULL AND p.verified_at IS NOT NULL
	`, phone)
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, identity.ErrNotFound
	}
	return s.queryIdentity(ctx, `
		SELECT `+identityColumns+`
		FROM identities i
		WHERE lower(i.username) = lower($1)
	`, username)
}

func (s *Store) CreateFromEmail(ctx context.Context, in identity.CreateEmailInput) (*identity.Identity, *identity.EmailRecord, error) {
	now := time.Now().UTC()
	id := newIdentity(in.Username, now)
	rec := &identity.EmailRecord{
		ID:         newID(),
		IdentityID: id.ID,
		Email:      normalizeEmail(in.Email),
		IsDefault:  true,
		CreatedAt:  now,
	}
	if in.Verified {
		rec.VerifiedAt = &now
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertIdentity(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO emails (id, identity_id, email, is_default, verified_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.ID, rec.IdentityID, rec.Email, rec.IsDefault, rec.VerifiedAt, rec.CreatedAt)
		return mapWriteError("insert email", err)
	})
	if err != nil {
		return nil, nil, err
	}
	return id, rec, nil
}

func (s *Store) CreateFromPhone(ctx context.Context, in identity.CreatePhoneInput) (*identity.Identity, *identity.PhoneRecord, error) {
	now := time.Now().UTC()
	id := newIdentity(in.Username, now)
	rec := &identity.PhoneRecord{
		ID:         newID(),
		IdentityID: id.ID,
		Phone:      in.Phone,
		Region:     in.Region,
		IsDefault:  true,
		CreatedAt:  now,
	}
	if in.Verified {
		rec.VerifiedAt = &now
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertIdentity(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO phones (id, identity_id, phone, region, is_default, verified_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rec.ID, rec.IdentityID, rec.Phone, rec.Region, rec.IsDefault, rec.VerifiedAt, rec.CreatedAt)
		return mapWriteError("insert phone", err)
	})
	if err != nil {
		return nil, nil, err
	}
	return id, rec, nil
}

// UpdateRefreshTokens replaces or appends in a single statement so concurrent appends
// from different instances are not lost.
func (s *Store) UpdateRefreshTokens(ctx context.Context, identityID string, tokens []string, mode identity.RefreshTokenMode) error {
	if !validID(identityID) {
		return identity.ErrNotFound
	}
	payload, err := encodeList(tokens)
	if err != nil {
		return err
	}

	query := `UPDATE identities SET refresh_tokens = $2::jsonb, updated_at = $3 WHERE id = $1`
	if mode == identity.RefreshAppend {
		query = `UPDATE identities SET refresh_tokens = refresh_tokens || $2::jsonb, updated_at = $3 WHERE id = $1`
	}
	res, err := s.db.ExecContext(ctx, query, identityID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update refresh tokens: %w", err)
	}
	return requireRow(res)
}

func (s *Store) ListEmails(ctx context.Context, identityID string) ([]identity.EmailRecord, error) {
	out := make([]identity.EmailRecord, 0)
	if !validID(identityID) {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_id, email, is_default, verified_at, created_at, deleted_at
		FROM emails
		WHERE identity_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return out, nil
}

func (s *Store) ListPhones(ctx context.Context, identityID string) ([]identity.PhoneRecord, error) {
	out := make([]identity.PhoneRecord, 0)
	if !validID(identityID) {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_id, phone, region, is_default, verified_at, created_at, deleted_at
		FROM phones
		WHERE identity_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list phones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanPhone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list phones: %w", err)
	}
	return out, nil
}

func (s *Store) ClearDefaultFlag(ctx context.Context, identityID string, kind identity.RecordKind) error {
	if !validID(identityID) {
		return nil
	}
	var query string
	switch kind {
	case identity.KindEmail:
		query = `UPDATE emails SET is_default = FALSE WHERE identity_id = $1`
	case identity.KindPhone:
		query = `UPDATE phones SET is_default = FALSE WHERE identity_id = $1`
	default:
		return fmt.Errorf("clear default flag: unknown record kind %s", kind)
	}
	if _, err := s.db.ExecContext(ctx, query, identityID); err != nil {
		return fmt.Errorf("clear default %s: %w", kind, err)
	}
	return nil
}

func (s *Store) MarkEmailVerified(ctx context.Context, emailID string, makeDefault bool) error {
	if !validID(emailID) {
		return identity.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE emails
		SET verified_at = COALESCE(verified_at, $2), is_default = is_default OR $3
		WHERE id = $1 AND deleted_at IS NULL
	`, emailID, time.Now().UTC(), makeDefault)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return requireRow(res)
}

func (s *Store) GetVerifiedEmail(ctx context.Context, identityID string) (*identity.EmailRecord, error) {
	if !validID(identityID) {
		return nil, identity.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, identity_id, email, is_default, verified_at, created_at, deleted_at
		FROM emails
		WHERE identity_id = $1 AND deleted_at IS NULL AND verified_at IS NOT NULL
		ORDER BY verified_at DESC
		LIMIT 1
	`, identityID)
	return scanEmail(row)
}

func (s *Store) GetVerifiedPhone(ctx context.Context, identityID string) (*identity.PhoneRecord, error) {
	if !validID(identityID) {
		return nil, identity.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, identity_id, phone, region, is_default, verified_at, created_at, deleted_at
		FROM phones
		WHERE identity_id = $1 AND deleted_at IS NULL AND verified_at IS NOT NULL
		ORDER BY verified_at DESC
		LIMIT 1
	`, identityID)
	return scanPhone(row)
}

func (s *Store) FindPhoneRecord(ctx context.Context, phone string) (*identity.PhoneRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, identity_id, phone, region, is_default, verified_at, created_at, deleted_at
		FROM phones
		WHERE phone = $1 AND deleted_at IS NULL
	`, phone)
	return scanPhone(row)
}

func (s *Store) MarkPhoneVerified(ctx context.Context, phoneID string) error {
	if !validID(phoneID) {
		return identity.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE phones
		SET verified_at = COALESCE(verified_at, $2)
		WHERE id = $1 AND deleted_at IS NULL
	`, phoneID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark phone verified: %w", err)
	}
	return requireRow(res)
}

const deviceColumns = `id, identity_id, unique_device_id, name, platform, public_key, verified_at, created_at, deleted_at`

func (s *Store) FindDevice(ctx context.Context, uniqueDeviceID string) (*identity.Device, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE unique_device_id = $1 AND deleted_at IS NULL
	`, uniqueDeviceID)
	return scanDevice(row)
}

func (s *Store) GetConnectedDevice(ctx context.Context, identityID, uniqueDeviceID string) (*identity.Device, error) {
	if !validID(identityID) {
		return nil, identity.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE identity_id = $1 AND unique_device_id = $2 AND deleted_at IS NULL
	`, identityID, uniqueDeviceID)
	return scanDevice(row)
}

func (s *Store) CreateDevice(ctx context.Context, device identity.Device) (*identity.Device, error) {
	if device.ID == "" {
		device.ID = newID()
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL)
	`, device.ID, device.IdentityID, device.UniqueDeviceID, device.Name, device.Platform,
		device.PublicKey, device.VerifiedAt, device.CreatedAt)
	if err := mapWriteError("insert device", err); err != nil {
		return nil, err
	}
	device.DeletedAt = nil
	return &device, nil
}

func (s *Store) SoftDeleteDevice(ctx context.Context, deviceID string) error {
	if !validID(deviceID) {
		return identity.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE devices SET deleted_at = COALESCE(deleted_at, $2) WHERE id = $1
	`, deviceID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft delete device: %w", err)
	}
	return requireRow(res)
}

func (s *Store) SetDevicePublicKey(ctx context.Context, deviceID, publicKey string) error {
	if !validID(deviceID) {
		return identity.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE devices SET public_key = $2 WHERE id = $1 AND deleted_at IS NULL
	`, deviceID, publicKey)
	if err != nil {
		return fmt.Errorf("set device public key: %w", err)
	}
	return requireRow(res)
}

func (s *Store) HasVerifiedDevice(ctx context.Context, identityID string) (bool, error) {
	if !validID(identityID) {
		return false, nil
	}
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM devices
			WHERE identity_id = $1 AND deleted_at IS NULL AND verified_at IS NOT NULL
		)
	`, identityID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("query verified device: %w", err)
	}
	return ok, nil
}

func (s *Store) HasSecuredAccount(ctx context.Context, identityID string) (bool, error) {
	if !validID(identityID) {
		return false, identity.ErrNotFound
	}
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT password_hash <> '' FROM identities WHERE id = $1`, identityID).Scan(&ok)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, identity.ErrNotFound
		}
		return false, fmt.Errorf("query secured account: %w", err)
	}
	return ok, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapWriteError("commit transaction", err)
	}
	return nil
}

func insertIdentity(ctx context.Context, tx *sql.Tx, id *identity.Identity) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO identities (id, username, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
	`, id.ID, id.Username, id.CreatedAt)
	return mapWriteError("insert identity", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryIdentity(ctx context.Context, query string, args ...any) (*identity.Identity, error) {
	var (
		out                            identity.Identity
		roles, restrictions, refreshes []byte
		deletedAt                      sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&out.ID, &out.Username, &out.PasswordHash, &roles, &restrictions, &refreshes,
		&out.CreatedAt, &out.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("query identity: %w", err)
	}
	if out.Roles, err = decodeList(roles); err != nil {
		return nil, err
	}
	if out.Restrictions, err = decodeList(restrictions); err != nil {
		return nil, err
	}
	if out.RefreshTokens, err = decodeList(refreshes); err != nil {
		return nil, err
	}
	out.DeletedAt = nullTime(deletedAt)
	return &out, nil
}

func scanEmail(row rowScanner) (*identity.EmailRecord, error) {
	var (
		rec                 identity.EmailRecord
		verified, deletedAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.IdentityID, &rec.Email, &rec.IsDefault, &verified, &rec.CreatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("scan email: %w", err)
	}
	rec.VerifiedAt = nullTime(verified)
	rec.DeletedAt = nullTime(deletedAt)
	return &rec, nil
}

func scanPhone(row rowScanner) (*identity.PhoneRecord, error) {
	var (
		rec                 identity.PhoneRecord
		verified, deletedAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.IdentityID, &rec.Phone, &rec.Region, &rec.IsDefault, &verified, &rec.CreatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("scan phone: %w", err)
	}
	rec.VerifiedAt = nullTime(verified)
	rec.DeletedAt = nullTime(deletedAt)
	return &rec, nil
}

func scanDevice(row rowScanner) (*identity.Device, error) {
	var (
		d                   identity.Device
		verified, deletedAt sql.NullTime
	)
	err := row.Scan(&d.ID, &d.IdentityID, &d.UniqueDeviceID, &d.Name, &d.Platform, &d.PublicKey,
		&verified, &d.CreatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("scan device: %w", err)
	}
	d.VerifiedAt = nullTime(verified)
	d.DeletedAt = nullTime(deletedAt)
	return &d, nil
}

func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, identity.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func newIdentity(username string, now time.Time) *identity.Identity {
	return &identity.Identity{
		ID:        newID(),
		Username:  strings.TrimSpace(username),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(raw), nil
}

func decodeList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

var _ identity.Store = (*Store)(nil)
