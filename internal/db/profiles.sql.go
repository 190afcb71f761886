package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const profileColumns = `id, email, full_name, role, is_active, must_change_password, mfa_enabled, mfa_method, mfa_verified_at, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var i Profile
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.FullName,
		&i.Role,
		&i.IsActive,
		&i.MustChangePassword,
		&i.MfaEnabled,
		&i.MfaMethod,
		&i.MfaVerifiedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getProfile = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

func (q *Queries) GetProfile(ctx context.Context, id uuid.UUID) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, getProfile, id))
}

const getProfileByEmail = `SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = lower($1)`

func (q *Queries) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, getProfileByEmail, email))
}

const upsertProfile = `
INSERT INTO profiles (id, email, full_name, role, must_change_password)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET email = EXCLUDED.email,
    full_name = EXCLUDED.full_name,
    role = EXCLUDED.role,
    must_change_password = EXCLUDED.must_change_password,
    updated_at = NOW()
RETURNING ` + profileColumns

type UpsertProfileParams struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	FullName           string    `json:"full_name"`
	Role               string    `json:"role"`
	MustChangePassword bool      `json:"must_change_password"`
}

func (q *Queries) UpsertProfile(ctx context.Context, arg UpsertProfileParams) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, upsertProfile,
		arg.ID,
		arg.Email,
		arg.FullName,
		arg.Role,
		arg.MustChangePassword,
	))
}

const updateProfileRole = `UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1`

type UpdateProfileRoleParams struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
}

func (q *Queries) UpdateProfileRole(ctx context.Context, arg UpdateProfileRoleParams) error {
	_, err := q.db.Exec(ctx, updateProfileRole, arg.ID, arg.Role)
	return err
}

const setProfileActive = `UPDATE profiles SET is_active = $2, updated_at = NOW() WHERE id = $1`

type SetProfileActiveParams struct {
	ID       uuid.UUID `json:"id"`
	IsActive bool      `json:"is_active"`
}

func (q *Queries) SetProfileActive(ctx context.Context, arg SetProfileActiveParams) error {
	_, err := q.db.Exec(ctx, setProfileActive, arg.ID, arg.IsActive)
	return err
}

const enableProfileMFA = `
UPDATE profiles
SET mfa_enabled = TRUE, mfa_method = $2, updated_at = NOW()
WHERE id = $1`

type EnableProfileMFAParams struct {
	ID        uuid.UUID `json:"id"`
	MfaMethod string    `json:"mfa_method"`
}

func (q *Queries) EnableProfileMFA(ctx context.Context, arg EnableProfileMFAParams) error {
	_, err := q.db.Exec(ctx, enableProfileMFA, arg.ID, arg.MfaMethod)
	return err
}

const setProfileMFAVerifiedAt = `UPDATE profiles SET mfa_verified_at = $2, updated_at = NOW() WHERE id = $1`

type SetProfileMFAVerifiedAtParams struct {
	ID         uuid.UUID `json:"id"`
	VerifiedAt time.Time `json:"verified_at"`
}

func (q *Queries) SetProfileMFAVerifiedAt(ctx context.Context, arg SetProfileMFAVerifiedAtParams) error {
	_, err := q.db.Exec(ctx, setProfileMFAVerifiedAt, arg.ID, arg.VerifiedAt)
	return err
}
