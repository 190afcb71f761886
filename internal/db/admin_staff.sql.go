package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const adminStaffColumns = `profile_id, role, permissions_override, is_active, created_by, created_at, updated_at`

func scanAdminStaff(row interface{ Scan(...any) error }) (AdminStaff, error) {
	var i AdminStaff
	err := row.Scan(
		&i.ProfileID,
		&i.Role,
		&i.PermissionsOverride,
		&i.IsActive,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getAdminStaff = `SELECT ` + adminStaffColumns + ` FROM admin_staff WHERE profile_id = $1`

func (q *Queries) GetAdminStaff(ctx context.Context, profileID uuid.UUID) (AdminStaff, error) {
	return scanAdminStaff(q.db.QueryRow(ctx, getAdminStaff, profileID))
}

const createAdminStaff = `
INSERT INTO admin_staff (profile_id, role, permissions_override, created_by)
VALUES ($1, $2, $3, $4)
RETURNING ` + adminStaffColumns

type CreateAdminStaffParams struct {
	ProfileID           uuid.UUID  `json:"profile_id"`
	Role                string     `json:"role"`
	PermissionsOverride []string   `json:"permissions_override"`
	CreatedBy           *uuid.UUID `json:"created_by"`
}

func (q *Queries) CreateAdminStaff(ctx context.Context, arg CreateAdminStaffParams) (AdminStaff, error) {
	return scanAdminStaff(q.db.QueryRow(ctx, createAdminStaff,
		arg.ProfileID,
		arg.Role,
		arg.PermissionsOverride,
		arg.CreatedBy,
	))
}

const updateAdminStaff = `
UPDATE admin_staff
SET role = $2, permissions_override = $3, updated_at = NOW()
WHERE profile_id = $1
RETURNING ` + adminStaffColumns

type UpdateAdminStaffParams struct {
	ProfileID           uuid.UUID `json:"profile_id"`
	Role                string    `json:"role"`
	PermissionsOverride []string  `json:"permissions_override"`
}

func (q *Queries) UpdateAdminStaff(ctx context.Context, arg UpdateAdminStaffParams) (AdminStaff, error) {
	return scanAdminStaff(q.db.QueryRow(ctx, updateAdminStaff, arg.ProfileID, arg.Role, arg.PermissionsOverride))
}

const deactivateAdminStaff = `
UPDATE admin_staff
SET is_active = FALSE, updated_at = NOW()
WHERE profile_id = $1
RETURNING ` + adminStaffColumns

func (q *Queries) DeactivateAdminStaff(ctx context.Context, profileID uuid.UUID) (AdminStaff, error) {
	return scanAdminStaff(q.db.QueryRow(ctx, deactivateAdminStaff, profileID))
}

const listAdminStaff = `
SELECT s.profile_id, p.email, p.full_name, s.role, s.permissions_override, s.is_active, s.created_by, s.created_at
FROM admin_staff s
JOIN profiles p ON p.id = s.profile_id
ORDER BY s.created_at DESC
LIMIT $1 OFFSET $2`

type ListAdminStaffParams struct {
	Limit  int64 `json:"limit"`
	Offset int64 `json:"offset"`
}

type ListAdminStaffRow struct {
	ProfileID           uuid.UUID  `json:"profile_id"`
	Email               string     `json:"email"`
	FullName            string     `json:"full_name"`
	Role                string     `json:"role"`
	PermissionsOverride []string   `json:"permissions_override"`
	IsActive            bool       `json:"is_active"`
	CreatedBy           *uuid.UUID `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (q *Queries) ListAdminStaff(ctx context.Context, arg ListAdminStaffParams) ([]ListAdminStaffRow, error) {
	rows, err := q.db.Query(ctx, listAdminStaff, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListAdminStaffRow
	for rows.Next() {
		var i ListAdminStaffRow
		if err := rows.Scan(
			&i.ProfileID,
			&i.Email,
			&i.FullName,
			&i.Role,
			&i.PermissionsOverride,
			&i.IsActive,
			&i.CreatedBy,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countAdminStaff = `SELECT COUNT(*) FROM admin_staff`

func (q *Queries) CountAdminStaff(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countAdminStaff).Scan(&count)
	return count, err
}
