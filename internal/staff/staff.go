// Package staff manages admin portal accounts. Only super admins reach it,
// and no path through it can mint another super admin.
package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/the-bazaar/bazaar-backend/internal/audit"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/notifications"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
)

var (
	ErrEscalation       = errors.New("staff: super_admin cannot be assigned")
	ErrEmailTaken       = errors.New("staff: email already registered")
	ErrNotFound         = errors.New("staff: member not found")
	ErrSelfDeactivation = errors.New("staff: cannot deactivate your own account")
	ErrProtectedMember  = errors.New("staff: super_admin accounts cannot be modified here")
)

// FieldError is one rejected input field.
type FieldError struct {
	Field   string
	Message string
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "staff: invalid input (" + strings.Join(parts, "; ") + ")"
}

type Store interface {
	audit.Store
	UpsertProfile(ctx context.Context, arg db.UpsertProfileParams) (db.Profile, error)
	UpdateProfileRole(ctx context.Context, arg db.UpdateProfileRoleParams) error
	SetProfileActive(ctx context.Context, arg db.SetProfileActiveParams) error
	GetAdminStaff(ctx context.Context, profileID uuid.UUID) (db.AdminStaff, error)
	CreateAdminStaff(ctx context.Context, arg db.CreateAdminStaffParams) (db.AdminStaff, error)
	UpdateAdminStaff(ctx context.Context, arg db.UpdateAdminStaffParams) (db.AdminStaff, error)
	DeactivateAdminStaff(ctx context.Context, profileID uuid.UUID) (db.AdminStaff, error)
	ListAdminStaff(ctx context.Context, arg db.ListAdminStaffParams) ([]db.ListAdminStaffRow, error)
	CountAdminStaff(ctx context.Context) (int64, error)
}

// TxFunc runs fn against a transactional Store.
type TxFunc func(ctx context.Context, fn func(Store) error) error

type Notifier interface {
	SendBestEffort(ctx context.Context, to, name string, data any)
}

type Service struct {
	provider identity.Provider
	store    Store
	inTx     TxFunc
	notifier Notifier
	loginURL string
}

func NewService(provider identity.Provider, store Store, inTx TxFunc, notifier Notifier) *Service {
	return &Service{provider: provider, store: store, inTx: inTx, notifier: notifier}
}

// WithLoginURL sets the admin sign-in link quoted in welcome e-mails.
func (s *Service) WithLoginURL(url string) *Service {
	s.loginURL = url
	return s
}

type CreateInput struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	FullName    string   `json:"fullName"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type UpdateInput struct {
	Role *string `json:"role"`
	// Permissions replaces the override; ResetPermissions returns to role defaults.
	Permissions      *[]string `json:"permissions"`
	ResetPermissions bool      `json:"resetPermissions"`
}

type Member struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	Role        string     `json:"role"`
	Permissions []string   `json:"permissions"`
	Override    bool       `json:"hasPermissionOverride"`
	IsActive    bool       `json:"isActive"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty"`
}

// CheckEscalation rejects any attempt to hand out super_admin. It runs before
// validation and before any write.
func CheckEscalation(role string) error {
	if rbac.Role(strings.TrimSpace(role)) == rbac.RoleSuperAdmin {
		return ErrEscalation
	}
	return nil
}

// plausibleEmail is a structural check only; the provider confirms the
// address and the HTTP layer applies the schema pattern.
func plausibleEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	return ok && local != "" && strings.Contains(domain, ".") &&
		!strings.ContainsAny(email, " \t\r\n<>") && !strings.Contains(domain, "@")
}

func validateCreate(in CreateInput) error {
	var fields []FieldError
	if !plausibleEmail(in.Email) {
		fields = append(fields, FieldError{"email", "must be a valid email address"})
	}
	if len(in.Password) < config.StaffPasswordMinLength {
		fields = append(fields, FieldError{"password", fmt.Sprintf("must be at least %d characters", config.StaffPasswordMinLength)})
	}
	if strings.TrimSpace(in.FullName) == "" {
		fields = append(fields, FieldError{"fullName", "is required"})
	}
	if !rbac.IsAssignableStaffRole(rbac.Role(in.Role)) {
		fields = append(fields, FieldError{"role", "must be one of admin, manager, staff, viewer"})
	}
	fields = append(fields, validatePermissions(in.Permissions)...)

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validatePermissions(perms []string) []FieldError {
	var fields []FieldError
	for _, p := range perms {
		if !rbac.IsKnownPermission(rbac.Permission(p)) {
			fields = append(fields, FieldError{"permissions", fmt.Sprintf("unknown permission %q", p)})
		}
	}
	return fields
}

// Create registers the account with the identity provider, then writes the
// profile, staff record and audit entry in one transaction.
func (s *Service) Create(ctx context.Context, actor uuid.UUID, in CreateInput, ip string) (*Member, error) {
	if err := CheckEscalation(in.Role); err != nil {
		return nil, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	user, err := s.provider.CreateUser(ctx, identity.AdminUserParams{
		Email:        in.Email,
		Password:     in.Password,
		EmailConfirm: true,
		AppMetadata:  map[string]any{"role": in.Role},
		UserMetadata: map[string]any{"full_name": in.FullName},
	})
	if errors.Is(err, identity.ErrUserExists) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating identity: %w", err)
	}

	// nil keeps role defaults; an explicit empty list grants nothing
	override := in.Permissions

	var member *Member
	err = s.inTx(ctx, func(q Store) error {
		profile, err := q.UpsertProfile(ctx, db.UpsertProfileParams{
			ID:                 user.ID,
			Email:              in.Email,
			FullName:           in.FullName,
			Role:               in.Role,
			MustChangePassword: true,
		})
		if err != nil {
			return fmt.Errorf("writing profile: %w", err)
		}

		record, err := q.CreateAdminStaff(ctx, db.CreateAdminStaffParams{
			ProfileID:           user.ID,
			Role:                in.Role,
			PermissionsOverride: override,
			CreatedBy:           &actor,
		})
		if err != nil {
			return fmt.Errorf("writing staff record: %w", err)
		}

		if err := audit.NewRecorder(q).Record(ctx, audit.Entry{
			ActorID:      &actor,
			Action:       audit.ActionStaffCreated,
			ResourceType: "admin_staff",
			ResourceID:   user.ID.String(),
			Details:      map[string]any{"email": in.Email, "role": in.Role, "permissions_override": override},
			IP:           ip,
		}); err != nil {
			return err
		}

		member = toMember(profile.Email, profile.FullName, record)
		return nil
	})
	if err != nil {
		// the provider account exists without a profile; a retry with the same
		// email reports ErrEmailTaken and needs manual cleanup
		logging.FromContext(ctx).Error("staff creation failed after identity was created", "user_id", user.ID, "error", err)
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.SendBestEffort(ctx, in.Email, notifications.TemplateStaffWelcome, map[string]any{
			"FullName": in.FullName,
			"Role":     in.Role,
			"LoginURL": s.loginURL,
		})
	}

	logging.FromContext(ctx).Info("staff member created", "staff_id", user.ID, "role", in.Role)
	return member, nil
}

// Page is one page of the staff directory.
type Page struct {
	Members []Member
	Total   int64
}

func (s *Service) List(ctx context.Context, limit, offset int64) (*Page, error) {
	rows, err := s.store.ListAdminStaff(ctx, db.ListAdminStaffParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing staff: %w", err)
	}
	total, err := s.store.CountAdminStaff(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting staff: %w", err)
	}

	members := make([]Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, *toMember(row.Email, row.FullName, db.AdminStaff{
			ProfileID:           row.ProfileID,
			Role:                row.Role,
			PermissionsOverride: row.PermissionsOverride,
			IsActive:            row.IsActive,
			CreatedBy:           row.CreatedBy,
		}))
	}
	return &Page{Members: members, Total: total}, nil
}

func (s *Service) Update(ctx context.Context, actor, id uuid.UUID, in UpdateInput, ip string) (*Member, error) {
	if in.Role != nil {
		if err := CheckEscalation(*in.Role); err != nil {
			return nil, err
		}
		if !rbac.IsAssignableStaffRole(rbac.Role(*in.Role)) {
			return nil, &ValidationError{Fields: []FieldError{{"role", "must be one of admin, manager, staff, viewer"}}}
		}
	}
	if in.Permissions != nil {
		if fields := validatePermissions(*in.Permissions); len(fields) > 0 {
			return nil, &ValidationError{Fields: fields}
		}
	}

	current, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if rbac.Role(current.Role) == rbac.RoleSuperAdmin {
		return nil, ErrProtectedMember
	}

	role := current.Role
	if in.Role != nil {
		role = *in.Role
	}
	override := current.PermissionsOverride
	switch {
	case in.ResetPermissions:
		override = nil
	case in.Permissions != nil:
		override = *in.Permissions
	}

	var member *Member
	err = s.inTx(ctx, func(q Store) error {
		record, err := q.UpdateAdminStaff(ctx, db.UpdateAdminStaffParams{
			ProfileID:           id,
			Role:                role,
			PermissionsOverride: override,
		})
		if err != nil {
			return fmt.Errorf("updating staff record: %w", err)
		}
		if role != current.Role {
			if err := q.UpdateProfileRole(ctx, db.UpdateProfileRoleParams{ID: id, Role: role}); err != nil {
				return fmt.Errorf("updating profile role: %w", err)
			}
		}

		if err := audit.NewRecorder(q).Record(ctx, audit.Entry{
			ActorID:      &actor,
			Action:       audit.ActionStaffUpdated,
			ResourceType: "admin_staff",
			ResourceID:   id.String(),
			Details: map[string]any{
				"from_role":            current.Role,
				"to_role":              role,
				"permissions_override": override,
			},
			IP: ip,
		}); err != nil {
			return err
		}

		member = toMember("", "", record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// Deactivate is a soft delete: the staff record and profile are flagged
// inactive and the authenticator refuses the account from then on.
func (s *Service) Deactivate(ctx context.Context, actor, id uuid.UUID, ip string) error {
	if actor == id {
		return ErrSelfDeactivation
	}

	current, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if rbac.Role(current.Role) == rbac.RoleSuperAdmin {
		return ErrProtectedMember
	}

	return s.inTx(ctx, func(q Store) error {
		if _, err := q.DeactivateAdminStaff(ctx, id); err != nil {
			return fmt.Errorf("deactivating staff record: %w", err)
		}
		if err := q.SetProfileActive(ctx, db.SetProfileActiveParams{ID: id, IsActive: false}); err != nil {
			return fmt.Errorf("deactivating profile: %w", err)
		}
		return audit.NewRecorder(q).Record(ctx, audit.Entry{
			ActorID:      &actor,
			Action:       audit.ActionStaffDeactivated,
			ResourceType: "admin_staff",
			ResourceID:   id.String(),
			IP:           ip,
		})
	})
}

func (s *Service) lookup(ctx context.Context, id uuid.UUID) (db.AdminStaff, error) {
	record, err := s.store.GetAdminStaff(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.AdminStaff{}, ErrNotFound
	}
	if err != nil {
		return db.AdminStaff{}, fmt.Errorf("loading staff record: %w", err)
	}
	return record, nil
}

func toMember(email, fullName string, record db.AdminStaff) *Member {
	m := &Member{
		ID:        record.ProfileID,
		Email:     email,
		FullName:  fullName,
		Role:      record.Role,
		Override:  record.PermissionsOverride != nil,
		IsActive:  record.IsActive,
		CreatedBy: record.CreatedBy,
	}
	if record.PermissionsOverride != nil {
		m.Permissions = append([]string{}, record.PermissionsOverride...)
	} else {
		m.Permissions = rbac.PermissionsForRole(rbac.Role(record.Role)).Strings()
	}
	return m
}
