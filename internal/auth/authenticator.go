// Package auth resolves bearer credentials into an AuthenticatedUser and
// provides the route guards that gate API handlers on role, permission,
// module and ownership.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
)

// StaffDirectory looks up the persisted admin account for an admin-tier identity.
type StaffDirectory interface {
	GetAdminStaff(ctx context.Context, profileID uuid.UUID) (db.AdminStaff, error)
}

type Authenticator struct {
	provider identity.Provider
	staff    StaffDirectory
}

// NewAuthenticator wires the identity provider. staff may be nil, in which
// case admin identities always get their role defaults.
func NewAuthenticator(provider identity.Provider, staff StaffDirectory) *Authenticator {
	return &Authenticator{
		provider: provider,
		staff:    staff,
	}
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// Authenticate resolves the request's bearer token. Failures are terminal.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*AuthenticatedUser, *Error) {
	token, ok := BearerToken(r)
	if !ok {
		return nil, ErrMissingCredential()
	}

	ident, err := a.provider.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredential) {
			return nil, ErrInvalidCredential()
		}
		logging.FromContext(ctx).Error("identity provider lookup failed", "error", err)
		return nil, ErrServiceUnavailable()
	}

	user, authErr := a.Resolve(ctx, ident)
	if authErr != nil {
		return nil, authErr
	}
	user.AccessToken = token
	return user, nil
}

// Resolve turns a verified identity into an AuthenticatedUser, applying the
// staff record for admin-tier roles.
func (a *Authenticator) Resolve(ctx context.Context, ident *identity.User) (*AuthenticatedUser, *Error) {
	role := RoleFromIdentity(ident)
	perms := rbac.PermissionsForRole(role)

	if role.IsAdminRole() && a.staff != nil {
		staff, err := a.staff.GetAdminStaff(ctx, ident.ID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// bootstrap accounts exist only in the identity provider
		case err != nil:
			logging.FromContext(ctx).Error("failed to load staff record", "user_id", ident.ID, "error", err)
			return nil, ErrServiceUnavailable()
		case !staff.IsActive:
			return nil, ErrAccountSuspended()
		default:
			if staffRole, ok := rbac.ParseRole(staff.Role); ok && staffRole.IsAdminRole() {
				role = staffRole
				perms = rbac.PermissionsForRole(role)
			}
			if staff.PermissionsOverride != nil {
				perms = overridePermissions(ctx, staff.PermissionsOverride)
			}
		}
	}

	return &AuthenticatedUser{
		ID:           ident.ID,
		Email:        ident.Email,
		Role:         role,
		Permissions:  perms,
		IsAdmin:      role.IsAdminRole(),
		IsSuperAdmin: role == rbac.RoleSuperAdmin,
		LastSignInAt: ident.LastSignInAt,
	}, nil
}

// RoleFromIdentity reads the role claim. app_metadata is only writable with
// the service key; user_metadata is user-editable and may only ever yield a
// marketplace role.
func RoleFromIdentity(ident *identity.User) rbac.Role {
	if raw, ok := identity.MetadataString(ident.AppMetadata, "role"); ok {
		if role, ok := rbac.ParseRole(raw); ok {
			return role
		}
	}
	if raw, ok := identity.MetadataString(ident.UserMetadata, "role"); ok {
		if role, ok := rbac.ParseRole(raw); ok && role.IsMarketplaceRole() {
			return role
		}
	}
	return rbac.DefaultRole
}

// overridePermissions replaces role defaults; unknown entries are dropped.
func overridePermissions(ctx context.Context, raw []string) rbac.PermissionSet {
	perms := make(rbac.PermissionSet, len(raw))
	for _, s := range raw {
		p := rbac.Permission(s)
		if !rbac.IsKnownPermission(p) {
			logging.FromContext(ctx).Warn("ignoring unknown permission override", "permission", s)
			continue
		}
		perms[p] = struct{}{}
	}
	return perms
}

// attach stores the user and tags the request logger with its id.
func attach(r *http.Request, user *AuthenticatedUser) *http.Request {
	ctx := WithUser(r.Context(), user)
	ctx = logging.WithContext(ctx, logging.FromContext(ctx).With("user_id", user.ID.String()))
	return r.WithContext(ctx)
}

// Optional resolves the user when it can and otherwise continues anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := BearerToken(r); !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.Authenticate(r.Context(), r)
		if err != nil {
			logging.FromContext(r.Context()).Debug("optional authentication failed", "code", err.Code)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, attach(r, user))
	})
}
