package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
)

// ErrOwnerNotFound is returned by an OwnerExtractor when the resource does not exist.
var ErrOwnerNotFound = errors.New("auth: resource not found")

// OwnerExtractor returns the ids that own the requested resource.
type OwnerExtractor func(r *http.Request) ([]uuid.UUID, error)

type policy func(r *http.Request, user *AuthenticatedUser) *Error

// guard authenticates (or reuses an earlier result), then applies check.
// Exactly one response is written on failure and next is not called.
func (a *Authenticator) guard(check policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				resolved, err := a.Authenticate(r.Context(), r)
				if err != nil {
					metrics.AuthDenied(err.Code)
					WriteError(w, err)
					return
				}
				user = resolved
				r = attach(r, user)
			}

			if check != nil {
				if err := check(r, user); err != nil {
					deny(w, r, user, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, user *AuthenticatedUser, err *Error) {
	if err.Status == http.StatusForbidden {
		// the request logger already carries user_id
		logging.FromContext(r.Context()).Warn("access denied",
			"role", user.Role,
			"permissions", user.Permissions.Strings(),
			"required", err.Required,
			"code", err.Code,
			"path", r.URL.Path,
		)
	}
	metrics.AuthDenied(err.Code)
	WriteError(w, err)
}

func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return a.guard(nil)(next)
}

// RequireRole admits the listed roles; super_admin is always admitted.
func (a *Authenticator) RequireRole(roles ...rbac.Role) func(http.Handler) http.Handler {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	required := "role in [" + strings.Join(names, ",") + "]"

	return a.guard(func(_ *http.Request, user *AuthenticatedUser) *Error {
		if user.IsSuperAdmin {
			return nil
		}
		for _, role := range roles {
			if user.Role == role {
				return nil
			}
		}
		return ErrInsufficientRole(required)
	})
}

func (a *Authenticator) RequirePermission(p rbac.Permission) func(http.Handler) http.Handler {
	return a.guard(func(_ *http.Request, user *AuthenticatedUser) *Error {
		if HasPermission(user, p) {
			return nil
		}
		return ErrInsufficientPermission(string(p))
	})
}

func (a *Authenticator) RequireAnyPermission(perms ...rbac.Permission) func(http.Handler) http.Handler {
	required := "any of " + joinPermissions(perms)
	return a.guard(func(_ *http.Request, user *AuthenticatedUser) *Error {
		if HasAnyPermission(user, perms...) {
			return nil
		}
		return ErrInsufficientPermission(required)
	})
}

func (a *Authenticator) RequireAllPermissions(perms ...rbac.Permission) func(http.Handler) http.Handler {
	required := "all of " + joinPermissions(perms)
	return a.guard(func(_ *http.Request, user *AuthenticatedUser) *Error {
		if HasAllPermissions(user, perms...) {
			return nil
		}
		return ErrInsufficientPermission(required)
	})
}

func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return a.guard(func(_ *http.Request, user *AuthenticatedUser) *Error {
		if user.IsAdmin {
			return nil
		}
		return forbidden(CodeAdminRequired, "Administrator access required", "admin tier")
	})(next)
}

func (a *Authenticator) RequireSuperAdmin(next http.Handler) http.Handler {
	return a.guard(func(_ *http.Request, user *AuthenticatedUser) *Error {
		if user.IsSuperAdmin {
			return nil
		}
		return forbidden(CodeSuperAdminRequired, "Super administrator access required", "super_admin")
	})(next)
}

func (a *Authenticator) RequireModuleAccess(module rbac.Module) func(http.Handler) http.Handler {
	required := "module " + string(module)
	return a.guard(func(_ *http.Request, user *AuthenticatedUser) *Error {
		if CanAccessModule(user, module) {
			return nil
		}
		return ErrModuleDenied(required)
	})
}

// RequireOwnerOrAdmin admits admin-tier users outright; everyone else must be
// one of the owners extract reports.
func (a *Authenticator) RequireOwnerOrAdmin(extract OwnerExtractor) func(http.Handler) http.Handler {
	return a.guard(func(r *http.Request, user *AuthenticatedUser) *Error {
		if user.IsAdmin {
			return nil
		}

		owners, err := extract(r)
		if err != nil {
			if errors.Is(err, ErrOwnerNotFound) {
				return errResourceNotFound()
			}
			logging.FromContext(r.Context()).Error("failed to resolve resource owner", "error", err)
			return ErrServiceUnavailable()
		}
		for _, owner := range owners {
			if owner == user.ID {
				return nil
			}
		}
		return ErrNotOwner()
	})
}

func (a *Authenticator) RequireVendor(next http.Handler) http.Handler {
	return a.guard(func(_ *http.Request, user *AuthenticatedUser) *Error {
		if user.Role == rbac.RoleVendor {
			return nil
		}
		return forbidden(CodeVendorRequired, "Vendor account required", "role vendor")
	})(next)
}

func joinPermissions(perms []rbac.Permission) string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return "[" + strings.Join(names, ",") + "]"
}
