package auth

import "github.com/the-bazaar/bazaar-backend/internal/rbac"

// super_admin holds every permission, including ones the registry forgot.

func HasPermission(user *AuthenticatedUser, p rbac.Permission) bool {
	if user == nil {
		return false
	}
	if user.IsSuperAdmin {
		return true
	}
	return user.Permissions.Has(p)
}

func HasAnyPermission(user *AuthenticatedUser, perms ...rbac.Permission) bool {
	if user == nil {
		return false
	}
	if user.IsSuperAdmin {
		return true
	}
	for _, p := range perms {
		if user.Permissions.Has(p) {
			return true
		}
	}
	return false
}

func HasAllPermissions(user *AuthenticatedUser, perms ...rbac.Permission) bool {
	if user == nil {
		return false
	}
	if user.IsSuperAdmin {
		return true
	}
	for _, p := range perms {
		if !user.Permissions.Has(p) {
			return false
		}
	}
	return true
}

// CanAccessModule is true when the user holds any permission that opens the module.
func CanAccessModule(user *AuthenticatedUser, module rbac.Module) bool {
	return HasAnyPermission(user, rbac.PermissionsForModule(module).Sorted()...)
}

// AccessibleModules lists the admin modules the user can open, in navigation order.
func AccessibleModules(user *AuthenticatedUser) []rbac.Module {
	var out []rbac.Module
	for _, m := range rbac.Modules() {
		if CanAccessModule(user, m) {
			out = append(out, m)
		}
	}
	return out
}
