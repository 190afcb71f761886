// Package rbac holds the static role, permission and admin-module tables.
//
// Everything here is read-only after package initialisation. Permissions are
// derived from a role; the only per-account escape hatch is the admin staff
// override list, which is resolved by the auth package, not here.
package rbac

import "sort"

// Role is the tag stored on a profile and carried in identity metadata.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleStaff      Role = "staff"
	RoleViewer     Role = "viewer"

	RoleVendor Role = "vendor"
	RoleBuyer  Role = "buyer"
)

// DefaultRole is assigned when the identity carries no usable role claim.
const DefaultRole = RoleBuyer

var adminRoles = map[Role]struct{}{
	RoleSuperAdmin: {},
	RoleAdmin:      {},
	RoleManager:    {},
	RoleStaff:      {},
	RoleViewer:     {},
}

var marketplaceRoles = map[Role]struct{}{
	RoleVendor: {},
	RoleBuyer:  {},
}

// ParseRole validates a raw role claim.
func ParseRole(raw string) (Role, bool) {
	r := Role(raw)
	if _, ok := adminRoles[r]; ok {
		return r, true
	}
	if _, ok := marketplaceRoles[r]; ok {
		return r, true
	}
	return "", false
}

// IsAdminRole reports whether r belongs to the administrative tier.
func (r Role) IsAdminRole() bool {
	_, ok := adminRoles[r]
	return ok
}

// IsMarketplaceRole reports whether r is vendor or buyer.
func (r Role) IsMarketplaceRole() bool {
	_, ok := marketplaceRoles[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// Roles returns every known role, admin tier first.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff, RoleViewer, RoleVendor, RoleBuyer}
}

// AssignableStaffRoles are the roles the staff creation endpoint accepts.
func AssignableStaffRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleStaff, RoleViewer}
}

// IsAssignableStaffRole reports whether r may be given to a new staff account.
func IsAssignableStaffRole(r Role) bool {
	for _, candidate := range AssignableStaffRoles() {
		if candidate == r {
			return true
		}
	}
	return false
}

// Sorted returns the set's permissions in lexical order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
