package rbac

import "strings"

// Permission has the form resource:action.
type Permission string

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

// constants for RBAC checks
const (
	DashboardView Permission = "dashboard:view"

	VendorsView    Permission = "vendors:view"
	VendorsCreate  Permission = "vendors:create"
	VendorsUpdate  Permission = "vendors:update"
	VendorsApprove Permission = "vendors:approve"
	VendorsSuspend Permission = "vendors:suspend"
	VendorsDelete  Permission = "vendors:delete"

	ProductsView    Permission = "products:view"
	ProductsCreate  Permission = "products:create"
	ProductsUpdate  Permission = "products:update"
	ProductsDelete  Permission = "products:delete"
	ProductsApprove Permission = "products:approve"

	OrdersView   Permission = "orders:view"
	OrdersUpdate Permission = "orders:update"
	OrdersCancel Permission = "orders:cancel"
	OrdersRefund Permission = "orders:refund"

	CustomersView    Permission = "customers:view"
	CustomersUpdate  Permission = "customers:update"
	CustomersSuspend Permission = "customers:suspend"

	PaymentsView   Permission = "payments:view"
	PaymentsPayout Permission = "payments:payout"

	CategoriesView   Permission = "categories:view"
	CategoriesManage Permission = "categories:manage"

	ReportsView   Permission = "reports:view"
	ReportsExport Permission = "reports:export"

	SettingsView   Permission = "settings:view"
	SettingsUpdate Permission = "settings:update"

	StaffView   Permission = "staff:view"
	StaffCreate Permission = "staff:create"
	StaffUpdate Permission = "staff:update"
	StaffDelete Permission = "staff:delete"

	AuditLogsView   Permission = "audit_logs:view"
	AuditLogsExport Permission = "audit_logs:export"
)

// allPermissions is the permission universe. A new permission must be added
// here; super_admin picks it up automatically.
var allPermissions = []Permission{
	DashboardView,
	VendorsView, VendorsCreate, VendorsUpdate, VendorsApprove, VendorsSuspend, VendorsDelete,
	ProductsView, ProductsCreate, ProductsUpdate, ProductsDelete, ProductsApprove,
	OrdersView, OrdersUpdate, OrdersCancel, OrdersRefund,
	CustomersView, CustomersUpdate, CustomersSuspend,
	PaymentsView, PaymentsPayout,
	CategoriesView, CategoriesManage,
	ReportsView, ReportsExport,
	SettingsView, SettingsUpdate,
	StaffView, StaffCreate, StaffUpdate, StaffDelete,
	AuditLogsView, AuditLogsExport,
}

var universe = NewPermissionSet(allPermissions...)

var rolePermissions = map[Role]PermissionSet{
	RoleSuperAdmin: NewPermissionSet(allPermissions...),
	RoleAdmin: NewPermissionSet(
		DashboardView,
		VendorsView, VendorsCreate, VendorsUpdate, VendorsApprove, VendorsSuspend, VendorsDelete,
		ProductsView, ProductsCreate, ProductsUpdate, ProductsDelete, ProductsApprove,
		OrdersView, OrdersUpdate, OrdersCancel, OrdersRefund,
		CustomersView, CustomersUpdate, CustomersSuspend,
		PaymentsView, PaymentsPayout,
		CategoriesView, CategoriesManage,
		ReportsView, ReportsExport,
		SettingsView,
		StaffView,
		AuditLogsView,
	),
	RoleManager: NewPermissionSet(
		DashboardView,
		VendorsView, VendorsUpdate, VendorsApprove,
		ProductsView, ProductsUpdate, ProductsApprove,
		OrdersView, OrdersUpdate, OrdersCancel,
		CustomersView,
		PaymentsView,
		CategoriesView, CategoriesManage,
		ReportsView, ReportsExport,
	),
	RoleStaff: NewPermissionSet(
		DashboardView,
		VendorsView,
		ProductsView,
		OrdersView, OrdersUpdate,
		CustomersView,
		CategoriesView,
	),
	RoleViewer: NewPermissionSet(
		DashboardView,
		VendorsView,
		ProductsView,
		OrdersView,
		CustomersView,
		ReportsView,
	),
	// marketplace roles act on their own resources only
	RoleVendor: NewPermissionSet(
		ProductsView, ProductsCreate, ProductsUpdate, ProductsDelete,
		OrdersView, OrdersUpdate,
		ReportsView,
	),
	RoleBuyer: NewPermissionSet(
		ProductsView,
		OrdersView, OrdersCancel,
	),
}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Strings returns the sorted permission names.
func (s PermissionSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = string(p)
	}
	return out
}

// PermissionsForRole returns a copy of the role's default permissions.
// Unknown roles yield an empty set.
func PermissionsForRole(role Role) PermissionSet {
	perms, ok := rolePermissions[role]
	if !ok {
		return PermissionSet{}
	}
	return perms.Clone()
}

// AllPermissions returns the permission universe.
func AllPermissions() PermissionSet {
	return universe.Clone()
}

// IsKnownPermission reports whether p is part of the universe.
func IsKnownPermission(p Permission) bool {
	return universe.Has(p)
}

// Resource returns the part before the colon.
func (p Permission) Resource() string {
	resource, _, _ := strings.Cut(string(p), ":")
	return resource
}

// Action returns the part after the colon.
func (p Permission) Action() string {
	_, action, _ := strings.Cut(string(p), ":")
	return action
}
