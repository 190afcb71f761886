package rbac

// Module is a navigation-level grouping in the admin portal.
type Module string

const (
	ModuleDashboard  Module = "dashboard"
	ModuleVendors    Module = "vendors_management"
	ModuleProducts   Module = "products_management"
	ModuleOrders     Module = "orders_management"
	ModuleCustomers  Module = "customers_management"
	ModulePayments   Module = "payments_management"
	ModuleCategories Module = "categories_management"
	ModuleReports    Module = "reports_analytics"
	ModuleSettings   Module = "settings"
	ModuleStaff      Module = "staff_management"
	ModuleAuditLogs  Module = "audit_logs"
)

// any one of a module's permissions is enough to open it
var modulePermissions = map[Module]PermissionSet{
	ModuleDashboard:  NewPermissionSet(DashboardView),
	ModuleVendors:    NewPermissionSet(VendorsView),
	ModuleProducts:   NewPermissionSet(ProductsView),
	ModuleOrders:     NewPermissionSet(OrdersView),
	ModuleCustomers:  NewPermissionSet(CustomersView),
	ModulePayments:   NewPermissionSet(PaymentsView),
	ModuleCategories: NewPermissionSet(CategoriesView, CategoriesManage),
	ModuleReports:    NewPermissionSet(ReportsView),
	ModuleSettings:   NewPermissionSet(SettingsView),
	ModuleStaff:      NewPermissionSet(StaffView),
	ModuleAuditLogs:  NewPermissionSet(AuditLogsView),
}

// Modules returns every admin module in navigation order.
func Modules() []Module {
	return []Module{
		ModuleDashboard,
		ModuleVendors,
		ModuleProducts,
		ModuleOrders,
		ModuleCustomers,
		ModulePayments,
		ModuleCategories,
		ModuleReports,
		ModuleSettings,
		ModuleStaff,
		ModuleAuditLogs,
	}
}

// PermissionsForModule returns the permissions that open the module.
// Unknown modules yield an empty set.
func PermissionsForModule(module Module) PermissionSet {
	perms, ok := modulePermissions[module]
	if !ok {
		return PermissionSet{}
	}
	return perms.Clone()
}

func (m Module) String() string {
	return string(m)
}
