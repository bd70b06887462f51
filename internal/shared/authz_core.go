package shared

// Platform permissions.
const (
	PermReportsSubmit = "reports.submit"
	PermReportsView   = "reports.view"
	PermReportsReview = "reports.review"
	PermReportsExport = "reports.export"

	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermStoresEdit = "stores.edit"
	PermRolesView  = "roles.view"
	PermAuditView  = "audit.view"
	PermJobsView   = "jobs.view"
)

// CoreScopes lists every permission known to the application.
func CoreScopes() []string {
	return []string{
		PermReportsSubmit,
		PermReportsView,
		PermReportsReview,
		PermReportsExport,
		PermUsersView,
		PermUsersEdit,
		PermStoresEdit,
		PermRolesView,
		PermAuditView,
		PermJobsView,
	}
}

// RolePermissions is the static role to permission matrix.
var RolePermissions = map[Role][]string{
	RoleAdmin: CoreScopes(),
	RoleHeadManager: {
		PermReportsSubmit,
		PermReportsView,
		PermReportsExport,
		PermUsersView,
		PermUsersEdit,
	},
	RoleFinance: {
		PermReportsSubmit,
		PermReportsView,
		PermReportsReview,
		PermReportsExport,
		PermUsersView,
		PermUsersEdit,
	},
	RoleBranchManager: {
		PermReportsSubmit,
		PermReportsView,
	},
	RoleEmployee: {
		PermReportsSubmit,
		PermReportsView,
	},
}

// PermissionsFor returns a copy of the permissions granted to role.
func PermissionsFor(role Role) []string {
	perms := RolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// RoleHas reports whether role carries perm.
func RoleHas(role Role, perm string) bool {
	for _, p := range RolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
