package shared

import "strings"

// Role is the access level assigned to a user.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleHeadManager   Role = "head_manager"
	RoleFinance       Role = "finance"
	RoleBranchManager Role = "branch_manager"
	RoleEmployee      Role = "employee"
)

// AllRoles lists roles in display order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleHeadManager, RoleFinance, RoleBranchManager, RoleEmployee}
}

// ParseRole normalises a role from form input.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	for _, r := range AllRoles() {
		if r == role {
			return role, true
		}
	}
	return "", false
}

// IsManagement reports whether the role sees every store.
func (r Role) IsManagement() bool {
	return r == RoleAdmin || r == RoleHeadManager || r == RoleFinance
}

// IsStoreGroup reports whether the role is bound to a single store.
func (r Role) IsStoreGroup() bool {
	return r == RoleBranchManager || r == RoleEmployee
}

// Label returns the human readable role name.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleHeadManager:
		return "Head Manager"
	case RoleFinance:
		return "Finance"
	case RoleBranchManager:
		return "Branch Manager"
	case RoleEmployee:
		return "Employee"
	}
	return string(r)
}

func (r Role) String() string { return string(r) }
