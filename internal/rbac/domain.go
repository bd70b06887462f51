package rbac

import "github.com/mxstorebi/mxstorebi/internal/shared"

// MatrixRow is one permission and whether each role carries it.
type MatrixRow struct {
	Permission string
	Granted    []bool
}

// Matrix is the role to permission grid shown on the admin page.
type Matrix struct {
	Roles []shared.Role
	Rows  []MatrixRow
}

// BuildMatrix renders shared.RolePermissions in display order.
func BuildMatrix() Matrix {
	roles := shared.AllRoles()
	scopes := shared.CoreScopes()
	rows := make([]MatrixRow, 0, len(scopes))
	for _, perm := range scopes {
		granted := make([]bool, len(roles))
		for i, role := range roles {
			granted[i] = shared.RoleHas(role, perm)
		}
		rows = append(rows, MatrixRow{Permission: perm, Granted: granted})
	}
	return Matrix{Roles: roles, Rows: rows}
}
