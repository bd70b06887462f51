package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolePermissionMatrix(t *testing.T) {
	cases := map[Role]map[string]bool{
		RoleAdmin:         {PermReportsSubmit: true, PermReportsReview: true, PermStoresEdit: true, PermAuditView: true},
		RoleHeadManager:   {PermReportsSubmit: true, PermReportsReview: false, PermUsersEdit: true, PermAuditView: false},
		RoleFinance:       {PermReportsSubmit: true, PermReportsReview: true, PermReportsExport: true, PermStoresEdit: false},
		RoleBranchManager: {PermReportsSubmit: true, PermReportsView: true, PermReportsReview: false, PermUsersView: false},
		RoleEmployee:      {PermReportsSubmit: true, PermReportsView: true, PermReportsExport: false},
	}
	for role, perms := range cases {
		for perm, want := range perms {
			assert.Equal(t, want, RoleHas(role, perm), "%s %s", role, perm)
		}
	}
	assert.ElementsMatch(t, CoreScopes(), PermissionsFor(RoleAdmin))
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(RoleEmployee)
	perms[0] = "tampered"
	assert.NotEqual(t, "tampered", PermissionsFor(RoleEmployee)[0])
}
