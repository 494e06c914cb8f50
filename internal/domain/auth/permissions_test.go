package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissions_Union(t *testing.T) {
	got := Permissions([]Role{RoleSecretariat, RoleDirection})
	assert.Equal(t, []Permission{PermissionRead, PermissionWrite, PermissionReports}, got)
}

func TestPermissions_UnknownRoleGrantsNothing(t *testing.T) {
	assert.Empty(t, Permissions([]Role{"ROLE_STAGIAIRE"}))
	assert.Empty(t, Permissions(nil))
}

func TestPermissionsFor_BypassRoles(t *testing.T) {
	assert.Equal(t, AllPermissions(), PermissionsFor(RoleAdmin))
	assert.Equal(t, AllPermissions(), PermissionsFor(RoleInformatique))
}

func TestPermissionsFor_ReturnsCopy(t *testing.T) {
	p := PermissionsFor(RoleUser)
	p[0] = PermissionAdmin
	assert.Equal(t, []Permission{PermissionRead}, PermissionsFor(RoleUser))
}

func TestCan(t *testing.T) {
	sec := Identity{Roles: []Role{RoleSecretariat}}
	assert.True(t, Can(sec, PermissionWrite))
	assert.False(t, Can(sec, PermissionReports))
	assert.False(t, Can(sec, PermissionAdmin))
	assert.True(t, Can(Identity{Roles: []Role{RoleInformatique}}, PermissionAdmin))
}

func TestParsePermission(t *testing.T) {
	p, ok := ParsePermission("REPORTS")
	assert.True(t, ok)
	assert.Equal(t, PermissionReports, p)

	p, ok = ParsePermission("PERMISSION_ECRITURE")
	assert.True(t, ok)
	assert.Equal(t, PermissionWrite, p)

	_, ok = ParsePermission("DELETE")
	assert.False(t, ok)
}
