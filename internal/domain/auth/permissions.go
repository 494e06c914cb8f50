package auth

import "slices"

// Permission is an abstract capability granted to roles through the matrix below.
type Permission string

const (
	PermissionRead    Permission = "PERMISSION_LECTURE"
	PermissionWrite   Permission = "PERMISSION_ECRITURE"
	PermissionReports Permission = "PERMISSION_RAPPORTS"
	PermissionAdmin   Permission = "PERMISSION_ADMIN"
)

// AllPermissions returns every defined permission in declaration order.
func AllPermissions() []Permission {
	return []Permission{PermissionRead, PermissionWrite, PermissionReports, PermissionAdmin}
}

// ParsePermission returns the permission named s, accepting the short aliases
// READ, WRITE, REPORTS and ADMIN.
func ParsePermission(s string) (Permission, bool) {
	switch s {
	case string(PermissionRead), "READ":
		return PermissionRead, true
	case string(PermissionWrite), "WRITE":
		return PermissionWrite, true
	case string(PermissionReports), "REPORTS":
		return PermissionReports, true
	case string(PermissionAdmin), "ADMIN":
		return PermissionAdmin, true
	default:
		return "", false
	}
}

// bypassRoles are granted every permission and skip the matrix.
var bypassRoles = []Role{RoleAdmin, RoleInformatique}

// permissionMatrix is the canonical role -> permissions mapping.
var permissionMatrix = map[Role][]Permission{
	RoleServiceProspection: {PermissionRead, PermissionWrite, PermissionReports},
	RoleDirection:          {PermissionRead, PermissionReports},
	RoleSecretariat:        {PermissionRead, PermissionWrite},
	RoleUser:               {PermissionRead},
}

// IsBypassRole reports whether r is granted all permissions unconditionally.
func IsBypassRole(r Role) bool { return slices.Contains(bypassRoles, r) }

// PermissionsFor returns the permissions granted to a single role.
func PermissionsFor(r Role) []Permission {
	if IsBypassRole(r) {
		return AllPermissions()
	}
	return slices.Clone(permissionMatrix[r])
}

// Permissions resolves the union of permissions granted by roles, in declaration order.
func Permissions(roles []Role) []Permission {
	granted := make(map[Permission]bool, 4)
	for _, r := range roles {
		for _, p := range PermissionsFor(r) {
			granted[p] = true
		}
	}
	out := make([]Permission, 0, len(granted))
	for _, p := range AllPermissions() {
		if granted[p] {
			out = append(out, p)
		}
	}
	return out
}

// Can reports whether id is granted p, through a bypass role or the matrix.
func Can(id Identity, p Permission) bool {
	if id.IsBypass() {
		return true
	}
	return slices.Contains(Permissions(id.Roles), p)
}
