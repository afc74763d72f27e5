package rbac

// Role names. Students work through lectures, maintainers curate the
// question bank, admins can do everything including account management.
const (
	RoleStudent    = "student"
	RoleMaintainer = "maintainer"
	RoleAdmin      = "admin"
)

// RolePermissions is the default policy. Permissions are "resource:verb"
// strings; a trailing "*" grants the whole resource.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"lecture:view",
		"session:run",
		"state:write",
		"pin:write",
		"stats:view",
		"comment:write",
		"asset:upload",
	},
	RoleMaintainer: {
		"lecture:view",
		"session:run",
		"state:write",
		"pin:write",
		"stats:view",
		"comment:write",
		"asset:upload",
		"lecture:manage",
		"question:manage",
		"comment:moderate",
	},
	RoleAdmin: {
		"*",
	},
}

// ValidRole reports whether the policy knows the role.
func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
