package auth

// UserRole is a role assignable to platform users. Protected endpoints
// validate the caller's token against one or more of these names.
type UserRole string

const (
	CustomerUserRole   UserRole = "customer"
	OperatorUserRole   UserRole = "operator"
	ManagerUserRole    UserRole = "manager"
	AdminUserRole      UserRole = "admin"
	ComplianceUserRole UserRole = "compliance"
)

func (u UserRole) String() string {
	return string(u)
}

func (u UserRole) IsValid() bool {
	switch u {
	case CustomerUserRole, OperatorUserRole, ManagerUserRole, AdminUserRole, ComplianceUserRole:
		return true
	}
	return false
}

func AllRoles() []UserRole {
	return []UserRole{
		CustomerUserRole,
		OperatorUserRole,
		ManagerUserRole,
		AdminUserRole,
		ComplianceUserRole,
	}
}

func FromUserRoleArrayToStringArray(roles []UserRole) []string {
	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.String())
	}
	return roleNames
}
