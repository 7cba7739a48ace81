package enums

// EmployeeRole is the back office permission role carried in access tokens.
type EmployeeRole string

const (
	EmployeeRoleAdmin   EmployeeRole = "admin"
	EmployeeRoleManager EmployeeRole = "manager"
	EmployeeRoleClerk   EmployeeRole = "clerk"
	EmployeeRoleViewer  EmployeeRole = "viewer"
)

var employeeRoles = []EmployeeRole{
	EmployeeRoleAdmin,
	EmployeeRoleManager,
	EmployeeRoleClerk,
	EmployeeRoleViewer,
}

func (r EmployeeRole) String() string { return string(r) }

func (r EmployeeRole) IsValid() bool { return isOneOf(r, employeeRoles) }

func ParseEmployeeRole(value string) (EmployeeRole, error) {
	return parseOneOf("employee role", value, employeeRoles)
}
