package domain

import (
	"fmt"
	"strings"
)

// Role is a principal's access level. Roles are totally ordered.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// rank gives the position of a role in EMPLOYEE < MANAGER < ADMIN.
// Unknown roles rank below every real role.
func (r Role) rank() int {
	switch r {
	case RoleEmployee:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.rank() > 0 }

// AtLeast reports whether r satisfies the minimum role min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.rank() >= min.rank()
}

// ParseRole accepts a role name case-insensitively. BASIC is the legacy name of EMPLOYEE.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EMPLOYEE", "BASIC":
		return RoleEmployee, nil
	case "MANAGER":
		return RoleManager, nil
	case "ADMIN":
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
