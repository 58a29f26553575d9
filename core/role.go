package core

import (
	"fmt"
	"strings"
)

// Role is the closed set of user roles stored in the users table and carried
// in token claims.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole maps a stored or claimed role string onto the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Authority renders the single canonical authority string used by
// authorization checks (e.g. "ROLE_ADMIN").
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}
