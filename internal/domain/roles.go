package domain

import (
	"fmt"
	"strings"
)

// Role is the account tier stored on every user. The set is closed: any
// value outside of it is rejected before it reaches the database.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role in ascending order of privilege.
var Roles = []Role{RoleUser, RoleModerator, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole normalizes s (trimmed, lower-cased) and returns the matching
// Role. An empty string maps to RoleUser.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
