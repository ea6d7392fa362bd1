// Package authz holds the role model and the permission evaluator. It is pure:
// every decision is a function of the calling Principal, the Action and, for
// object checks, the target's owner. Nothing here touches storage.
package authz

import "github.com/tbourn/go-review-catalog/internal/domain"

// Principal is the caller of one request. It is built once by the
// authentication middleware and never mutated afterwards.
type Principal struct {
	ID           string
	Username     string
	Role         domain.Role
	IsSuperStaff bool
	Anonymous    bool
}

// Anonymous returns the principal used when a request carries no credentials.
func Anonymous() Principal { return Principal{Anonymous: true} }

// FromUser builds an authenticated principal from a stored account.
func FromUser(u *domain.User) Principal {
	return Principal{
		ID:           u.ID,
		Username:     u.Username,
		Role:         u.Role,
		IsSuperStaff: u.IsStaff,
	}
}

// IsAdmin reports whether p holds the admin role or the superuser flag.
// Anonymous principals are never admins.
func IsAdmin(p Principal) bool {
	if p.Anonymous {
		return false
	}
	return p.Role == domain.RoleAdmin || p.IsSuperStaff
}

// IsModerator reports whether p holds the moderator role. The superuser flag
// does not make a principal a moderator.
func IsModerator(p Principal) bool {
	if p.Anonymous {
		return false
	}
	return p.Role == domain.RoleModerator
}

// IsElevated reports whether p is an admin or a moderator.
func IsElevated(p Principal) bool { return IsAdmin(p) || IsModerator(p) }
