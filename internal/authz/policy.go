package authz

import (
	"errors"
	"net/http"
)

// Action classifies a request as safe (Read) or state-changing (Write).
type Action int

const (
	Read Action = iota
	Write
)

func (a Action) String() string {
	if a == Read {
		return "read"
	}
	return "write"
}

// ActionForMethod maps an HTTP method to an Action. GET, HEAD and OPTIONS
// are safe; everything else writes.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return Read
	}
	return Write
}

// Permission is a collection-level check with no target object.
type Permission interface {
	HasPermission(p Principal, a Action) bool
}

// Owned is anything with an owning account.
type Owned interface {
	OwnerID() string
}

// ObjectPermission is a per-object check. It is only consulted after the
// coarse check of the same route has passed.
type ObjectPermission interface {
	HasObjectPermission(p Principal, a Action, target Owned) bool
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(p Principal, a Action) bool

func (f PermissionFunc) HasPermission(p Principal, a Action) bool { return f(p, a) }

var (
	// AdminOnly grants non-anonymous admins.
	AdminOnly Permission = PermissionFunc(func(p Principal, _ Action) bool {
		return !p.Anonymous && IsAdmin(p)
	})

	// ReadOnly grants every safe action regardless of who asks.
	ReadOnly Permission = PermissionFunc(func(_ Principal, a Action) bool {
		return a == Read
	})

	// Authenticated grants any non-anonymous principal.
	Authenticated Permission = PermissionFunc(func(p Principal, _ Action) bool {
		return !p.Anonymous
	})

	// AuthenticatedOrReadOnly grants reads to everyone and writes to
	// authenticated principals.
	AuthenticatedOrReadOnly = Any(ReadOnly, Authenticated)

	// AdminOrReadOnly grants reads to everyone and writes to admins.
	AdminOrReadOnly = Any(AdminOnly, ReadOnly)
)

// Any grants when at least one of perms grants, evaluated left to right.
func Any(perms ...Permission) Permission {
	return PermissionFunc(func(p Principal, a Action) bool {
		for _, perm := range perms {
			if perm.HasPermission(p, a) {
				return true
			}
		}
		return false
	})
}

type isOwner struct{}

func (isOwner) HasObjectPermission(p Principal, _ Action, target Owned) bool {
	return !p.Anonymous && p.ID != "" && target.OwnerID() == p.ID
}

type adminOrOwnerOrReadOnly struct{}

func (adminOrOwnerOrReadOnly) HasPermission(p Principal, a Action) bool {
	return AuthenticatedOrReadOnly.HasPermission(p, a)
}

func (adminOrOwnerOrReadOnly) HasObjectPermission(p Principal, a Action, target Owned) bool {
	if p.Anonymous {
		return a == Read
	}
	return IsOwner.HasObjectPermission(p, a, target) || IsElevated(p)
}

var (
	// IsOwner grants when the principal authored the target.
	IsOwner ObjectPermission = isOwner{}

	// AdminOrOwnerOrReadOnly governs reviews and comments: reads are open,
	// writes need the author, a moderator or an admin. Its coarse half is
	// AuthenticatedOrReadOnly.
	AdminOrOwnerOrReadOnly = adminOrOwnerOrReadOnly{}
)

// Denials. Both wrap ErrPermissionDenied so callers can match either the
// family or the exact case.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotAuthenticated = &denial{msg: "authentication credentials were not provided"}
	ErrForbidden        = &denial{msg: "you do not have permission to perform this action"}
)

type denial struct{ msg string }

func (d *denial) Error() string { return d.msg }
func (d *denial) Unwrap() error { return ErrPermissionDenied }

func deny(p Principal) error {
	if p.Anonymous {
		return ErrNotAuthenticated
	}
	return ErrForbidden
}

// Check runs a coarse permission and returns nil or a denial.
func Check(p Principal, a Action, perm Permission) error {
	if perm.HasPermission(p, a) {
		return nil
	}
	return deny(p)
}

// CheckObject runs an object permission against target and returns nil or
// a denial.
func CheckObject(p Principal, a Action, perm ObjectPermission, target Owned) error {
	if perm.HasObjectPermission(p, a, target) {
		return nil
	}
	return deny(p)
}
