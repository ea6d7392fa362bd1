package authz

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

type owned string

func (o owned) OwnerID() string { return string(o) }

var (
	anon  = Anonymous()
	user  = Principal{ID: "U2", Role: domain.RoleUser}
	owner = Principal{ID: "U1", Role: domain.RoleUser}
	mod   = Principal{ID: "U3", Role: domain.RoleModerator}
	admin = Principal{ID: "U4", Role: domain.RoleAdmin}
	staff = Principal{ID: "U5", Role: domain.RoleUser, IsSuperStaff: true}
)

func TestActionForMethod(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		assert.Equal(t, Read, ActionForMethod(m), m)
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		assert.Equal(t, Write, ActionForMethod(m), m)
	}
}

func TestCoarsePolicies(t *testing.T) {
	tests := []struct {
		name string
		perm Permission
		p    Principal
		a    Action
		want bool
	}{
		{"admin only/admin", AdminOnly, admin, Write, true},
		{"admin only/staff", AdminOnly, staff, Write, true},
		{"admin only/moderator", AdminOnly, mod, Read, false},
		{"admin only/anon", AdminOnly, anon, Read, false},
		{"read only/anon read", ReadOnly, anon, Read, true},
		{"read only/admin write", ReadOnly, admin, Write, false},
		{"admin or read/anon read", AdminOrReadOnly, anon, Read, true},
		{"admin or read/user write", AdminOrReadOnly, user, Write, false},
		{"admin or read/admin write", AdminOrReadOnly, admin, Write, true},
		{"auth or read/anon write", AuthenticatedOrReadOnly, anon, Write, false},
		{"auth or read/user write", AuthenticatedOrReadOnly, user, Write, true},
		{"auth or read/anon read", AuthenticatedOrReadOnly, anon, Read, true},
		{"authenticated/anon read", Authenticated, anon, Read, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.perm.HasPermission(tc.p, tc.a))
		})
	}
}

func TestAny_EmptyDenies(t *testing.T) {
	assert.False(t, Any().HasPermission(admin, Read))
}

func TestObjectPermission_ReadAlwaysAllowed(t *testing.T) {
	target := owned("U1")
	for _, p := range []Principal{anon, user, owner, mod, admin, staff} {
		assert.True(t, AdminOrOwnerOrReadOnly.HasObjectPermission(p, Read, target), "%+v", p)
	}
}

func TestObjectPermission_NonOwnerPlainUserCannotWrite(t *testing.T) {
	for _, r := range []domain.Role{domain.RoleUser} {
		p := Principal{ID: "other", Role: r}
		assert.False(t, AdminOrOwnerOrReadOnly.HasObjectPermission(p, Write, owned("U1")))
	}
	assert.False(t, AdminOrOwnerOrReadOnly.HasObjectPermission(anon, Write, owned("")))
}

func TestObjectPermission_DeleteReviewScenario(t *testing.T) {
	review := domain.Review{ID: 7, AuthorID: "U1"}

	assert.False(t, AdminOrOwnerOrReadOnly.HasObjectPermission(anon, Write, review))
	assert.False(t, AdminOrOwnerOrReadOnly.HasObjectPermission(user, Write, review))
	assert.True(t, AdminOrOwnerOrReadOnly.HasObjectPermission(owner, Write, review))
	assert.True(t, AdminOrOwnerOrReadOnly.HasObjectPermission(mod, Write, review))
	assert.True(t, AdminOrOwnerOrReadOnly.HasObjectPermission(admin, Write, review))
	assert.True(t, AdminOrOwnerOrReadOnly.HasObjectPermission(staff, Write, review))
}

func TestIsOwner_IdentityNotRole(t *testing.T) {
	assert.True(t, IsOwner.HasObjectPermission(owner, Write, owned("U1")))
	assert.False(t, IsOwner.HasObjectPermission(admin, Write, owned("U1")))
	assert.False(t, IsOwner.HasObjectPermission(Principal{Anonymous: true, ID: "U1"}, Read, owned("U1")))
}

func TestAdminOrOwnerOrReadOnly_CoarseHalf(t *testing.T) {
	assert.True(t, AdminOrOwnerOrReadOnly.HasPermission(anon, Read))
	assert.False(t, AdminOrOwnerOrReadOnly.HasPermission(anon, Write))
	assert.True(t, AdminOrOwnerOrReadOnly.HasPermission(user, Write))
}

func TestCheck_DenialKinds(t *testing.T) {
	require.NoError(t, Check(admin, Write, AdminOnly))

	err := Check(anon, Write, AdminOrReadOnly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAuthenticated))
	assert.True(t, errors.Is(err, ErrPermissionDenied))

	err = Check(user, Write, AdminOrReadOnly)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	assert.False(t, errors.Is(err, ErrNotAuthenticated))

	err = CheckObject(user, Write, AdminOrOwnerOrReadOnly, owned("U1"))
	assert.ErrorIs(t, err, ErrForbidden)
	require.NoError(t, CheckObject(owner, Write, AdminOrOwnerOrReadOnly, owned("U1")))
}
