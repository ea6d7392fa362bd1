package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/domain"
)

func TestReviewService_Create(t *testing.T) {
	db := newTestDB(t)
	svc := &ReviewService{DB: db}
	ctx := context.Background()
	alice := seedUser(t, db, "alice", domain.RoleUser)
	titleID := seedTitle(t, db, "Dune")

	r, err := svc.Create(ctx, alice, titleID, ReviewInput{Text: "  great  ", Score: intp(9)})
	require.NoError(t, err)
	assert.Equal(t, "great", r.Text)
	assert.Equal(t, titleID, r.TitleID)
	assert.Equal(t, alice.ID, r.AuthorID)
	assert.Equal(t, "alice", r.Author.Username)

	_, err = svc.Create(ctx, alice, titleID, ReviewInput{Text: "again", Score: intp(1)})
	assert.ErrorIs(t, err, ErrDuplicateReview)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestReviewService_CreateRejects(t *testing.T) {
	db := newTestDB(t)
	svc := &ReviewService{DB: db}
	ctx := context.Background()
	alice := seedUser(t, db, "alice", domain.RoleUser)
	titleID := seedTitle(t, db, "Dune")

	tests := []struct {
		name    string
		p       authz.Principal
		titleID int64
		in      ReviewInput
		want    error
	}{
		{"anonymous", authz.Anonymous(), titleID, ReviewInput{Text: "x", Score: intp(5)}, authz.ErrNotAuthenticated},
		{"score too high", alice, titleID, ReviewInput{Text: "x", Score: intp(11)}, ErrValidation},
		{"score negative", alice, titleID, ReviewInput{Text: "x", Score: intp(-1)}, ErrValidation},
		{"score missing", alice, titleID, ReviewInput{Text: "x"}, ErrValidation},
		{"blank text", alice, titleID, ReviewInput{Text: "   ", Score: intp(5)}, ErrValidation},
		{"unknown title", alice, titleID + 100, ReviewInput{Text: "x", Score: intp(5)}, ErrTitleNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.p, tc.titleID, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestReviewService_BoundaryScores(t *testing.T) {
	db := newTestDB(t)
	svc := &ReviewService{DB: db}
	ctx := context.Background()
	titleID := seedTitle(t, db, "Dune")

	for i, score := range []int{0, 10} {
		p := seedUser(t, db, []string{"low", "high"}[i], domain.RoleUser)
		r, err := svc.Create(ctx, p, titleID, ReviewInput{Text: "ok", Score: intp(score)})
		require.NoError(t, err)
		assert.Equal(t, score, r.Score)
	}
}

func TestReviewService_UpdatePermissions(t *testing.T) {
	db := newTestDB(t)
	svc := &ReviewService{DB: db}
	ctx := context.Background()
	alice := seedUser(t, db, "alice", domain.RoleUser)
	bob := seedUser(t, db, "bob", domain.RoleUser)
	mod := seedUser(t, db, "mod", domain.RoleModerator)
	titleID := seedTitle(t, db, "Dune")

	r, err := svc.Create(ctx, alice, titleID, ReviewInput{Text: "fine", Score: intp(6)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob, titleID, r.ID, ReviewPatch{Score: intp(1)})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = svc.Update(ctx, authz.Anonymous(), titleID, r.ID, ReviewPatch{Score: intp(1)})
	assert.ErrorIs(t, err, authz.ErrNotAuthenticated)

	got, err := svc.Update(ctx, alice, titleID, r.ID, ReviewPatch{Score: intp(8)})
	require.NoError(t, err)
	assert.Equal(t, 8, got.Score)
	assert.Equal(t, "fine", got.Text)

	got, err = svc.Update(ctx, mod, titleID, r.ID, ReviewPatch{Text: strp("edited")})
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Text)

	_, err = svc.Update(ctx, alice, titleID, r.ID, ReviewPatch{Score: intp(42)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReviewService_NotFoundBeforeForbidden(t *testing.T) {
	db := newTestDB(t)
	svc := &ReviewService{DB: db}
	ctx := context.Background()
	alice := seedUser(t, db, "alice", domain.RoleUser)
	bob := seedUser(t, db, "bob", domain.RoleUser)
	dune := seedTitle(t, db, "Dune")
	other := seedTitle(t, db, "Solaris")

	r, err := svc.Create(ctx, alice, dune, ReviewInput{Text: "fine", Score: intp(6)})
	require.NoError(t, err)

	err = svc.Delete(ctx, bob, dune, r.ID+50)
	assert.ErrorIs(t, err, ErrReviewNotFound)

	err = svc.Delete(ctx, bob, other, r.ID)
	assert.ErrorIs(t, err, ErrReviewNotFound, "review under a different title is missing")

	err = svc.Delete(ctx, bob, other+50, r.ID)
	assert.ErrorIs(t, err, ErrTitleNotFound)

	err = svc.Delete(ctx, bob, dune, r.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestReviewService_WriteChecksOrder(t *testing.T) {
	db := newTestDB(t)
	svc := &ReviewService{DB: db}
	ctx := context.Background()
	alice := seedUser(t, db, "alice", domain.RoleUser)
	bob := seedUser(t, db, "bob", domain.RoleUser)
	dune := seedTitle(t, db, "Dune")
	solaris := seedTitle(t, db, "Solaris")

	r, err := svc.Create(ctx, alice, dune, ReviewInput{Text: "fine", Score: intp(6)})
	require.NoError(t, err)

	// A bad body never hides a missing review or a denied caller.
	_, err = svc.Update(ctx, bob, dune, r.ID+50, ReviewPatch{Score: intp(42)})
	assert.ErrorIs(t, err, ErrReviewNotFound)
	_, err = svc.Update(ctx, bob, solaris, r.ID, ReviewPatch{Text: strp("  ")})
	assert.ErrorIs(t, err, ErrReviewNotFound)
	_, err = svc.Replace(ctx, bob, dune, r.ID+50, ReviewInput{Text: "x"})
	assert.ErrorIs(t, err, ErrReviewNotFound)

	_, err = svc.Update(ctx, bob, dune, r.ID, ReviewPatch{Score: intp(42)})
	assert.ErrorIs(t, err, authz.ErrForbidden)
	_, err = svc.Replace(ctx, bob, dune, r.ID, ReviewInput{Text: "only text"})
	assert.ErrorIs(t, err, authz.ErrForbidden)
	_, err = svc.Update(ctx, authz.Anonymous(), dune, r.ID, ReviewPatch{Score: intp(-1)})
	assert.ErrorIs(t, err, authz.ErrNotAuthenticated)

	_, err = svc.Replace(ctx, alice, dune, r.ID, ReviewInput{Text: "only text"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Replace(ctx, alice, dune, r.ID, ReviewInput{Score: intp(3)})
	assert.ErrorIs(t, err, ErrValidation)

	got, err := svc.Replace(ctx, alice, dune, r.ID, ReviewInput{Text: " rewritten ", Score: intp(10)})
	require.NoError(t, err)
	assert.Equal(t, "rewritten", got.Text)
	assert.Equal(t, 10, got.Score)
}

func TestReviewService_AdminDeleteCascadesComments(t *testing.T) {
	db := newTestDB(t)
	reviews := &ReviewService{DB: db}
	comments := &CommentService{DB: db}
	ctx := context.Background()
	alice := seedUser(t, db, "alice", domain.RoleUser)
	bob := seedUser(t, db, "bob", domain.RoleUser)
	admin := seedUser(t, db, "root", domain.RoleAdmin)
	titleID := seedTitle(t, db, "Dune")

	r, err := reviews.Create(ctx, alice, titleID, ReviewInput{Text: "fine", Score: intp(6)})
	require.NoError(t, err)
	_, err = comments.Create(ctx, bob, titleID, r.ID, CommentInput{Text: "agreed"})
	require.NoError(t, err)

	require.NoError(t, reviews.Delete(ctx, admin, titleID, r.ID))

	var n int64
	require.NoError(t, db.Model(&domain.Comment{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err = reviews.Get(ctx, titleID, r.ID)
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestReviewService_ListAndStats(t *testing.T) {
	db := newTestDB(t)
	svc := &ReviewService{DB: db}
	ctx := context.Background()
	titleID := seedTitle(t, db, "Dune")

	items, total, err := svc.List(ctx, titleID, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	for _, name := range []string{"a", "b", "c"} {
		p := seedUser(t, db, name, domain.RoleUser)
		_, err := svc.Create(ctx, p, titleID, ReviewInput{Text: "t", Score: intp(5)})
		require.NoError(t, err)
	}

	items, total, err = svc.List(ctx, titleID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 2)

	n, last, err := svc.Stats(ctx, titleID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NotNil(t, last)

	_, _, err = svc.List(ctx, titleID+1, 1, 10)
	assert.ErrorIs(t, err, ErrTitleNotFound)
}
