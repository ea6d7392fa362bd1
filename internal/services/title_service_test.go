package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/search"
)

func seedTags(t *testing.T, svc *CatalogService) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.CreateCategory(ctx, TagInput{Name: "Books", Slug: "books"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, TagInput{Name: "Films", Slug: "films"})
	require.NoError(t, err)
	for _, g := range []TagInput{{"Drama", "drama"}, {"Sci-Fi", "sci-fi"}} {
		_, err := svc.CreateGenre(ctx, g)
		require.NoError(t, err)
	}
}

func TestTitleService_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	seedTags(t, &CatalogService{DB: db})
	svc := NewTitleService(db, search.New())
	ctx := context.Background()

	v, err := svc.Create(ctx, TitleInput{
		Name:        " Dune ",
		Year:        intp(1965),
		Description: strp("Spice and sand"),
		Category:    "books",
		Genre:       []string{"sci-fi", "drama", "sci-fi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune", v.Name)
	require.NotNil(t, v.Category)
	assert.Equal(t, "books", v.Category.Slug)
	assert.Len(t, v.Genres, 2)
	assert.Nil(t, v.Rating)
	assert.Equal(t, 1, svc.Index.Len())

	got, err := svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	_, err = svc.Get(ctx, v.ID+100)
	assert.ErrorIs(t, err, ErrTitleNotFound)
}

func TestTitleService_CreateRejects(t *testing.T) {
	db := newTestDB(t)
	seedTags(t, &CatalogService{DB: db})
	svc := NewTitleService(db, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    TitleInput
		field string
	}{
		{"missing name", TitleInput{Year: intp(2000)}, "name"},
		{"missing year", TitleInput{Name: "x"}, "year"},
		{"year too large", TitleInput{Name: "x", Year: intp(40000)}, "year"},
		{"unknown category", TitleInput{Name: "x", Year: intp(1), Category: "music"}, "category"},
		{"unknown genre", TitleInput{Name: "x", Year: intp(1), Genre: []string{"drama", "jazz"}}, "genre"},
		{"bad slug", TitleInput{Name: "x", Year: intp(1), Category: "no spaces"}, "category"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestTitleService_UpdateAndReplace(t *testing.T) {
	db := newTestDB(t)
	seedTags(t, &CatalogService{DB: db})
	svc := NewTitleService(db, search.New())
	ctx := context.Background()

	v, err := svc.Create(ctx, TitleInput{Name: "Dune", Year: intp(1965), Category: "books", Genre: []string{"drama"}})
	require.NoError(t, err)

	up, err := svc.Update(ctx, v.ID, TitlePatch{Year: intp(1984), Category: strp("films")})
	require.NoError(t, err)
	assert.Equal(t, 1984, up.Year)
	assert.Equal(t, "Dune", up.Name)
	require.NotNil(t, up.Category)
	assert.Equal(t, "films", up.Category.Slug)
	assert.Len(t, up.Genres, 1, "genres untouched when omitted")

	up, err = svc.Update(ctx, v.ID, TitlePatch{Category: strp(""), Genre: &[]string{}})
	require.NoError(t, err)
	assert.Nil(t, up.Category)
	assert.Empty(t, up.Genres)

	up, err = svc.Replace(ctx, v.ID, TitleInput{Name: "Dune Messiah", Year: intp(1969), Genre: []string{"sci-fi"}})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", up.Name)
	require.Len(t, up.Genres, 1)
	assert.Equal(t, "sci-fi", up.Genres[0].Slug)

	_, err = svc.Update(ctx, v.ID+100, TitlePatch{Year: intp(1)})
	assert.ErrorIs(t, err, ErrTitleNotFound)

	_, err = svc.Update(ctx, v.ID, TitlePatch{Name: strp("  ")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTitleService_ListFiltersAndRating(t *testing.T) {
	db := newTestDB(t)
	seedTags(t, &CatalogService{DB: db})
	svc := NewTitleService(db, search.New())
	reviews := &ReviewService{DB: db}
	ctx := context.Background()

	dune, err := svc.Create(ctx, TitleInput{Name: "Dune", Year: intp(1965), Category: "books", Genre: []string{"sci-fi"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, TitleInput{Name: "Stalker", Year: intp(1979), Category: "films", Genre: []string{"drama", "sci-fi"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, TitleInput{Name: "Dune", Year: intp(1984), Category: "films"})
	require.NoError(t, err)

	alice := seedUser(t, db, "alice", domain.RoleUser)
	_, err = reviews.Create(ctx, alice, dune.ID, ReviewInput{Text: "t", Score: intp(8)})
	require.NoError(t, err)

	tests := []struct {
		name string
		q    TitleQuery
		want int64
	}{
		{"all", TitleQuery{}, 3},
		{"name contains", TitleQuery{Name: "dun"}, 2},
		{"year", TitleQuery{Year: intp(1979)}, 1},
		{"category", TitleQuery{Category: "films"}, 2},
		{"genre", TitleQuery{Genre: "sci-fi"}, 2},
		{"combined", TitleQuery{Name: "dune", Category: "films"}, 1},
		{"none", TitleQuery{Genre: "unknown"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items, total, err := svc.List(ctx, tc.q)
			require.NoError(t, err)
			assert.Equal(t, tc.want, total)
			assert.Len(t, items, int(tc.want))
		})
	}

	items, _, err := svc.List(ctx, TitleQuery{Name: "dune", Category: "books"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Rating)
	assert.InDelta(t, 8.0, *items[0].Rating, 1e-9)

	items, _, err = svc.List(ctx, TitleQuery{})
	require.NoError(t, err)
	assert.Greater(t, items[0].ID, items[1].ID, "newest id first")
}

func TestTitleService_Search(t *testing.T) {
	db := newTestDB(t)
	svc := NewTitleService(db, search.New())
	ctx := context.Background()

	_, err := svc.Create(ctx, TitleInput{Name: "The Left Hand of Darkness", Year: intp(1969)})
	require.NoError(t, err)
	dark, err := svc.Create(ctx, TitleInput{Name: "Darkness", Year: intp(2001)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, TitleInput{Name: "Solaris", Year: intp(1961)})
	require.NoError(t, err)

	items, total, err := svc.List(ctx, TitleQuery{Q: "darkness"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, dark.ID, items[0].ID, "closest match first")

	items, total, err = svc.List(ctx, TitleQuery{Q: "darkness", Year: intp(1969)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)

	items, total, err = svc.List(ctx, TitleQuery{Q: "nothing-matches"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	// A fresh index rebuilt from storage answers the same way.
	svc.Index = search.New()
	require.NoError(t, svc.RebuildIndex(ctx))
	assert.Equal(t, 3, svc.Index.Len())
}

func TestTitleService_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	svc := NewTitleService(db, search.New())
	reviews := &ReviewService{DB: db}
	comments := &CommentService{DB: db}
	ctx := context.Background()

	v, err := svc.Create(ctx, TitleInput{Name: "Dune", Year: intp(1965)})
	require.NoError(t, err)
	alice := seedUser(t, db, "alice", domain.RoleUser)
	r, err := reviews.Create(ctx, alice, v.ID, ReviewInput{Text: "t", Score: intp(5)})
	require.NoError(t, err)
	_, err = comments.Create(ctx, alice, v.ID, r.ID, CommentInput{Text: "c"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, v.ID))
	assert.Zero(t, svc.Index.Len())

	for _, m := range []any{&domain.Review{}, &domain.Comment{}} {
		var n int64
		require.NoError(t, db.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T", m)
	}
	assert.ErrorIs(t, svc.Delete(ctx, v.ID), ErrTitleNotFound)
}
