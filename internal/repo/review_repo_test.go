package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

func TestCreateReview_DuplicatePerTitleAndAuthor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := mustUser(t, db, "alice")
	ti := mustTitle(t, db, "Dune")

	if err := CreateReview(ctx, db, &domain.Review{TitleID: ti.ID, AuthorID: u.ID, Text: "a", Score: 5}); err != nil {
		t.Fatalf("first: %v", err)
	}
	err := CreateReview(ctx, db, &domain.Review{TitleID: ti.ID, AuthorID: u.ID, Text: "b", Score: 9})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetReview_ScopedToTitle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := mustUser(t, db, "alice")
	t1 := mustTitle(t, db, "A")
	t2 := mustTitle(t, db, "B")
	r := &domain.Review{TitleID: t1.ID, AuthorID: u.ID, Text: "a", Score: 5}
	_ = CreateReview(ctx, db, r)

	got, err := GetReview(ctx, db, t1.ID, r.ID)
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	if got.Author.Username != "alice" {
		t.Fatalf("author not preloaded: %+v", got.Author)
	}
	if _, err := GetReview(ctx, db, t2.ID, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("review under another title must be ErrNotFound, got %v", err)
	}
}

func TestScoresForTitles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	t1 := mustTitle(t, db, "A")
	t2 := mustTitle(t, db, "B")
	for i, s := range []int{3, 5, 10} {
		u := mustUser(t, db, string(rune('a'+i)))
		_ = CreateReview(ctx, db, &domain.Review{TitleID: t1.ID, AuthorID: u.ID, Text: "x", Score: s})
	}

	got, err := ScoresForTitles(ctx, db, []int64{t1.ID, t2.ID})
	if err != nil {
		t.Fatalf("ScoresForTitles: %v", err)
	}
	sum := 0
	for _, s := range got {
		if s.TitleID != t1.ID {
			t.Fatalf("unexpected title %d", s.TitleID)
		}
		sum += s.Score
	}
	if len(got) != 3 || sum != 18 {
		t.Fatalf("got %+v", got)
	}
	if out, err := ScoresForTitles(ctx, db, nil); err != nil || out != nil {
		t.Fatalf("empty ids: %v %v", out, err)
	}
}

func TestUpdateAndDeleteReview(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := mustUser(t, db, "alice")
	ti := mustTitle(t, db, "A")
	r := &domain.Review{TitleID: ti.ID, AuthorID: u.ID, Text: "a", Score: 5}
	_ = CreateReview(ctx, db, r)
	_ = CreateComment(ctx, db, &domain.Comment{ReviewID: r.ID, AuthorID: u.ID, Text: "c"})

	if err := UpdateReview(ctx, db, ti.ID, r.ID, map[string]any{"score": 8}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := GetReview(ctx, db, ti.ID, r.ID)
	if got.Score != 8 {
		t.Fatalf("score = %d; want 8", got.Score)
	}
	if err := DeleteReview(ctx, db, ti.ID, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := CountComments(ctx, db, r.ID); n != 0 {
		t.Fatalf("comments should cascade, got %d", n)
	}
}

func TestReviewsStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ti := mustTitle(t, db, "A")

	n, maxAt, err := ReviewsStats(ctx, db, ti.ID)
	if err != nil || n != 0 || maxAt != nil {
		t.Fatalf("empty stats = (%d, %v, %v)", n, maxAt, err)
	}

	u := mustUser(t, db, "alice")
	_ = CreateReview(ctx, db, &domain.Review{TitleID: ti.ID, AuthorID: u.ID, Text: "a", Score: 5})
	time.Sleep(5 * time.Millisecond)
	v := mustUser(t, db, "bob")
	last := &domain.Review{TitleID: ti.ID, AuthorID: v.ID, Text: "b", Score: 6}
	_ = CreateReview(ctx, db, last)

	n, maxAt, err = ReviewsStats(ctx, db, ti.ID)
	if err != nil || n != 2 || maxAt == nil {
		t.Fatalf("stats = (%d, %v, %v)", n, maxAt, err)
	}
	if d := maxAt.Sub(last.UpdatedAt); d > time.Millisecond || d < -time.Millisecond {
		t.Fatalf("maxAt = %v; want %v", maxAt, last.UpdatedAt)
	}
}

func TestIdempotency_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := GetIdempotency(ctx, db, "u1", "titles/1/reviews", "k", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "titles/1/reviews", "k", 42, 201, time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "titles/1/reviews", "k", 43, 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	rec, err := GetIdempotency(ctx, db, "u1", "titles/1/reviews", "k", now)
	if err != nil || rec.ResourceID != 42 {
		t.Fatalf("get: %+v %v", rec, err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "titles/1/reviews", "k", now.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record must be ErrNotFound, got %v", err)
	}
	if n, err := PurgeExpiredIdempotency(ctx, db, now.Add(2*time.Hour)); err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
}
