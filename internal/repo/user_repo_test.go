package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustUser(t, db, "alice")

	dup := &domain.User{Username: "alice2", Email: "alice@example.com", Role: domain.RoleUser, IsActive: true}
	if err := CreateUser(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "alice")

	got, err := GetUserByEmail(context.Background(), db, "  ALICE@Example.COM ")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("got %s; want %s", got.ID, u.ID)
	}

	if _, err := GetUserByEmail(context.Background(), db, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirmationCode_ConsumedOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := mustUser(t, db, "alice")

	if err := SetConfirmationCode(ctx, db, u.ID, "code-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ok, err := ConsumeConfirmationCode(ctx, db, u.ID, "wrong"); err != nil || ok {
		t.Fatalf("wrong code: ok=%v err=%v", ok, err)
	}
	if ok, err := ConsumeConfirmationCode(ctx, db, u.ID, "code-1"); err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}
	if ok, _ := ConsumeConfirmationCode(ctx, db, u.ID, "code-1"); ok {
		t.Fatalf("second consume must fail")
	}
	if ok, _ := ConsumeConfirmationCode(ctx, db, u.ID, ""); ok {
		t.Fatalf("empty code must never match")
	}
}

func TestListUsersPage_Search(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, n := range []string{"alice", "bob", "malice"} {
		mustUser(t, db, n)
	}

	n, err := CountUsers(ctx, db, "lic")
	if err != nil || n != 2 {
		t.Fatalf("CountUsers = %d, %v; want 2", n, err)
	}
	page, err := ListUsersPage(ctx, db, "lic", 0, 10)
	if err != nil {
		t.Fatalf("ListUsersPage: %v", err)
	}
	if len(page) != 2 || page[0].Username != "alice" || page[1].Username != "malice" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestUpdateUser_NotFoundAndDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustUser(t, db, "alice")
	bob := mustUser(t, db, "bob")

	if err := UpdateUser(ctx, db, "missing", map[string]any{"bio": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := UpdateUser(ctx, db, bob.ID, map[string]any{"username": "alice"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestDeleteUser_CascadesAuthoredContent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, db, "alice")
	bob := mustUser(t, db, "bob")
	ti := mustTitle(t, db, "Dune")

	ar := &domain.Review{TitleID: ti.ID, AuthorID: alice.ID, Text: "a", Score: 5}
	br := &domain.Review{TitleID: ti.ID, AuthorID: bob.ID, Text: "b", Score: 6}
	for _, r := range []*domain.Review{ar, br} {
		if err := CreateReview(ctx, db, r); err != nil {
			t.Fatalf("create review: %v", err)
		}
	}
	// bob comments on alice's review; alice comments on bob's.
	_ = CreateComment(ctx, db, &domain.Comment{ReviewID: ar.ID, AuthorID: bob.ID, Text: "x"})
	_ = CreateComment(ctx, db, &domain.Comment{ReviewID: br.ID, AuthorID: alice.ID, Text: "y"})
	keep := &domain.Comment{ReviewID: br.ID, AuthorID: bob.ID, Text: "z"}
	_ = CreateComment(ctx, db, keep)

	if err := DeleteUser(ctx, db, alice.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	var reviews, comments int64
	db.Model(&domain.Review{}).Count(&reviews)
	db.Model(&domain.Comment{}).Count(&comments)
	if reviews != 1 || comments != 1 {
		t.Fatalf("after delete: reviews=%d comments=%d; want 1,1", reviews, comments)
	}
	if _, err := GetComment(ctx, db, br.ID, keep.ID); err != nil {
		t.Fatalf("unrelated comment should survive: %v", err)
	}
	if err := DeleteUser(ctx, db, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
