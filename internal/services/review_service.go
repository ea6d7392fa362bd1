package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/repo"
)

const (
	minScore = 0
	maxScore = 10
)

// ReviewInput is the full set of client-writable review fields. The title
// and the author are never taken from the body.
type ReviewInput struct {
	Text  string `json:"text"  validate:"required"`
	Score *int   `json:"score" validate:"required,gte=0,lte=10"`
}

// ReviewPatch updates a subset of fields. Nil means unchanged.
type ReviewPatch struct {
	Text  *string `json:"text"`
	Score *int    `json:"score"`
}

// ReviewService implements review use-cases. Writes require an
// authenticated principal; updates and deletes additionally require the
// author, a moderator or an admin.
type ReviewService struct {
	DB *gorm.DB
}

func (s *ReviewService) tracer() trace.Tracer { return otel.Tracer("services/ReviewService") }

// Create stores a review by p on titleID. The title comes from the request
// path. A second review by the same author fails with ErrDuplicateReview;
// that rule is enforced by a unique index, so concurrent creates cannot both
// succeed.
func (s *ReviewService) Create(ctx context.Context, p authz.Principal, titleID int64, in ReviewInput) (*domain.Review, error) {
	ctx, span := s.tracer().Start(ctx, "Create", trace.WithAttributes(
		attribute.Int64("title.id", titleID),
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	if err := authz.Check(p, authz.Write, authz.AuthenticatedOrReadOnly); err != nil {
		return nil, err
	}
	in.Text = cleanText(in.Text)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	ok, err := repo.TitleExists(ctx, s.DB, titleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTitleNotFound
	}

	r := &domain.Review{TitleID: titleID, AuthorID: p.ID, Text: in.Text, Score: *in.Score}
	if err := repo.CreateReview(ctx, s.DB, r); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateReview
		}
		span.RecordError(err)
		return nil, err
	}
	r.Author = domain.User{ID: p.ID, Username: p.Username}
	return r, nil
}

// List returns one page of reviews on titleID and the total count.
func (s *ReviewService) List(ctx context.Context, titleID int64, page, pageSize int) ([]domain.Review, int64, error) {
	ok, err := repo.TitleExists(ctx, s.DB, titleID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrTitleNotFound
	}
	offset, limit := pageBounds(page, pageSize)
	total, err := repo.CountReviews(ctx, s.DB, titleID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Review{}, 0, nil
	}
	items, err := repo.ListReviewsPage(ctx, s.DB, titleID, offset, limit)
	return items, total, err
}

// Get returns review id under titleID.
func (s *ReviewService) Get(ctx context.Context, titleID, id int64) (*domain.Review, error) {
	return getReview(ctx, s.DB, titleID, id)
}

// Stats feeds the ETag of a review listing.
func (s *ReviewService) Stats(ctx context.Context, titleID int64) (int64, *time.Time, error) {
	return repo.ReviewsStats(ctx, s.DB, titleID)
}

// Update applies patch to review id after checking that p may modify it.
// The review is resolved and the permission checked before the patch is
// validated, so callers see 404, then 403, then 400.
func (s *ReviewService) Update(ctx context.Context, p authz.Principal, titleID, id int64, patch ReviewPatch) (*domain.Review, error) {
	return s.write(ctx, "Update", p, titleID, id, patch, false)
}

// Replace overwrites every client-writable field of review id. Both text
// and score are required.
func (s *ReviewService) Replace(ctx context.Context, p authz.Principal, titleID, id int64, in ReviewInput) (*domain.Review, error) {
	return s.write(ctx, "Replace", p, titleID, id, ReviewPatch{Text: &in.Text, Score: in.Score}, true)
}

func (s *ReviewService) write(ctx context.Context, op string, p authz.Principal, titleID, id int64, patch ReviewPatch, full bool) (*domain.Review, error) {
	ctx, span := s.tracer().Start(ctx, op, trace.WithAttributes(
		attribute.Int64("title.id", titleID),
		attribute.Int64("review.id", id),
	))
	defer span.End()

	var out *domain.Review
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := getReview(ctx, tx, titleID, id)
		if err != nil {
			return err
		}
		if err := authz.CheckObject(p, authz.Write, authz.AdminOrOwnerOrReadOnly, r); err != nil {
			return err
		}
		fields, err := reviewFields(patch, full)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := repo.UpdateReview(ctx, tx, titleID, id, fields); err != nil {
				return notFoundAs(err, ErrReviewNotFound)
			}
		}
		out, err = getReview(ctx, tx, titleID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reviewFields validates patch and returns the columns to write. full
// requires every field to be present.
func reviewFields(patch ReviewPatch, full bool) (map[string]any, error) {
	if full {
		if patch.Score == nil {
			return nil, invalid("score", "this field is required")
		}
		if patch.Text == nil || *patch.Text == "" {
			return nil, invalid("text", "this field is required")
		}
	}
	fields := map[string]any{}
	if patch.Text != nil {
		t := cleanText(*patch.Text)
		if t == "" {
			return nil, invalid("text", "this field may not be blank")
		}
		fields["text"] = t
	}
	if patch.Score != nil {
		if *patch.Score < minScore || *patch.Score > maxScore {
			return nil, invalid("score", "score must be between %d and %d", minScore, maxScore)
		}
		fields["score"] = *patch.Score
	}
	return fields, nil
}

// Delete removes review id and its comments after checking that p may.
func (s *ReviewService) Delete(ctx context.Context, p authz.Principal, titleID, id int64) error {
	ctx, span := s.tracer().Start(ctx, "Delete", trace.WithAttributes(
		attribute.Int64("title.id", titleID),
		attribute.Int64("review.id", id),
	))
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := getReview(ctx, tx, titleID, id)
		if err != nil {
			return err
		}
		if err := authz.CheckObject(p, authz.Write, authz.AdminOrOwnerOrReadOnly, r); err != nil {
			return err
		}
		return notFoundAs(repo.DeleteReview(ctx, tx, titleID, id), ErrReviewNotFound)
	})
}

// getReview resolves (titleID, id). It reports ErrTitleNotFound when the
// title itself is missing and ErrReviewNotFound when the review is missing
// or belongs to a different title.
func getReview(ctx context.Context, db *gorm.DB, titleID, id int64) (*domain.Review, error) {
	r, err := repo.GetReview(ctx, db, titleID, id)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	ok, terr := repo.TitleExists(ctx, db, titleID)
	if terr != nil {
		return nil, terr
	}
	if !ok {
		return nil, ErrTitleNotFound
	}
	return nil, ErrReviewNotFound
}
