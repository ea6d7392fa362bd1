package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/repo"
)

// CommentInput is the client-writable part of a comment.
type CommentInput struct {
	Text string `json:"text" validate:"required"`
}

// CommentService implements comment use-cases. Every operation first
// resolves the (title, review) pair from the path; a review that exists but
// belongs to another title is treated as missing.
type CommentService struct {
	DB *gorm.DB
}

// Create stores a comment by p on reviewID under titleID.
func (s *CommentService) Create(ctx context.Context, p authz.Principal, titleID, reviewID int64, in CommentInput) (*domain.Comment, error) {
	ctx, span := otel.Tracer("services/CommentService").Start(ctx, "Create", trace.WithAttributes(
		attribute.Int64("title.id", titleID),
		attribute.Int64("review.id", reviewID),
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	if err := authz.Check(p, authz.Write, authz.AuthenticatedOrReadOnly); err != nil {
		return nil, err
	}
	if _, err := getReview(ctx, s.DB, titleID, reviewID); err != nil {
		return nil, err
	}
	in.Text = cleanText(in.Text)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	c := &domain.Comment{ReviewID: reviewID, AuthorID: p.ID, Text: in.Text}
	if err := repo.CreateComment(ctx, s.DB, c); err != nil {
		span.RecordError(err)
		return nil, err
	}
	c.Author = domain.User{ID: p.ID, Username: p.Username}
	return c, nil
}

// List returns one page of comments on reviewID and the total count.
func (s *CommentService) List(ctx context.Context, titleID, reviewID int64, page, pageSize int) ([]domain.Comment, int64, error) {
	if _, err := getReview(ctx, s.DB, titleID, reviewID); err != nil {
		return nil, 0, err
	}
	offset, limit := pageBounds(page, pageSize)
	total, err := repo.CountComments(ctx, s.DB, reviewID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Comment{}, 0, nil
	}
	items, err := repo.ListCommentsPage(ctx, s.DB, reviewID, offset, limit)
	return items, total, err
}

// Get returns comment id.
func (s *CommentService) Get(ctx context.Context, titleID, reviewID, id int64) (*domain.Comment, error) {
	return getComment(ctx, s.DB, titleID, reviewID, id)
}

// Stats feeds the ETag of a comment listing.
func (s *CommentService) Stats(ctx context.Context, titleID, reviewID int64) (int64, *time.Time, error) {
	if _, err := getReview(ctx, s.DB, titleID, reviewID); err != nil {
		return 0, nil, err
	}
	return repo.CommentsStats(ctx, s.DB, reviewID)
}

// Update replaces the comment text after checking that p may modify it.
// The text is validated only once the comment resolves and p passes.
func (s *CommentService) Update(ctx context.Context, p authz.Principal, titleID, reviewID, id int64, in CommentInput) (*domain.Comment, error) {
	in.Text = cleanText(in.Text)
	var out *domain.Comment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := getComment(ctx, tx, titleID, reviewID, id)
		if err != nil {
			return err
		}
		if err := authz.CheckObject(p, authz.Write, authz.AdminOrOwnerOrReadOnly, c); err != nil {
			return err
		}
		if err := validateStruct(in); err != nil {
			return err
		}
		if err := repo.UpdateCommentText(ctx, tx, reviewID, id, in.Text); err != nil {
			return notFoundAs(err, ErrCommentNotFound)
		}
		out, err = getComment(ctx, tx, titleID, reviewID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes comment id after checking that p may.
func (s *CommentService) Delete(ctx context.Context, p authz.Principal, titleID, reviewID, id int64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := getComment(ctx, tx, titleID, reviewID, id)
		if err != nil {
			return err
		}
		if err := authz.CheckObject(p, authz.Write, authz.AdminOrOwnerOrReadOnly, c); err != nil {
			return err
		}
		return notFoundAs(repo.DeleteComment(ctx, tx, reviewID, id), ErrCommentNotFound)
	})
}

func getComment(ctx context.Context, db *gorm.DB, titleID, reviewID, id int64) (*domain.Comment, error) {
	if _, err := getReview(ctx, db, titleID, reviewID); err != nil {
		return nil, err
	}
	c, err := repo.GetComment(ctx, db, reviewID, id)
	if err != nil {
		return nil, notFoundAs(err, ErrCommentNotFound)
	}
	return c, nil
}
