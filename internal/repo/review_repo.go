package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

// CreateReview inserts r. The (title_id, author_id) unique index makes a
// second review by the same author fail with ErrDuplicate; the check is
// atomic in the database, not a read-then-insert.
func CreateReview(ctx context.Context, db *gorm.DB, r *domain.Review) error {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	return translate(db.WithContext(ctx).Omit("Title", "Author").Create(r).Error)
}

// GetReview fetches the review id that belongs to titleID, with its author.
// A review that exists under another title is reported as ErrNotFound.
func GetReview(ctx context.Context, db *gorm.DB, titleID, id int64) (*domain.Review, error) {
	var r domain.Review
	err := db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND title_id = ?", id, titleID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountReviews returns the number of reviews for titleID.
func CountReviews(ctx context.Context, db *gorm.DB, titleID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Review{}).Where("title_id = ?", titleID).Count(&n).Error
	return n, err
}

// ListReviewsPage returns one page of reviews for titleID, oldest first.
func ListReviewsPage(ctx context.Context, db *gorm.DB, titleID int64, offset, limit int) ([]domain.Review, error) {
	var out []domain.Review
	err := db.WithContext(ctx).
		Preload("Author").
		Where("title_id = ?", titleID).
		Order("created_at asc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateReview applies fields to review id under titleID.
func UpdateReview(ctx context.Context, db *gorm.DB, titleID, id int64, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Review{}).
		Where("id = ? AND title_id = ?", id, titleID).
		Updates(fields)
	return affected(res)
}

// DeleteReview removes review id under titleID and its comments. Run it
// inside a transaction.
func DeleteReview(ctx context.Context, db *gorm.DB, titleID, id int64) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("review_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
		return err
	}
	return affected(tx.Where("id = ? AND title_id = ?", id, titleID).Delete(&domain.Review{}))
}

// TitleScore is one review score of one title.
type TitleScore struct {
	TitleID int64
	Score   int
}

// ScoresForTitles returns every review score of the given titles.
func ScoresForTitles(ctx context.Context, db *gorm.DB, titleIDs []int64) ([]TitleScore, error) {
	if len(titleIDs) == 0 {
		return nil, nil
	}
	var out []TitleScore
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Select("title_id", "score").
		Where("title_id IN ?", titleIDs).
		Scan(&out).Error
	return out, err
}
