package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

// CreateComment inserts c. The caller has already resolved c.ReviewID
// against the title in the request path.
func CreateComment(ctx context.Context, db *gorm.DB, c *domain.Comment) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	return db.WithContext(ctx).Omit("Review", "Author").Create(c).Error
}

// GetComment fetches comment id under reviewID, with its author.
func GetComment(ctx context.Context, db *gorm.DB, reviewID, id int64) (*domain.Comment, error) {
	var c domain.Comment
	err := db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND review_id = ?", id, reviewID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountComments returns the number of comments on reviewID.
func CountComments(ctx context.Context, db *gorm.DB, reviewID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Comment{}).Where("review_id = ?", reviewID).Count(&n).Error
	return n, err
}

// ListCommentsPage returns one page of comments on reviewID, oldest first.
func ListCommentsPage(ctx context.Context, db *gorm.DB, reviewID int64, offset, limit int) ([]domain.Comment, error) {
	var out []domain.Comment
	err := db.WithContext(ctx).
		Preload("Author").
		Where("review_id = ?", reviewID).
		Order("created_at asc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateCommentText sets the text of comment id under reviewID.
func UpdateCommentText(ctx context.Context, db *gorm.DB, reviewID, id int64, text string) error {
	res := db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("id = ? AND review_id = ?", id, reviewID).
		Updates(map[string]any{"text": text, "updated_at": time.Now().UTC()})
	return affected(res)
}

// DeleteComment removes comment id under reviewID.
func DeleteComment(ctx context.Context, db *gorm.DB, reviewID, id int64) error {
	return affected(db.WithContext(ctx).Where("id = ? AND review_id = ?", id, reviewID).Delete(&domain.Comment{}))
}
