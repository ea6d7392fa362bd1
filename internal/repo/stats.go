package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

// ReviewsStats returns the number of reviews on titleID and the greatest
// UpdatedAt among them (nil when there are none). Handlers use it to build
// weak ETags for review listings.
func ReviewsStats(ctx context.Context, db *gorm.DB, titleID int64) (count int64, maxUpdatedAt *time.Time, err error) {
	return collectionStats(ctx, db, &domain.Review{}, "title_id = ?", titleID)
}

// CommentsStats is ReviewsStats for the comments on reviewID.
func CommentsStats(ctx context.Context, db *gorm.DB, reviewID int64) (count int64, maxUpdatedAt *time.Time, err error) {
	return collectionStats(ctx, db, &domain.Comment{}, "review_id = ?", reviewID)
}

func collectionStats(ctx context.Context, db *gorm.DB, model any, where string, arg any) (int64, *time.Time, error) {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where(where, arg).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Order+limit instead of MAX(): SQLite returns MAX(datetime) as TEXT.
	var row struct {
		UpdatedAt time.Time
	}
	err := db.WithContext(ctx).Model(model).Where(where, arg).
		Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error
	if err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
