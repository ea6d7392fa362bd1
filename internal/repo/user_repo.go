package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

// CreateUser inserts u, assigning a UUID when u.ID is empty. A clash on
// username or email returns ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	return translate(db.WithContext(ctx).Create(u).Error)
}

// GetUserByID fetches one account or returns ErrNotFound.
func GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches one account by exact username.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches one account by email, ignoring case.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func usersQuery(ctx context.Context, db *gorm.DB, search string) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.User{})
	if s := strings.TrimSpace(search); s != "" {
		q = q.Where("LOWER(username) LIKE ? ESCAPE '\\'", likePattern(s))
	}
	return q
}

// CountUsers returns how many accounts match search (substring of username).
func CountUsers(ctx context.Context, db *gorm.DB, search string) (int64, error) {
	var n int64
	err := usersQuery(ctx, db, search).Count(&n).Error
	return n, err
}

// ListUsersPage returns one page of accounts ordered by username.
func ListUsersPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := usersQuery(ctx, db, search).
		Order("username asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateUser applies fields to the account with id. Unknown ids return
// ErrNotFound; username/email clashes return ErrDuplicate.
func UpdateUser(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		_, err := GetUserByID(ctx, db, id)
		return err
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	return affected(res)
}

// SetConfirmationCode replaces the account's live one-time code.
func SetConfirmationCode(ctx context.Context, db *gorm.DB, id, code string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"confirmation_code": code, "updated_at": time.Now().UTC()})
	return affected(res)
}

// ConsumeConfirmationCode clears the account's code only if it still equals
// code. It reports false when another request consumed or rotated it first.
func ConsumeConfirmationCode(ctx context.Context, db *gorm.DB, id, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND confirmation_code = ?", id, code).
		Updates(map[string]any{"confirmation_code": "", "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteUser removes the account with id together with everything it
// authored: comments, reviews, and comments left by others on those reviews.
// Run it inside a transaction.
func DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	tx := db.WithContext(ctx)
	authored := tx.Model(&domain.Review{}).Select("id").Where("author_id = ?", id)
	if err := tx.Where("author_id = ? OR review_id IN (?)", id, authored).Delete(&domain.Comment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("author_id = ?", id).Delete(&domain.Review{}).Error; err != nil {
		return err
	}
	return affected(tx.Where("id = ?", id).Delete(&domain.User{}))
}
