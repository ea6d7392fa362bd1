package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

// Categories and genres share the same shape (name + unique slug) and the
// same access paths, so each pair of functions below is a thin typed wrapper
// around the unexported helpers.

func tagsQuery(ctx context.Context, db *gorm.DB, model any, search string) *gorm.DB {
	q := db.WithContext(ctx).Model(model)
	if s := strings.TrimSpace(search); s != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", likePattern(s))
	}
	return q
}

// CreateCategory inserts c. A slug clash returns ErrDuplicate.
func CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return translate(db.WithContext(ctx).Create(c).Error)
}

// CountCategories counts categories whose name contains search.
func CountCategories(ctx context.Context, db *gorm.DB, search string) (int64, error) {
	var n int64
	err := tagsQuery(ctx, db, &domain.Category{}, search).Count(&n).Error
	return n, err
}

// ListCategoriesPage returns one page of categories ordered by name.
func ListCategoriesPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.Category, error) {
	var out []domain.Category
	err := tagsQuery(ctx, db, &domain.Category{}, search).
		Order("name asc, id asc").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// GetCategoryBySlug fetches one category or returns ErrNotFound.
func GetCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCategoryBySlug removes a category and clears it from every title
// that referenced it. Run it inside a transaction.
func DeleteCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) error {
	c, err := GetCategoryBySlug(ctx, db, slug)
	if err != nil {
		return err
	}
	tx := db.WithContext(ctx)
	if err := tx.Model(&domain.Title{}).Where("category_id = ?", c.ID).Update("category_id", nil).Error; err != nil {
		return err
	}
	return affected(tx.Where("id = ?", c.ID).Delete(&domain.Category{}))
}

// CreateGenre inserts g. A slug clash returns ErrDuplicate.
func CreateGenre(ctx context.Context, db *gorm.DB, g *domain.Genre) error {
	return translate(db.WithContext(ctx).Create(g).Error)
}

// CountGenres counts genres whose name contains search.
func CountGenres(ctx context.Context, db *gorm.DB, search string) (int64, error) {
	var n int64
	err := tagsQuery(ctx, db, &domain.Genre{}, search).Count(&n).Error
	return n, err
}

// ListGenresPage returns one page of genres ordered by name.
func ListGenresPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.Genre, error) {
	var out []domain.Genre
	err := tagsQuery(ctx, db, &domain.Genre{}, search).
		Order("name asc, id asc").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// GetGenreBySlug fetches one genre or returns ErrNotFound.
func GetGenreBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Genre, error) {
	var g domain.Genre
	if err := db.WithContext(ctx).Where("slug = ?", slug).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGenresBySlugs returns the genres matching slugs. Missing slugs are
// simply absent from the result; callers compare lengths.
func GetGenresBySlugs(ctx context.Context, db *gorm.DB, slugs []string) ([]domain.Genre, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	var out []domain.Genre
	err := db.WithContext(ctx).Where("slug IN ?", slugs).Order("id asc").Find(&out).Error
	return out, err
}

// DeleteGenreBySlug removes a genre and detaches it from every title. Run it
// inside a transaction.
func DeleteGenreBySlug(ctx context.Context, db *gorm.DB, slug string) error {
	g, err := GetGenreBySlug(ctx, db, slug)
	if err != nil {
		return err
	}
	tx := db.WithContext(ctx)
	if err := tx.Exec("DELETE FROM title_genres WHERE genre_id = ?", g.ID).Error; err != nil {
		return err
	}
	return affected(tx.Where("id = ?", g.ID).Delete(&domain.Genre{}))
}
