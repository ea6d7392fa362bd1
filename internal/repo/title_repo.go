package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

// TitleFilter narrows title listings. Zero values mean "no constraint".
type TitleFilter struct {
	Name     string  // case-insensitive substring
	Year     *int    // exact
	Category string  // category slug
	Genre    string  // genre slug
	IDs      []int64 // restrict to these ids (search results)
}

func titlesQuery(ctx context.Context, db *gorm.DB, f TitleFilter) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Title{})
	if s := strings.TrimSpace(f.Name); s != "" {
		q = q.Where("LOWER(titles.name) LIKE ? ESCAPE '\\'", likePattern(s))
	}
	if f.Year != nil {
		q = q.Where("titles.year = ?", *f.Year)
	}
	if f.Category != "" {
		q = q.Where("titles.category_id IN (?)",
			db.Model(&domain.Category{}).Select("id").Where("slug = ?", f.Category))
	}
	if f.Genre != "" {
		q = q.Where("titles.id IN (?)",
			db.Table("title_genres").Select("title_genres.title_id").
				Joins("JOIN genres ON genres.id = title_genres.genre_id").
				Where("genres.slug = ?", f.Genre))
	}
	if f.IDs != nil {
		q = q.Where("titles.id IN ?", f.IDs)
	}
	return q
}

// CreateTitle inserts t and links its Genres, which must already exist.
func CreateTitle(ctx context.Context, db *gorm.DB, t *domain.Title) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	return db.WithContext(ctx).Omit("Category", "Genres.*").Create(t).Error
}

// GetTitle fetches a title with its category and genres.
func GetTitle(ctx context.Context, db *gorm.DB, id int64) (*domain.Title, error) {
	var t domain.Title
	err := db.WithContext(ctx).
		Preload("Category").
		Preload("Genres", func(q *gorm.DB) *gorm.DB { return q.Order("genres.id asc") }).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TitleExists reports whether a title with id exists.
func TitleExists(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Title{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// CountTitles counts titles matching f.
func CountTitles(ctx context.Context, db *gorm.DB, f TitleFilter) (int64, error) {
	var n int64
	err := titlesQuery(ctx, db, f).Count(&n).Error
	return n, err
}

// ListTitlesPage returns one page of titles matching f, newest id first.
func ListTitlesPage(ctx context.Context, db *gorm.DB, f TitleFilter, offset, limit int) ([]domain.Title, error) {
	var out []domain.Title
	err := titlesQuery(ctx, db, f).
		Preload("Category").
		Preload("Genres", func(q *gorm.DB) *gorm.DB { return q.Order("genres.id asc") }).
		Order("titles.id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListTitlesForIndex returns id, name and description of every title. It
// feeds the free-text search index.
func ListTitlesForIndex(ctx context.Context, db *gorm.DB) ([]domain.Title, error) {
	var out []domain.Title
	err := db.WithContext(ctx).
		Select("id", "name", "description", "year").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// UpdateTitle applies fields to the title with id and, when genres is not
// nil, replaces its genre set.
func UpdateTitle(ctx context.Context, db *gorm.DB, id int64, fields map[string]any, genres *[]domain.Genre) error {
	tx := db.WithContext(ctx)
	if fields == nil {
		fields = map[string]any{}
	}
	fields["updated_at"] = time.Now().UTC()
	if err := affected(tx.Model(&domain.Title{}).Where("id = ?", id).Updates(fields)); err != nil {
		return err
	}
	if genres == nil {
		return nil
	}
	if err := tx.Exec("DELETE FROM title_genres WHERE title_id = ?", id).Error; err != nil {
		return err
	}
	for _, g := range *genres {
		if err := tx.Exec("INSERT INTO title_genres (title_id, genre_id) VALUES (?, ?)", id, g.ID).Error; err != nil {
			return translate(err)
		}
	}
	return nil
}

// DeleteTitle removes a title with its reviews, their comments and its genre
// links. Run it inside a transaction.
func DeleteTitle(ctx context.Context, db *gorm.DB, id int64) error {
	tx := db.WithContext(ctx)
	reviews := tx.Model(&domain.Review{}).Select("id").Where("title_id = ?", id)
	if err := tx.Where("review_id IN (?)", reviews).Delete(&domain.Comment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("title_id = ?", id).Delete(&domain.Review{}).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM title_genres WHERE title_id = ?", id).Error; err != nil {
		return err
	}
	return affected(tx.Where("id = ?", id).Delete(&domain.Title{}))
}
