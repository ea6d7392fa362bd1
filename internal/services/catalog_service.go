package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/repo"
)

// TagInput creates a category or a genre.
type TagInput struct {
	Name string `json:"name" validate:"required,max=20"`
	Slug string `json:"slug" validate:"required,max=20,slug"`
}

// CatalogService manages categories and genres. Access control is applied
// by the HTTP layer (admin or read-only); these operations carry no
// per-object rules.
type CatalogService struct {
	DB *gorm.DB
}

// CreateCategory validates and stores a category.
func (s *CatalogService) CreateCategory(ctx context.Context, in TagInput) (*domain.Category, error) {
	in.Name, in.Slug = cleanText(in.Name), cleanText(in.Slug)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	c := &domain.Category{Name: in.Name, Slug: in.Slug}
	if err := repo.CreateCategory(ctx, s.DB, c); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateSlug
		}
		return nil, err
	}
	return c, nil
}

// ListCategories returns one page of categories whose name contains search.
func (s *CatalogService) ListCategories(ctx context.Context, search string, page, pageSize int) ([]domain.Category, int64, error) {
	offset, limit := pageBounds(page, pageSize)
	total, err := repo.CountCategories(ctx, s.DB, search)
	if err != nil || total == 0 {
		return []domain.Category{}, total, err
	}
	items, err := repo.ListCategoriesPage(ctx, s.DB, search, offset, limit)
	return items, total, err
}

// DeleteCategory removes the category with slug. Titles in it keep existing
// with no category.
func (s *CatalogService) DeleteCategory(ctx context.Context, slug string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return notFoundAs(repo.DeleteCategoryBySlug(ctx, tx, slug), ErrCategoryNotFound)
	})
}

// CreateGenre validates and stores a genre.
func (s *CatalogService) CreateGenre(ctx context.Context, in TagInput) (*domain.Genre, error) {
	in.Name, in.Slug = cleanText(in.Name), cleanText(in.Slug)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	g := &domain.Genre{Name: in.Name, Slug: in.Slug}
	if err := repo.CreateGenre(ctx, s.DB, g); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateSlug
		}
		return nil, err
	}
	return g, nil
}

// ListGenres returns one page of genres whose name contains search.
func (s *CatalogService) ListGenres(ctx context.Context, search string, page, pageSize int) ([]domain.Genre, int64, error) {
	offset, limit := pageBounds(page, pageSize)
	total, err := repo.CountGenres(ctx, s.DB, search)
	if err != nil || total == 0 {
		return []domain.Genre{}, total, err
	}
	items, err := repo.ListGenresPage(ctx, s.DB, search, offset, limit)
	return items, total, err
}

// DeleteGenre removes the genre with slug and detaches it from its titles.
func (s *CatalogService) DeleteGenre(ctx context.Context, slug string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return notFoundAs(repo.DeleteGenreBySlug(ctx, tx, slug), ErrGenreNotFound)
	})
}
