package services

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/repo"
	"github.com/tbourn/go-review-catalog/internal/search"
)

// TitleInput is the full set of writable title fields. Category and genres
// are referenced by slug.
type TitleInput struct {
	Name        string   `json:"name"        validate:"required,max=100"`
	Year        *int     `json:"year"        validate:"required,gte=0,lte=32767"`
	Description *string  `json:"description"`
	Category    string   `json:"category"    validate:"omitempty,max=20,slug"`
	Genre       []string `json:"genre"       validate:"dive,max=20,slug"`
}

// TitlePatch updates a subset of fields. Nil means unchanged; an empty
// Category clears it.
type TitlePatch struct {
	Name        *string   `json:"name"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Genre       *[]string `json:"genre"`
}

// TitleView is a title as returned to clients, with its derived rating.
type TitleView struct {
	domain.Title
	Rating *float64 `json:"rating"`
}

// TitleQuery selects titles for List.
type TitleQuery struct {
	Name     string
	Year     *int
	Category string
	Genre    string
	Q        string // free-text search over name, description and year
	Page     int
	PageSize int
}

// TitleService manages titles and attaches ratings on every read.
type TitleService struct {
	DB      *gorm.DB
	Ratings *RatingService
	// Index, when set, is kept in sync with writes and serves TitleQuery.Q.
	Index *search.Catalog
	// SearchLimit caps how many search hits are considered.
	SearchLimit int
}

// NewTitleService wires a TitleService with its rating aggregator.
func NewTitleService(db *gorm.DB, idx *search.Catalog) *TitleService {
	return &TitleService{
		DB:          db,
		Ratings:     &RatingService{DB: db},
		Index:       idx,
		SearchLimit: 200,
	}
}

func (s *TitleService) tracer() trace.Tracer { return otel.Tracer("services/TitleService") }

// RebuildIndex loads every title into the search index.
func (s *TitleService) RebuildIndex(ctx context.Context) error {
	if s.Index == nil {
		return nil
	}
	titles, err := repo.ListTitlesForIndex(ctx, s.DB)
	if err != nil {
		return err
	}
	docs := make([]search.Document, 0, len(titles))
	for i := range titles {
		docs = append(docs, search.Document{ID: titles[i].ID, Text: searchText(&titles[i])})
	}
	s.Index.Reset(docs)
	return nil
}

// Create validates in and stores a new title.
func (s *TitleService) Create(ctx context.Context, in TitleInput) (*TitleView, error) {
	ctx, span := s.tracer().Start(ctx, "Create")
	defer span.End()

	in.Name = cleanText(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var id int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		catID, err := resolveCategory(ctx, tx, in.Category)
		if err != nil {
			return err
		}
		genres, err := resolveGenres(ctx, tx, in.Genre)
		if err != nil {
			return err
		}
		t := &domain.Title{
			Name:        in.Name,
			Year:        *in.Year,
			Description: cleanOptional(in.Description),
			CategoryID:  catID,
			Genres:      genres,
		}
		if err := repo.CreateTitle(ctx, tx, t); err != nil {
			return err
		}
		id = t.ID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.afterWrite(ctx, id)
}

// Replace overwrites every writable field of title id.
func (s *TitleService) Replace(ctx context.Context, id int64, in TitleInput) (*TitleView, error) {
	in.Name = cleanText(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	genres := in.Genre
	if genres == nil {
		genres = []string{}
	}
	return s.Update(ctx, id, TitlePatch{
		Name:        &in.Name,
		Year:        in.Year,
		Description: in.Description,
		Category:    &in.Category,
		Genre:       &genres,
	})
}

// Update applies patch to title id.
func (s *TitleService) Update(ctx context.Context, id int64, patch TitlePatch) (*TitleView, error) {
	ctx, span := s.tracer().Start(ctx, "Update", trace.WithAttributes(attribute.Int64("title.id", id)))
	defer span.End()

	fields := map[string]any{}
	if patch.Name != nil {
		name := cleanText(*patch.Name)
		if name == "" {
			return nil, invalid("name", "this field may not be blank")
		}
		if len([]rune(name)) > 100 {
			return nil, invalid("name", "ensure this field has no more than 100 characters")
		}
		fields["name"] = name
	}
	if patch.Year != nil {
		if *patch.Year < 0 || *patch.Year > 32767 {
			return nil, invalid("year", "year must be between 0 and 32767")
		}
		fields["year"] = *patch.Year
	}
	if patch.Description != nil {
		fields["description"] = cleanOptional(patch.Description)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if patch.Category != nil {
			catID, err := resolveCategory(ctx, tx, cleanText(*patch.Category))
			if err != nil {
				return err
			}
			if catID == nil {
				fields["category_id"] = nil
			} else {
				fields["category_id"] = *catID
			}
		}
		var genres *[]domain.Genre
		if patch.Genre != nil {
			gs, err := resolveGenres(ctx, tx, *patch.Genre)
			if err != nil {
				return err
			}
			genres = &gs
		}
		return notFoundAs(repo.UpdateTitle(ctx, tx, id, fields, genres), ErrTitleNotFound)
	})
	if err != nil {
		return nil, err
	}
	return s.afterWrite(ctx, id)
}

// Delete removes title id with its reviews and their comments.
func (s *TitleService) Delete(ctx context.Context, id int64) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return notFoundAs(repo.DeleteTitle(ctx, tx, id), ErrTitleNotFound)
	})
	if err == nil && s.Index != nil {
		s.Index.Remove(id)
	}
	return err
}

// Get returns title id with its current rating.
func (s *TitleService) Get(ctx context.Context, id int64) (*TitleView, error) {
	t, err := repo.GetTitle(ctx, s.DB, id)
	if err != nil {
		return nil, notFoundAs(err, ErrTitleNotFound)
	}
	views, err := s.withRatings(ctx, []domain.Title{*t})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns one page of titles matching q, each with its current rating.
// Without Q, titles are ordered by descending id; with Q, by relevance.
func (s *TitleService) List(ctx context.Context, q TitleQuery) ([]TitleView, int64, error) {
	ctx, span := s.tracer().Start(ctx, "List", trace.WithAttributes(
		attribute.Int("page", q.Page),
		attribute.Int("page_size", q.PageSize),
		attribute.Bool("search", q.Q != ""),
	))
	defer span.End()

	f := repo.TitleFilter{Name: q.Name, Year: q.Year, Category: q.Category, Genre: q.Genre}
	offset, limit := pageBounds(q.Page, q.PageSize)

	if q.Q != "" && s.Index != nil {
		return s.searchPage(ctx, f, q.Q, offset, limit)
	}

	total, err := repo.CountTitles(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []TitleView{}, 0, nil
	}
	titles, err := repo.ListTitlesPage(ctx, s.DB, f, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.withRatings(ctx, titles)
	return views, total, err
}

func (s *TitleService) searchPage(ctx context.Context, f repo.TitleFilter, query string, offset, limit int) ([]TitleView, int64, error) {
	hits := s.Index.TopK(query, s.SearchLimit)
	rank := make(map[int64]int, len(hits))
	f.IDs = make([]int64, 0, len(hits))
	for i, h := range hits {
		rank[h.ID] = i
		f.IDs = append(f.IDs, h.ID)
	}
	if len(f.IDs) == 0 {
		return []TitleView{}, 0, nil
	}
	titles, err := repo.ListTitlesPage(ctx, s.DB, f, 0, len(f.IDs))
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(titles, func(a, b int) bool { return rank[titles[a].ID] < rank[titles[b].ID] })

	total := int64(len(titles))
	if offset >= len(titles) {
		return []TitleView{}, total, nil
	}
	end := offset + limit
	if end > len(titles) {
		end = len(titles)
	}
	views, err := s.withRatings(ctx, titles[offset:end])
	return views, total, err
}

func (s *TitleService) withRatings(ctx context.Context, titles []domain.Title) ([]TitleView, error) {
	ids := make([]int64, len(titles))
	for i := range titles {
		ids[i] = titles[i].ID
	}
	ratings, err := s.Ratings.ForTitles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]TitleView, len(titles))
	for i := range titles {
		t := titles[i]
		if t.Genres == nil {
			t.Genres = []domain.Genre{}
		}
		out[i] = TitleView{Title: t}
		if r, ok := ratings[t.ID]; ok {
			out[i].Rating = &r
		}
	}
	return out, nil
}

func (s *TitleService) afterWrite(ctx context.Context, id int64) (*TitleView, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Index != nil {
		s.Index.Upsert(id, searchText(&v.Title))
	}
	return v, nil
}

func resolveCategory(ctx context.Context, db *gorm.DB, slug string) (*int64, error) {
	if slug == "" {
		return nil, nil
	}
	c, err := repo.GetCategoryBySlug(ctx, db, slug)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, invalid("category", "object with slug=%s does not exist", slug)
	}
	if err != nil {
		return nil, err
	}
	return &c.ID, nil
}

func resolveGenres(ctx context.Context, db *gorm.DB, slugs []string) ([]domain.Genre, error) {
	seen := make(map[string]struct{}, len(slugs))
	uniq := make([]string, 0, len(slugs))
	for _, sl := range slugs {
		sl = cleanText(sl)
		if _, dup := seen[sl]; dup {
			continue
		}
		seen[sl] = struct{}{}
		uniq = append(uniq, sl)
	}
	genres, err := repo.GetGenresBySlugs(ctx, db, uniq)
	if err != nil {
		return nil, err
	}
	if len(genres) != len(uniq) {
		found := make(map[string]struct{}, len(genres))
		for _, g := range genres {
			found[g.Slug] = struct{}{}
		}
		for _, sl := range uniq {
			if _, ok := found[sl]; !ok {
				return nil, invalid("genre", "object with slug=%s does not exist", sl)
			}
		}
	}
	if genres == nil {
		genres = []domain.Genre{}
	}
	return genres, nil
}

func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := cleanText(*s)
	if v == "" {
		return nil
	}
	return &v
}

func searchText(t *domain.Title) string {
	text := t.Name + " " + strconv.Itoa(t.Year)
	if t.Description != nil {
		text += " " + *t.Description
	}
	return text
}
