// Package handlers exposes the catalog REST endpoints.
//
// Handlers are transport-thin: they bind input, call application services,
// and translate results into HTTP responses (including conditional and
// replayed responses). Access control happens twice: the router gates each
// route group with middleware.Authorize, and services apply the per-object
// rules after loading the target.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-catalog/internal/auth"
	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/http/middleware"
	"github.com/tbourn/go-review-catalog/internal/services"
	"github.com/tbourn/go-review-catalog/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService exchanges confirmation codes for tokens.
type AuthService interface {
	RequestCode(ctx context.Context, email string) (string, error)
	Exchange(ctx context.Context, email, code string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// UserService manages accounts.
type UserService interface {
	List(ctx context.Context, search string, page, pageSize int) ([]domain.User, int64, error)
	Create(ctx context.Context, in services.UserInput) (*domain.User, error)
	Get(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, username string, patch services.UserPatch) (*domain.User, error)
	Delete(ctx context.Context, username string) error
	Me(ctx context.Context, p authz.Principal) (*domain.User, error)
	UpdateMe(ctx context.Context, p authz.Principal, patch services.UserPatch) (*domain.User, error)
}

// CatalogService manages categories and genres.
type CatalogService interface {
	CreateCategory(ctx context.Context, in services.TagInput) (*domain.Category, error)
	ListCategories(ctx context.Context, search string, page, pageSize int) ([]domain.Category, int64, error)
	DeleteCategory(ctx context.Context, slug string) error
	CreateGenre(ctx context.Context, in services.TagInput) (*domain.Genre, error)
	ListGenres(ctx context.Context, search string, page, pageSize int) ([]domain.Genre, int64, error)
	DeleteGenre(ctx context.Context, slug string) error
}

// TitleService manages titles and their derived ratings.
type TitleService interface {
	Create(ctx context.Context, in services.TitleInput) (*services.TitleView, error)
	Replace(ctx context.Context, id int64, in services.TitleInput) (*services.TitleView, error)
	Update(ctx context.Context, id int64, patch services.TitlePatch) (*services.TitleView, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*services.TitleView, error)
	List(ctx context.Context, q services.TitleQuery) ([]services.TitleView, int64, error)
}

// ReviewService manages reviews under a title.
type ReviewService interface {
	Create(ctx context.Context, p authz.Principal, titleID int64, in services.ReviewInput) (*domain.Review, error)
	List(ctx context.Context, titleID int64, page, pageSize int) ([]domain.Review, int64, error)
	Get(ctx context.Context, titleID, id int64) (*domain.Review, error)
	Stats(ctx context.Context, titleID int64) (int64, *time.Time, error)
	Update(ctx context.Context, p authz.Principal, titleID, id int64, patch services.ReviewPatch) (*domain.Review, error)
	Replace(ctx context.Context, p authz.Principal, titleID, id int64, in services.ReviewInput) (*domain.Review, error)
	Delete(ctx context.Context, p authz.Principal, titleID, id int64) error
}

// CommentService manages comments under a review.
type CommentService interface {
	Create(ctx context.Context, p authz.Principal, titleID, reviewID int64, in services.CommentInput) (*domain.Comment, error)
	List(ctx context.Context, titleID, reviewID int64, page, pageSize int) ([]domain.Comment, int64, error)
	Get(ctx context.Context, titleID, reviewID, id int64) (*domain.Comment, error)
	Stats(ctx context.Context, titleID, reviewID int64) (int64, *time.Time, error)
	Update(ctx context.Context, p authz.Principal, titleID, reviewID, id int64, in services.CommentInput) (*domain.Comment, error)
	Delete(ctx context.Context, p authz.Principal, titleID, reviewID, id int64) error
}

// IdempotencyStore remembers which resource a keyed create produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scope, key string) (int64, bool, error)
	Remember(ctx context.Context, userID, scope, key string, resourceID int64, status int) error
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Idempotency may be nil, in
// which case Idempotency-Key headers are accepted but have no effect.
type Services struct {
	Auth        AuthService
	Users       UserService
	Catalog     CatalogService
	Titles      TitleService
	Reviews     ReviewService
	Comments    CommentService
	Idempotency IdempotencyStore
}

// Handlers groups the HTTP endpoints of the API.
type Handlers struct {
	auth     AuthService
	users    UserService
	catalog  CatalogService
	titles   TitleService
	reviews  ReviewService
	comments CommentService
	idem     IdempotencyStore
}

// New constructs a Handlers instance bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		auth:     s.Auth,
		users:    s.Users,
		catalog:  s.Catalog,
		titles:   s.Titles,
		reviews:  s.Reviews,
		comments: s.Comments,
		idem:     s.Idempotency,
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// Page is the envelope of every list endpoint.
type Page[T any] struct {
	Results    []T        `json:"results"`
	Pagination Pagination `json:"pagination"`
}

func newPage[T any](items []T, total int64, page, pageSize int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := utils.TotalPages(total, pageSize)
	return Page[T]{
		Results: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// pathID parses a positive integer path parameter. A malformed id cannot
// match any row, so it is reported as not found.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, name+" not found")
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body into dst or answers 400.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// principal returns the caller resolved by the authentication middleware.
func principal(c *gin.Context) authz.Principal { return middleware.PrincipalFrom(c) }

// weakETag sets a weak ETag for a collection and reports whether the client
// already holds it, in which case 304 has been written.
func weakETag(c *gin.Context, kind string, scope string, count int64, maxTS *time.Time) bool {
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, scope, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// replayed answers a keyed create that already succeeded. load fetches the
// stored resource by id. It reports false when the request is a first
// attempt (or the store is unavailable) and the handler should create.
func (h *Handlers) replayed(c *gin.Context, load func(id int64) (any, error)) bool {
	if h.idem == nil || !middleware.IsReplay(c) {
		return false
	}
	key, _ := middleware.GetIdempotencyKey(c)
	id, found, err := h.idem.Lookup(c.Request.Context(), principal(c).ID, middleware.IdempotencyScope(c), key)
	if err != nil || !found {
		return false
	}
	res, err := load(id)
	if err != nil {
		// The resource was deleted since; create again.
		return false
	}
	c.Header(middleware.HeaderIdempotentReplay, "true")
	ok(c, http.StatusOK, res)
	return true
}

// remember records a keyed create. Failures only cost the replay, so they
// are logged and swallowed.
func (h *Handlers) remember(c *gin.Context, id int64) {
	key, has := middleware.GetIdempotencyKey(c)
	if h.idem == nil || !has {
		return
	}
	err := h.idem.Remember(c.Request.Context(), principal(c).ID, middleware.IdempotencyScope(c), key, id, http.StatusCreated)
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Warn().Err(err).Msg("idempotency remember failed")
	}
}
