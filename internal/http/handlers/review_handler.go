// Review HTTP handlers.
//
//   - GET|POST              /titles/{title_id}/reviews
//   - GET|PUT|PATCH|DELETE  /titles/{title_id}/reviews/{review_id}
//
// Reading is public. Creating needs an account; changing or deleting a review
// needs its author, a moderator or an admin. Lists carry a weak ETag.
// POST honors Idempotency-Key: a retried key answers 200 with the original
// review and `Idempotent-Replay: true`.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/services"
)

// ReviewResponse is a review as returned to clients.
type ReviewResponse struct {
	ID      int64     `json:"id"       example:"1"`
	Text    string    `json:"text"     example:"Slow start, great ending."`
	Author  string    `json:"author"   example:"reader"`
	Score   int       `json:"score"    example:"8"`
	PubDate time.Time `json:"pub_date"`
}

func toReview(r *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:      r.ID,
		Text:    r.Text,
		Author:  r.Author.Username,
		Score:   r.Score,
		PubDate: r.CreatedAt,
	}
}

func toReviews(rs []domain.Review) []ReviewResponse {
	out := make([]ReviewResponse, len(rs))
	for i := range rs {
		out[i] = toReview(&rs[i])
	}
	return out
}

// ListReviews godoc
// @ID          listReviews
// @Summary     List reviews of a title
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reviews
// @Produce     json
// @Param       title_id       path    int     true   "Title ID"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[handlers.ReviewResponse]
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Title not found"
// @Router      /titles/{title_id}/reviews [get]
func (h *Handlers) ListReviews(c *gin.Context) {
	titleID, okID := pathID(c, "title_id")
	if !okID {
		return
	}
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.reviews.Stats(ctx, titleID); err == nil && count > 0 {
		scope := strconv.FormatInt(titleID, 10) + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(pageSize)
		if weakETag(c, "reviews", scope, count, maxTS) {
			return
		}
	}

	items, total, err := h.reviews.List(ctx, titleID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, newPage(toReviews(items), total, page, pageSize))
}

// CreateReview godoc
// @ID          createReview
// @Summary     Review a title
// @Description One review per author and title. Supports Idempotency-Key.
// @Tags        Reviews
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       title_id         path    int                   true   "Title ID"
// @Param       Idempotency-Key  header  string                false  "Key for safe retries"
// @Param       body             body    services.ReviewInput  true   "Review"
// @Success     201  {object}  handlers.ReviewResponse
// @Success     200  {object}  handlers.ReviewResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Title not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already reviewed"
// @Router      /titles/{title_id}/reviews [post]
func (h *Handlers) CreateReview(c *gin.Context) {
	titleID, okID := pathID(c, "title_id")
	if !okID {
		return
	}
	ctx := c.Request.Context()

	if h.replayed(c, func(id int64) (any, error) {
		r, err := h.reviews.Get(ctx, titleID, id)
		if err != nil {
			return nil, err
		}
		return toReview(r), nil
	}) {
		return
	}

	var in services.ReviewInput
	if !bindJSON(c, &in) {
		return
	}
	r, err := h.reviews.Create(ctx, principal(c), titleID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.remember(c, r.ID)
	ok(c, http.StatusCreated, toReview(r))
}

// GetReview godoc
// @ID          getReview
// @Summary     Get a review
// @Tags        Reviews
// @Produce     json
// @Param       title_id   path  int  true  "Title ID"
// @Param       review_id  path  int  true  "Review ID"
// @Success     200  {object}  handlers.ReviewResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id}/reviews/{review_id} [get]
func (h *Handlers) GetReview(c *gin.Context) {
	titleID, okT := pathID(c, "title_id")
	if !okT {
		return
	}
	id, okR := pathID(c, "review_id")
	if !okR {
		return
	}
	r, err := h.reviews.Get(c.Request.Context(), titleID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toReview(r))
}

// ReplaceReview godoc
// @ID          replaceReview
// @Summary     Replace a review
// @Tags        Reviews
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       title_id   path  int                   true  "Title ID"
// @Param       review_id  path  int                   true  "Review ID"
// @Param       body       body  services.ReviewInput  true  "Review"
// @Success     200  {object}  handlers.ReviewResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id}/reviews/{review_id} [put]
func (h *Handlers) ReplaceReview(c *gin.Context) {
	var in services.ReviewInput
	h.writeReview(c, &in, func(titleID, id int64) (*domain.Review, error) {
		return h.reviews.Replace(c.Request.Context(), principal(c), titleID, id, in)
	})
}

// UpdateReview godoc
// @ID          updateReview
// @Summary     Update some fields of a review
// @Tags        Reviews
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       title_id   path  int                   true  "Title ID"
// @Param       review_id  path  int                   true  "Review ID"
// @Param       body       body  services.ReviewPatch  true  "Fields to change"
// @Success     200  {object}  handlers.ReviewResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id}/reviews/{review_id} [patch]
func (h *Handlers) UpdateReview(c *gin.Context) {
	var patch services.ReviewPatch
	h.writeReview(c, &patch, func(titleID, id int64) (*domain.Review, error) {
		return h.reviews.Update(c.Request.Context(), principal(c), titleID, id, patch)
	})
}

// writeReview parses the path and body, then hands both to apply. Field
// rules are enforced by the service once the review and caller check out.
func (h *Handlers) writeReview(c *gin.Context, body any, apply func(titleID, id int64) (*domain.Review, error)) {
	titleID, okT := pathID(c, "title_id")
	if !okT {
		return
	}
	id, okR := pathID(c, "review_id")
	if !okR {
		return
	}
	if !bindJSON(c, body) {
		return
	}
	r, err := apply(titleID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toReview(r))
}

// DeleteReview godoc
// @ID          deleteReview
// @Summary     Delete a review with its comments
// @Tags        Reviews
// @Security    BearerAuth
// @Param       title_id   path  int  true  "Title ID"
// @Param       review_id  path  int  true  "Review ID"
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id}/reviews/{review_id} [delete]
func (h *Handlers) DeleteReview(c *gin.Context) {
	titleID, okT := pathID(c, "title_id")
	if !okT {
		return
	}
	id, okR := pathID(c, "review_id")
	if !okR {
		return
	}
	if err := h.reviews.Delete(c.Request.Context(), principal(c), titleID, id); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
