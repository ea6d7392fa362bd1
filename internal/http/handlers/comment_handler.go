// Comment HTTP handlers.
//
//   - GET|POST              /titles/{title_id}/reviews/{review_id}/comments
//   - GET|PUT|PATCH|DELETE  /titles/{title_id}/reviews/{review_id}/comments/{comment_id}
//
// The review must belong to the title in the path; otherwise the review is
// reported missing. Permissions and idempotency follow the review endpoints.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/services"
)

// CommentResponse is a comment as returned to clients.
type CommentResponse struct {
	ID      int64     `json:"id"       example:"1"`
	Text    string    `json:"text"     example:"Agreed on the ending."`
	Author  string    `json:"author"   example:"reader"`
	PubDate time.Time `json:"pub_date"`
}

// CommentPatch updates a comment. A missing text leaves it unchanged.
type CommentPatch struct {
	Text *string `json:"text"`
}

func toComment(cm *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:      cm.ID,
		Text:    cm.Text,
		Author:  cm.Author.Username,
		PubDate: cm.CreatedAt,
	}
}

func toComments(cs []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, len(cs))
	for i := range cs {
		out[i] = toComment(&cs[i])
	}
	return out
}

// commentPath parses the three ids of a comment path. Missing ids abort.
func commentPath(c *gin.Context, withComment bool) (titleID, reviewID, id int64, valid bool) {
	var okID bool
	if titleID, okID = pathID(c, "title_id"); !okID {
		return
	}
	if reviewID, okID = pathID(c, "review_id"); !okID {
		return
	}
	if withComment {
		if id, okID = pathID(c, "comment_id"); !okID {
			return
		}
	}
	return titleID, reviewID, id, true
}

// ListComments godoc
// @ID          listComments
// @Summary     List comments on a review
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Comments
// @Produce     json
// @Param       title_id       path    int     true   "Title ID"
// @Param       review_id      path    int     true   "Review ID"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[handlers.CommentResponse]
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id}/reviews/{review_id}/comments [get]
func (h *Handlers) ListComments(c *gin.Context) {
	titleID, reviewID, _, valid := commentPath(c, false)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	if count, maxTS, err := h.comments.Stats(ctx, titleID, reviewID); err == nil && count > 0 {
		scope := strconv.FormatInt(reviewID, 10) + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(pageSize)
		if weakETag(c, "comments", scope, count, maxTS) {
			return
		}
	}

	items, total, err := h.comments.List(ctx, titleID, reviewID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, newPage(toComments(items), total, page, pageSize))
}

// CreateComment godoc
// @ID          createComment
// @Summary     Comment on a review
// @Description Supports Idempotency-Key.
// @Tags        Comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       title_id         path    int                    true   "Title ID"
// @Param       review_id        path    int                    true   "Review ID"
// @Param       Idempotency-Key  header  string                 false  "Key for safe retries"
// @Param       body             body    services.CommentInput  true   "Comment"
// @Success     201  {object}  handlers.CommentResponse
// @Success     200  {object}  handlers.CommentResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id}/reviews/{review_id}/comments [post]
func (h *Handlers) CreateComment(c *gin.Context) {
	titleID, reviewID, _, valid := commentPath(c, false)
	if !valid {
		return
	}
	ctx := c.Request.Context()

	if h.replayed(c, func(id int64) (any, error) {
		cm, err := h.comments.Get(ctx, titleID, reviewID, id)
		if err != nil {
			return nil, err
		}
		return toComment(cm), nil
	}) {
		return
	}

	var in services.CommentInput
	if !bindJSON(c, &in) {
		return
	}
	cm, err := h.comments.Create(ctx, principal(c), titleID, reviewID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.remember(c, cm.ID)
	ok(c, http.StatusCreated, toComment(cm))
}

// GetComment godoc
// @ID          getComment
// @Summary     Get a comment
// @Tags        Comments
// @Produce     json
// @Param       title_id    path  int  true  "Title ID"
// @Param       review_id   path  int  true  "Review ID"
// @Param       comment_id  path  int  true  "Comment ID"
// @Success     200  {object}  handlers.CommentResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id}/reviews/{review_id}/comments/{comment_id} [get]
func (h *Handlers) GetComment(c *gin.Context) {
	titleID, reviewID, id, valid := commentPath(c, true)
	if !valid {
		return
	}
	cm, err := h.comments.Get(c.Request.Context(), titleID, reviewID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toComment(cm))
}

// UpdateComment godoc
// @ID          updateComment
// @Summary     Edit a comment
// @Description PUT requires text; PATCH without text returns the comment unchanged.
// @Tags        Comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       title_id    path  int                     true  "Title ID"
// @Param       review_id   path  int                     true  "Review ID"
// @Param       comment_id  path  int                     true  "Comment ID"
// @Param       body        body  handlers.CommentPatch  true  "New text"
// @Success     200  {object}  handlers.CommentResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id}/reviews/{review_id}/comments/{comment_id} [put]
// @Router      /titles/{title_id}/reviews/{review_id}/comments/{comment_id} [patch]
func (h *Handlers) UpdateComment(c *gin.Context) {
	titleID, reviewID, id, valid := commentPath(c, true)
	if !valid {
		return
	}
	var patch CommentPatch
	if !bindJSON(c, &patch) {
		return
	}
	ctx := c.Request.Context()
	p := principal(c)

	var text string
	switch {
	case patch.Text != nil:
		text = *patch.Text
	case c.Request.Method == http.MethodPatch:
		// Nothing to change, but the caller must still be allowed to.
		cm, err := h.comments.Get(ctx, titleID, reviewID, id)
		if err != nil {
			writeError(c, err)
			return
		}
		text = cm.Text
	}

	cm, err := h.comments.Update(ctx, p, titleID, reviewID, id, services.CommentInput{Text: text})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toComment(cm))
}

// DeleteComment godoc
// @ID          deleteComment
// @Summary     Delete a comment
// @Tags        Comments
// @Security    BearerAuth
// @Param       title_id    path  int  true  "Title ID"
// @Param       review_id   path  int  true  "Review ID"
// @Param       comment_id  path  int  true  "Comment ID"
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id}/reviews/{review_id}/comments/{comment_id} [delete]
func (h *Handlers) DeleteComment(c *gin.Context) {
	titleID, reviewID, id, valid := commentPath(c, true)
	if !valid {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), principal(c), titleID, reviewID, id); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
