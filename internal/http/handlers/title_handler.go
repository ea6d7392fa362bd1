// Title HTTP handlers.
//
//   - GET|POST              /titles             (read: anyone; write: admin)
//   - GET|PUT|PATCH|DELETE  /titles/{title_id}
//
// Every title in a response carries its rating: the mean review score, or
// null when it has no reviews.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-catalog/internal/services"
	"github.com/tbourn/go-review-catalog/internal/utils"
)

// ListTitles godoc
// @ID          listTitles
// @Summary     List titles
// @Description Ordered by newest first; with q, by search relevance.
// @Tags        Titles
// @Produce     json
// @Param       name       query  string  false  "Name contains (case-insensitive)"
// @Param       year       query  int     false  "Exact year"
// @Param       category   query  string  false  "Category slug"
// @Param       genre      query  string  false  "Genre slug"
// @Param       q          query  string  false  "Free-text search"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[services.TitleView]
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /titles [get]
func (h *Handlers) ListTitles(c *gin.Context) {
	page, pageSize := clampPagination(c)
	q := services.TitleQuery{
		Name:     strings.TrimSpace(c.Query("name")),
		Category: strings.TrimSpace(c.Query("category")),
		Genre:    strings.TrimSpace(c.Query("genre")),
		Q:        strings.TrimSpace(c.Query("q")),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		year := utils.AtoiDefault(raw, -1)
		if year < 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "year must be a number")
			return
		}
		q.Year = &year
	}

	items, total, err := h.titles.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, newPage(items, total, page, pageSize))
}

// CreateTitle godoc
// @ID          createTitle
// @Summary     Create a title
// @Tags        Titles
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.TitleInput  true  "Title; category and genre are slugs"
// @Success     201   {object}  services.TitleView
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /titles [post]
func (h *Handlers) CreateTitle(c *gin.Context) {
	var in services.TitleInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.titles.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, t)
}

// GetTitle godoc
// @ID          getTitle
// @Summary     Get a title
// @Tags        Titles
// @Produce     json
// @Param       title_id  path      int  true  "Title ID"
// @Success     200       {object}  services.TitleView
// @Failure     404       {object}  handlers.ErrorResponse
// @Router      /titles/{title_id} [get]
func (h *Handlers) GetTitle(c *gin.Context) {
	id, okID := pathID(c, "title_id")
	if !okID {
		return
	}
	t, err := h.titles.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// ReplaceTitle godoc
// @ID          replaceTitle
// @Summary     Replace a title
// @Tags        Titles
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       title_id  path      int                  true  "Title ID"
// @Param       body      body      services.TitleInput  true  "Title"
// @Success     200       {object}  services.TitleView
// @Failure     400       {object}  handlers.ErrorResponse
// @Failure     404       {object}  handlers.ErrorResponse
// @Router      /titles/{title_id} [put]
func (h *Handlers) ReplaceTitle(c *gin.Context) {
	id, okID := pathID(c, "title_id")
	if !okID {
		return
	}
	var in services.TitleInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.titles.Replace(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// UpdateTitle godoc
// @ID          updateTitle
// @Summary     Update some fields of a title
// @Tags        Titles
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       title_id  path      int                  true  "Title ID"
// @Param       body      body      services.TitlePatch  true  "Fields to change"
// @Success     200       {object}  services.TitleView
// @Failure     400       {object}  handlers.ErrorResponse
// @Failure     404       {object}  handlers.ErrorResponse
// @Router      /titles/{title_id} [patch]
func (h *Handlers) UpdateTitle(c *gin.Context) {
	id, okID := pathID(c, "title_id")
	if !okID {
		return
	}
	var patch services.TitlePatch
	if !bindJSON(c, &patch) {
		return
	}
	t, err := h.titles.Update(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// DeleteTitle godoc
// @ID          deleteTitle
// @Summary     Delete a title with its reviews and comments
// @Tags        Titles
// @Security    BearerAuth
// @Param       title_id  path  int  true  "Title ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /titles/{title_id} [delete]
func (h *Handlers) DeleteTitle(c *gin.Context) {
	id, okID := pathID(c, "title_id")
	if !okID {
		return
	}
	if err := h.titles.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
