// Category and genre HTTP handlers.
//
//   - GET|POST  /categories, /genres        (read: anyone; write: admin)
//   - DELETE    /categories/{slug}, /genres/{slug}
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-catalog/internal/services"
)

// ListCategories godoc
// @ID          listCategories
// @Summary     List categories
// @Tags        Catalog
// @Produce     json
// @Param       search     query  string  false  "Name contains"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[domain.Category]
// @Router      /categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.catalog.ListCategories(c.Request.Context(), strings.TrimSpace(c.Query("search")), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, newPage(items, total, page, pageSize))
}

// CreateCategory godoc
// @ID          createCategory
// @Summary     Create a category
// @Tags        Catalog
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.TagInput  true  "Category"
// @Success     201   {object}  domain.Category
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     409   {object}  handlers.ErrorResponse  "Slug taken"
// @Router      /categories [post]
func (h *Handlers) CreateCategory(c *gin.Context) {
	var in services.TagInput
	if !bindJSON(c, &in) {
		return
	}
	cat, err := h.catalog.CreateCategory(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, cat)
}

// DeleteCategory godoc
// @ID          deleteCategory
// @Summary     Delete a category
// @Description Titles in the category keep existing without one.
// @Tags        Catalog
// @Security    BearerAuth
// @Param       slug  path  string  true  "Category slug"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /categories/{slug} [delete]
func (h *Handlers) DeleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("slug")); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}

// ListGenres godoc
// @ID          listGenres
// @Summary     List genres
// @Tags        Catalog
// @Produce     json
// @Param       search     query  string  false  "Name contains"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[domain.Genre]
// @Router      /genres [get]
func (h *Handlers) ListGenres(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.catalog.ListGenres(c.Request.Context(), strings.TrimSpace(c.Query("search")), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, newPage(items, total, page, pageSize))
}

// CreateGenre godoc
// @ID          createGenre
// @Summary     Create a genre
// @Tags        Catalog
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.TagInput  true  "Genre"
// @Success     201   {object}  domain.Genre
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     409   {object}  handlers.ErrorResponse  "Slug taken"
// @Router      /genres [post]
func (h *Handlers) CreateGenre(c *gin.Context) {
	var in services.TagInput
	if !bindJSON(c, &in) {
		return
	}
	g, err := h.catalog.CreateGenre(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, g)
}

// DeleteGenre godoc
// @ID          deleteGenre
// @Summary     Delete a genre
// @Tags        Catalog
// @Security    BearerAuth
// @Param       slug  path  string  true  "Genre slug"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /genres/{slug} [delete]
func (h *Handlers) DeleteGenre(c *gin.Context) {
	if err := h.catalog.DeleteGenre(c.Request.Context(), c.Param("slug")); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
