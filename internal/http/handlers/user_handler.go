// User HTTP handlers.
//
//   - GET|POST          /users            (admin)
//   - GET|PATCH         /users/me         (any authenticated account)
//   - GET|PATCH|DELETE  /users/{username} (admin)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-catalog/internal/services"
)

// ListUsers godoc
// @ID          listUsers
// @Summary     List accounts
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       search     query  string  false  "Username contains"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[domain.User]
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.users.List(c.Request.Context(), strings.TrimSpace(c.Query("search")), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, newPage(items, total, page, pageSize))
}

// CreateUser godoc
// @ID          createUser
// @Summary     Create an account
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.UserInput  true  "Account"
// @Success     201   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     409   {object}  handlers.ErrorResponse
// @Router      /users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var in services.UserInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := h.users.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, u)
}

// GetUser godoc
// @ID          getUser
// @Summary     Get an account by username
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       username  path      string  true  "Username"
// @Success     200       {object}  domain.User
// @Failure     404       {object}  handlers.ErrorResponse
// @Router      /users/{username} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateUser godoc
// @ID          updateUser
// @Summary     Update an account
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       username  path      string              true  "Username"
// @Param       body      body      services.UserPatch  true  "Fields to change"
// @Success     200       {object}  domain.User
// @Failure     400       {object}  handlers.ErrorResponse
// @Failure     404       {object}  handlers.ErrorResponse
// @Router      /users/{username} [patch]
func (h *Handlers) UpdateUser(c *gin.Context) {
	var patch services.UserPatch
	if !bindJSON(c, &patch) {
		return
	}
	u, err := h.users.Update(c.Request.Context(), c.Param("username"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Delete an account with its reviews and comments
// @Tags        Users
// @Security    BearerAuth
// @Param       username  path  string  true  "Username"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{username} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("username")); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}

// Me godoc
// @ID          getMe
// @Summary     Get the caller's account
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /users/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.users.Me(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Update the caller's account
// @Description email and role are read-only here and ignored.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.UserPatch  true  "Fields to change"
// @Success     200   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Router      /users/me [patch]
func (h *Handlers) UpdateMe(c *gin.Context) {
	var patch services.UserPatch
	if !bindJSON(c, &patch) {
		return
	}
	u, err := h.users.UpdateMe(c.Request.Context(), principal(c), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
