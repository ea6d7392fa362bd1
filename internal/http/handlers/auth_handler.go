// Auth HTTP handlers.
//
//   - POST /auth/email          (send a confirmation code)
//   - POST /auth/token          (exchange email + code for a token pair)
//   - POST /auth/token/refresh  (new access token from a refresh token)
//
// All three are public. Responses carry Cache-Control: no-store (router).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestCodeRequest asks for a confirmation code.
type RequestCodeRequest struct {
	Email string `json:"email" example:"reader@example.com"`
}

// RequestCodeResponse echoes the address the code was sent to. The code is
// never part of the response.
type RequestCodeResponse struct {
	Email string `json:"email" example:"reader@example.com"`
}

// TokenRequest exchanges a confirmation code.
type TokenRequest struct {
	Email            string `json:"email"             example:"reader@example.com"`
	ConfirmationCode string `json:"confirmation_code" example:"3f2b8a1c-9d4e-4f6a-8b7c-1d2e3f4a5b6c"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// AccessResponse carries a freshly issued access token.
type AccessResponse struct {
	Access string `json:"access"`
}

// RequestCode godoc
// @ID          requestCode
// @Summary     Send a confirmation code
// @Description Creates the account on first use and mails a one-time code. Requesting again replaces the previous code.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RequestCodeRequest  true  "Email address"
// @Success     200   {object}  handlers.RequestCodeResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid email"
// @Failure     409   {object}  handlers.ErrorResponse  "Username taken"
// @Router      /auth/email [post]
func (h *Handlers) RequestCode(c *gin.Context) {
	var req RequestCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := h.auth.RequestCode(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, RequestCodeResponse{Email: req.Email})
}

// ObtainToken godoc
// @ID          obtainToken
// @Summary     Exchange a confirmation code for tokens
// @Description The code is single use. Every failure returns the same message.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.TokenRequest  true  "Email and code"
// @Success     200   {object}  auth.TokenPair
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/token [post]
func (h *Handlers) ObtainToken(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.auth.Exchange(c.Request.Context(), req.Email, req.ConfirmationCode)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pair)
}

// RefreshToken godoc
// @ID          refreshToken
// @Summary     Refresh the access token
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RefreshRequest  true  "Refresh token"
// @Success     200   {object}  handlers.AccessResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Missing token"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid or expired token"
// @Router      /auth/token/refresh [post]
func (h *Handlers) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	access, err := h.auth.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, AccessResponse{Access: access})
}
