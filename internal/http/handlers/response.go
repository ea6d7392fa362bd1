// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint: the error
// envelope, the mapping from service errors to statuses, and small success
// writers.
//
// Conventions:
//   - Every error response is an ErrorResponse with a stable `code`.
//   - Handlers pass service errors to writeError and never choose statuses
//     for them inline.
//   - 5xx responses are logged with the request-scoped logger; the client
//     only sees a generic message.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "title not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/http/middleware"
	"github.com/tbourn/go-review-catalog/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// credentialsMessage is the only message a failed code exchange produces,
// whichever check failed.
const credentialsMessage = "No active account found with the given credentials"

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="api"`)
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by the router for fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// writeError maps a service or policy error onto the envelope.
func writeError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, ve.Error())
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidToken):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrInvalidToken.Error())
	case errors.Is(err, services.ErrAuth):
		fail(c, http.StatusBadRequest, ErrCodeInvalidCredentials, credentialsMessage)
	case errors.Is(err, authz.ErrPermissionDenied):
		status, code := middleware.DenialStatus(err)
		fail(c, status, code, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicate):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
