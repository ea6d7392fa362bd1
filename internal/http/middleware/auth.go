// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller and enforces the route-level permission.
//
//   - Authenticate() turns an "Authorization: Bearer <access token>" header
//     into an authz.Principal. Requests without the header continue as the
//     anonymous principal; a header that does not verify is rejected with 401.
//   - Authorize(perm) runs the coarse permission of a route group. Object
//     rules (authorship) are checked later by the services, once the target
//     has been loaded, so a missing object yields 404 before any 403.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-catalog/internal/authz"
)

const (
	ctxKeyPrincipal = "principal"
	// ctxKeyUserID mirrors the principal id for keying (rate limits, logs).
	ctxKeyUserID = "userID"
)

// Authenticator resolves an access token to the principal it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (authz.Principal, error)
}

// PrincipalFrom returns the principal stored by Authenticate, or the
// anonymous principal.
func PrincipalFrom(c *gin.Context) authz.Principal {
	if v, ok := c.Get(ctxKeyPrincipal); ok {
		if p, ok := v.(authz.Principal); ok {
			return p
		}
	}
	return authz.Anonymous()
}

// SetPrincipal stores p on the request. Exposed for tests and tooling.
func SetPrincipal(c *gin.Context, p authz.Principal) {
	c.Set(ctxKeyPrincipal, p)
	if !p.Anonymous {
		c.Set(ctxKeyUserID, p.ID)
	}
}

// bearerToken extracts the token of a Bearer Authorization header. ok is
// false when the header is absent; a malformed header yields ok=true and an
// empty token.
func bearerToken(h string) (token string, ok bool) {
	h = strings.TrimSpace(h)
	if h == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(rest), true
}

// Authenticate resolves the Bearer token, if any, and stores the principal.
// It also enriches the request-scoped logger with the caller identity.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present := bearerToken(c.GetHeader("Authorization"))
		if !present {
			SetPrincipal(c, authz.Anonymous())
			c.Next()
			return
		}
		if token == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "malformed Authorization header")
			return
		}
		p, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "token is invalid or expired")
			return
		}
		SetPrincipal(c, p)

		lg := LoggerFrom(c).With().
			Str("user_id", p.ID).
			Str("role", string(p.Role)).
			Logger()
		c.Set(loggerKey, &lg)

		c.Next()
	}
}

// Authorize rejects requests whose principal fails perm for the request
// method. Anonymous callers get 401, authenticated ones 403.
func Authorize(perm authz.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		err := authz.Check(p, authz.ActionForMethod(c.Request.Method), perm)
		if err == nil {
			c.Next()
			return
		}
		status, code := DenialStatus(err)
		recordDenial(c, code)
		abortAuth(c, status, code, err.Error())
	}
}

// DenialStatus maps a permission error to its HTTP status and error code.
func DenialStatus(err error) (int, string) {
	if errors.Is(err, authz.ErrNotAuthenticated) {
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusForbidden, "forbidden"
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="api"`)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
