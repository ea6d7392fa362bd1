// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file covers request correlation and panic handling:
//
//   - RequestID() reuses or mints the X-Request-ID correlation id.
//   - RequestLogger() attaches a request-scoped zerolog.Logger carrying the
//     correlation id, method and route. Authenticate() later adds the caller.
//   - Recovery() turns panics into the JSON error envelope.
//   - LoggerFrom() returns the request-scoped logger, or the global one.
//
// The access log itself is written by RedactingLogger. Recommended order:
// RequestID, RequestLogger, RedactingLogger, Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
	// maxRequestIDLength bounds client-supplied correlation ids.
	maxRequestIDLength = 128
)

// RequestID propagates the client's X-Request-ID when it is present and of
// sane length, otherwise generates a UUIDv4. The id is stored in the context
// and echoed on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLength {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestLogger stores a logger scoped to this request under the "logger"
// context key.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("route", path).
			Logger()
		c.Set(loggerKey, &l)
		c.Next()
	}
}

// Recovery logs the panic with its stack and answers 500 with the standard
// envelope when nothing has been written yet.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, falling back to the global
// logger. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes, appending an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
