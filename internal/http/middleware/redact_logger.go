// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access log. It never logs bodies
// and scrubs request metadata before it is written:
//
//   - Authorization, Cookie and Set-Cookie (plus configured headers) are
//     replaced with "[REDACTED]";
//   - JWTs, UUIDs (which also covers confirmation codes) and email addresses
//     in the query string and header values are replaced with typed markers.
//
// The caller identity is taken from the principal after the handler ran, so
// the line carries user_id and role for authenticated requests.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxQueryLogLength = 2048

var (
	jwtRE   = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+(@|%40)[a-z0-9.\-]+\.[a-z]{2,}\b`)
)

// RedactOptions configures RedactingLogger. MaskHeaders adds header names,
// matched case-insensitively, whose values are masked entirely.
type RedactOptions struct {
	MaskHeaders []string
}

// redact applies the scrubbers in order: tokens, ids, then addresses.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = jwtRE.ReplaceAllString(s, "[REDACTED:token]")
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	return emailRE.ReplaceAllString(s, "[REDACTED:email]")
}

// RedactingLogger writes one structured line per request at info, warn (4xx)
// or error (5xx) level.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = redact(c.Request.URL.Path)
		}
		query := truncate(redact(c.Request.URL.RawQuery), maxQueryLogLength)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		p := PrincipalFrom(c)
		if !p.Anonymous {
			ev = ev.Str("user_id", p.ID).Str("role", string(p.Role))
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
