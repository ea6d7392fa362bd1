// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements request rate limiting. RateLimit() is backend
// agnostic: it asks a Limiter whether the caller's key may proceed.
//
//   - RateLimiter is a process-local token bucket per key (x/time/rate) with
//     opportunistic eviction of idle buckets.
//   - RedisLimiter (ratelimit_redis.go) shares a fixed window counter across
//     replicas.
//
// Idempotent replays flagged by IdempotencyValidator skip limiting.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed now. A
// non-nil error means the backend could not decide; allowed then carries the
// fallback decision.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, err error)
}

// keyFunc maps a request to a rate-limit key.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys authenticated callers by account ("user:<id>") and
// everyone else by client address ("ip:<addr>").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(ctxKeyUserID); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-memory Limiter with one token bucket per key. It is
// safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter returns a RateLimiter refilling rps tokens per second up to
// burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns the bucket for key. Every 5000 lookups, buckets idle
// for ttl are evicted first, so a stale bucket is dropped even when it is
// the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Allow implements Limiter.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	return rl.getVisitor(key).Allow(), nil
}

// Handler is RateLimit(rl, keyFn) with the key function given at
// construction.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return RateLimit(rl, rl.keyFn)
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// RateLimit answers 429 with Retry-After when l rejects the request's key.
// Backend errors are logged and the fallback decision is applied.
func RateLimit(l Limiter, keyFn keyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		allowed, err := l.Allow(c.Request.Context(), keyFn(c))
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("rate limiter unavailable")
		}
		if allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
