package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed window Limiter shared by every replica that talks
// to the same Redis. Each key may make Limit requests per Window.
//
// When Redis fails the request is allowed; the limiter protects capacity and
// is not an access control.
type RedisLimiter struct {
	Client redis.Cmdable
	Limit  int
	Window time.Duration
	Prefix string

	now func() time.Time
}

// NewRedisLimiter derives a window budget from the token-bucket settings
// used by the in-memory limiter: burst requests per second, or rps when that
// is larger.
func NewRedisLimiter(client redis.Cmdable, rps float64, burst int) *RedisLimiter {
	limit := burst
	if r := int(rps); r > limit {
		limit = r
	}
	if limit <= 0 {
		limit = 1
	}
	return &RedisLimiter{
		Client: client,
		Limit:  limit,
		Window: time.Second,
		Prefix: "ratelimit:",
		now:    time.Now,
	}
}

// Allow implements Limiter with INCR and EXPIRE on a per-window key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	window := l.Window
	if window <= 0 {
		window = time.Second
	}
	slot := now().UnixNano() / int64(window)
	k := l.Prefix + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	_, err := l.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, 2*window)
		return nil
	})
	if err != nil {
		return true, err
	}
	return incr.Val() <= int64(l.Limit), nil
}
