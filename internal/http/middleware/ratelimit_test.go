package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/domain"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	if key := KeyByUserOrIP()(c); key != "ip:203.0.113.9" {
		t.Fatalf("expected ip key, got %q", key)
	}

	SetPrincipal(c, authz.Principal{ID: "u123", Role: domain.RoleUser})
	if key := KeyByUserOrIP()(c); key != "user:u123" {
		t.Fatalf("expected user key, got %q", key)
	}
}

func TestRateLimiter_BurstCoercionAndReuse(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d", rl.burst)
	}
	lim := rl.getVisitor("k1")
	if rl.getVisitor("k1") != lim {
		t.Fatalf("expected bucket reuse")
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	rl.ttl = time.Nanosecond

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = 4999
	rl.mu.Unlock()

	_ = rl.getVisitor("new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["old"]; ok {
		t.Fatalf("idle bucket not evicted")
	}
	if _, ok := rl.visitors["new"]; !ok {
		t.Fatalf("new bucket missing")
	}
}

func TestRateLimiter_Handler_DenyAndBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.0001, 1, func(*gin.Context) string { return "same" })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") == "1" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(replay bool) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if replay {
			req.Header.Set("X-Replay", "1")
		}
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(false); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := do(false)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second request: %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["code"] != "too_many_requests" {
		t.Fatalf("code = %q", body["code"])
	}
	if w := do(true); w.Code != http.StatusOK {
		t.Fatalf("replay should bypass: %d", w.Code)
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return true, errors.New("backend down")
}

func TestRateLimit_BackendErrorFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_ = captureLogger(t)
	r := gin.New()
	r.Use(RateLimit(brokenLimiter{}, nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestNewRedisLimiter_Budget(t *testing.T) {
	if l := NewRedisLimiter(nil, 5, 10); l.Limit != 10 || l.Window != time.Second {
		t.Fatalf("limit = %d window = %v", l.Limit, l.Window)
	}
	if l := NewRedisLimiter(nil, 50, 10); l.Limit != 50 {
		t.Fatalf("limit = %d", l.Limit)
	}
	if l := NewRedisLimiter(nil, 0, 0); l.Limit != 1 {
		t.Fatalf("limit = %d", l.Limit)
	}
}

func TestRedisLimiter_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	ok, err := NewRedisLimiter(client, 1, 1).Allow(context.Background(), "k")
	if err == nil || !ok {
		t.Fatalf("expected fail-open with error, got ok=%v err=%v", ok, err)
	}
}

func TestRedisLimiter_Window(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	fixed := time.Unix(1_700_000_000, 0)
	l := NewRedisLimiter(client, 2, 2)
	l.Prefix = "test:" + time.Now().Format(time.RFC3339Nano) + ":"
	l.now = func() time.Time { return fixed }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if ok, err := l.Allow(ctx, "k"); err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatalf("third request in window should be denied")
	}
	l.now = func() time.Time { return fixed.Add(time.Second) }
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("next window should allow")
	}
}
