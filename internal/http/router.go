// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// authentication, CORS, security headers, idempotency, and rate limiting.
//
// Every API route carries two gates: a coarse middleware.Authorize check here,
// and the per-object check in the service that loads the target.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-review-catalog/docs"
	"github.com/tbourn/go-review-catalog/internal/auth"
	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/config"
	"github.com/tbourn/go-review-catalog/internal/http/handlers"
	"github.com/tbourn/go-review-catalog/internal/http/middleware"
	"github.com/tbourn/go-review-catalog/internal/notify"
	"github.com/tbourn/go-review-catalog/internal/search"
	"github.com/tbourn/go-review-catalog/internal/services"
)

// Deps are the long-lived collaborators the routes are built from.
type Deps struct {
	DB     *gorm.DB
	Index  *search.Catalog
	Tokens *auth.Issuer
	Mailer notify.Sender
	// Redis, when set, backs a rate limiter shared by all replicas.
	Redis redis.Cmdable
}

// appServices are the concrete services behind the handlers. The router
// also needs some of them directly for middleware.
type appServices struct {
	auth   *services.AuthService
	idem   *services.IdempotencyService
	bundle handlers.Services
}

func newServices(d Deps, cfg config.Config) appServices {
	mailer := d.Mailer
	if mailer == nil {
		mailer = notify.LogSender{Logger: log.Logger}
	}
	authSvc := &services.AuthService{
		DB:     d.DB,
		Tokens: d.Tokens,
		Mailer: mailer,
		Logger: log.Logger,
	}
	idemSvc := &services.IdempotencyService{DB: d.DB, TTL: cfg.IdempotencyTTL}
	return appServices{
		auth: authSvc,
		idem: idemSvc,
		bundle: handlers.Services{
			Auth:        authSvc,
			Users:       &services.UserService{DB: d.DB},
			Catalog:     &services.CatalogService{DB: d.DB},
			Titles:      services.NewTitleService(d.DB, d.Index),
			Reviews:     &services.ReviewService{DB: d.DB},
			Comments:    &services.CommentService{DB: d.DB},
			Idempotency: idemSvc,
		},
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID + RequestLogger: correlation id and request-scoped logger
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Authenticate: resolve the Bearer token to a principal
//  8. Idempotency validator (needs the principal; marks replays)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS, security headers and compression
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	svc := newServices(d, cfg)

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.Authenticate(svc.auth))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		svc.idem.Exists,
	))

	if d.Redis != nil {
		r.Use(middleware.RateLimit(
			middleware.NewRedisLimiter(d.Redis, cfg.RateRPS, cfg.RateBurst),
			middleware.KeyByUserOrIP(),
		))
	} else {
		rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
		r.Use(rl.Handler())
	}

	useCORS(r, cfg.CORS.AllowedOrigins)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	if cfg.GzipEnabled {
		r.Use(gzip.Gzip(gzip.DefaultCompression))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	mountAPI(groupWithPrefix(r, cfg.APIBasePath), handlers.New(svc.bundle))
}

// mountAPI registers the versioned endpoints with their coarse permissions.
func mountAPI(api *gin.RouterGroup, h *handlers.Handlers) {
	adminOnly := middleware.Authorize(authz.AdminOnly)
	signedIn := middleware.Authorize(authz.Authenticated)
	adminOrRead := middleware.Authorize(authz.AdminOrReadOnly)
	signedInOrRead := middleware.Authorize(authz.AuthenticatedOrReadOnly)
	ownerOrRead := middleware.Authorize(authz.AdminOrOwnerOrReadOnly)

	authGroup := api.Group("/auth", middleware.NoStore())
	{
		authGroup.POST("/email", h.RequestCode)
		authGroup.POST("/token", h.ObtainToken)
		authGroup.POST("/token/refresh", h.RefreshToken)
	}

	users := api.Group("/users")
	{
		users.GET("", adminOnly, h.ListUsers)
		users.POST("", adminOnly, h.CreateUser)
		users.GET("/me", signedIn, h.Me)
		users.PATCH("/me", signedIn, h.UpdateMe)
		users.GET("/:username", adminOnly, h.GetUser)
		users.PATCH("/:username", adminOnly, h.UpdateUser)
		users.DELETE("/:username", adminOnly, h.DeleteUser)
	}

	categories := api.Group("/categories", adminOrRead)
	{
		categories.GET("", h.ListCategories)
		categories.POST("", h.CreateCategory)
		categories.DELETE("/:slug", h.DeleteCategory)
	}

	genres := api.Group("/genres", adminOrRead)
	{
		genres.GET("", h.ListGenres)
		genres.POST("", h.CreateGenre)
		genres.DELETE("/:slug", h.DeleteGenre)
	}

	titles := api.Group("/titles")
	{
		titles.GET("", adminOrRead, h.ListTitles)
		titles.POST("", adminOrRead, h.CreateTitle)
		titles.GET("/:title_id", adminOrRead, h.GetTitle)
		titles.PUT("/:title_id", adminOrRead, h.ReplaceTitle)
		titles.PATCH("/:title_id", adminOrRead, h.UpdateTitle)
		titles.DELETE("/:title_id", adminOrRead, h.DeleteTitle)
	}

	reviews := titles.Group("/:title_id/reviews")
	{
		reviews.GET("", signedInOrRead, h.ListReviews)
		reviews.POST("", signedInOrRead, h.CreateReview)
		reviews.GET("/:review_id", ownerOrRead, h.GetReview)
		reviews.PUT("/:review_id", ownerOrRead, h.ReplaceReview)
		reviews.PATCH("/:review_id", ownerOrRead, h.UpdateReview)
		reviews.DELETE("/:review_id", ownerOrRead, h.DeleteReview)
	}

	comments := reviews.Group("/:review_id/comments")
	{
		comments.GET("", signedInOrRead, h.ListComments)
		comments.POST("", signedInOrRead, h.CreateComment)
		comments.GET("/:comment_id", ownerOrRead, h.GetComment)
		comments.PUT("/:comment_id", ownerOrRead, h.UpdateComment)
		comments.PATCH("/:comment_id", ownerOrRead, h.UpdateComment)
		comments.DELETE("/:comment_id", ownerOrRead, h.DeleteComment)
	}
}

// useCORS installs the CORS posture. With no configured origins every origin
// is allowed without credentials; otherwise allowed origins are echoed back.
func useCORS(r *gin.Engine, origins []string) {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{
			"X-Request-ID", "Content-Length", "ETag", "Retry-After", middleware.HeaderIdempotentReplay,
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		base.AllowAllOrigins = true
		r.Use(cors.New(base))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	base.AllowOrigins = origins
	r.Use(cors.New(base))
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
