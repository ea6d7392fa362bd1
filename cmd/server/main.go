// Command server runs the review catalog HTTP API.
//
// @title                      Review Catalog API
// @version                    1.0
// @description                Catalog of titles with user reviews, comments and ratings.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-review-catalog/internal/auth"
	"github.com/tbourn/go-review-catalog/internal/config"
	httpapi "github.com/tbourn/go-review-catalog/internal/http"
	"github.com/tbourn/go-review-catalog/internal/notify"
	"github.com/tbourn/go-review-catalog/internal/observability"
	"github.com/tbourn/go-review-catalog/internal/repo"
	"github.com/tbourn/go-review-catalog/internal/search"
	"github.com/tbourn/go-review-catalog/internal/services"
	"github.com/tbourn/go-review-catalog/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.ConfigureLogger(os.Stderr, "info", false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	var dbOpts []repo.Option
	if cfg.OTEL.Enabled {
		dbOpts = append(dbOpts, repo.WithTracing())
	}
	db, err := repo.OpenSQLite(cfg.DBPath, dbOpts...)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	tokens, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		return err
	}
	mailer, err := notify.FromConfig(cfg.Mail, log.Logger)
	if err != nil {
		return err
	}

	idx := search.New()
	if err := services.NewTitleService(db, idx).RebuildIndex(ctx); err != nil {
		return err
	}
	log.Info().Int("titles", idx.Len()).Msg("search index built")

	deps := httpapi.Deps{DB: db, Index: idx, Tokens: tokens, Mailer: mailer}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The limiter fails open, so keep serving.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable")
		}
		deps.Redis = rdb
	}

	purger := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	go purger.RunPurger(ctx, time.Hour, log.Logger)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
