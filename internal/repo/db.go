// Package repo implements the data persistence layer for the catalog,
// backed by GORM on SQLite (pure Go driver). Functions are thin: they compose
// queries and translate driver errors into ErrNotFound / ErrDuplicate, and
// leave business rules to the services package.
//
// Every function takes a *gorm.DB so it can run inside a transaction.
package repo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

// Option customizes OpenSQLite.
type Option func(*openOptions)

type openOptions struct {
	tracing bool
	logger  logger.Interface
}

// WithTracing installs the GORM OpenTelemetry plugin so every query becomes
// a span under the request trace.
func WithTracing() Option { return func(o *openOptions) { o.tracing = true } }

// WithLogger replaces GORM's default logger.
func WithLogger(l logger.Interface) Option { return func(o *openOptions) { o.logger = l } }

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
// foreign_keys and busy_timeout are also put on the DSN so that every pooled
// connection gets them, not only the first one.
func OpenSQLite(path string, opts ...Option) (*gorm.DB, error) {
	o := openOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	// Fail early if parent directory does not exist.
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	cfg := &gorm.Config{TranslateError: true}
	if o.logger != nil {
		cfg.Logger = o.logger
	}
	db, err := gorm.Open(sqlite.Open(withPragmas(path)), cfg)
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")

	if o.tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

func withPragmas(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// AutoMigrate creates or updates every table the service uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Category{},
		&domain.Genre{},
		&domain.Title{},
		&domain.Review{},
		&domain.Comment{},
		&domain.Idempotency{},
	)
}
