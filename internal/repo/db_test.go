package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

// newTestDB opens a private in-memory database, migrated, on a single
// connection.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		WithLogger(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustUser(t *testing.T, db *gorm.DB, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Email: username + "@example.com", Role: domain.RoleUser, IsActive: true}
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func mustTitle(t *testing.T, db *gorm.DB, name string) *domain.Title {
	t.Helper()
	ti := &domain.Title{Name: name, Year: 2000}
	if err := CreateTitle(context.Background(), db, ti); err != nil {
		t.Fatalf("create title: %v", err)
	}
	return ti
}

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestOpenSQLite_SetsPragmas_AndAutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")

	db, err := OpenSQLite(path, WithLogger(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var journalMode string
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}

	var fkOn, busyMS int
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fkOn != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fkOn)
	}
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d", busyMS)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range []any{&domain.User{}, &domain.Title{}, &domain.Review{}, &domain.Comment{}, &domain.Idempotency{}} {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("expected table for %T", m)
		}
	}
}

func TestWithPragmas(t *testing.T) {
	if got := withPragmas("app.db"); !strings.HasPrefix(got, "app.db?_pragma=") {
		t.Fatalf("unexpected dsn %q", got)
	}
	if got := withPragmas("file:x?mode=memory"); !strings.Contains(got, "mode=memory&_pragma=") {
		t.Fatalf("unexpected dsn %q", got)
	}
}
