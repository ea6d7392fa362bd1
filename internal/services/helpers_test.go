package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repo.OpenSQLite(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name),
		repo.WithLogger(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string, role domain.Role) authz.Principal {
	t.Helper()
	u := &domain.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, repo.CreateUser(context.Background(), db, u))
	return authz.FromUser(u)
}

func seedTitle(t *testing.T, db *gorm.DB, name string) int64 {
	t.Helper()
	ti := &domain.Title{Name: name, Year: 1999}
	require.NoError(t, repo.CreateTitle(context.Background(), db, ti))
	return ti.ID
}

func intp(v int) *int { return &v }
func strp(v string) *string { return &v }
