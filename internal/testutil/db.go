// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"anoa.com/lazylegends/internal/bootstrap"
	"anoa.com/lazylegends/internal/entity"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database with foreign keys on.
// A single connection is used so every query sees the same memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, bootstrap.Migrate(db))
	return db
}

// SeedUser inserts a user row with the given points.
func SeedUser(t *testing.T, db *gorm.DB, handle string, points int, wallet string) entity.User {
	t.Helper()

	if wallet == "" {
		wallet = "unset"
	}
	u := entity.User{Handle: handle, Points: points, Wallet: wallet, PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// SeedSeason appends a season row.
func SeedSeason(t *testing.T, db *gorm.DB, startedAt time.Time) entity.Season {
	t.Helper()

	s := entity.Season{StartedAt: startedAt}
	require.NoError(t, db.Create(&s).Error)
	return s
}
