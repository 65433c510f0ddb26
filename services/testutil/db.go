package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens an in-memory sqlite database migrated for the given
// models. A single connection keeps the shared cache alive for the whole
// test and serializes access the way the row locks do in postgres.
func NewTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models...))

	t.Cleanup(func() {
		for i := len(models) - 1; i >= 0; i-- {
			_ = db.Migrator().DropTable(models[i])
		}
		_ = sqlDB.Close()
	})

	return db
}
