package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kioskcm/services/store"
)

// NewTestDB opens a private in-memory SQLite database with the store schema
// applied. A single connection is used, so transactions are serialized.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := store.AutoMigrate(context.Background(), db); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

// NewTestStore returns a Store over NewTestDB.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.New(NewTestDB(t))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	return st
}
