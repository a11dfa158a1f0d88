// Package tester builds isolated databases and buckets for package tests.
package tester

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Setup prepares the process environment shared by a package's tests.
func Setup() {
	_ = os.Setenv("ENV", "test")
	logrus.SetLevel(logrus.WarnLevel)
}

// TestDB opens a migrated in-memory sqlite database private to t.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

// Bucket returns an empty in-memory bucket.
func Bucket() *storage.MemoryBucket {
	return storage.NewMemoryBucket()
}

// Adapter wraps bucket with a storage adapter that retries without delay.
func Adapter(bucket storage.Bucket) *storage.Adapter {
	return storage.NewAdapter(bucket, storage.Config{Delay: time.Millisecond})
}
