package testutil

import (
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/ontorelease/internal/data/db"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

var (
	dbOnce sync.Once
	testDB *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens TEST_POSTGRES_DSN when set and a shared in-memory sqlite
// database otherwise. Tests skip when neither can be opened.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		cfg := &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		}
		var dial gorm.Dialector
		if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
			dial = postgres.Open(dsn)
		} else {
			dial = sqlite.Open("file:ontorelease_test?mode=memory&cache=shared")
		}
		testDB, dbErr = gorm.Open(dial, cfg)
		if dbErr != nil {
			return
		}
		dbErr = db.AutoMigrateAll(testDB)
	})

	if dbErr != nil {
		tb.Skipf("no usable test database: %v", dbErr)
	}
	return testDB
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
