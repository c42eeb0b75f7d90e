package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Wikid82/bookingshield/internal/models"
)

// sqlitePragmas enables WAL and a busy timeout so concurrent handlers wait for
// the writer instead of failing immediately.
const sqlitePragmas = "_journal_mode=WAL&_busy_timeout=5000"

// Connect opens the SQLite database at dbPath and applies the schema.
func Connect(dbPath string) (*gorm.DB, error) {
	dsn := dbPath
	if strings.Contains(dsn, "?") {
		dsn += "&" + sqlitePragmas
	} else {
		dsn += "?" + sqlitePragmas
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	// SQLite has a single writer; one pooled connection serialises
	// transactions instead of surfacing lock errors to callers.
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the rate limit tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.RateLimitRecord{},
		&models.BlockedIdentity{},
		&models.SecurityEvent{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
