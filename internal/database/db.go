package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Init opens a GORM database connection with connection pooling configured.
// URLs of the form sqlite:<path> open an embedded SQLite database for local
// development; anything else is treated as a Postgres URL.
func Init(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	if path, ok := strings.CutPrefix(databaseURL, sqlitePrefix); ok {
		return OpenSQLite(path)
	}

	// Ensure timezone is set to UTC
	dsn, err := ensureTimezoneUTC(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Open GORM connection with Postgres driver
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// OpenSQLite opens an SQLite database at path. ":memory:" is allowed.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// IsSQLite reports whether db is backed by SQLite.
func IsSQLite(db *gorm.DB) bool {
	return db.Dialector.Name() == "sqlite"
}

// Close gracefully closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

// ensureTimezoneUTC ensures the database URL has TimeZone=UTC parameter
func ensureTimezoneUTC(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if q.Get("TimeZone") == "" {
		q.Set("TimeZone", "UTC")
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
