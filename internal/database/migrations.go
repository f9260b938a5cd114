package database

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/reelcast/autopilot/internal/models"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.SocialAccount{},
		&models.Plan{},
		&models.PlanItem{},
		&models.Video{},
		&models.ScheduledPost{},
	}
}

// Migrate brings the schema up to date. Postgres uses the embedded SQL
// migrations; SQLite, used for local development and tests, is auto-migrated
// from the models.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if IsSQLite(db) {
		if err := db.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("failed to auto-migrate sqlite schema: %w", err)
		}
		return nil
	}
	return RunMigrations(db)
}

// RunMigrations runs all pending Postgres migrations
func RunMigrations(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Get underlying sql.DB for migrate library
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source driver: %w", err)
	}

	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("Database migrations: no changes detected (already up to date)")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations: successfully applied all pending migrations")
	return nil
}
