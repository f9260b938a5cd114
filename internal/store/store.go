// Package store persists plans, items, videos and posts. Every status change
// is a conditional update on the expected current status, so two workers
// racing on the same record cannot both advance it.
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrTransitionConflict is returned when a record was not in the expected
	// state at write time.
	ErrTransitionConflict = errors.New("record is no longer in the expected state")
)

// Store wraps a gorm connection.
type Store struct {
	db *gorm.DB
}

// New creates a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks and seeding.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", what, id, err)
}

// expectOne turns a zero-row conditional update into ErrTransitionConflict.
func expectOne(result *gorm.DB, what string, id uint) error {
	if result.Error != nil {
		return fmt.Errorf("failed to update %s %d: %w", what, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrTransitionConflict)
	}
	return nil
}
