// Package store persists customers, devices, applications, content trees and
// their advisory locks through gorm.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the transactional record store behind the content controllers.
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gorm handle is required")
	}
	return &Store{db: db}, nil
}

// Transaction runs fn inside a single database transaction. The Store passed
// to fn is bound to the transaction and must not escape it.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Ping checks connectivity of the underlying pool.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates the store schema directly from the models. Production
// databases are migrated through goose; this is used for throwaway databases.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&customerModel{},
		&deviceModel{},
		&deviceMetaModel{},
		&resourceModel{},
		&propertyTable{},
		&styleTable{},
		&applicationModel{},
		&lockModel{},
		&mediaModel{},
	)
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
