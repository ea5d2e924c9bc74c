package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"kioskcm/pkg/db"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Store reads and writes the audit table through pgx.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Insert(ctx context.Context, e Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, s.pool, `
INSERT INTO audit (actor, action, obj, details, at)
VALUES ($1, $2, $3, $4::jsonb, $5)
`, e.Actor, e.Action, e.Obj, details, e.At)
	return err
}

// List returns the newest entries first, optionally for one object.
func (s *Store) List(ctx context.Context, obj string, limit int) ([]Entry, error) {
	limit = clampLimit(limit)
	entries := []Entry{}
	var err error
	if obj == "" {
		err = db.Select(ctx, s.pool, &entries, `
SELECT id, actor, action, obj, details, at
FROM audit
ORDER BY at DESC, id DESC
LIMIT $1
`, limit)
	} else {
		err = db.Select(ctx, s.pool, &entries, `
SELECT id, actor, action, obj, details, at
FROM audit
WHERE obj = $1
ORDER BY at DESC, id DESC
LIMIT $2
`, obj, limit)
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of entries, optionally for one object.
func (s *Store) Count(ctx context.Context, obj string) (int64, error) {
	var n int64
	if obj == "" {
		err := db.Get(ctx, s.pool, &n, `SELECT count(*) FROM audit`)
		return n, err
	}
	err := db.Get(ctx, s.pool, &n, `SELECT count(*) FROM audit WHERE obj = $1`, obj)
	return n, err
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
