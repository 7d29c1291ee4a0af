// Package store persists migration runs, per-record outcomes and dead
// letters.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/slub/qucosa-migrate/internal/db"
)

// Store is the root store that provides access to the table stores.
type Store struct {
	db *db.DB

	Runs        *RunStore
	DeadLetters *DeadLetterStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database}
	s.Runs = &RunStore{store: s}
	s.DeadLetters = &DeadLetterStore{store: s}
	return s
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
