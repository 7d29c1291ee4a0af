package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/slub/qucosa-migrate/internal/cursor"
	"github.com/slub/qucosa-migrate/internal/pipeline"
)

// DeadLetterStore keeps packages whose deposit failed for good. It is a
// pipeline.DeadLetterSink.
type DeadLetterStore struct {
	store *Store
}

// DeadLetterRecord is a stored dead letter. Package is only loaded by Get.
type DeadLetterRecord struct {
	ID         int64  `json:"id" yaml:"id"`
	RunID      string `json:"run_id" yaml:"run_id"`
	DocumentID string `json:"document_id" yaml:"document_id"`
	PID        string `json:"pid" yaml:"pid"`
	Attempts   int    `json:"attempts" yaml:"attempts"`
	Error      string `json:"error" yaml:"error"`
	FailedAt   string `json:"failed_at" yaml:"failed_at"`
	ResolvedAt string `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
	Package    []byte `json:"-" yaml:"-"`
}

// DeadLetterFilter selects dead letters for List.
type DeadLetterFilter struct {
	// All includes resolved dead letters.
	All   bool
	RunID string
	Limit int
	// After continues a listing after the cursor returned with a page.
	After *cursor.Cursor
}

// deadLetterOrder is the keyset order of dead letter listings.
var deadLetterOrder = []string{"failed_at"}

// DecodeDeadLetterCursor parses a cursor printed by a previous listing.
func DecodeDeadLetterCursor(encoded string) (*cursor.Cursor, error) {
	return cursor.Decode(encoded, deadLetterOrder...)
}

// NextDeadLetterCursor returns the cursor continuing after page, or nil if
// page is the last one.
func NextDeadLetterCursor(page []DeadLetterRecord, limit int) *cursor.Cursor {
	if limit <= 0 || len(page) < limit {
		return nil
	}
	last := page[len(page)-1]
	c, err := cursor.New(deadLetterOrder, []any{last.FailedAt}, last.ID)
	if err != nil {
		return nil
	}
	return c
}

// PutDeadLetter stores a dead letter.
func (ds *DeadLetterStore) PutDeadLetter(ctx context.Context, dl pipeline.DeadLetter) error {
	failedAt := dl.FailedAt
	if failedAt.IsZero() {
		failedAt = time.Now()
	}
	_, err := ds.store.db.ExecContext(ctx, `
		INSERT INTO dead_letters (run_id, document_id, pid, attempts, error, package, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, dl.RunID, dl.ID, dl.PID, dl.Attempts, dl.Error, dl.Package, failedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store dead letter for %s: %w", dl.ID, err)
	}
	return nil
}

// List returns dead letters, oldest first.
func (ds *DeadLetterStore) List(ctx context.Context, f DeadLetterFilter) ([]DeadLetterRecord, error) {
	query := `
		SELECT id, run_id, document_id, pid, attempts, error, failed_at, resolved_at
		FROM dead_letters WHERE 1=1`
	var args []any
	if !f.All {
		query += ` AND resolved_at IS NULL`
	}
	if f.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, f.RunID)
	}
	if f.After != nil {
		where, params := f.After.Where()
		query += ` AND ` + where
		args = append(args, params...)
	}
	query += ` ORDER BY failed_at, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := ds.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetterRecord
	for rows.Next() {
		var (
			r          DeadLetterRecord
			resolvedAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.DocumentID, &r.PID, &r.Attempts, &r.Error, &r.FailedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		r.ResolvedAt = resolvedAt.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letters: %w", err)
	}
	return out, nil
}

// Get returns one dead letter including its package.
func (ds *DeadLetterStore) Get(ctx context.Context, id int64) (*DeadLetterRecord, error) {
	var (
		r          DeadLetterRecord
		resolvedAt sql.NullString
	)
	err := ds.store.db.QueryRowContext(ctx, `
		SELECT id, run_id, document_id, pid, attempts, error, failed_at, resolved_at, package
		FROM dead_letters WHERE id = ?
	`, id).Scan(&r.ID, &r.RunID, &r.DocumentID, &r.PID, &r.Attempts, &r.Error, &r.FailedAt, &resolvedAt, &r.Package)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dead letter %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dead letter %d: %w", id, err)
	}
	r.ResolvedAt = resolvedAt.String
	return &r, nil
}

// Resolve marks a dead letter as handled.
func (ds *DeadLetterStore) Resolve(ctx context.Context, id int64) error {
	res, err := ds.store.db.ExecContext(ctx, `
		UPDATE dead_letters SET resolved_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')
		WHERE id = ? AND resolved_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve dead letter %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dead letter %d: %w", id, ErrNotFound)
	}
	return nil
}
