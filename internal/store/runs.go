package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/slub/qucosa-migrate/internal/pipeline"
)

// ErrNotFound is returned for unknown runs and dead letters.
var ErrNotFound = errors.New("not found")

// RunStore handles migration runs and their outcomes.
type RunStore struct {
	store *Store
}

// Run is one invocation of the migration.
type Run struct {
	ID         string `json:"id" yaml:"id"`
	StartedAt  string `json:"started_at" yaml:"started_at"`
	FinishedAt string `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Collection string `json:"collection" yaml:"collection"`
	OnBehalfOf string `json:"on_behalf_of,omitempty" yaml:"on_behalf_of,omitempty"`
	Initial    bool   `json:"initial" yaml:"initial"`
	NoOp       bool   `json:"no_op" yaml:"no_op"`
	Total      int    `json:"total" yaml:"total"`
	Migrated   int    `json:"migrated" yaml:"migrated"`
	Skipped    int    `json:"skipped" yaml:"skipped"`
	Failed     int    `json:"failed" yaml:"failed"`
}

// Outcome is the stored result of one record in a run.
type Outcome struct {
	RunID      string `json:"run_id" yaml:"run_id"`
	DocumentID string `json:"document_id" yaml:"document_id"`
	PID        string `json:"pid" yaml:"pid"`
	Outcome    string `json:"outcome" yaml:"outcome"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Mods       bool   `json:"mods_changed" yaml:"mods_changed"`
	Slub       bool   `json:"slub_changed" yaml:"slub_changed"`
	Attempts   int    `json:"attempts" yaml:"attempts"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Start records the beginning of a run.
func (rs *RunStore) Start(ctx context.Context, run Run) error {
	_, err := rs.store.db.ExecContext(ctx, `
		INSERT INTO runs (id, collection, on_behalf_of, initial, no_op)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Collection, nullString(run.OnBehalfOf), boolInt(run.Initial), boolInt(run.NoOp))
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// RecordOutcome stores the result of one record, replacing an earlier
// result for the same record in the same run.
func (rs *RunStore) RecordOutcome(ctx context.Context, runID string, res pipeline.Result) error {
	var errText string
	if res.Err != nil {
		errText = res.Err.Error()
	}
	_, err := rs.store.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO outcomes
			(run_id, document_id, pid, outcome, reason, mods_changed, slub_changed, attempts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, res.ID, res.PID, string(res.Outcome), nullString(res.Reason),
		boolInt(res.Mods), boolInt(res.Slub), res.Attempts, nullString(errText))
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", res.ID, err)
	}
	return nil
}

// Finish totals the outcomes of a run and marks it finished.
func (rs *RunStore) Finish(ctx context.Context, runID string) (*Run, error) {
	err := rs.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET
				finished_at = strftime('%Y-%m-%dT%H:%M:%SZ','now'),
				total    = (SELECT COUNT(*) FROM outcomes WHERE run_id = runs.id),
				migrated = (SELECT COUNT(*) FROM outcomes WHERE run_id = runs.id AND outcome = 'migrated'),
				skipped  = (SELECT COUNT(*) FROM outcomes WHERE run_id = runs.id AND outcome = 'skipped'),
				failed   = (SELECT COUNT(*) FROM outcomes WHERE run_id = runs.id AND outcome = 'failed')
			WHERE id = ?
		`, runID)
		if err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rs.Get(ctx, runID)
}

// Get returns one run.
func (rs *RunStore) Get(ctx context.Context, runID string) (*Run, error) {
	rows, err := rs.query(ctx, `WHERE id = ?`, runID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return &rows[0], nil
}

// List returns the most recent runs first.
func (rs *RunStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	return rs.query(ctx, `ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
}

func (rs *RunStore) query(ctx context.Context, tail string, args ...any) ([]Run, error) {
	rows, err := rs.store.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, collection, on_behalf_of, initial, no_op,
		       total, migrated, skipped, failed
		FROM runs `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			finishedAt sql.NullString
			onBehalfOf sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &finishedAt, &r.Collection, &onBehalfOf,
			&r.Initial, &r.NoOp, &r.Total, &r.Migrated, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.FinishedAt = finishedAt.String
		r.OnBehalfOf = onBehalfOf.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Outcomes returns the outcomes of a run ordered by document id.
func (rs *RunStore) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := rs.store.db.QueryContext(ctx, `
		SELECT run_id, document_id, pid, outcome, reason, mods_changed, slub_changed, attempts, error
		FROM outcomes WHERE run_id = ? ORDER BY document_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o       Outcome
			reason  sql.NullString
			errText sql.NullString
		)
		if err := rows.Scan(&o.RunID, &o.DocumentID, &o.PID, &o.Outcome, &reason,
			&o.Mods, &o.Slub, &o.Attempts, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Reason = reason.String
		o.Error = errText.String
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return out, nil
}
