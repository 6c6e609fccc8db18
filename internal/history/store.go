// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package history persists slot outcomes of each page composition.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/econboard/internal/persistence/sqlite"
)

// Outcome values stored for a slot.
const (
	OutcomeRendered  = "rendered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeAbandoned = "abandoned"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Run is one composition.
type Run struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Slots     int           `json:"slots"`
	Failed    int           `json:"failed"`
	Abandoned int           `json:"abandoned"`
}

// Entry is one slot's outcome within a run.
type Entry struct {
	RunID     string        `json:"run_id"`
	Selector  string        `json:"selector"`
	Kind      string        `json:"kind"`
	Outcome   string        `json:"outcome"`
	Failure   string        `json:"failure,omitempty"`
	Resource  string        `json:"resource,omitempty"`
	Status    int           `json:"status,omitempty"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// Query filters List.
type Query struct {
	FailuresOnly bool
	Selector     string
	Limit        int
}

var migrations = []string{
	`
	CREATE TABLE runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		slots INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		abandoned INTEGER NOT NULL
	);
	CREATE TABLE slot_outcomes (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		selector TEXT NOT NULL,
		kind TEXT NOT NULL,
		outcome TEXT NOT NULL CHECK(outcome IN ('rendered', 'failed', 'skipped', 'abandoned')),
		failure TEXT NOT NULL DEFAULT '',
		resource TEXT NOT NULL DEFAULT '',
		status INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		PRIMARY KEY (run_id, selector)
	);
	CREATE INDEX idx_slot_outcomes_selector ON slot_outcomes(selector, started_at);
	CREATE INDEX idx_slot_outcomes_outcome ON slot_outcomes(outcome, started_at);
	CREATE INDEX idx_runs_started ON runs(started_at);
	`,
}

// Store is the SQLite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores a run and its entries atomically.
func (s *Store) RecordRun(ctx context.Context, run Run, entries []Entry) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, slots, failed, abandoned) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(), run.Slots, run.Failed, run.Abandoned)
	if err != nil {
		return fmt.Errorf("history: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO slot_outcomes (run_id, selector, kind, outcome, failure, resource, status, message, duration_ms, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("history: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err = stmt.ExecContext(ctx, run.ID, e.Selector, e.Kind, e.Outcome, e.Failure, e.Resource,
			e.Status, e.Message, e.Duration.Milliseconds(), e.StartedAt.UnixMilli()); err != nil {
			return fmt.Errorf("history: insert %s: %w", e.Selector, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

const entryColumns = `run_id, selector, kind, outcome, failure, resource, status, message, duration_ms, started_at`

// List returns entries newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + entryColumns + ` FROM slot_outcomes WHERE 1=1`
	var args []any
	if q.FailuresOnly {
		query += ` AND outcome = ?`
		args = append(args, OutcomeFailed)
	}
	if q.Selector != "" {
		query += ` AND selector = ?`
		args = append(args, q.Selector)
	}
	query += ` ORDER BY started_at DESC, selector LIMIT ?`
	args = append(args, limit)

	return s.queryEntries(ctx, query, args...)
}

// Latest returns the entries of the most recent run, ordered by selector.
func (s *Store) Latest(ctx context.Context) (Run, []Entry, error) {
	var run Run
	var startedMS, durationMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_ms, slots, failed, abandoned FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).
		Scan(&run.ID, &startedMS, &durationMS, &run.Slots, &run.Failed, &run.Abandoned)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, nil
	}
	if err != nil {
		return Run{}, nil, fmt.Errorf("history: latest run: %w", err)
	}
	run.StartedAt = time.UnixMilli(startedMS).UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond

	entries, err := s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM slot_outcomes WHERE run_id = ? ORDER BY selector`, run.ID)
	if err != nil {
		return Run{}, nil, err
	}
	return run, entries, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var durationMS, startedMS int64
		if err := rows.Scan(&e.RunID, &e.Selector, &e.Kind, &e.Outcome, &e.Failure, &e.Resource,
			&e.Status, &e.Message, &durationMS, &startedMS); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.StartedAt = time.UnixMilli(startedMS).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune keeps the newest keepRuns runs and deletes the rest with their entries.
func (s *Store) Prune(ctx context.Context, keepRuns int) (int64, error) {
	if keepRuns < 0 {
		keepRuns = 0
	}
	res, err := s.db.ExecContext(ctx, `
	DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	)`, keepRuns)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// Check verifies the database is reachable and structurally sound.
func (s *Store) Check(ctx context.Context) error {
	issues, err := sqlite.VerifyIntegrity(ctx, s.db, "quick")
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("history: integrity check: %v", issues)
	}
	return nil
}
