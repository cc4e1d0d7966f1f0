// Package postgres provides a PostgreSQL-backed implementation of
// [history.Store].
//
// Session records are stored with the scenario, conversation, and evaluation
// as JSONB columns. [Migrate] runs automatically on store creation and is
// idempotent, so it is safe to call on every application start.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Save(ctx, rec)
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/rehearsal/internal/coach"
	"github.com/MrWong99/rehearsal/internal/history"
	"github.com/MrWong99/rehearsal/pkg/transcript"
)

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id               TEXT         PRIMARY KEY,
    user_id          TEXT         NOT NULL,
    timestamp        TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration_seconds INTEGER      NOT NULL DEFAULT 0,
    scenario         JSONB        NOT NULL,
    entries          JSONB        NOT NULL DEFAULT '[]',
    evaluation       JSONB
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id
    ON sessions (user_id);

CREATE INDEX IF NOT EXISTS idx_sessions_user_timestamp
    ON sessions (user_id, timestamp DESC);
`

// Store is a PostgreSQL-backed session history store. It holds a single
// [pgxpool.Pool]. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn
// and runs [Migrate] to ensure the sessions table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates or ensures the sessions table and its indexes exist.
// It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSessions); err != nil {
		return fmt.Errorf("history migrate: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Save implements [history.Store]. Saving an existing ID replaces the row,
// which is how the evaluation gets attached after the session ends.
func (s *Store) Save(ctx context.Context, rec history.Record) error {
	scenarioJSON, err := json.Marshal(rec.Scenario)
	if err != nil {
		return fmt.Errorf("history store: marshal scenario: %w", err)
	}
	entries := rec.Entries
	if entries == nil {
		entries = []transcript.Entry{}
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("history store: marshal entries: %w", err)
	}
	var evalJSON []byte
	if rec.Evaluation != nil {
		if evalJSON, err = json.Marshal(rec.Evaluation); err != nil {
			return fmt.Errorf("history store: marshal evaluation: %w", err)
		}
	}

	const q = `
		INSERT INTO sessions (id, user_id, timestamp, duration_seconds, scenario, entries, evaluation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    user_id          = EXCLUDED.user_id,
		    timestamp        = EXCLUDED.timestamp,
		    duration_seconds = EXCLUDED.duration_seconds,
		    scenario         = EXCLUDED.scenario,
		    entries          = EXCLUDED.entries,
		    evaluation       = EXCLUDED.evaluation`

	_, err = s.pool.Exec(ctx, q,
		rec.ID,
		rec.UserID,
		rec.Timestamp,
		rec.DurationSeconds,
		scenarioJSON,
		entriesJSON,
		evalJSON,
	)
	if err != nil {
		return fmt.Errorf("history store: save: %w", err)
	}
	return nil
}

// Get implements [history.Store].
func (s *Store) Get(ctx context.Context, id string) (history.Record, error) {
	const q = `
		SELECT id, user_id, timestamp, duration_seconds, scenario, entries, evaluation
		FROM   sessions
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return history.Record{}, fmt.Errorf("history store: get: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return history.Record{}, history.ErrNotFound
	}
	if err != nil {
		return history.Record{}, fmt.Errorf("history store: get: %w", err)
	}
	return rec, nil
}

// ListByUser implements [history.Store]. Records are ordered newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]history.Record, error) {
	q := `
		SELECT id, user_id, timestamp, duration_seconds, scenario, entries, evaluation
		FROM   sessions
		WHERE  user_id = $1
		ORDER  BY timestamp DESC`
	args := []any{userID}

	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history store: list: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("history store: list: %w", err)
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, nil
}

// Delete implements [history.Store].
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("history store: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return history.ErrNotFound
	}
	return nil
}

// scanRecord scans one sessions row into a history.Record.
func scanRecord(row pgx.CollectableRow) (history.Record, error) {
	var (
		rec          history.Record
		ts           time.Time
		scenarioJSON []byte
		entriesJSON  []byte
		evalJSON     []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&ts,
		&rec.DurationSeconds,
		&scenarioJSON,
		&entriesJSON,
		&evalJSON,
	); err != nil {
		return history.Record{}, err
	}
	rec.Timestamp = ts

	if err := json.Unmarshal(scenarioJSON, &rec.Scenario); err != nil {
		return history.Record{}, fmt.Errorf("unmarshal scenario: %w", err)
	}
	rec.Entries = []transcript.Entry{}
	if err := json.Unmarshal(entriesJSON, &rec.Entries); err != nil {
		return history.Record{}, fmt.Errorf("unmarshal entries: %w", err)
	}
	if len(evalJSON) > 0 {
		var eval coach.Evaluation
		if err := json.Unmarshal(evalJSON, &eval); err != nil {
			return history.Record{}, fmt.Errorf("unmarshal evaluation: %w", err)
		}
		rec.Evaluation = &eval
	}

	return rec, nil
}
