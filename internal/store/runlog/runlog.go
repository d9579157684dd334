// Package runlog records scheduled attempts in SQLite. The export task never
// reads it; it is orchestration metadata only.
package runlog

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Attempt statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Attempt is one invocation of the task inside a run.
type Attempt struct {
	RunID      string
	Number     int
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	ErrorKind  string
	Error      string
	Records    int
}

// DB wraps the SQLite ledger.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS attempts (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  run_id TEXT NOT NULL,
	  attempt INTEGER NOT NULL,
	  trigger_source TEXT NOT NULL DEFAULT '',
	  started_at INTEGER NOT NULL,
	  finished_at INTEGER NOT NULL,
	  status TEXT NOT NULL,
	  error_kind TEXT NOT NULL DEFAULT '',
	  error TEXT NOT NULL DEFAULT '',
	  records INTEGER NOT NULL DEFAULT 0,
	  UNIQUE(run_id, attempt)
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_started ON attempts(started_at);
	`)
	return err
}

// RecordAttempt stores a finished attempt. Re-recording the same run and
// attempt number replaces the row.
func (d *DB) RecordAttempt(ctx context.Context, a Attempt) error {
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO attempts(run_id, attempt, trigger_source, started_at, finished_at, status, error_kind, error, records)
	VALUES(?,?,?,?,?,?,?,?,?)
	ON CONFLICT(run_id, attempt) DO UPDATE SET
	  trigger_source=excluded.trigger_source, started_at=excluded.started_at, finished_at=excluded.finished_at,
	  status=excluded.status, error_kind=excluded.error_kind, error=excluded.error, records=excluded.records`,
		a.RunID, a.Number, a.Trigger, a.StartedAt.UnixNano(), a.FinishedAt.UnixNano(), a.Status, a.ErrorKind, a.Error, a.Records)
	return err
}

// ListAttempts returns the most recent attempts, newest first.
func (d *DB) ListAttempts(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx, `
	SELECT run_id, attempt, trigger_source, started_at, finished_at, status, error_kind, error, records
	FROM attempts ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanAttempts(rows)
}

// LastRun returns the attempts of the most recently started run in order.
func (d *DB) LastRun(ctx context.Context) ([]Attempt, error) {
	rows, err := d.sql.QueryContext(ctx, `
	SELECT run_id, attempt, trigger_source, started_at, finished_at, status, error_kind, error, records
	FROM attempts
	WHERE run_id = (SELECT run_id FROM attempts ORDER BY started_at DESC, id DESC LIMIT 1)
	ORDER BY attempt`)
	if err != nil {
		return nil, err
	}
	return scanAttempts(rows)
}

func scanAttempts(rows *sql.Rows) ([]Attempt, error) {
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var a Attempt
		var started, finished int64
		if err := rows.Scan(&a.RunID, &a.Number, &a.Trigger, &started, &finished, &a.Status, &a.ErrorKind, &a.Error, &a.Records); err != nil {
			return nil, err
		}
		a.StartedAt = time.Unix(0, started).UTC()
		a.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
