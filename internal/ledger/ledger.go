// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records the outcome of every identifier lookup and the
// history of runs in a SQLite database. The schema is managed with goose
// migrations embedded in the binary.
//
// A nil *Ledger is valid and records nothing, which is how an empty ledger
// path disables it.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its base filesystem and dialect in package globals.
var migrateMu sync.Mutex

// Status is the last known outcome of a lookup.
type Status string

const (
	StatusResolved Status = "resolved"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
)

const timeLayout = time.RFC3339

// Counts are the per-run tallies stored in the runs table.
type Counts struct {
	Resolved int `json:"resolved" yaml:"resolved"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	NotFound int `json:"not_found" yaml:"not_found"`
	Failed   int `json:"failed" yaml:"failed"`
	Rejected int `json:"rejected" yaml:"rejected"`
}

// Run is one row of the run history.
type Run struct {
	ID         int64      `json:"id" yaml:"id"`
	Command    string     `json:"command" yaml:"command"`
	Input      string     `json:"input" yaml:"input"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Counts     `json:",inline" yaml:",inline"`
}

// Ledger wraps the SQLite database.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger at path and applies pending migrations.
// An empty path returns a nil Ledger.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(log.StandardLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrating ledger: %w", err)
	}
	return nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Status returns the recorded status of id, or "" when it was never looked up.
func (l *Ledger) Status(ctx context.Context, id types.VideoID) (Status, error) {
	if l == nil {
		return "", nil
	}
	var s string
	err := l.db.QueryRowContext(ctx, `SELECT status FROM lookups WHERE video_id = ?`, id.String()).Scan(&s)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading status of %s: %w", id, err)
	}
	return Status(s), nil
}

// WithStatus returns the set of ids whose last outcome is status.
func (l *Ledger) WithStatus(ctx context.Context, status Status) (map[types.VideoID]struct{}, error) {
	ids := make(map[types.VideoID]struct{})
	if l == nil {
		return ids, nil
	}
	rows, err := l.db.QueryContext(ctx, `SELECT video_id FROM lookups WHERE status = ?`, string(status))
	if err != nil {
		return nil, fmt.Errorf("querying %s ids: %w", status, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids[types.VideoID(id)] = struct{}{}
	}
	return ids, rows.Err()
}

// Record upserts the outcome of ids in one transaction, incrementing each
// id's attempt count.
func (l *Ledger) Record(ctx context.Context, status Status, reason string, ids ...types.VideoID) error {
	if l == nil || len(ids) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lookups (video_id, status, error, attempts, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			attempts = lookups.attempts + 1,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	at := l.now().UTC().Format(timeLayout)
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id.String(), string(status), reason, at); err != nil {
			return fmt.Errorf("recording %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Attempts returns how many times id has been recorded.
func (l *Ledger) Attempts(ctx context.Context, id types.VideoID) (int, error) {
	if l == nil {
		return 0, nil
	}
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT attempts FROM lookups WHERE video_id = ?`, id.String()).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading attempts of %s: %w", id, err)
	}
	return n, nil
}

// StartRun inserts a run row and returns its id.
func (l *Ledger) StartRun(ctx context.Context, command, input string) (int64, error) {
	if l == nil {
		return 0, nil
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (command, input, started_at) VALUES (?, ?, ?)`,
		command, input, l.now().UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("starting run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun stores the final counts of run id.
func (l *Ledger) FinishRun(ctx context.Context, id int64, c Counts) error {
	if l == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, resolved = ?, skipped = ?, not_found = ?, failed = ?, rejected = ?
		WHERE id = ?`,
		l.now().UTC().Format(timeLayout), c.Resolved, c.Skipped, c.NotFound, c.Failed, c.Rejected, id)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", id, err)
	}
	return nil
}

// Summary counts lookups per status.
func (l *Ledger) Summary(ctx context.Context) (map[Status]int, error) {
	out := make(map[Status]int)
	if l == nil {
		return out, nil
	}
	rows, err := l.db.QueryContext(ctx, `SELECT status, count(*) FROM lookups GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("summarizing lookups: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		out[Status(s)] = n
	}
	return out, rows.Err()
}

// Runs returns up to limit runs, newest first. A non-positive limit returns all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if l == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, command, input, started_at, finished_at, resolved, skipped, not_found, failed, rejected
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Command, &r.Input, &started, &finished,
			&r.Resolved, &r.Skipped, &r.NotFound, &r.Failed, &r.Rejected); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parsing start of run %d: %w", r.ID, err)
		}
		if finished.Valid {
			t, err := time.Parse(timeLayout, finished.String)
			if err != nil {
				return nil, fmt.Errorf("parsing end of run %d: %w", r.ID, err)
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
