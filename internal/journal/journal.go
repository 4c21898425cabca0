// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package journal keeps a SQLite record of protocol runs and of every
// command each run sent to the platform.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one execution of a protocol.
type Run struct {
	ID         string
	Protocol   string
	Platform   string
	Status     Status
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// Command is one platform call made during a run.
type Command struct {
	Seq    int
	Op     string
	Detail string
	Error  string
}

// Store is an open journal database.
type Store struct {
	db *sql.DB
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens or creates the journal at path and migrates it to the latest
// schema version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure journal %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal %s: %w", path, err)
	}
	// One writer at a time; the journal is only ever appended to by one run.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// migrateUp applies every pending embedded migration.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: closing it would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (uint, error) {
	var version uint
	err := s.db.QueryRow(`SELECT version FROM schema_migrations LIMIT 1`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// BeginRun records a new running run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, protocol, platform string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, protocol, platform, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, protocol, platform, string(StatusRunning), now())
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	return id, nil
}

// FinishRun marks the run succeeded, or failed with runErr.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE run_id = ?`,
		string(status), msg, now(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecordCommand appends one command to a run.
func (s *Store) RecordCommand(ctx context.Context, runID string, seq int, op, detail string, cmdErr error) error {
	msg := ""
	if cmdErr != nil {
		msg = cmdErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commands (run_id, seq, op, detail, error, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, seq, op, detail, msg, now())
	if err != nil {
		return fmt.Errorf("failed to record command %d of run %s: %w", seq, runID, err)
	}
	return nil
}

// Run returns the run with the given ID.
func (s *Store) Run(ctx context.Context, runID string) (*Run, error) {
	var (
		r                 Run
		status            string
		started, finished string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, protocol, platform, status, error, started_at, finished_at FROM runs WHERE run_id = ?`,
		runID).Scan(&r.ID, &r.Protocol, &r.Platform, &status, &r.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}

	r.Status = Status(status)
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("run %s: bad started_at %q: %w", runID, started, err)
	}
	if finished != "" {
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("run %s: bad finished_at %q: %w", runID, finished, err)
		}
	}
	return &r, nil
}

// Commands returns the commands of a run in the order they were issued.
func (s *Store) Commands(ctx context.Context, runID string) ([]Command, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, op, detail, error FROM commands WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands of run %s: %w", runID, err)
	}
	defer rows.Close()

	var cmds []Command
	for rows.Next() {
		var c Command
		if err := rows.Scan(&c.Seq, &c.Op, &c.Detail, &c.Error); err != nil {
			return nil, fmt.Errorf("failed to scan command of run %s: %w", runID, err)
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// Runs returns every run in the journal, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := s.Run(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, nil
}
