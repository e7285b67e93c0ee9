// Package history persists completed shell invocations to SQLite so recent
// commands survive restarts.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"quill/internal/domain"
)

// SQLiteStore implements shellrun.InvocationRecorder backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS invocations (
			call_id     TEXT PRIMARY KEY,
			command     TEXT NOT NULL,
			status      TEXT NOT NULL,
			exit_code   INTEGER,
			workdir     TEXT NOT NULL DEFAULT '',
			output      TEXT NOT NULL DEFAULT '',
			started_at  TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record inserts one completed invocation.
func (s *SQLiteStore) Record(inv domain.ShellInvocation) error {
	var exitCode any
	if inv.ExitCode != nil {
		exitCode = *inv.ExitCode
	}
	_, err := s.db.Exec(`
		INSERT INTO invocations (call_id, command, status, exit_code, workdir, output, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.CallID,
		inv.Command,
		string(inv.Status),
		exitCode,
		inv.WorkDir,
		inv.Output,
		inv.StartedAt.UTC().Format(time.RFC3339Nano),
		inv.Duration.Milliseconds(),
	)
	if err != nil {
		return domain.NewSubSystemError("history", "SQLiteStore.Record", domain.ErrHistoryWrite, err.Error())
	}
	return nil
}

// Recent returns up to limit invocations, newest first.
func (s *SQLiteStore) Recent(limit int) ([]domain.ShellInvocation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT call_id, command, status, exit_code, workdir, output, started_at, duration_ms
		FROM invocations
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.ShellInvocation
	for rows.Next() {
		var (
			inv        domain.ShellInvocation
			status     string
			exitCode   sql.NullInt64
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&inv.CallID, &inv.Command, &status, &exitCode, &inv.WorkDir, &inv.Output, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		inv.Status = domain.ToolCallStatus(status)
		if exitCode.Valid {
			code := int(exitCode.Int64)
			inv.ExitCode = &code
		}
		if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			inv.StartedAt = ts
		}
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, inv)
	}
	return out, rows.Err()
}
