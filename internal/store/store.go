// Package store applies rendered upsert scripts to a relational database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver names a supported database.
type Driver string

// Supported drivers.
const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ErrUnsupportedDriver is returned for drivers other than sqlite and postgres.
var ErrUnsupportedDriver = errors.New("unsupported driver")

const maxRetries = 3

// Open opens a DB and ensures the question schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string

	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:qbank.db?mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/qbank?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	schema := schemaSQLite
	if driver == DriverPostgres {
		schema = schemaPostgres
	}

	for _, stmt := range SplitStatements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// ApplyScript executes every statement of a rendered script inside one
// transaction, retrying the whole transaction while SQLite reports BUSY.
// Transaction control statements in the script are skipped.
func ApplyScript(ctx context.Context, db *sql.DB, script string) (int, error) {
	var stmts []string

	for _, stmt := range SplitStatements(script) {
		switch strings.ToUpper(stmt) {
		case "BEGIN", "BEGIN TRANSACTION", "COMMIT", "END":
			continue
		}

		stmts = append(stmts, stmt)
	}

	err := runTx(ctx, db, func(tx *sql.Tx) error {
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(stmts), nil
}

// IsBusy reports whether err indicates an SQLite BUSY condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func runTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	for i := range maxRetries {
		err := runOnce(ctx, db, fn)
		if err == nil {
			return nil
		}

		if !IsBusy(err) || i == maxRetries-1 {
			return err
		}

		t := time.NewTimer(time.Duration(100*(i+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()

			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-t.C:
		}
	}

	return errors.New("max retries exceeded")
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS question_banks (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  source TEXT NOT NULL,
  year INTEGER NOT NULL,
  institution TEXT NOT NULL DEFAULT '',
  exam_type TEXT NOT NULL DEFAULT '',
  question_count INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  bank_id TEXT NOT NULL REFERENCES question_banks(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  stem TEXT NOT NULL,
  options TEXT NOT NULL,
  correct_index INTEGER NOT NULL,
  area TEXT NOT NULL DEFAULT '',
  year INTEGER NOT NULL,
  institution TEXT NOT NULL DEFAULT '',
  institution_tier TEXT NOT NULL DEFAULT '',
  exam_type TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  total_questions INTEGER NOT NULL DEFAULT 0,
  option_count INTEGER NOT NULL DEFAULT 0,
  difficulty REAL NOT NULL,
  discrimination REAL NOT NULL,
  guessing REAL NOT NULL,
  infit REAL,
  outfit REAL,
  irt_estimated BOOLEAN NOT NULL,
  irt_confidence REAL NOT NULL,
  irt_method TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_questions_bank ON questions(bank_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS question_banks (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  source TEXT NOT NULL,
  year INTEGER NOT NULL,
  institution TEXT NOT NULL DEFAULT '',
  exam_type TEXT NOT NULL DEFAULT '',
  question_count INTEGER NOT NULL DEFAULT 0,
  updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  bank_id TEXT NOT NULL REFERENCES question_banks(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  stem TEXT NOT NULL,
  options JSONB NOT NULL,
  correct_index INTEGER NOT NULL,
  area TEXT NOT NULL DEFAULT '',
  year INTEGER NOT NULL,
  institution TEXT NOT NULL DEFAULT '',
  institution_tier TEXT NOT NULL DEFAULT '',
  exam_type TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  total_questions INTEGER NOT NULL DEFAULT 0,
  option_count INTEGER NOT NULL DEFAULT 0,
  difficulty DOUBLE PRECISION NOT NULL,
  discrimination DOUBLE PRECISION NOT NULL,
  guessing DOUBLE PRECISION NOT NULL,
  infit DOUBLE PRECISION,
  outfit DOUBLE PRECISION,
  irt_estimated BOOLEAN NOT NULL,
  irt_confidence DOUBLE PRECISION NOT NULL,
  irt_method TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_questions_bank ON questions(bank_id);
`

// ApplyFile opens the database, applies the script at path and closes it.
func ApplyFile(ctx context.Context, driver Driver, dsn, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	db, err := Open(ctx, driver, dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return ApplyScript(ctx, db, string(data))
}
