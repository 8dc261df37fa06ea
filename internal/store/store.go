// Package store is the transactional reference store and the four
// append-only logs, backed by SQLite with a busy timeout, WAL
// journaling, and foreign keys on.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// Store owns the single SQLite connection backing the reference tables
// and the four logs. All mutation happens inside a transaction opened by
// WithTx: the reference mutations and log append for one event are a
// single atomic unit of work.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_fk=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // single logical writer; avoids SQLite's writer-lock contention
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "store")}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a single atomic unit of work against the store, scoped to one
// released event (or one seeding pass).
type Tx struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back (and returning the error) on failure or panic.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	t := &Tx{tx: tx, logger: s.logger}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(t); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr, "cause", err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DB exposes the underlying *sql.DB. The read-only query helpers in
// logs.go and reads.go use the same handle directly, outside any Tx:
// report generation and the sequencer's lastReleased lookup do not need
// transactional isolation beyond what the single-writer model already
// guarantees.
func (s *Store) DB() *sql.DB { return s.db }
