package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// logVersion is stamped into user_version. A log written by a newer layout is
// refused rather than appended to.
const logVersion = 1

// connPragmas are applied on every open. The log has a single writer (the
// waiter's recorder) and readers in the trace command.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// Store is an append-only log of hub transaction outcomes.
type Store struct {
	db *sql.DB
}

// Open creates the transaction log at path, or reopens an existing one.
// Reopening keeps every row already logged.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to transaction log: %w", err)
	}

	// Recorders from parallel scenarios share this handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepareLog(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// prepareLog configures the connection and creates the transactions table.
func prepareLog(db *sql.DB) error {
	for _, pragma := range connPragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read log version: %w", err)
	}
	if version > logVersion {
		return fmt.Errorf("transaction log version %d is newer than supported version %d", version, logVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create transactions table: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", logVersion)); err != nil {
		return fmt.Errorf("set log version: %w", err)
	}
	return nil
}
