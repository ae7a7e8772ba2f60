package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/hubtest/internal/txn"
)

// completedAtLayout is fixed-width so completed_at sorts lexically.
const completedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// WriteTransaction appends one waiter record to the log under run.
// Uses ON CONFLICT(transaction_id) DO NOTHING for idempotency - a record whose
// transaction ID is already logged is silently ignored. Records without an ID
// are always appended.
func (s *Store) WriteTransaction(ctx context.Context, run string, rec txn.Record) error {
	var code sql.NullInt32
	if rec.HasCode {
		code = sql.NullInt32{Int32: rec.Code, Valid: true}
	}
	var id sql.NullString
	if rec.TransactionID != "" {
		id = sql.NullString{String: rec.TransactionID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(run, transaction_id, kind, reason, code, timeout_ms, elapsed_ms, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO NOTHING
	`,
		run,
		id,
		rec.Kind.Label(),
		string(rec.Reason),
		code,
		rec.Timeout.Milliseconds(),
		rec.Elapsed.Milliseconds(),
		rec.CompletedAt.UTC().Format(completedAtLayout),
	)
	if err != nil {
		return fmt.Errorf("write transaction: %w", err)
	}
	return nil
}

// Recorder returns a txn.Recorder that logs every record under run.
func (s *Store) Recorder(run string) txn.Recorder {
	return &runRecorder{store: s, run: run}
}

type runRecorder struct {
	store *Store
	run   string
}

func (r *runRecorder) RecordTransaction(ctx context.Context, rec txn.Record) error {
	return r.store.WriteTransaction(ctx, r.run, rec)
}

func parseCompletedAt(s string) (time.Time, error) {
	t, err := time.Parse(completedAtLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse completed_at %q: %w", s, err)
	}
	return t, nil
}
