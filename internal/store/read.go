package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/hubtest/internal/contexthub"
	"github.com/roach88/hubtest/internal/txn"
)

// Entry is one logged transaction.
type Entry struct {
	Seq    int64
	Run    string
	Record txn.Record
}

// Filter narrows ReadTransactions. Zero fields match everything.
type Filter struct {
	Run    string
	Kind   contexthub.Kind
	Reason txn.Reason
	Limit  int
}

// ReadTransactions returns logged transactions matching f.
// Results are ordered deterministically: ORDER BY seq ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadTransactions(ctx context.Context, f Filter) ([]Entry, error) {
	where, args := f.clauses()
	query := `
		SELECT seq, run, transaction_id, kind, reason, code, timeout_ms, elapsed_ms, completed_at
		FROM transactions` + where + `
		ORDER BY seq ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return entries, nil
}

// CountByReason tallies logged transactions per failure reason.
// Run and Kind in f are honored; Reason and Limit are ignored.
func (s *Store) CountByReason(ctx context.Context, f Filter) (map[txn.Reason]int, error) {
	f.Reason = ""
	where, args := f.clauses()

	rows, err := s.db.QueryContext(ctx, `
		SELECT reason, COUNT(*)
		FROM transactions`+where+`
		GROUP BY reason
		ORDER BY reason COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[txn.Reason]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[txn.Reason(reason)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func (f Filter) clauses() (string, []any) {
	var conds []string
	var args []any
	if f.Run != "" {
		conds = append(conds, "run = ?")
		args = append(args, f.Run)
	}
	if f.Kind != 0 {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind.Label())
	}
	if f.Reason != "" {
		conds = append(conds, "reason = ?")
		args = append(args, string(f.Reason))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e           Entry
		id          sql.NullString
		kind        string
		reason      string
		code        sql.NullInt32
		timeoutMS   int64
		elapsedMS   int64
		completedAt string
	)
	if err := rows.Scan(&e.Seq, &e.Run, &id, &kind, &reason, &code, &timeoutMS, &elapsedMS, &completedAt); err != nil {
		return Entry{}, fmt.Errorf("scan transaction: %w", err)
	}

	k, err := contexthub.ParseKind(kind)
	if err != nil {
		return Entry{}, fmt.Errorf("scan transaction %d: %w", e.Seq, err)
	}
	at, err := parseCompletedAt(completedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("scan transaction %d: %w", e.Seq, err)
	}

	e.Record = txn.Record{
		TransactionID: id.String,
		Kind:          k,
		Reason:        txn.Reason(reason),
		Code:          code.Int32,
		HasCode:       code.Valid,
		Timeout:       time.Duration(timeoutMS) * time.Millisecond,
		Elapsed:       time.Duration(elapsedMS) * time.Millisecond,
		CompletedAt:   at,
	}
	return e, nil
}
