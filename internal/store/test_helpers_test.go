package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/hubtest/internal/contexthub"
	"github.com/roach88/hubtest/internal/txn"
)

var testEpoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record with minimal required fields.
func createTestRecord(id string, kind contexthub.Kind, reason txn.Reason) txn.Record {
	return txn.Record{
		TransactionID: id,
		Kind:          kind,
		Reason:        reason,
		Timeout:       5 * time.Second,
		CompletedAt:   testEpoch,
	}
}

// QueryBudget mirrors the production query timeout.
const QueryBudget = 5 * time.Second

// instantQuery is a query handle that answers immediately with success.
type instantQuery struct {
	id string
}

func (q *instantQuery) ID() string { return q.id }

func (q *instantQuery) Kind() contexthub.Kind { return contexthub.KindQuery }

func (q *instantQuery) WaitForResponse(context.Context, time.Duration) (*contexthub.Response[[]contexthub.NanoAppState], error) {
	return &contexthub.Response[[]contexthub.NanoAppState]{Result: contexthub.ResultSuccess}, nil
}
