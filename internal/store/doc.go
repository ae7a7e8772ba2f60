// Package store provides a SQLite-backed log of hub transactions.
//
// Every outcome the waiter produces can be appended here through
// Store.Recorder, then listed or summarized by the trace command.
//
// # Ordering
//
//   - Rows are ordered by seq (insertion order), NEVER by completed_at
//   - completed_at comes from the waiter's clock and may be fake
//
// # Idempotency
//
//   - transaction_id is UNIQUE; re-recording a known ID is a no-op
//   - Handles without an ID are stored with a NULL transaction_id
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - user_version: Layout version; newer logs are refused
package store
