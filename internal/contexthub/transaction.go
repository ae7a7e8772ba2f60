package contexthub

import (
	"context"
	"errors"
	"time"
)

// Signals a Transaction may return from WaitForResponse instead of a response.
var (
	// ErrTimeout reports that no response arrived within the requested timeout.
	ErrTimeout = errors.New("contexthub: timed out waiting for response")

	// ErrInterrupted reports that the wait was aborted from outside.
	ErrInterrupted = errors.New("contexthub: wait interrupted")

	// ErrConsumed reports a wait on a transaction whose response was already
	// taken. Transactions are single use.
	ErrConsumed = errors.New("contexthub: transaction already consumed")
)

// Response is the completion of a transaction.
type Response[T any] struct {
	// Result is ResultSuccess or one of the failure codes.
	Result int32

	// Contents carries the payload of a query. Zero for load and unload.
	Contents T
}

// Transaction is a handle to an in-flight operation.
//
// WaitForResponse blocks until the hub responds, the timeout elapses or ctx
// is done. It may return a nil response with a nil error when the hub could
// not produce one; callers treat that as a failed transaction.
type Transaction[T any] interface {
	Kind() Kind
	WaitForResponse(ctx context.Context, timeout time.Duration) (*Response[T], error)
}

// Manager submits operations to a hub.
// Each call returns a fresh transaction; a nil transaction is a manager bug.
type Manager interface {
	LoadNanoApp(hub HubInfo, binary *NanoAppBinary) Transaction[struct{}]
	UnloadNanoApp(hub HubInfo, appID uint64) Transaction[struct{}]
	QueryNanoApps(hub HubInfo) Transaction[[]NanoAppState]
}
