package txn

import (
	"errors"
	"fmt"

	"github.com/roach88/hubtest/internal/contexthub"
)

var (
	// ErrNullHandle is returned when Wait is given a nil transaction.
	ErrNullHandle = errors.New("transaction handle is nil")

	// ErrHandleConsumed is returned when the handle was already waited on.
	ErrHandleConsumed = errors.New("transaction handle already consumed")

	// ErrInvalidTimeout is returned for budgets that are not a positive
	// whole number of seconds.
	ErrInvalidTimeout = errors.New("timeout must be a positive whole number of seconds")
)

// PreconditionError reports misuse of the waiter by its caller.
// It is never classified as an Outcome.
type PreconditionError struct {
	Kind contexthub.Kind
	Err  error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s transaction: %v", e.Kind.Upper(), e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// IsPrecondition returns true if err is or wraps a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
