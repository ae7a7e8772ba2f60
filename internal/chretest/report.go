package chretest

import (
	"errors"
	"fmt"

	"github.com/roach88/hubtest/internal/contexthub"
	"github.com/roach88/hubtest/internal/txn"
)

// Reporter receives fatal test aborts. testing.TB implements it.
//
// Helpers return immediately after Fatal, so a Reporter that does not stop
// the goroutine still sees exactly one abort per failed call.
type Reporter interface {
	Fatal(args ...any)
}

// FatalError is the value passed to Reporter.Fatal.
type FatalError struct {
	// Message is the headline, e.g. "Failed to load nanoapp".
	Message string

	// Kind is zero for aborts not tied to a transaction.
	Kind    contexthub.Kind
	Reason  txn.Reason
	Code    int32
	HasCode bool

	// Detail explains the failure; for transactions it is Outcome.Describe.
	Detail string

	Err error
}

func (e *FatalError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// AsFatal extracts a FatalError from a recovered panic value or an error.
func AsFatal(v any) (*FatalError, bool) {
	err, ok := v.(error)
	if !ok {
		return nil, false
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func outcomeFatal[T any](message string, out txn.Outcome[T]) *FatalError {
	return &FatalError{
		Message: message,
		Kind:    out.Kind,
		Reason:  out.Reason,
		Code:    out.Code,
		HasCode: out.HasCode,
		Detail:  out.Describe(),
	}
}

func preconditionFatal(kind contexthub.Kind, err error) *FatalError {
	reason := txn.Reason("")
	if errors.Is(err, txn.ErrNullHandle) {
		reason = txn.ReasonNullHandle
	}
	return &FatalError{
		Message: fmt.Sprintf("Invalid %s transaction", kind.Upper()),
		Kind:    kind,
		Reason:  reason,
		Err:     err,
	}
}

// PanicReporter aborts by panicking with the FatalError. Use it outside of
// tests together with recover and AsFatal.
type PanicReporter struct{}

func (PanicReporter) Fatal(args ...any) {
	if len(args) == 1 {
		if err, ok := args[0].(error); ok {
			panic(err)
		}
	}
	panic(&FatalError{Message: fmt.Sprint(args...)})
}
