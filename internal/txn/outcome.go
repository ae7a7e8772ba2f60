package txn

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/hubtest/internal/contexthub"
)

// Reason classifies how a transaction ended.
type Reason string

const (
	ReasonNone              Reason = "none"
	ReasonTransactionFailed Reason = "transaction_failed"
	ReasonTimedOut          Reason = "timed_out"
	ReasonInterrupted       Reason = "interrupted"
	ReasonNullHandle        Reason = "null_handle"
)

// Reasons lists every reason in reporting order.
var Reasons = []Reason{ReasonNone, ReasonTransactionFailed, ReasonTimedOut, ReasonInterrupted, ReasonNullHandle}

// ParseReason is the inverse of string(Reason).
func ParseReason(s string) (Reason, error) {
	if r := Reason(s); slices.Contains(Reasons, r) {
		return r, nil
	}
	return "", fmt.Errorf("unknown outcome reason %q", s)
}

// Outcome is the normalized result of one waited transaction.
type Outcome[T any] struct {
	Kind      contexthub.Kind
	Succeeded bool

	// Code is the result code delivered by the hub. Only meaningful when
	// HasCode is true; timeouts, interrupts and missing responses carry none.
	Code    int32
	HasCode bool

	Reason Reason

	// Payload is the response contents. Set only on success.
	Payload T

	Elapsed time.Duration
}

// Describe renders the outcome for failure messages. Timeouts and interrupts
// are worded differently from result-code failures.
func (o Outcome[T]) Describe() string {
	kind := o.Kind.Upper()
	switch o.Reason {
	case ReasonNone:
		return fmt.Sprintf("%s transaction succeeded", kind)
	case ReasonTimedOut:
		return fmt.Sprintf("timed out while waiting for %s transaction", kind)
	case ReasonInterrupted:
		return fmt.Sprintf("interrupted while waiting for %s transaction", kind)
	case ReasonNullHandle:
		return fmt.Sprintf("%s transaction handle was nil", kind)
	}
	if o.HasCode {
		return fmt.Sprintf("%s transaction failed with error code %d (%s)",
			kind, o.Code, contexthub.ResultString(o.Code))
	}
	return fmt.Sprintf("%s transaction failed without a response", kind)
}
