package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"k8s.io/utils/clock"

	"github.com/roach88/hubtest/internal/contexthub"
	"github.com/roach88/hubtest/internal/metrics"
)

// Record is what the waiter hands to a Recorder after every wait.
type Record struct {
	TransactionID string
	Kind          contexthub.Kind
	Reason        Reason
	Code          int32
	HasCode       bool
	Timeout       time.Duration
	Elapsed       time.Duration
	CompletedAt   time.Time
}

// Recorder persists transaction records. Errors are logged and dropped.
type Recorder interface {
	RecordTransaction(ctx context.Context, rec Record) error
}

// identified is implemented by handles that expose a transaction ID.
type identified interface {
	ID() string
}

// Waiter holds the collaborators shared by every Wait call.
// It holds no per-transaction state and is safe for concurrent use.
type Waiter struct {
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder Recorder
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithClock sets the clock used for the timeout timer.
func WithClock(c clock.Clock) Option {
	return func(w *Waiter) { w.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Waiter) { w.logger = l }
}

// WithMetrics enables Prometheus accounting.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Waiter) { w.metrics = m }
}

// WithRecorder appends every outcome to r.
func WithRecorder(r Recorder) Option {
	return func(w *Waiter) { w.recorder = r }
}

// NewWaiter creates a waiter on the real clock and the default logger.
func NewWaiter(opts ...Option) *Waiter {
	w := &Waiter{
		clock:  clock.RealClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type delivery[T any] struct {
	resp *contexthub.Response[T]
	err  error
}

// Wait blocks until t responds, timeout elapses or ctx is done, and returns
// the classified outcome. The returned error is non-nil only for a
// *PreconditionError; ordinary failures are part of the Outcome.
//
// t is consumed: it must not be waited on again.
func Wait[T any](ctx context.Context, w *Waiter, kind contexthub.Kind, t contexthub.Transaction[T], timeout time.Duration) (Outcome[T], error) {
	if w == nil {
		w = NewWaiter()
	}
	if isNil(t) {
		return Outcome[T]{Kind: kind, Reason: ReasonNullHandle}, &PreconditionError{Kind: kind, Err: ErrNullHandle}
	}
	if timeout <= 0 || timeout%time.Second != 0 {
		return Outcome[T]{Kind: kind}, &PreconditionError{
			Kind: kind,
			Err:  fmt.Errorf("%w: got %v", ErrInvalidTimeout, timeout),
		}
	}

	start := w.clock.Now()
	w.trackInFlight(kind, 1)
	defer w.trackInFlight(kind, -1)

	// Cancelled on return so the handle's goroutine is released even when we
	// stop waiting first.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan delivery[T], 1)
	go func() {
		resp, err := t.WaitForResponse(waitCtx, timeout)
		done <- delivery[T]{resp: resp, err: err}
	}()

	timer := w.clock.NewTimer(timeout)
	defer timer.Stop()

	var out Outcome[T]
	select {
	case d := <-done:
		if errors.Is(d.err, contexthub.ErrConsumed) {
			return Outcome[T]{Kind: kind}, &PreconditionError{
				Kind: kind,
				Err:  fmt.Errorf("%w: %v", ErrHandleConsumed, d.err),
			}
		}
		if ctx.Err() != nil && isContextErr(d.err) {
			// The handle only echoed the caller's cancellation or deadline.
			out = Outcome[T]{Kind: kind, Reason: ReasonInterrupted}
			break
		}
		out = Classify(kind, d.resp, d.err)
	case <-timer.C():
		out = Outcome[T]{Kind: kind, Reason: ReasonTimedOut}
	case <-ctx.Done():
		out = Outcome[T]{Kind: kind, Reason: ReasonInterrupted}
	}
	out.Elapsed = w.clock.Since(start)

	w.observe(ctx, transactionID(t), out.Kind, out.Reason, out.Code, out.HasCode, timeout, out.Elapsed)
	return out, nil
}

// Classify maps what a handle returned onto an Outcome. Every combination of
// inputs yields exactly one Reason.
func Classify[T any](kind contexthub.Kind, resp *contexthub.Response[T], err error) Outcome[T] {
	out := Outcome[T]{Kind: kind}

	switch {
	case errors.Is(err, contexthub.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		out.Reason = ReasonTimedOut
	case errors.Is(err, contexthub.ErrInterrupted), errors.Is(err, context.Canceled):
		out.Reason = ReasonInterrupted
	case err != nil, resp == nil:
		// No usable response collapses into an explicit failure.
		out.Reason = ReasonTransactionFailed
	case resp.Result == contexthub.ResultSuccess:
		out.Succeeded = true
		out.Code, out.HasCode = resp.Result, true
		out.Reason = ReasonNone
		out.Payload = resp.Contents
	default:
		out.Code, out.HasCode = resp.Result, true
		out.Reason = ReasonTransactionFailed
	}

	return out
}

func (w *Waiter) observe(ctx context.Context, id string, kind contexthub.Kind, reason Reason, code int32, hasCode bool, timeout, elapsed time.Duration) {
	attrs := []any{
		"kind", kind.Label(),
		"reason", string(reason),
		"elapsed", elapsed,
	}
	if id != "" {
		attrs = append(attrs, "transaction_id", id)
	}
	if hasCode {
		attrs = append(attrs, "code", code)
	}
	if reason == ReasonNone {
		w.logger.Debug("transaction completed", attrs...)
	} else {
		w.logger.Warn("transaction did not succeed", attrs...)
	}

	if w.metrics != nil {
		w.metrics.TransactionsTotal.WithLabelValues(kind.Label(), string(reason)).Inc()
		w.metrics.WaitSeconds.WithLabelValues(kind.Label()).Observe(elapsed.Seconds())
	}

	if w.recorder == nil {
		return
	}
	rec := Record{
		TransactionID: id,
		Kind:          kind,
		Reason:        reason,
		Code:          code,
		HasCode:       hasCode,
		Timeout:       timeout,
		Elapsed:       elapsed,
		CompletedAt:   w.clock.Now(),
	}
	// The caller's context may be the reason we stopped waiting.
	if err := w.recorder.RecordTransaction(context.WithoutCancel(ctx), rec); err != nil {
		w.logger.Error("failed to record transaction", "kind", kind.Label(), "error", err)
	}
}

func (w *Waiter) trackInFlight(kind contexthub.Kind, delta float64) {
	if w.metrics == nil {
		return
	}
	w.metrics.TransactionsInFlight.WithLabelValues(kind.Label()).Add(delta)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func transactionID(t any) string {
	if idt, ok := t.(identified); ok {
		return idt.ID()
	}
	return ""
}

// isNil also catches typed nil pointers stored in the interface.
func isNil(t any) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}
