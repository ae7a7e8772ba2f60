package chretest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/hubtest/internal/contexthub"
	"github.com/roach88/hubtest/internal/metrics"
	"github.com/roach88/hubtest/internal/txn"
)

// Timeout budgets per transaction kind.
const (
	LoadTimeout   = 5 * time.Second
	UnloadTimeout = 5 * time.Second
	QueryTimeout  = 5 * time.Second
)

// Util binds a manager, a target hub and a reporter.
// A Util holds no transaction state and may be shared between goroutines.
type Util struct {
	manager  contexthub.Manager
	hub      contexthub.HubInfo
	reporter Reporter
	waiter   *txn.Waiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Util.
type Option func(*Util)

// WithWaiter sets the transaction waiter (clock, recorder, metrics).
func WithWaiter(w *txn.Waiter) Option {
	return func(u *Util) { u.waiter = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(u *Util) { u.logger = l }
}

// WithMetrics counts aborts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(u *Util) { u.metrics = m }
}

// New creates a Util. A nil reporter panics on abort (see PanicReporter).
func New(manager contexthub.Manager, hub contexthub.HubInfo, reporter Reporter, opts ...Option) *Util {
	if reporter == nil {
		reporter = PanicReporter{}
	}
	u := &Util{
		manager:  manager,
		hub:      hub,
		reporter: reporter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.waiter == nil {
		u.waiter = txn.NewWaiter(txn.WithLogger(u.logger), txn.WithMetrics(u.metrics))
	}
	return u
}

// Hub returns the hub this Util targets.
func (u *Util) Hub() contexthub.HubInfo {
	return u.hub
}

// Load submits a load transaction and waits for it. The error is non-nil
// only for precondition failures such as a nil handle.
func (u *Util) Load(ctx context.Context, binary *contexthub.NanoAppBinary) (txn.Outcome[struct{}], error) {
	tx := u.manager.LoadNanoApp(u.hub, binary)
	return txn.Wait(ctx, u.waiter, contexthub.KindLoad, tx, LoadTimeout)
}

// Unload submits an unload transaction and waits for it.
func (u *Util) Unload(ctx context.Context, appID uint64) (txn.Outcome[struct{}], error) {
	tx := u.manager.UnloadNanoApp(u.hub, appID)
	return txn.Wait(ctx, u.waiter, contexthub.KindUnload, tx, UnloadTimeout)
}

// Query submits a query transaction and waits for it.
func (u *Util) Query(ctx context.Context) (txn.Outcome[[]contexthub.NanoAppState], error) {
	tx := u.manager.QueryNanoApps(u.hub)
	return txn.Wait(ctx, u.waiter, contexthub.KindQuery, tx, QueryTimeout)
}

// LoadNanoApp loads binary and reports whether the hub accepted it.
// Failures, timeouts and interrupts all return false.
func (u *Util) LoadNanoApp(ctx context.Context, binary *contexthub.NanoAppBinary) bool {
	out, err := u.Load(ctx, binary)
	if err != nil {
		u.abort(preconditionFatal(contexthub.KindLoad, err))
		return false
	}
	return out.Succeeded
}

// LoadNanoAppAssertSuccess is LoadNanoApp but aborts on failure.
func (u *Util) LoadNanoAppAssertSuccess(ctx context.Context, binary *contexthub.NanoAppBinary) {
	out, err := u.Load(ctx, binary)
	if err != nil {
		u.abort(preconditionFatal(contexthub.KindLoad, err))
		return
	}
	if !out.Succeeded {
		u.abort(outcomeFatal("Failed to load nanoapp", out))
	}
}

// UnloadNanoApp unloads appID and reports whether the hub accepted it.
func (u *Util) UnloadNanoApp(ctx context.Context, appID uint64) bool {
	out, err := u.Unload(ctx, appID)
	if err != nil {
		u.abort(preconditionFatal(contexthub.KindUnload, err))
		return false
	}
	return out.Succeeded
}

// UnloadNanoAppAssertSuccess is UnloadNanoApp but aborts on failure.
func (u *Util) UnloadNanoAppAssertSuccess(ctx context.Context, appID uint64) {
	out, err := u.Unload(ctx, appID)
	if err != nil {
		u.abort(preconditionFatal(contexthub.KindUnload, err))
		return
	}
	if !out.Succeeded {
		u.abort(outcomeFatal(fmt.Sprintf("Failed to unload nanoapp 0x%x", appID), out))
	}
}

// QueryNanoAppsAssertSuccess returns every nanoapp loaded on the hub, in the
// order the hub reports them. Any failure aborts.
func (u *Util) QueryNanoAppsAssertSuccess(ctx context.Context) []contexthub.NanoAppState {
	states, _ := u.queryAssertSuccess(ctx)
	return states
}

// NanoAppVersion queries the hub and returns the version of appID.
// A missing or duplicated appID aborts.
func (u *Util) NanoAppVersion(ctx context.Context, appID uint64) uint32 {
	states, ok := u.queryAssertSuccess(ctx)
	if !ok {
		return 0
	}

	state, matches := FindNanoApp(states, appID)
	switch {
	case matches == 0:
		u.abort(&FatalError{
			Message: fmt.Sprintf("Could not query for nanoapp with ID 0x%x", appID),
			Kind:    contexthub.KindQuery,
		})
		return 0
	case matches > 1:
		u.abort(&FatalError{
			Message: fmt.Sprintf("Query returned %d entries for nanoapp with ID 0x%x", matches, appID),
			Kind:    contexthub.KindQuery,
			Detail:  "duplicate nanoapp IDs violate the hub contract",
		})
		return 0
	}
	return state.Version
}

// FindNanoApp scans states in order and returns the first entry for appID
// along with the total number of entries carrying that ID.
func FindNanoApp(states []contexthub.NanoAppState, appID uint64) (contexthub.NanoAppState, int) {
	var first contexthub.NanoAppState
	matches := 0
	for _, s := range states {
		if s.ID != appID {
			continue
		}
		if matches == 0 {
			first = s
		}
		matches++
	}
	return first, matches
}

func (u *Util) queryAssertSuccess(ctx context.Context) ([]contexthub.NanoAppState, bool) {
	out, err := u.Query(ctx)
	if err != nil {
		u.abort(preconditionFatal(contexthub.KindQuery, err))
		return nil, false
	}
	if !out.Succeeded {
		u.abort(outcomeFatal("Failed to query nanoapps", out))
		return nil, false
	}
	return out.Payload, true
}

func (u *Util) abort(fe *FatalError) {
	label := "none"
	if fe.Kind != 0 {
		label = fe.Kind.Label()
	}
	u.logger.Error("aborting test",
		"hub", u.hub.ID,
		"kind", label,
		"reason", string(fe.Reason),
		"error", fe.Error(),
	)
	if u.metrics != nil {
		u.metrics.AbortsTotal.WithLabelValues(label).Inc()
	}
	u.reporter.Fatal(fe)
}
