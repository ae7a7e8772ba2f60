package harness

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/hubtest/internal/chretest"
	"github.com/roach88/hubtest/internal/contexthub"
	"github.com/roach88/hubtest/internal/metrics"
	"github.com/roach88/hubtest/internal/simhub"
	"github.com/roach88/hubtest/internal/store"
	"github.com/roach88/hubtest/internal/testutil"
	"github.com/roach88/hubtest/internal/txn"
)

// Default fake clock pacing. A 5s budget takes 50 steps.
const (
	DefaultClockStep = 100 * time.Millisecond
	DefaultClockPace = time.Millisecond
)

// Harness is the test execution engine.
// It runs one scenario against a fresh simulated hub on a fake clock with
// deterministic transaction IDs and sequence numbers.
type Harness struct {
	hub     *simhub.Hub
	util    *chretest.Util
	seq     *testutil.Sequence
	records *stepRecorder
	aborts  *abortCollector
	logger  *slog.Logger
}

type runConfig struct {
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Metrics
	step    time.Duration
	pace    time.Duration
}

// Option configures Run.
type Option func(*runConfig)

// WithLogger sets the logger. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithStore appends every transaction to st under the scenario name.
func WithStore(st *store.Store) Option {
	return func(c *runConfig) { c.store = st }
}

// WithMetrics counts transactions and aborts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *runConfig) { c.metrics = m }
}

// WithClockStep changes how far the fake clock jumps per step.
func WithClockStep(step time.Duration) Option {
	return func(c *runConfig) { c.step = step }
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Create a simulated hub on an auto-advancing fake clock
// 2. Install preloaded nanoapps
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions against the trace and final hub state
//
// The returned error is reserved for problems running the scenario itself;
// expectation mismatches are reported through Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		step:   DefaultClockStep,
		pace:   DefaultClockPace,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	fc := testutil.NewFakeClock()
	stop := testutil.AutoAdvance(fc, cfg.step, cfg.pace)
	defer stop()

	hub := simhub.New(
		simhub.WithClock(fc),
		simhub.WithIDGenerator(simhub.NewSequenceGenerator("txn")),
		simhub.WithLogger(cfg.logger),
	)
	for _, app := range scenario.Preloaded {
		hub.Preload(app.State())
	}

	records := &stepRecorder{}
	if cfg.store != nil {
		records.next = cfg.store.Recorder(scenario.Name)
	}
	waiter := txn.NewWaiter(
		txn.WithClock(fc),
		txn.WithLogger(cfg.logger),
		txn.WithMetrics(cfg.metrics),
		txn.WithRecorder(records),
	)

	aborts := &abortCollector{}
	h := &Harness{
		hub: hub,
		util: chretest.New(hub, scenario.Hub.Info(), aborts,
			chretest.WithWaiter(waiter),
			chretest.WithLogger(cfg.logger),
			chretest.WithMetrics(cfg.metrics),
		),
		seq:     testutil.NewSequence(),
		records: records,
		aborts:  aborts,
		logger:  cfg.logger,
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scenario %s: stopped before step %d: %w", scenario.Name, i, err)
		}
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("scenario %s: flow step %d: %w", scenario.Name, i, err)
		}
	}

	for _, s := range hub.Apps() {
		result.FinalApps = append(result.FinalApps, App{AppID: s.ID, Version: s.Version})
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep runs one operation through the public helpers, the same way a
// hand-written test would, and validates the expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step FlowStep, result *Result) error {
	kind := step.Kind()
	if step.Behavior != nil {
		h.hub.Script(kind, simhub.Behavior{
			Result:      step.Behavior.Result,
			Delay:       step.Behavior.Delay,
			Drop:        step.Behavior.Drop,
			NilResponse: step.Behavior.NilResponse,
		})
	}
	h.records.reset()
	h.aborts.reset()

	ev := TraceEvent{
		Seq:  h.seq.Next(),
		Step: i,
		Op:   step.Op,
		Kind: kind.Label(),
	}

	var (
		states  []contexthub.NanoAppState
		version uint32
	)
	switch step.Op {
	case OpLoad, OpLoadAssert:
		bin, err := buildBinary(step)
		if err != nil {
			return err
		}
		id := bin.AppID()
		ev.AppID = &id
		if step.Op == OpLoad {
			ok := h.util.LoadNanoApp(ctx, bin)
			ev.OK = &ok
		} else {
			h.util.LoadNanoAppAssertSuccess(ctx, bin)
		}
	case OpUnload:
		ev.AppID = &step.AppID
		ok := h.util.UnloadNanoApp(ctx, step.AppID)
		ev.OK = &ok
	case OpUnloadAssert:
		ev.AppID = &step.AppID
		h.util.UnloadNanoAppAssertSuccess(ctx, step.AppID)
	case OpQuery:
		states = h.util.QueryNanoAppsAssertSuccess(ctx)
	case OpVersion:
		ev.AppID = &step.AppID
		version = h.util.NanoAppVersion(ctx, step.AppID)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if rec, ok := h.records.last(); ok {
		ev.TransactionID = rec.TransactionID
		ev.Reason = string(rec.Reason)
		if rec.HasCode {
			code := rec.Code
			ev.Code = &code
		}
	}

	fe := h.aborts.first()
	if fe != nil {
		ev.Abort = fe.Error()
	} else {
		switch step.Op {
		case OpQuery:
			ev.Apps = toApps(states)
		case OpVersion:
			ev.Version = &version
		}
	}

	result.AddEvent(ev)
	h.checkExpect(i, step, ev, fe, result)

	h.logger.Info("flow step completed",
		"step", i,
		"op", step.Op,
		"transaction_id", ev.TransactionID,
		"reason", ev.Reason,
		"aborted", fe != nil,
	)
	return nil
}

func (h *Harness) checkExpect(i int, step FlowStep, ev TraceEvent, fe *chretest.FatalError, result *Result) {
	prefix := fmt.Sprintf("flow[%d] %s", i, step.Op)
	e := step.Expect
	if e == nil {
		e = &ExpectClause{}
	}

	switch {
	case fe != nil && !e.Aborted:
		result.AddError(fmt.Sprintf("%s: unexpected abort: %s", prefix, fe.Error()))
	case fe == nil && e.Aborted:
		result.AddError(fmt.Sprintf("%s: expected an abort, step completed", prefix))
	}

	if e.Reason != "" && ev.Reason != e.Reason {
		result.AddError(fmt.Sprintf("%s: expected reason %q, got %q", prefix, e.Reason, ev.Reason))
	}
	if e.Code != nil {
		switch {
		case ev.Code == nil:
			result.AddError(fmt.Sprintf("%s: expected code %d, got no code", prefix, *e.Code))
		case *ev.Code != *e.Code:
			result.AddError(fmt.Sprintf("%s: expected code %d (%s), got %d (%s)", prefix,
				*e.Code, contexthub.ResultString(*e.Code), *ev.Code, contexthub.ResultString(*ev.Code)))
		}
	}
	if e.OK != nil && ev.OK != nil && *ev.OK != *e.OK {
		result.AddError(fmt.Sprintf("%s: expected ok=%t, got ok=%t", prefix, *e.OK, *ev.OK))
	}
	if e.Version != nil && (ev.Version == nil || *ev.Version != *e.Version) {
		got := "none"
		if ev.Version != nil {
			got = fmt.Sprint(*ev.Version)
		}
		result.AddError(fmt.Sprintf("%s: expected version %d, got %s", prefix, *e.Version, got))
	}
	if e.Apps != nil && fe == nil && !slices.Equal(ev.Apps, e.Apps) {
		result.AddError(fmt.Sprintf("%s: expected apps %s, got %s", prefix, formatApps(e.Apps), formatApps(ev.Apps)))
	}
}

// buildBinary produces the image a load step sends.
func buildBinary(step FlowStep) (*contexthub.NanoAppBinary, error) {
	switch {
	case step.BinaryHex != "":
		raw, err := hex.DecodeString(step.BinaryHex)
		if err != nil {
			return nil, fmt.Errorf("binary_hex: %w", err)
		}
		if parsed, err := contexthub.ParseNanoAppBinary(raw); err == nil {
			return parsed, nil
		}
		return &contexthub.NanoAppBinary{Header: contexthub.NanoAppHeader{AppID: step.AppID}, Raw: raw}, nil
	case step.Corrupt:
		bin := contexthub.NewNanoAppBinary(step.AppID, step.Version, nil)
		binary.LittleEndian.PutUint32(bin.Raw[4:8], ^contexthub.HeaderMagic)
		return bin, nil
	default:
		return contexthub.NewNanoAppBinary(step.AppID, step.Version, nil), nil
	}
}

func toApps(states []contexthub.NanoAppState) []App {
	if len(states) == 0 {
		return nil
	}
	apps := make([]App, len(states))
	for i, s := range states {
		apps[i] = App{AppID: s.ID, Version: s.Version}
	}
	return apps
}

// stepRecorder keeps the records of the current step and forwards every
// record to an optional persistent recorder.
type stepRecorder struct {
	mu      sync.Mutex
	records []txn.Record
	next    txn.Recorder
}

func (r *stepRecorder) RecordTransaction(ctx context.Context, rec txn.Record) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	if r.next == nil {
		return nil
	}
	return r.next.RecordTransaction(ctx, rec)
}

func (r *stepRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

func (r *stepRecorder) last() (txn.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return txn.Record{}, false
	}
	return r.records[len(r.records)-1], true
}

// abortCollector is a chretest.Reporter that records aborts instead of
// stopping the goroutine, so a scenario can expect them.
type abortCollector struct {
	mu     sync.Mutex
	aborts []*chretest.FatalError
}

func (c *abortCollector) Fatal(args ...any) {
	var fe *chretest.FatalError
	if len(args) == 1 {
		fe, _ = chretest.AsFatal(args[0])
	}
	if fe == nil {
		fe = &chretest.FatalError{Message: fmt.Sprint(args...)}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborts = append(c.aborts, fe)
}

func (c *abortCollector) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborts = nil
}

func (c *abortCollector) first() *chretest.FatalError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.aborts) == 0 {
		return nil
	}
	return c.aborts[0]
}
