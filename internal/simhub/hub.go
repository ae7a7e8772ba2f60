package simhub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/roach88/hubtest/internal/contexthub"
)

// Behavior scripts how the hub answers one transaction.
type Behavior struct {
	// Result is the code delivered. Zero means success; the hub may still
	// report a failure of its own (bad image, unknown app).
	Result int32

	// Delay is measured from submission.
	Delay time.Duration

	// Drop makes the hub never answer.
	Drop bool

	// NilResponse makes the hub answer without a response object.
	NilResponse bool
}

// Submission describes one transaction the hub received.
type Submission struct {
	ID          string
	Kind        contexthub.Kind
	HubID       int32
	AppID       uint64
	Result      int32
	Behavior    Behavior
	SubmittedAt time.Time
}

// Hub is a simulated Context Hub. It is safe for concurrent use; its lock is
// never held while a transaction is being waited on.
type Hub struct {
	mu          sync.Mutex
	clock       clock.Clock
	ids         IDGenerator
	logger      *slog.Logger
	apps        []contexthub.NanoAppState
	scripts     map[contexthub.Kind][]Behavior
	submissions []Submission
}

var _ contexthub.Manager = (*Hub)(nil)

// Option configures a Hub.
type Option func(*Hub)

// WithClock sets the clock used for delays.
func WithClock(c clock.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

// WithIDGenerator sets the transaction ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(h *Hub) { h.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// New creates an empty hub on the real clock with UUIDv7 transaction IDs.
func New(opts ...Option) *Hub {
	h := &Hub{
		clock:   clock.RealClock{},
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
		scripts: make(map[contexthub.Kind][]Behavior),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Preload installs nanoapps as if they had been loaded earlier.
func (h *Hub) Preload(states ...contexthub.NanoAppState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range states {
		h.upsertLocked(s)
	}
}

// Script queues behaviors for the next transactions of kind, in order.
// Once the queue is empty, transactions succeed immediately.
func (h *Hub) Script(kind contexthub.Kind, behaviors ...Behavior) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts[kind] = append(h.scripts[kind], behaviors...)
}

// Apps returns a snapshot of the loaded nanoapps in load order.
func (h *Hub) Apps() []contexthub.NanoAppState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]contexthub.NanoAppState(nil), h.apps...)
}

// Submissions returns every transaction received so far.
func (h *Hub) Submissions() []Submission {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Submission(nil), h.submissions...)
}

// LoadNanoApp implements contexthub.Manager.
func (h *Hub) LoadNanoApp(hub contexthub.HubInfo, binary *contexthub.NanoAppBinary) contexthub.Transaction[struct{}] {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.nextLocked(contexthub.KindLoad)
	result := b.Result
	var appID uint64

	if result == contexthub.ResultSuccess {
		parsed, err := parseBinary(binary)
		switch {
		case err != nil:
			h.logger.Debug("rejecting nanoapp image", "error", err)
			result = contexthub.ResultFailedBadParams
		default:
			appID = parsed.AppID()
			if applies(b) {
				h.upsertLocked(contexthub.NanoAppState{
					ID:      parsed.AppID(),
					Version: parsed.Header.AppVersion,
					Enabled: true,
				})
			}
		}
	} else if binary != nil {
		appID = binary.Header.AppID
	}

	return newTransaction(h, contexthub.KindLoad, hub, appID, b, result, struct{}{})
}

// UnloadNanoApp implements contexthub.Manager.
func (h *Hub) UnloadNanoApp(hub contexthub.HubInfo, appID uint64) contexthub.Transaction[struct{}] {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.nextLocked(contexthub.KindUnload)
	result := b.Result

	if result == contexthub.ResultSuccess {
		idx := h.indexLocked(appID)
		switch {
		case idx < 0:
			result = contexthub.ResultFailedUnknown
		case applies(b):
			h.apps = append(h.apps[:idx], h.apps[idx+1:]...)
		}
	}

	return newTransaction(h, contexthub.KindUnload, hub, appID, b, result, struct{}{})
}

// QueryNanoApps implements contexthub.Manager.
func (h *Hub) QueryNanoApps(hub contexthub.HubInfo) contexthub.Transaction[[]contexthub.NanoAppState] {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.nextLocked(contexthub.KindQuery)
	var contents []contexthub.NanoAppState
	if b.Result == contexthub.ResultSuccess {
		contents = append([]contexthub.NanoAppState{}, h.apps...)
	}

	return newTransaction(h, contexthub.KindQuery, hub, 0, b, b.Result, contents)
}

func (h *Hub) nextLocked(kind contexthub.Kind) Behavior {
	queue := h.scripts[kind]
	if len(queue) == 0 {
		return Behavior{}
	}
	h.scripts[kind] = queue[1:]
	return queue[0]
}

func (h *Hub) indexLocked(appID uint64) int {
	for i, s := range h.apps {
		if s.ID == appID {
			return i
		}
	}
	return -1
}

func (h *Hub) upsertLocked(s contexthub.NanoAppState) {
	if idx := h.indexLocked(s.ID); idx >= 0 {
		h.apps[idx] = s
		return
	}
	h.apps = append(h.apps, s)
}

// applies reports whether the hub actually carries out the request. A hub
// that drops the response or returns none leaves its state untouched.
func applies(b Behavior) bool {
	return !b.Drop && !b.NilResponse
}

func parseBinary(binary *contexthub.NanoAppBinary) (*contexthub.NanoAppBinary, error) {
	if binary == nil {
		return nil, contexthub.ErrShortBinary
	}
	return contexthub.ParseNanoAppBinary(binary.Raw)
}

// transaction is a single-use handle. Its response is fixed at submission.
type transaction[T any] struct {
	id       string
	kind     contexthub.Kind
	clock    clock.Clock
	readyAt  time.Time
	behavior Behavior
	resp     *contexthub.Response[T]
	consumed atomic.Bool
}

func newTransaction[T any](h *Hub, kind contexthub.Kind, hub contexthub.HubInfo, appID uint64, b Behavior, result int32, contents T) *transaction[T] {
	now := h.clock.Now()
	t := &transaction[T]{
		id:       h.ids.Generate(),
		kind:     kind,
		clock:    h.clock,
		readyAt:  now.Add(b.Delay),
		behavior: b,
		resp:     &contexthub.Response[T]{Result: result, Contents: contents},
	}

	h.submissions = append(h.submissions, Submission{
		ID:          t.id,
		Kind:        kind,
		HubID:       hub.ID,
		AppID:       appID,
		Result:      result,
		Behavior:    b,
		SubmittedAt: now,
	})
	h.logger.Debug("transaction submitted",
		"transaction_id", t.id,
		"kind", kind.Label(),
		"hub", hub.ID,
		"result", result,
		"delay", b.Delay,
		"drop", b.Drop,
	)
	return t
}

func (t *transaction[T]) ID() string { return t.id }

func (t *transaction[T]) Kind() contexthub.Kind { return t.kind }

// WaitForResponse blocks until the scripted delay has passed on the hub
// clock, timeout elapses or ctx is done.
func (t *transaction[T]) WaitForResponse(ctx context.Context, timeout time.Duration) (*contexthub.Response[T], error) {
	if !t.consumed.CompareAndSwap(false, true) {
		return nil, contexthub.ErrConsumed
	}

	wait := t.readyAt.Sub(t.clock.Now())
	late := t.behavior.Drop || wait > timeout
	if late {
		wait = timeout
	}

	if wait > 0 {
		timer := t.clock.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, contexthub.ErrInterrupted
		case <-timer.C():
		}
	}

	if late {
		return nil, contexthub.ErrTimeout
	}
	if t.behavior.NilResponse {
		return nil, nil
	}
	return t.resp, nil
}
