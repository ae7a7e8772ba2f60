package harness

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hubtest/internal/metrics"
	"github.com/roach88/hubtest/internal/store"
	"github.com/roach88/hubtest/internal/txn"
)

func boolPtr(b bool) *bool       { return &b }
func int32Ptr(n int32) *int32    { return &n }
func uint32Ptr(n uint32) *uint32 { return &n }

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Flow: []FlowStep{
			{Op: OpLoad, AppID: 0xAA, Version: 1, Expect: &ExpectClause{OK: boolPtr(true)}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors=%v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, "load", ev.Kind)
	assert.Equal(t, "txn-0001", ev.TransactionID)
	assert.Equal(t, "none", ev.Reason)
	require.NotNil(t, ev.OK)
	assert.True(t, *ev.OK)
	assert.Equal(t, []App{{AppID: 0xAA, Version: 1}}, result.FinalApps)
}

func TestRun_ExpectationMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Expectations that do not hold",
		Flow: []FlowStep{
			{
				Op: OpLoad, AppID: 0xAA, Version: 1,
				Behavior: &BehaviorSpec{Result: 5},
				Expect:   &ExpectClause{OK: boolPtr(true), Reason: "none", Code: int32Ptr(0)},
			},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], `expected reason "none", got "transaction_failed"`)
	assert.Contains(t, result.Errors[1], "expected code 0 (SUCCESS), got 5 (FAILED_AT_HUB)")
	assert.Contains(t, result.Errors[2], "expected ok=true, got ok=false")
}

func TestRun_UnexpectedAbortFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected_abort",
		Description: "A failing assert step without expect.aborted",
		Flow: []FlowStep{
			{Op: OpUnloadAssert, AppID: 0xAA},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected abort: Failed to unload nanoapp 0xaa")
	assert.Contains(t, result.Trace[0].Abort, "UNLOAD transaction failed with error code 1 (FAILED_UNKNOWN)")
}

func TestRun_ExpectedAbortMissingFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_abort",
		Description: "An abort that never happens",
		Flow: []FlowStep{
			{Op: OpQuery, Expect: &ExpectClause{Aborted: true}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected an abort, step completed")
}

func TestRun_VersionExpectation(t *testing.T) {
	scenario := &Scenario{
		Name:        "version",
		Description: "Version lookups",
		Preloaded:   []App{{AppID: 0xAA, Version: 3}, {AppID: 0xBB, Version: 7}},
		Flow: []FlowStep{
			{Op: OpVersion, AppID: 0xBB, Expect: &ExpectClause{Version: uint32Ptr(7)}},
			{Op: OpVersion, AppID: 0xAA, Expect: &ExpectClause{Version: uint32Ptr(4)}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[1] version: expected version 4, got 3")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scenario := &Scenario{
		Name:        "cancelled",
		Description: "Never starts",
		Flow:        []FlowStep{{Op: OpQuery}},
	}

	_, err := Run(ctx, scenario)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_TimeoutsElapseOnFakeClock(t *testing.T) {
	scenario := &Scenario{
		Name:        "fast_timeouts",
		Description: "Three dropped transactions",
		Flow: []FlowStep{
			{Op: OpLoad, AppID: 1, Behavior: &BehaviorSpec{Drop: true}},
			{Op: OpUnload, AppID: 1, Behavior: &BehaviorSpec{Drop: true}},
			{Op: OpQuery, Behavior: &BehaviorSpec{Drop: true}, Expect: &ExpectClause{Aborted: true}},
		},
		Assertions: []Assertion{{Type: AssertOutcomeCount, Reason: "timed_out", Count: 3}},
	}

	start := time.Now()
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors=%v", result.Errors)
	assert.Less(t, time.Since(start), 10*time.Second, "15s of budgets must not run in real time")
}

func TestRun_RecordsToStoreAndMetrics(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := metrics.New(prometheus.NewRegistry())

	scenario := &Scenario{
		Name:        "recorded",
		Description: "Persisted transactions",
		Flow: []FlowStep{
			{Op: OpLoad, AppID: 0xAA, Version: 1},
			{Op: OpLoadAssert, AppID: 0xBB, Behavior: &BehaviorSpec{Result: 4}, Expect: &ExpectClause{Aborted: true}},
			{Op: OpQuery},
		},
	}

	result, err := Run(context.Background(), scenario, WithStore(st), WithMetrics(m))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors=%v", result.Errors)

	entries, err := st.ReadTransactions(context.Background(), store.Filter{Run: "recorded"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "txn-0001", entries[0].Record.TransactionID)
	assert.Equal(t, txn.ReasonTransactionFailed, entries[1].Record.Reason)
	assert.Equal(t, int32(4), entries[1].Record.Code)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.TransactionsTotal.WithLabelValues("load", "none")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.TransactionsTotal.WithLabelValues("load", "transaction_failed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.AbortsTotal.WithLabelValues("load")))
}

func TestBuildBinary(t *testing.T) {
	bin, err := buildBinary(FlowStep{Op: OpLoad, AppID: 0xAA, Version: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(0xAA), bin.AppID())
	assert.Equal(t, uint32(2), bin.Header.AppVersion)

	corrupt, err := buildBinary(FlowStep{Op: OpLoad, AppID: 0xAA, Corrupt: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(0xAA), corrupt.AppID())
	assert.NotEqual(t, bin.Raw[4:8], corrupt.Raw[4:8])

	raw, err := buildBinary(FlowStep{Op: OpLoad, AppID: 9, BinaryHex: "00ff"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, raw.Raw)
	assert.Equal(t, uint64(9), raw.AppID())
}

func TestAbortCollector(t *testing.T) {
	c := &abortCollector{}
	assert.Nil(t, c.first())

	c.Fatal("plain", "message")
	require.NotNil(t, c.first())
	assert.Equal(t, "plainmessage", c.first().Message)

	c.reset()
	assert.Nil(t, c.first())
}
