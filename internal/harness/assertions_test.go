package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Step: 0, Op: OpLoad, Kind: "load", Reason: "none"},
		{Seq: 2, Step: 1, Op: OpUnload, Kind: "unload", Reason: "timed_out"},
		{Seq: 3, Step: 2, Op: OpQuery, Kind: "query", Reason: "timed_out", Abort: "Failed to query nanoapps"},
	}
}

func TestAssertOutcomeCount(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"any kind", Assertion{Type: AssertOutcomeCount, Reason: "timed_out", Count: 2}, ""},
		{"one kind", Assertion{Type: AssertOutcomeCount, Reason: "timed_out", Kind: "query", Count: 1}, ""},
		{"zero", Assertion{Type: AssertOutcomeCount, Reason: "interrupted", Count: 0}, ""},
		{"too few", Assertion{Type: AssertOutcomeCount, Reason: "none", Count: 2}, "Expected: 2 none outcomes"},
		{"kind mismatch", Assertion{Type: AssertOutcomeCount, Reason: "none", Kind: "unload", Count: 1}, "Expected: 1 unload none outcomes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertOutcomeCount(sampleTrace(), tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertOutcomeCount, ae.Type)
			assert.Len(t, ae.Trace, 3)
		})
	}
}

func TestAssertFinalApps(t *testing.T) {
	result := &Result{FinalApps: []App{{AppID: 0xAA, Version: 1}, {AppID: 0xBB, Version: 2}}}

	assert.NoError(t, assertFinalApps(result, Assertion{
		Type: AssertFinalApps,
		Apps: []App{{AppID: 0xAA, Version: 1}, {AppID: 0xBB, Version: 2}},
	}))

	err := assertFinalApps(result, Assertion{
		Type: AssertFinalApps,
		Apps: []App{{AppID: 0xBB, Version: 2}, {AppID: 0xAA, Version: 1}},
	})
	require.Error(t, err, "order matters")
	assert.Contains(t, err.Error(), "Expected: [0xbb@2 0xaa@1]")
	assert.Contains(t, err.Error(), "Actual: [0xaa@1 0xbb@2]")
}

func TestAssertFinalApps_EmptyHub(t *testing.T) {
	assert.NoError(t, assertFinalApps(&Result{}, Assertion{Type: AssertFinalApps}))
	assert.NoError(t, assertFinalApps(&Result{}, Assertion{Type: AssertFinalApps, Apps: []App{}}))

	err := assertFinalApps(&Result{FinalApps: []App{{AppID: 1, Version: 1}}}, Assertion{Type: AssertFinalApps})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: []")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	code := int32(5)
	err := &AssertionError{
		Type:     AssertOutcomeCount,
		Expected: "1 none outcomes",
		Actual:   "0 outcomes",
		Trace: []TraceEvent{
			{Seq: 1, Op: OpLoadAssert, Reason: "transaction_failed", Code: &code, Abort: "Failed to load nanoapp"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: outcome_count")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, `[1] load_assert transaction_failed code=5 abort="Failed to load nanoapp"`)
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertOutcomeCount, Reason: "timed_out", Count: 2},
		{Type: AssertFinalApps, Apps: []App{{AppID: 1, Version: 1}}},
		{Type: "trace_contains"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: final_apps")
	assert.Equal(t, `assertion[2]: unknown assertion type "trace_contains"`, errs[1])
}

func TestEvaluateAssertions_None(t *testing.T) {
	assert.Empty(t, EvaluateAssertions(&Result{}, nil))
}
