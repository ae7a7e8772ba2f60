package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Format(t *testing.T) {
	id := uint64(0xAA)
	ok := true
	result := NewResult()
	result.AddEvent(TraceEvent{Seq: 1, Step: 0, Op: OpLoad, Kind: "load", AppID: &id, TransactionID: "txn-0001", Reason: "none", OK: &ok})
	result.FinalApps = []App{{AppID: 0xAA, Version: 1}}

	data, err := Snapshot("fmt", result)
	require.NoError(t, err)

	assert.True(t, bytes.HasSuffix(data, []byte("}\n")), "trailing newline")
	assert.Contains(t, string(data), "\n  \"final_apps\": [")

	// Keys are sorted: final_apps < scenario_name < trace.
	fa := bytes.Index(data, []byte(`"final_apps"`))
	sn := bytes.Index(data, []byte(`"scenario_name"`))
	tr := bytes.Index(data, []byte(`"trace"`))
	assert.Less(t, fa, sn)
	assert.Less(t, sn, tr)

	var snap TraceSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "fmt", snap.ScenarioName)
	require.Len(t, snap.Trace, 1)
	assert.Equal(t, "txn-0001", snap.Trace[0].TransactionID)
	assert.Nil(t, snap.Trace[0].Code, "absent code stays absent")
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name:        "deterministic",
		Description: "Same input, same bytes",
		Preloaded:   []App{{AppID: 0x10, Version: 2}},
		Flow: []FlowStep{
			{Op: OpLoad, AppID: 0x20, Version: 1},
			{Op: OpUnload, AppID: 0x10, Behavior: &BehaviorSpec{Drop: true}},
			{Op: OpQuery},
		},
	}

	var previous []byte
	for i := 0; i < 3; i++ {
		result, err := Run(t.Context(), scenario)
		require.NoError(t, err)
		data, err := Snapshot(scenario.Name, result)
		require.NoError(t, err)
		if previous != nil {
			assert.Equal(t, string(previous), string(data), "run %d differs", i)
		}
		previous = data
	}
}

func TestAssertGolden_ExistingSnapshot(t *testing.T) {
	scenario, err := LoadScenario(scenarioDir + "/load_success.yaml")
	require.NoError(t, err)

	result, err := Run(t.Context(), scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, scenario.Name, result))
}
