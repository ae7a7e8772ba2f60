// Package harness runs hub test scenarios against a simulated Context Hub.
//
// A scenario drives the chretest helpers the same way a hand-written test
// would, records one trace event per step, and checks expectations and
// assertions against the trace and the final hub state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: load_then_query
//	description: "What this scenario validates"
//	hub: { id: 7, name: "sensor-hub" }
//	preloaded:
//	  - { app_id: 0x476f6f676c000001, version: 2 }
//	flow:
//	  - op: load
//	    app_id: 0x476f6f676c000002
//	    version: 1
//	    expect: { ok: true, reason: none }
//	  - op: unload
//	    app_id: 0x99
//	    behavior: { drop: true }
//	    expect: { ok: false, reason: timed_out }
//	  - op: version
//	    app_id: 0x476f6f676c000002
//	    expect: { version: 1 }
//	assertions:
//	  - type: outcome_count
//	    reason: timed_out
//	    count: 1
//	  - type: final_apps
//	    apps:
//	      - { app_id: 0x476f6f676c000001, version: 2 }
//	      - { app_id: 0x476f6f676c000002, version: 1 }
//
// Ops are load, load_assert, unload, unload_assert, query and version. The
// _assert ops and query/version abort on failure; a step that aborts must
// say so with expect.aborted.
//
// Files are decoded strictly (unknown keys are errors) and then validated
// against the embedded CUE definition #Scenario.
//
// # Assertion Types
//
//   - outcome_count: Counts steps whose transaction ended with a reason,
//     optionally for one kind
//   - final_apps: Compares the nanoapps on the hub after the flow, in order
//
// # Deterministic Testing
//
// Every run uses:
//   - A fake clock that steps forward whenever something waits on it, so
//     5 second budgets elapse in milliseconds
//   - Sequential transaction IDs (txn-0001, txn-0002, ...)
//   - A logical sequence number per trace event (testutil.Sequence)
//
// This ensures identical traces across runs for golden file comparison.
// Keep scripted delays at least one clock step (DefaultClockStep) away from
// a timeout budget.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/load_unload.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario, harness.WithStore(st))
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
