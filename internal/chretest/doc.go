// Package chretest provides synchronous helpers for tests that load, unload
// and query nanoapps on a Context Hub.
//
// Each helper submits one transaction through a contexthub.Manager, waits for
// it with a fixed budget (LoadTimeout, UnloadTimeout, QueryTimeout) and maps
// the outcome onto what a test wants:
//
//   - LoadNanoApp / UnloadNanoApp return false on any failure, timeout or
//     interrupt and never abort.
//   - The *AssertSuccess variants abort the test when the plain variant
//     would return false.
//   - QueryNanoAppsAssertSuccess and NanoAppVersion always abort on failure.
//     An unreadable hub state is never recoverable for a test.
//
// Aborts go through a Reporter, which *testing.T satisfies. The value handed
// to Fatal is always a *FatalError naming the transaction kind, the reason
// and the result code when one was delivered.
//
//	util := chretest.New(manager, hub, t)
//	util.LoadNanoAppAssertSuccess(ctx, binary)
//	if v := util.NanoAppVersion(ctx, binary.AppID()); v != 2 {
//		t.Fatalf("unexpected version %d", v)
//	}
package chretest
