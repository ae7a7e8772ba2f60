package testutil

import (
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

// Epoch is the start time of every fake clock built here, so traces that
// include timestamps stay byte-identical across runs.
var Epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewFakeClock returns a fake clock at Epoch.
func NewFakeClock() *testingclock.FakeClock {
	return testingclock.NewFakeClock(Epoch)
}

// AutoAdvance steps fc by step whenever a timer or sleeper is waiting on it,
// polling every pace of real time. It lets blocking code written against a
// clock run against a fake one without a second goroutine driving it by hand.
//
// Two deadlines closer together than step may fire in the same step; keep
// scripted delays at least one step away from timeout budgets.
//
// The returned function stops the advancer and waits for it to exit.
func AutoAdvance(fc *testingclock.FakeClock, step, pace time.Duration) (stop func()) {
	if pace <= 0 {
		pace = time.Millisecond
	}
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(pace)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				if fc.HasWaiters() {
					fc.Step(step)
				}
			}
		}
	}()

	return func() {
		close(stopCh)
		<-doneCh
	}
}
