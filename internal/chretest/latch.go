package chretest

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Latch is released once CountDown has been called count times.
type Latch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

// NewLatch creates a latch. A count of zero or less starts released.
func NewLatch(count int) *Latch {
	l := &Latch{count: count, done: make(chan struct{})}
	if count <= 0 {
		l.count = 0
		close(l.done)
	}
	return l
}

// CountDown decrements the count, releasing the latch at zero.
// Extra calls are ignored.
func (l *Latch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 {
		close(l.done)
	}
}

// Count returns the remaining count.
func (l *Latch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Done is closed when the latch is released.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// AssertDoneWithin aborts unless done is closed within timeout on clk.
func AssertDoneWithin(r Reporter, clk clock.Clock, done <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	default:
	}

	select {
	case <-done:
		return true
	case <-clk.After(timeout):
		r.Fatal(&FatalError{
			Message: fmt.Sprintf("Waiting for latch to count down timeout after %d seconds", int64(timeout/time.Second)),
		})
		return false
	}
}

// AssertLatchCountedDown aborts unless l is released within timeout.
func AssertLatchCountedDown(r Reporter, clk clock.Clock, l *Latch, timeout time.Duration) bool {
	return AssertDoneWithin(r, clk, l.Done(), timeout)
}
