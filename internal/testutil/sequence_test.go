package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_StartsAtZero(t *testing.T) {
	assert.Equal(t, int64(0), NewSequence().Current())
}

func TestSequence_NextAndReset(t *testing.T) {
	s := NewSequence()

	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(2), s.Current())

	s.Reset()
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, int64(1), s.Next())
}

func TestSequence_ConcurrentCallsAreUnique(t *testing.T) {
	s := NewSequence()
	const goroutines, calls = 50, 100

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				v := s.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*calls)
	assert.Equal(t, int64(goroutines*calls), s.Current())
}
