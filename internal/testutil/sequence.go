package testutil

import "sync"

// Sequence hands out trace sequence numbers.
//
// The first call to Next returns 1. Reset lets one scenario be replayed with
// identical numbering. Safe for concurrent use.
type Sequence struct {
	mu  sync.Mutex
	seq int64
}

// NewSequence creates a sequence at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the sequence number.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the last number handed out, or 0.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset returns the sequence to 0.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
