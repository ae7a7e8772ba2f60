package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFakeClock_StartsAtEpoch(t *testing.T) {
	assert.True(t, NewFakeClock().Now().Equal(Epoch))
}

func TestAutoAdvance_FiresTimers(t *testing.T) {
	fc := NewFakeClock()
	stop := AutoAdvance(fc, 100*time.Millisecond, time.Millisecond)
	defer stop()

	select {
	case <-fc.After(5 * time.Second):
	case <-time.After(5 * time.Second):
		t.Fatal("fake timer never fired")
	}
	assert.False(t, fc.Now().Before(Epoch.Add(5*time.Second)))
}

func TestAutoAdvance_IdleClockDoesNotMove(t *testing.T) {
	fc := NewFakeClock()
	stop := AutoAdvance(fc, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	stop()

	require.True(t, fc.Now().Equal(Epoch))
}
