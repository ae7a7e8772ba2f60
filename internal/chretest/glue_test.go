package chretest

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/roach88/hubtest/internal/contexthub"
)

func TestReadNanoAppBinary(t *testing.T) {
	fsys := fstest.MapFS{
		"apps/hello.napp": {Data: contexthub.NewNanoAppBinary(0x476f6f676c00100, 2, []byte("code")).Raw},
		"apps/junk.napp":  {Data: []byte("not a nanoapp")},
	}

	rep := &recordingReporter{}
	bin := ReadNanoAppBinary(rep, fsys, "apps/hello.napp")
	require.NotNil(t, bin)
	assert.Equal(t, uint64(0x476f6f676c00100), bin.AppID())
	assert.Equal(t, uint32(2), bin.Header.AppVersion)
	assert.Empty(t, rep.all())

	assert.Nil(t, ReadNanoAppBinary(rep, fsys, "apps/missing.napp"))
	assert.Nil(t, ReadNanoAppBinary(rep, fsys, "apps/junk.napp"))

	aborts := rep.all()
	require.Len(t, aborts, 2)
	assert.Contains(t, aborts[0].Error(), "Could not find asset apps/missing.napp")
	assert.Contains(t, aborts[1].Error(), "Invalid nanoapp binary apps/junk.napp")
	assert.ErrorIs(t, aborts[1], contexthub.ErrShortBinary)
}

func TestExecuteShellCommand(t *testing.T) {
	rep := &recordingReporter{}

	out := ExecuteShellCommand(context.Background(), rep, "echo first; echo second")
	assert.Equal(t, "firstsecond", out)
	assert.Empty(t, rep.all())

	assert.Equal(t, "", ExecuteShellCommand(context.Background(), rep, "echo oops >&2; exit 3"))
	aborts := rep.all()
	require.Len(t, aborts, 1)
	assert.Contains(t, aborts[0].Error(), "Shell command failed")
	assert.Contains(t, aborts[0].Error(), "oops")
}

func TestExecuteShellCommandErr_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteShellCommandErr(ctx, "sleep 5")
	assert.Error(t, err)
}

func TestConvertToInteger(t *testing.T) {
	rep := &recordingReporter{}

	assert.Equal(t, int32(42), ConvertToIntegerOrFail(rep, "42"))
	assert.Equal(t, int32(-7), ConvertToIntegerOrFail(rep, "-7"))
	assert.Equal(t, int32(7), ConvertToIntegerOrFail(rep, "+7"))
	assert.Empty(t, rep.all())

	assert.Equal(t, int32(-1), ConvertToIntegerOrFail(rep, "forty-two"))
	assert.Len(t, rep.all(), 1)

	for _, padded := range []string{" 42", "42 ", "42\n", "\t42"} {
		assert.Equal(t, int32(-1), ConvertToIntegerOrFail(rep, padded), "%q", padded)
	}
	assert.Len(t, rep.all(), 5)

	assert.Equal(t, int32(12), ConvertToIntegerOrReturnZero("12"))
	assert.Equal(t, int32(0), ConvertToIntegerOrReturnZero("12x"))
	assert.Equal(t, int32(0), ConvertToIntegerOrReturnZero("99999999999"))
	assert.Equal(t, int32(0), ConvertToIntegerOrReturnZero(" 12"))
}

func TestLatch(t *testing.T) {
	l := NewLatch(2)
	assert.Equal(t, 2, l.Count())

	l.CountDown()
	select {
	case <-l.Done():
		t.Fatal("latch released early")
	default:
	}

	l.CountDown()
	l.CountDown()
	assert.Equal(t, 0, l.Count())
	<-l.Done()

	<-NewLatch(0).Done()
}

func TestAssertLatchCountedDown(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	rep := &recordingReporter{}

	released := NewLatch(1)
	released.CountDown()
	assert.True(t, AssertLatchCountedDown(rep, fc, released, 3*time.Second))

	stuck := NewLatch(1)
	result := make(chan bool, 1)
	go func() { result <- AssertLatchCountedDown(rep, fc, stuck, 3*time.Second) }()

	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	fc.Step(3 * time.Second)

	assert.False(t, <-result)
	aborts := rep.all()
	require.Len(t, aborts, 1)
	assert.Equal(t, "Waiting for latch to count down timeout after 3 seconds", aborts[0].Error())
}
