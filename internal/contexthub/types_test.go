package contexthub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStrings(t *testing.T) {
	tests := []struct {
		kind  Kind
		str   string
		upper string
		label string
	}{
		{KindLoad, "Load", "LOAD", "load"},
		{KindUnload, "Unload", "UNLOAD", "unload"},
		{KindQuery, "Query", "QUERY", "query"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.kind.String())
			assert.Equal(t, tt.upper, tt.kind.Upper())
			assert.Equal(t, tt.label, tt.kind.Label())

			parsed, err := ParseKind(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, parsed)
		})
	}

	assert.Equal(t, "Kind(42)", Kind(42).String())
	_, err := ParseKind("enable")
	assert.Error(t, err)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "SUCCESS", ResultString(ResultSuccess))
	assert.Equal(t, "FAILED_BUSY", ResultString(ResultFailedBusy))
	assert.Equal(t, "RESULT(-3)", ResultString(-3))
}

func TestNanoAppStateString(t *testing.T) {
	assert.Equal(t, "0xbb@7", NanoAppState{ID: 0xBB, Version: 7}.String())
}
