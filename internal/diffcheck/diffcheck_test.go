package diffcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	assert.True(t, Equal("abc\n", "abc\n"))
	assert.False(t, Equal("abc\n", "abd\n"))
}

func TestDiffEmptyWhenEqual(t *testing.T) {
	out, err := Diff("util_test", "same\n", "same\n")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestDiffRendersUnifiedDiff(t *testing.T) {
	out, err := Diff("util_test", "line1\nline2\n", "line1\nchanged\n")
	require.NoError(t, err)
	assert.Contains(t, out, "util_test (expected)")
	assert.Contains(t, out, "util_test (actual)")
	assert.Contains(t, out, "-line2")
	assert.Contains(t, out, "+changed")
}
