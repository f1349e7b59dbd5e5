package hashcheck

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() hclog.Logger {
	return hclog.NewNullLogger()
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestIsUpToDateFalseWithNoPriorRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.cpp")
	writeFile(t, in, "int main() {}")

	c := New(testLogger(), filepath.Join(dir, "hash.yaml"), []string{in}, nil, "flags")
	assert.False(t, c.IsUpToDate())
}

func TestWriteUpdatedHashesThenUpToDate(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.cpp")
	out := filepath.Join(dir, "out.o")
	writeFile(t, in, "int main() {}")
	writeFile(t, out, "object")
	hashFile := filepath.Join(dir, "hash.yaml")

	c := New(testLogger(), hashFile, []string{in}, []string{out}, "flags-v1")
	require.False(t, c.IsUpToDate())
	c.WriteUpdatedHashes()

	c2 := New(testLogger(), hashFile, []string{in}, []string{out}, "flags-v1")
	assert.True(t, c2.IsUpToDate())
}

func TestIsUpToDateFalseWhenInputContentChanges(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.cpp")
	writeFile(t, in, "v1")
	hashFile := filepath.Join(dir, "hash.yaml")

	c := New(testLogger(), hashFile, []string{in}, nil, "flags")
	require.False(t, c.IsUpToDate())
	c.WriteUpdatedHashes()

	// Change content and move mtime forward, so the mtime fast path doesn't
	// apply: didAnyFileChangeOrUpdateTimestamps must fall back to a full
	// content rehash, which differs from the recorded one.
	info, err := os.Stat(in)
	require.NoError(t, err)
	writeFile(t, in, "v2-different-length-content")
	later := info.ModTime().Add(time.Second)
	require.NoError(t, os.Chtimes(in, later, later))

	c2 := New(testLogger(), hashFile, []string{in}, nil, "flags")
	assert.False(t, c2.IsUpToDate())
}

func TestIsUpToDateFalseWhenFlagsHashChanges(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.cpp")
	writeFile(t, in, "v1")
	hashFile := filepath.Join(dir, "hash.yaml")

	c := New(testLogger(), hashFile, []string{in}, nil, "flags-a")
	require.False(t, c.IsUpToDate())
	c.WriteUpdatedHashes()

	c2 := New(testLogger(), hashFile, []string{in}, nil, "flags-b")
	assert.False(t, c2.IsUpToDate())
}

func TestIsUpToDateFalseWhenInputSetChanges(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.cpp")
	other := filepath.Join(dir, "other.cpp")
	writeFile(t, in, "v1")
	writeFile(t, other, "v1")
	hashFile := filepath.Join(dir, "hash.yaml")

	c := New(testLogger(), hashFile, []string{in}, nil, "flags")
	require.False(t, c.IsUpToDate())
	c.WriteUpdatedHashes()

	c2 := New(testLogger(), hashFile, []string{in, other}, nil, "flags")
	assert.False(t, c2.IsUpToDate())
}

func TestStringChecksumDeterministicAndSensitive(t *testing.T) {
	a := StringChecksum("flags one")
	b := StringChecksum("flags one")
	c := StringChecksum("flags two")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestIsUpToDateRefreshesMtimeWithoutRehash(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.cpp")
	writeFile(t, in, "v1")
	hashFile := filepath.Join(dir, "hash.yaml")

	c := New(testLogger(), hashFile, []string{in}, nil, "flags")
	require.False(t, c.IsUpToDate())
	c.WriteUpdatedHashes()

	// Touch mtime forward with identical content: still up to date, and the
	// cached record gains the new mtime so a later run stays on the fast path.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(in, future, future))

	c2 := New(testLogger(), hashFile, []string{in}, nil, "flags")
	assert.True(t, c2.IsUpToDate())
}
