package genbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFindsSourcesHeadersAndDeps(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cpp"), []byte(
		"#include \"util/util.hpp\"\n#include <cstdio>\nint main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hpp"), []byte(
		"#pragma once\n#include \"fmt/format.hpp\"\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subdir", "ignored.cpp"), []byte("// not scanned\n"), 0o644))

	sources, headers, deps, err := Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.cpp"}, sources)
	assert.Equal(t, []string{"main.hpp"}, headers)
	assert.Equal(t, []string{"fmt", "util"}, deps)
}

func TestScanIgnoresAngleIncludesAndBareNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cpp"), []byte(
		"#include <vector>\n#include \"local.hpp\"\n"), 0o644))

	_, _, deps, err := Scan(dir)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestStarterRendersCppLibrary(t *testing.T) {
	out, err := Starter("util", []string{"util.cpp"}, []string{"util.hpp"}, []string{"/libs/fmt/fmt"})
	require.NoError(t, err)
	assert.Contains(t, out, "cpp_library:")
	assert.Contains(t, out, "name: util")
	assert.Contains(t, out, "/libs/fmt/fmt")
}
