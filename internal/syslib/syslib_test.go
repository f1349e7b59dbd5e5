package syslib

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bec-ca/mellow/internal/subprocess"
)

func TestProbeSplitsFlagsOnWhitespace(t *testing.T) {
	dir := t.TempDir()
	runner := subprocess.New(hclog.NewNullLogger())

	// A stand-in "pkg-config" that behaves per the --cflags/--libs
	// convention Probe relies on: last arg selects which flag set to print.
	fake := "sh"
	script := `last=""; for a in "$@"; do last="$a"; done; if [ "$last" = "--cflags" ]; then echo "-I/usr/include/zlib -DZLIB"; else echo "-lz -lm"; fi`
	flags := []string{"-c", script, "probe", "zlib"}

	cfg, err := Probe(context.Background(), runner, fake, flags, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"-I/usr/include/zlib", "-DZLIB"}, cfg.CppFlags)
	assert.Equal(t, []string{"-lz", "-lm"}, cfg.LdFlags)
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zlib.output")
	cfg := &Config{CppFlags: []string{"-I/x"}, LdFlags: []string{"-lz"}}

	require.NoError(t, Write(path, cfg))
	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
