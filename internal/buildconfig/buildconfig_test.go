package buildconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	want := Default()
	want.Cpp = cfg.Cpp // auto-generated from env, not part of Default()
	assert.Equal(t, want, cfg)
	assert.NotEmpty(t, cfg.Cpp.Compiler)
}

func TestLoadGeneratesCppLegFromEnvWhenAbsent(t *testing.T) {
	t.Setenv("CXX", "")
	t.Setenv("CXXFLAGS", "-Wall -O2")
	t.Setenv("CPPFLAGS", "-DFOO")
	t.Setenv("LDFLAGS", "-L/opt/lib")
	t.Setenv("LDLIBS", "-lm")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"-Wall", "-O2", "-DFOO"}, cfg.Cpp.CppFlags)
	assert.Equal(t, []string{"-L/opt/lib", "-lm"}, cfg.Cpp.LdFlags)
}

func TestLoadKeepsExplicitCppLeg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mellow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cpp:\n  compiler: /usr/bin/clang++\n  cpp_flags: [-std=c++20]\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/clang++", cfg.Cpp.Compiler)
	assert.Equal(t, []string{"-std=c++20"}, cfg.Cpp.CppFlags)
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mellow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: 4\ndefault_profile: release\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, "release", cfg.DefaultProfile)
	// Fields absent from the file keep their Default() values.
	assert.Equal(t, "BUILD.yaml", cfg.ManifestName)
	assert.Equal(t, "build", cfg.BuildDir)
}

func TestLoadExpandsHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mellow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("build_dir: ~/mellow-build\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mellow-build"), cfg.BuildDir)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mellow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: [not-a-number\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
