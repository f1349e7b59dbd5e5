package taskbuild

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bec-ca/mellow/internal/buildconfig"
	"github.com/bec-ca/mellow/internal/normalize"
	"github.com/bec-ca/mellow/internal/progressui"
	"github.com/bec-ca/mellow/internal/subprocess"
)

func testLogger() hclog.Logger { return hclog.NewNullLogger() }

func writeManifest(t *testing.T, root, relDir, contents string) {
	t.Helper()
	dir := filepath.Join(root, relDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BUILD.yaml"), []byte(contents), 0o644))
}

func newBuilder(t *testing.T, root, buildDir string, build *normalize.NormalizedBuild) *Builder {
	t.Helper()
	progress := progressui.New(os.Stdout, false)
	runner := subprocess.New(testLogger())
	return New(testLogger(), runner, progress, build, Options{
		SrcRootDir:  root,
		BuildDir:    buildDir,
		BuildConfig: buildconfig.CppConfig{Compiler: "c++"},
	})
}

func TestBuildCppLibraryAndBinaryEndToEnd(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")

	writeManifest(t, root, "libs/util", "- cpp_library:\n    name: util\n    sources: [util.cpp]\n    headers: [util.hpp]\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util.hpp"), []byte(
		"#pragma once\nint util_value();\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util.cpp"), []byte(
		"int util_value() { return 42; }\n"), 0o644))

	writeManifest(t, root, "apps/server", "- cpp_binary:\n    name: main\n    sources: [main.cpp]\n    libs: [/libs/util/util]\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "apps/server/main.cpp"), []byte(
		"#include \"libs/util/util.hpp\"\n#include <cstdio>\nint main() { printf(\"%d\\n\", util_value()); return 0; }\n"), 0o644))

	n := &normalize.Normalizer{ManifestName: "BUILD.yaml"}
	build, err := n.NormalizeBuild(root)
	require.NoError(t, err)

	b := newBuilder(t, root, buildDir, build)
	tasks := b.Tasks()
	require.Len(t, tasks, 2)

	byName := map[string]Task{}
	for _, tk := range tasks {
		byName[tk.Name] = tk
	}

	cached, err := byName["/libs/util/util.compile"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	_, err = os.Stat(filepath.Join(buildDir, "libs/util/util.o"))
	assert.NoError(t, err)

	cached, err = byName["/apps/server/main.compile"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	binPath := filepath.Join(buildDir, "apps/server/main")
	_, err = os.Stat(binPath)
	require.NoError(t, err)

	res, err := subprocess.New(testLogger()).Run(context.Background(), subprocess.Request{
		Command: []string{binPath},
		Dir:     t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, "42\n", res.Stdout)
}

func TestBuildCppLibraryIsCachedOnSecondRun(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")

	writeManifest(t, root, "libs/util", "- cpp_library:\n    name: util\n    sources: [util.cpp]\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util.cpp"), []byte(
		"int util_value() { return 1; }\n"), 0o644))

	n := &normalize.Normalizer{ManifestName: "BUILD.yaml"}
	build, err := n.NormalizeBuild(root)
	require.NoError(t, err)

	b := newBuilder(t, root, buildDir, build)
	task := b.Tasks()[0]

	cached, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	// A fresh Builder (as a new build invocation would construct) reads the
	// same on-disk hash cache, so the second run must report cached.
	b2 := newBuilder(t, root, buildDir, build)
	task2 := b2.Tasks()[0]
	cached, err = task2.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestBuildHeaderOnlyLibraryIsNoop(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")

	writeManifest(t, root, "libs/util", "- cpp_library:\n    name: util\n    headers: [util.hpp]\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util.hpp"), []byte("#pragma once\n"), 0o644))

	n := &normalize.Normalizer{ManifestName: "BUILD.yaml"}
	build, err := n.NormalizeBuild(root)
	require.NoError(t, err)

	b := newBuilder(t, root, buildDir, build)
	task := b.Tasks()[0]
	cached, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestBuildCppTestComparesAgainstGoldenOutput(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")

	writeManifest(t, root, "libs/util", "- cpp_test:\n    name: util_test\n    sources: [util_test.cpp]\n    output: util_test.golden\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util_test.cpp"), []byte(
		"#include <cstdio>\nint main() { printf(\"ok\\n\"); return 0; }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util_test.golden"), []byte("ok\n"), 0o644))

	n := &normalize.Normalizer{ManifestName: "BUILD.yaml"}
	build, err := n.NormalizeBuild(root)
	require.NoError(t, err)

	b := newBuilder(t, root, buildDir, build)
	tasks := b.Tasks()
	require.Len(t, tasks, 2)
	byName := map[string]Task{}
	for _, tk := range tasks {
		byName[tk.Name] = tk
	}

	cached, err := byName["/libs/util/util_test.compile"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	cached, err = byName["/libs/util/util_test.run"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestBuildCppTestFailsOnGoldenMismatch(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")

	writeManifest(t, root, "libs/util", "- cpp_test:\n    name: util_test\n    sources: [util_test.cpp]\n    output: util_test.golden\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util_test.cpp"), []byte(
		"#include <cstdio>\nint main() { printf(\"unexpected\\n\"); return 0; }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util_test.golden"), []byte("ok\n"), 0o644))

	n := &normalize.Normalizer{ManifestName: "BUILD.yaml"}
	build, err := n.NormalizeBuild(root)
	require.NoError(t, err)

	b := newBuilder(t, root, buildDir, build)
	tasks := b.Tasks()
	require.Len(t, tasks, 2)
	byName := map[string]Task{}
	for _, tk := range tasks {
		byName[tk.Name] = tk
	}

	cached, err := byName["/libs/util/util_test.compile"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	_, err = byName["/libs/util/util_test.run"].Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output differs")
}

// TestForceTestRerunsOnlyRunStep confirms the compile/run split actually
// delivers --force-test's contract: forcing a test rerun must not force a
// recompile of an otherwise up-to-date binary.
func TestForceTestRerunsOnlyRunStep(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")

	writeManifest(t, root, "libs/util", "- cpp_test:\n    name: util_test\n    sources: [util_test.cpp]\n    output: util_test.golden\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util_test.cpp"), []byte(
		"#include <cstdio>\nint main() { printf(\"ok\\n\"); return 0; }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/util/util_test.golden"), []byte("ok\n"), 0o644))

	n := &normalize.Normalizer{ManifestName: "BUILD.yaml"}
	build, err := n.NormalizeBuild(root)
	require.NoError(t, err)

	b := newBuilder(t, root, buildDir, build)
	byName := map[string]Task{}
	for _, tk := range b.Tasks() {
		byName[tk.Name] = tk
	}
	_, err = byName["/libs/util/util_test.compile"].Run(context.Background())
	require.NoError(t, err)
	_, err = byName["/libs/util/util_test.run"].Run(context.Background())
	require.NoError(t, err)

	binPath := filepath.Join(buildDir, "libs/util/util_test")
	before, err := os.Stat(binPath)
	require.NoError(t, err)

	progress := progressui.New(os.Stdout, false)
	runner := subprocess.New(testLogger())
	b2 := New(testLogger(), runner, progress, build, Options{
		SrcRootDir:  root,
		BuildDir:    buildDir,
		BuildConfig: buildconfig.CppConfig{Compiler: "c++"},
		ForceTest:   true,
	})
	byName2 := map[string]Task{}
	for _, tk := range b2.Tasks() {
		byName2[tk.Name] = tk
	}

	cachedCompile, err := byName2["/libs/util/util_test.compile"].Run(context.Background())
	require.NoError(t, err)
	assert.True(t, cachedCompile, "force-test must not force a recompile")

	after, err := os.Stat(binPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())

	cachedRun, err := byName2["/libs/util/util_test.run"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cachedRun, "force-test must force the run step even though its binary is unchanged")
}

// TestIncludeDirsReachesExternalPackageHeaders confirms -iquote is emitted
// for an external package's root, which is the one case the repo-root
// blanket -I passed to every compile does not already cover: a consuming
// rule's own root_source_dir is the repo root, but a dependency fetched
// under external_package_dir has a different one.
func TestIncludeDirsReachesExternalPackageHeaders(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")
	externalDir := filepath.Join(root, "build", "external_packages")

	writeManifest(t, externalDir, "vendor/greet", "- cpp_library:\n    name: greet\n    sources: [greet.cpp]\n    headers: [greet.hpp]\n")
	require.NoError(t, os.WriteFile(filepath.Join(externalDir, "vendor/greet/greet.hpp"), []byte(
		"#pragma once\nconst char *greeting();\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(externalDir, "vendor/greet/greet.cpp"), []byte(
		"#include \"greet.hpp\"\nconst char *greeting() { return \"hi\"; }\n"), 0o644))

	writeManifest(t, root, "apps/server", "- cpp_binary:\n    name: main\n    sources: [main.cpp]\n    libs: [/vendor/greet/greet]\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "apps/server/main.cpp"), []byte(
		"#include \"vendor/greet/greet.hpp\"\n#include <cstdio>\nint main() { printf(\"%s\\n\", greeting()); return 0; }\n"), 0o644))

	n := &normalize.Normalizer{ManifestName: "BUILD.yaml", ExternalPackageDir: externalDir}
	build, err := n.NormalizeBuild(root)
	require.NoError(t, err)

	b := newBuilder(t, root, buildDir, build)
	byName := map[string]Task{}
	for _, tk := range b.Tasks() {
		byName[tk.Name] = tk
	}

	cached, err := byName["/vendor/greet/greet.compile"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	cached, err = byName["/apps/server/main.compile"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	binPath := filepath.Join(buildDir, "apps/server/main")
	res, err := subprocess.New(testLogger()).Run(context.Background(), subprocess.Request{
		Command: []string{binPath},
		Dir:     t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", res.Stdout)
}

// TestSystemLibFlagsReachDependentLink confirms a system_lib rule's probed
// flags are written, read back, and spliced onto the end of a dependent
// binary's link command, end to end through syslib.Probe/Write/Read.
func TestSystemLibFlagsReachDependentLink(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")

	probe := filepath.Join(root, "fake-pkg-config")
	require.NoError(t, os.WriteFile(probe, []byte(
		"#!/bin/sh\ncase \"$*\" in\n  *--cflags) echo -DGREETING=1 ;;\n  *--libs) echo -lm ;;\nesac\n"), 0o755))

	writeManifest(t, root, "libs/sys", "- system_lib:\n    name: mathlib\n    command: "+probe+"\n")

	writeManifest(t, root, "apps/server", "- cpp_binary:\n    name: main\n    sources: [main.cpp]\n    libs: [/libs/sys/mathlib]\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "apps/server/main.cpp"), []byte(
		"#ifndef GREETING\n#error \"missing probed cpp flag\"\n#endif\n#include <cstdio>\nint main() { printf(\"ok\\n\"); return 0; }\n"), 0o644))

	n := &normalize.Normalizer{ManifestName: "BUILD.yaml"}
	build, err := n.NormalizeBuild(root)
	require.NoError(t, err)

	b := newBuilder(t, root, buildDir, build)
	byName := map[string]Task{}
	for _, tk := range b.Tasks() {
		byName[tk.Name] = tk
	}

	cached, err := byName["/libs/sys/mathlib.run"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	outPath := filepath.Join(buildDir, "libs/sys/mathlib.output")
	_, err = os.Stat(outPath)
	require.NoError(t, err)

	cached, err = byName["/apps/server/main.compile"].Run(context.Background())
	require.NoError(t, err)
	assert.False(t, cached, "the probed GREETING cpp flag must reach the compile line or main.cpp fails to build")
}
