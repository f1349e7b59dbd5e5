package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
- cpp_library:
    name: util
    sources: [util.cpp]
    headers: [util.hpp]
- cpp_binary:
    name: main
    sources: [main.cpp]
    libs: [util]
- cpp_test:
    name: util_test
    sources: [util_test.cpp]
    libs: [util]
    output: util_test.out
- gen_rule:
    name: gen_headers
    binary: main
    outputs: [generated.hpp]
- system_lib:
    name: zlib
    command: pkg-config
    flags: ["zlib"]
- external_package:
    name: boost
    url: https://example.com/boost.tar.gz
- profile:
    name: release
    cpp_flags: ["-O2"]
`

func TestParseDecodesEveryKind(t *testing.T) {
	m, err := Parse("BUILD.yaml", []byte(sampleManifest))
	require.NoError(t, err)
	require.Len(t, m.Rules, 7)

	assert.Equal(t, KindCppLibrary, m.Rules[0].Kind)
	assert.Equal(t, "util", m.Rules[0].CppLibrary.Name)
	assert.Equal(t, []string{"util.cpp"}, m.Rules[0].CppLibrary.Sources)

	assert.Equal(t, KindCppBinary, m.Rules[1].Kind)
	assert.Equal(t, []string{"util"}, m.Rules[1].CppBinary.Libs)

	assert.Equal(t, KindCppTest, m.Rules[2].Kind)
	assert.Equal(t, "util_test.out", m.Rules[2].CppTest.Output)

	assert.Equal(t, KindGenRule, m.Rules[3].Kind)
	assert.Equal(t, "main", m.Rules[3].GenRule.Binary)

	assert.Equal(t, KindSystemLib, m.Rules[4].Kind)
	assert.Equal(t, "pkg-config", m.Rules[4].SystemLib.Command)

	assert.Equal(t, KindExternalPackage, m.Rules[5].Kind)
	assert.Equal(t, "https://example.com/boost.tar.gz", m.Rules[5].ExternalPackage.URL)

	assert.Equal(t, KindProfile, m.Rules[6].Kind)
	assert.Equal(t, []string{"-O2"}, m.Rules[6].Profile.CppFlags)
}

func TestParseSetsLocation(t *testing.T) {
	m, err := Parse("pkg/BUILD.yaml", []byte(sampleManifest))
	require.NoError(t, err)
	assert.Equal(t, "pkg/BUILD.yaml", m.Rules[0].CppLibrary.Location.File)
	assert.NotZero(t, m.Rules[0].CppLibrary.Location.Line)
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := Parse("BUILD.yaml", []byte("- not_a_kind:\n    name: x\n"))
	assert.Error(t, err)
}

func TestParseRejectsMultiKeyEntry(t *testing.T) {
	_, err := Parse("BUILD.yaml", []byte("- cpp_library:\n    name: a\n  cpp_binary:\n    name: b\n"))
	assert.Error(t, err)
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "", Location{}.String())
	assert.Equal(t, "BUILD.yaml:3", Location{File: "BUILD.yaml", Line: 3}.String())
}
