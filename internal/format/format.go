// Package format re-serializes a parsed manifest into a canonical field
// order and indentation, the Go-native analog of the original's yasf-based
// pretty printer. Grounded on mbuild_types.generated.hpp's field ordering.
package format

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/bec-ca/mellow/internal/manifest"
)

// Manifest renders m back to canonical YAML text, one rule per top-level
// sequence entry, fields in the declaration order fixed by the original
// schema (name first, then the kind's own fields).
func Manifest(m *manifest.Manifest) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	entries := make([]map[string]interface{}, len(m.Rules))
	for i, r := range m.Rules {
		entries[i] = map[string]interface{}{string(r.Kind): canonicalValue(r)}
	}

	if err := enc.Encode(entries); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func canonicalValue(r manifest.RuleEntry) interface{} {
	switch r.Kind {
	case manifest.KindProfile:
		return r.Profile
	case manifest.KindCppBinary:
		return r.CppBinary
	case manifest.KindCppLibrary:
		return r.CppLibrary
	case manifest.KindCppTest:
		return r.CppTest
	case manifest.KindGenRule:
		return r.GenRule
	case manifest.KindSystemLib:
		return r.SystemLib
	case manifest.KindExternalPackage:
		return r.ExternalPackage
	}
	return nil
}
