// Package ruleview provides a uniform façade over the rule-kind-specific
// structs in internal/manifest, mirroring the tagged-union Rule wrapper in
// the original implementation's build_rules.hpp/.cpp: callers that only
// care about sources/headers/libs/deps/flags don't need a type switch.
package ruleview

import (
	"github.com/bec-ca/mellow/internal/manifest"
	"github.com/bec-ca/mellow/internal/pkgpath"
)

// View wraps one manifest.RuleEntry with kind-uniform accessors. The rule's
// own package path (the directory containing the manifest, joined with the
// rule's Name) must be supplied by the caller, since the manifest format
// itself only knows the bare name.
type View struct {
	path  pkgpath.PackagePath
	entry manifest.RuleEntry
}

// New wraps entry, whose owning package lives at packagePath.
func New(packagePath pkgpath.PackagePath, entry manifest.RuleEntry) View {
	return View{path: packagePath.Append(name(entry)), entry: entry}
}

func name(e manifest.RuleEntry) string {
	switch e.Kind {
	case manifest.KindProfile:
		return e.Profile.Name
	case manifest.KindCppBinary:
		return e.CppBinary.Name
	case manifest.KindCppLibrary:
		return e.CppLibrary.Name
	case manifest.KindCppTest:
		return e.CppTest.Name
	case manifest.KindGenRule:
		return e.GenRule.Name
	case manifest.KindSystemLib:
		return e.SystemLib.Name
	case manifest.KindExternalPackage:
		return e.ExternalPackage.Name
	}
	return ""
}

// Kind returns the rule's variant tag.
func (v View) Kind() manifest.Kind { return v.entry.Kind }

// Name returns the rule's full package path (package directory + bare name).
func (v View) Name() pkgpath.PackagePath { return v.path }

// Raw returns the underlying decoded manifest entry.
func (v View) Raw() manifest.RuleEntry { return v.entry }

// Location returns the manifest source location the rule was declared at.
func (v View) Location() manifest.Location {
	switch v.entry.Kind {
	case manifest.KindProfile:
		return v.entry.Profile.Location
	case manifest.KindCppBinary:
		return v.entry.CppBinary.Location
	case manifest.KindCppLibrary:
		return v.entry.CppLibrary.Location
	case manifest.KindCppTest:
		return v.entry.CppTest.Location
	case manifest.KindGenRule:
		return v.entry.GenRule.Location
	case manifest.KindSystemLib:
		return v.entry.SystemLib.Location
	case manifest.KindExternalPackage:
		return v.entry.ExternalPackage.Location
	}
	return manifest.Location{}
}

// Sources returns the rule's declared source file names (package-relative),
// empty for kinds with no sources field.
func (v View) Sources() []string {
	switch v.entry.Kind {
	case manifest.KindCppBinary:
		return v.entry.CppBinary.Sources
	case manifest.KindCppLibrary:
		return v.entry.CppLibrary.Sources
	case manifest.KindCppTest:
		return v.entry.CppTest.Sources
	}
	return nil
}

// Headers returns the rule's declared header file names (package-relative).
func (v View) Headers() []string {
	if v.entry.Kind == manifest.KindCppLibrary {
		return v.entry.CppLibrary.Headers
	}
	return nil
}

// Data returns package-relative paths of non-source files the rule needs at
// runtime (symlinked into its working directory when it executes).
func (v View) Data() []string {
	if v.entry.Kind == manifest.KindGenRule {
		return v.entry.GenRule.Data
	}
	return nil
}

// Libs returns the bare lib-rule names this rule links against, as declared
// (not yet resolved to full package paths — that's the normalizer's job).
func (v View) Libs() []string {
	switch v.entry.Kind {
	case manifest.KindCppBinary:
		return v.entry.CppBinary.Libs
	case manifest.KindCppLibrary:
		return v.entry.CppLibrary.Libs
	case manifest.KindCppTest:
		return v.entry.CppTest.Libs
	}
	return nil
}

// AdditionalDeps returns deps beyond Libs: currently only GenRule's binary,
// whose output must be built before the rule can run.
func (v View) AdditionalDeps() []string {
	if v.entry.Kind == manifest.KindGenRule {
		return []string{v.entry.GenRule.Binary}
	}
	return nil
}

// CppFlags returns the rule's own compiler flags, before profile flags are
// prepended by the task builder.
func (v View) CppFlags() []string {
	switch v.entry.Kind {
	case manifest.KindCppBinary:
		return v.entry.CppBinary.CppFlags
	case manifest.KindCppLibrary:
		return v.entry.CppLibrary.CppFlags
	case manifest.KindProfile:
		return v.entry.Profile.CppFlags
	}
	return nil
}

// LdFlags returns the rule's own linker flags.
func (v View) LdFlags() []string {
	switch v.entry.Kind {
	case manifest.KindCppBinary:
		return v.entry.CppBinary.LdFlags
	case manifest.KindCppLibrary:
		return v.entry.CppLibrary.LdFlags
	case manifest.KindProfile:
		return v.entry.Profile.LdFlags
	}
	return nil
}

// OutputCppObject reports whether this rule produces a standalone .o a
// dependent binary can link directly, and if so what its name is. Only
// CppLibrary rules with at least one source do.
func (v View) OutputCppObject() (string, bool) {
	if v.entry.Kind != manifest.KindCppLibrary {
		return "", false
	}
	lib := v.entry.CppLibrary
	if len(lib.Sources) == 0 {
		return "", false
	}
	return lib.Name + ".o", true
}

// SystemLibConfigName returns the package-relative name of the generated
// file a SystemLib rule persists its probed flags to.
func (v View) SystemLibConfigName() (string, bool) {
	if v.entry.Kind != manifest.KindSystemLib {
		return "", false
	}
	return v.entry.SystemLib.Name + ".output", true
}

// OSFilter returns the operating systems a CppTest rule is restricted to;
// empty means no restriction.
func (v View) OSFilter() []manifest.OS {
	if v.entry.Kind == manifest.KindCppTest {
		return v.entry.CppTest.OSFilter
	}
	return nil
}

// Outputs returns the package-relative output file names a GenRule declares.
func (v View) Outputs() []string {
	if v.entry.Kind == manifest.KindGenRule {
		return v.entry.GenRule.Outputs
	}
	return nil
}
