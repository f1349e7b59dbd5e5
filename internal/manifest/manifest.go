// Package manifest decodes BUILD.yaml files into the rule kinds defined by
// the original build system's generated schema (mbuild_types.generated.hpp):
// profile, cpp_binary, cpp_library, cpp_test, gen_rule, system_lib, and
// external_package. A manifest file is a YAML sequence of single-key maps,
// each key naming the rule kind.
package manifest

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Location records where a rule was declared, for error messages.
type Location struct {
	File string
	Line int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Profile is a named compiler/linker flag bundle rules can select between.
type Profile struct {
	Name        string   `yaml:"name"`
	CppFlags    []string `yaml:"cpp_flags"`
	LdFlags     []string `yaml:"ld_flags"`
	CppCompiler string   `yaml:"cpp_compiler,omitempty"`
	Location    Location `yaml:"-"`
}

// CppBinary is a rule that links an executable.
type CppBinary struct {
	Name     string   `yaml:"name"`
	Sources  []string `yaml:"sources"`
	Libs     []string `yaml:"libs"`
	LdFlags  []string `yaml:"ld_flags"`
	CppFlags []string `yaml:"cpp_flags"`
	Location Location `yaml:"-"`
}

// CppLibrary is a rule that compiles sources and/or exposes headers for
// dependents, optionally producing a linkable object.
type CppLibrary struct {
	Name     string   `yaml:"name"`
	Sources  []string `yaml:"sources"`
	Headers  []string `yaml:"headers"`
	Libs     []string `yaml:"libs"`
	LdFlags  []string `yaml:"ld_flags"`
	CppFlags []string `yaml:"cpp_flags"`
	Location Location `yaml:"-"`
}

// OS names a filterable build operating system.
type OS string

const (
	OSLinux OS = "linux"
	OSMacOS OS = "macos"
)

// CppTest is a rule that builds and runs a test binary, optionally comparing
// its output against a golden file.
type CppTest struct {
	Name     string   `yaml:"name"`
	Sources  []string `yaml:"sources"`
	Libs     []string `yaml:"libs"`
	Output   string   `yaml:"output"`
	OSFilter []OS     `yaml:"os_filter"`
	Location Location `yaml:"-"`
}

// GenRule runs an arbitrary binary to produce declared output files.
type GenRule struct {
	Name         string   `yaml:"name"`
	Binary       string   `yaml:"binary"`
	Flags        []string `yaml:"flags"`
	Data         []string `yaml:"data"`
	Outputs      []string `yaml:"outputs"`
	OutputToSrc  bool     `yaml:"output_to_src"`
	Location     Location `yaml:"-"`
}

// SystemLib probes an external command (pkg-config-style) for compiler and
// linker flags of a library not built by this tree.
type SystemLib struct {
	Name           string   `yaml:"name"`
	Command        string   `yaml:"command"`
	Flags          []string `yaml:"flags"`
	ProvideHeaders []string `yaml:"provide_headers"`
	Location       Location `yaml:"-"`
}

// ExternalPackage declares a package fetched from an external source rather
// than built in-tree.
type ExternalPackage struct {
	Name     string   `yaml:"name"`
	Source   string   `yaml:"source,omitempty"`
	URL      string   `yaml:"url,omitempty"`
	Location Location `yaml:"-"`
}

// Kind identifies which rule variant a RuleEntry holds.
type Kind string

const (
	KindProfile         Kind = "profile"
	KindCppBinary       Kind = "cpp_binary"
	KindCppLibrary      Kind = "cpp_library"
	KindCppTest         Kind = "cpp_test"
	KindGenRule         Kind = "gen_rule"
	KindSystemLib       Kind = "system_lib"
	KindExternalPackage Kind = "external_package"
)

// RuleEntry is one decoded manifest entry, tagged by Kind with exactly one
// of the kind-specific fields populated.
type RuleEntry struct {
	Kind Kind

	Profile         *Profile
	CppBinary       *CppBinary
	CppLibrary      *CppLibrary
	CppTest         *CppTest
	GenRule         *GenRule
	SystemLib       *SystemLib
	ExternalPackage *ExternalPackage
}

// UnmarshalYAML decodes a single-key map ("cpp_library: {...}") into the
// matching kind-specific field.
func (r *RuleEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return errors.Errorf("line %d: rule entry must be a single-key map naming its kind", node.Line)
	}
	key := node.Content[0].Value
	val := node.Content[1]
	loc := Location{Line: node.Line}

	switch Kind(key) {
	case KindProfile:
		var p Profile
		if err := val.Decode(&p); err != nil {
			return err
		}
		p.Location = loc
		r.Kind, r.Profile = KindProfile, &p
	case KindCppBinary:
		var v CppBinary
		if err := val.Decode(&v); err != nil {
			return err
		}
		v.Location = loc
		r.Kind, r.CppBinary = KindCppBinary, &v
	case KindCppLibrary:
		var v CppLibrary
		if err := val.Decode(&v); err != nil {
			return err
		}
		v.Location = loc
		r.Kind, r.CppLibrary = KindCppLibrary, &v
	case KindCppTest:
		var v CppTest
		if err := val.Decode(&v); err != nil {
			return err
		}
		v.Location = loc
		r.Kind, r.CppTest = KindCppTest, &v
	case KindGenRule:
		var v GenRule
		if err := val.Decode(&v); err != nil {
			return err
		}
		v.Location = loc
		r.Kind, r.GenRule = KindGenRule, &v
	case KindSystemLib:
		var v SystemLib
		if err := val.Decode(&v); err != nil {
			return err
		}
		v.Location = loc
		r.Kind, r.SystemLib = KindSystemLib, &v
	case KindExternalPackage:
		var v ExternalPackage
		if err := val.Decode(&v); err != nil {
			return err
		}
		v.Location = loc
		r.Kind, r.ExternalPackage = KindExternalPackage, &v
	default:
		return errors.Errorf("line %d: unknown rule kind %q", node.Line, key)
	}
	return nil
}

// Manifest is the decoded contents of a single BUILD.yaml file.
type Manifest struct {
	Rules []RuleEntry
}

// Parse decodes raw YAML bytes into a Manifest.
func Parse(path string, data []byte) (*Manifest, error) {
	var rules []RuleEntry
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	for i := range rules {
		setFile(&rules[i], path)
	}
	return &Manifest{Rules: rules}, nil
}

// Load reads and parses the manifest file at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}
	return Parse(path, data)
}

func setFile(r *RuleEntry, path string) {
	switch r.Kind {
	case KindProfile:
		r.Profile.Location.File = path
	case KindCppBinary:
		r.CppBinary.Location.File = path
	case KindCppLibrary:
		r.CppLibrary.Location.File = path
	case KindCppTest:
		r.CppTest.Location.File = path
	case KindGenRule:
		r.GenRule.Location.File = path
	case KindSystemLib:
		r.SystemLib.Location.File = path
	case KindExternalPackage:
		r.ExternalPackage.Location.File = path
	}
}
