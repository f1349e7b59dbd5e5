// Package buildconfig decodes the build-config file (spec.md §6.2): the
// on-disk defaults for manifest name, build/external-package directories,
// default profile, worker count, and the "cpp" leg (compiler, cpp_flags,
// ld_flags) every compile/link command is built from, with CLI flags taking
// precedence. The cpp leg is auto-generated from the environment the first
// time a config file doesn't yet carry one, the way
// generate_build_config.cpp seeds it from CXX/CXXFLAGS/CPPFLAGS/LDFLAGS/
// LDLIBS.
package buildconfig

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// CppConfig is the build-config's "cpp" leg: the compiler used whenever a
// profile doesn't override it, plus flags appended to every compile/link.
type CppConfig struct {
	Compiler string   `yaml:"compiler"`
	CppFlags []string `yaml:"cpp_flags"`
	LdFlags  []string `yaml:"ld_flags"`
}

// Config is the resolved set of build-wide settings.
type Config struct {
	ManifestName       string    `yaml:"manifest_name"`
	BuildDir           string    `yaml:"build_dir"`
	ExternalPackageDir string    `yaml:"external_package_dir"`
	DefaultProfile     string    `yaml:"default_profile"`
	Jobs               int       `yaml:"jobs"`
	Cpp                CppConfig `yaml:"cpp"`
}

// Default returns the built-in defaults used when no config file exists and
// no CLI flag overrides a field. The cpp leg is left empty here; Load fills
// it in from the environment when the file on disk doesn't carry one.
func Default() Config {
	return Config{
		ManifestName:       "BUILD.yaml",
		BuildDir:           "build",
		ExternalPackageDir: "build/external_packages",
		DefaultProfile:     "default",
		Jobs:               0, // 0 means "use taskmgr.NumCPU()"
	}
}

// Load reads path (if it exists) and overlays it onto Default(). A missing
// file is not an error, matching the teacher's config-resolution fallback.
// When the resulting config has no compiler set (file missing entirely, or
// present without a cpp leg), the cpp leg is generated from the environment,
// matching spec.md §6.2's "auto-generated on first build" behavior.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, errors.Wrapf(err, "reading build config %s", path)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing build config %s", path)
	}

	cfg.BuildDir, err = homedir.Expand(cfg.BuildDir)
	if err != nil {
		return cfg, errors.Wrap(err, "expanding build_dir")
	}
	cfg.ExternalPackageDir, err = homedir.Expand(cfg.ExternalPackageDir)
	if err != nil {
		return cfg, errors.Wrap(err, "expanding external_package_dir")
	}

	if cfg.Cpp.Compiler == "" {
		cfg.Cpp = GenerateCppConfig("")
	}

	return cfg, nil
}

// GenerateCppConfig derives a cpp leg the way generate_build_config.cpp
// does: defaultCompiler (if given, e.g. from --cpp-compiler) resolved
// against $PATH, else $CXX resolved against $PATH, else "g++" resolved
// against $PATH if possible; cpp_flags from CXXFLAGS+CPPFLAGS, ld_flags
// from LDFLAGS+LDLIBS.
func GenerateCppConfig(defaultCompiler string) CppConfig {
	return CppConfig{
		Compiler: resolveCompiler(defaultCompiler),
		CppFlags: append(splitEnv("CXXFLAGS"), splitEnv("CPPFLAGS")...),
		LdFlags:  append(splitEnv("LDFLAGS"), splitEnv("LDLIBS")...),
	}
}

func splitEnv(name string) []string {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	return strings.Fields(v)
}

func resolveCompiler(defaultCompiler string) string {
	if defaultCompiler != "" {
		if resolved, ok := resolveExecutable(defaultCompiler); ok {
			return resolved
		}
		return defaultCompiler
	}
	if cxx := os.Getenv("CXX"); cxx != "" {
		if resolved, ok := resolveExecutable(cxx); ok {
			return resolved
		}
		return cxx
	}
	if resolved, ok := resolveExecutable("g++"); ok {
		return resolved
	}
	return "g++"
}

// resolveExecutable expands name to an absolute path by searching $PATH,
// mirroring generate_build_config.cpp's resolve_executable_path. An already
// absolute path is returned unchanged.
func resolveExecutable(name string) (string, bool) {
	if filepath.IsAbs(name) {
		return name, true
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}
