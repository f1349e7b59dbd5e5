// Package syslib probes a pkg-config-style external command for a system
// library's compiler and linker flags, and persists the result so
// dependent rules can read it without re-invoking the probe command.
// Grounded on build_engine.cpp's SystemLibConfig/RunSystemLib.
package syslib

import (
	"context"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bec-ca/mellow/internal/subprocess"
)

// Config is a system library's probed compiler/linker flags.
type Config struct {
	CppFlags []string `yaml:"cpp_flags"`
	LdFlags  []string `yaml:"ld_flags"`
}

// Probe invokes command once with flags plus "--cflags", and once with
// flags plus "--libs", splitting each command's stdout on whitespace.
func Probe(ctx context.Context, runner *subprocess.Runner, command string, flags []string, dir string) (*Config, error) {
	cflagsArgs := append(append([]string{command}, flags...), "--cflags")
	cflagsRes, err := runner.Run(ctx, subprocess.Request{Command: cflagsArgs, Dir: dir})
	if err != nil {
		return nil, err
	}

	libsArgs := append(append([]string{command}, flags...), "--libs")
	libsRes, err := runner.Run(ctx, subprocess.Request{Command: libsArgs, Dir: dir})
	if err != nil {
		return nil, err
	}

	return &Config{
		CppFlags: strings.Fields(cflagsRes.Stdout),
		LdFlags:  strings.Fields(libsRes.Stdout),
	}, nil
}

// Write persists cfg to path as YAML, the system-lib-config file a
// dependent CppBinary/CppLibrary reads its flags back from.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read reads back a previously-written system-lib-config file.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
