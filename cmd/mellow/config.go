package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bec-ca/mellow/internal/buildconfig"
)

func newConfigCmd(global *globalFlags) *cobra.Command {
	var cppCompiler string
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate a build-config file from the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := filepath.Abs(global.repoRoot)
			if err != nil {
				return err
			}

			cfg := buildconfig.Default()
			cfg.Cpp = buildconfig.GenerateCppConfig(cppCompiler)

			out := output
			if out == "" {
				out = global.configPath
			}
			if !filepath.IsAbs(out) {
				out = filepath.Join(repoRoot, out)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote build config to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&cppCompiler, "cpp-compiler", "", "compiler to record in the generated config, resolved against $PATH (default: $CXX, else g++)")
	cmd.Flags().StringVar(&output, "output", "", "path to write the generated config to (default: --config)")
	return cmd
}
