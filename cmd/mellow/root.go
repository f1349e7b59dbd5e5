package main

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/bec-ca/mellow/internal/buildconfig"
	"github.com/bec-ca/mellow/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	repoRoot   string
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "mellow",
		Short:         "A content-addressed incremental build system for C++ packages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.repoRoot, "repo-root", ".", "repository root directory")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "mellow.yaml", "path to the build config file, relative to --repo-root")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newBuildCmd(flags),
		newConfigCmd(flags),
		newFetchCmd(flags),
		newFormatCmd(flags),
		newGenbuildCmd(flags),
	)
	return root
}

// resolvedConfig loads the build config relative to repoRoot, returning the
// absolute repo root, the config, and a logger sized by -v.
func resolvedConfig(flags *globalFlags) (string, buildconfig.Config, hclog.Logger, error) {
	logger := logging.New(flags.verbose)

	repoRoot, err := filepath.Abs(flags.repoRoot)
	if err != nil {
		return "", buildconfig.Config{}, nil, err
	}

	cfgPath := flags.configPath
	if !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(repoRoot, cfgPath)
	}
	cfg, err := buildconfig.Load(cfgPath)
	if err != nil {
		return "", buildconfig.Config{}, nil, err
	}

	if !filepath.IsAbs(cfg.BuildDir) {
		cfg.BuildDir = filepath.Join(repoRoot, cfg.BuildDir)
	}
	if !filepath.IsAbs(cfg.ExternalPackageDir) {
		cfg.ExternalPackageDir = filepath.Join(repoRoot, cfg.ExternalPackageDir)
	}

	if err := os.MkdirAll(cfg.BuildDir, 0o755); err != nil {
		return "", buildconfig.Config{}, nil, err
	}

	return repoRoot, cfg, logger, nil
}
