package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bec-ca/mellow/internal/format"
	"github.com/bec-ca/mellow/internal/manifest"
	"github.com/bec-ca/mellow/internal/normalize"
)

func newFormatCmd(global *globalFlags) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "format [package-dirs...]",
		Short: "Rewrite manifest files in canonical field order and indentation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormat(global, args, write)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the formatted output back to each file instead of printing it")
	return cmd
}

func runFormat(global *globalFlags, paths []string, write bool) error {
	repoRoot, cfg, _, err := resolvedConfig(global)
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		dirs, err := normalize.FindPackageDirs(repoRoot, cfg.ManifestName)
		if err != nil {
			return err
		}
		paths = dirs
	}

	for _, dir := range paths {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(repoRoot, dir)
		}
		manifestPath := filepath.Join(dir, cfg.ManifestName)
		m, err := manifest.Load(manifestPath)
		if err != nil {
			return err
		}
		out, err := format.Manifest(m)
		if err != nil {
			return err
		}
		if write {
			if err := os.WriteFile(manifestPath, []byte(out), 0o644); err != nil {
				return err
			}
		} else {
			fmt.Printf("# %s\n%s", manifestPath, out)
		}
	}
	return nil
}
