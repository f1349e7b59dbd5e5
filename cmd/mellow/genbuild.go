package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bec-ca/mellow/internal/genbuild"
	"github.com/bec-ca/mellow/internal/normalize"
	"github.com/bec-ca/mellow/internal/pkgpath"
)

func newGenbuildCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "genbuild <package-dir>",
		Short: "Scan a package directory's sources and print a starter manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, cfg, _, err := resolvedConfig(global)
			if err != nil {
				return err
			}
			dir := args[0]
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(repoRoot, dir)
			}

			sources, headers, siblingDeps, err := genbuild.Scan(dir)
			if err != nil {
				return err
			}

			deps, err := resolveSiblingDeps(repoRoot, cfg.ManifestName, siblingDeps)
			if err != nil {
				return err
			}

			name := filepath.Base(dir)
			out, err := genbuild.Starter(name, sources, headers, deps)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

// resolveSiblingDeps turns the bare sibling package names genbuild.Scan infers
// from #include directives into the absolute "/a/b/name" form libs must use
// to reference a rule outside their own package directory. Package dirs are
// matched by base name; a sibling with no unique match is left as a bare
// name for the user to fix up by hand.
func resolveSiblingDeps(repoRoot, manifestName string, siblingDeps []string) ([]string, error) {
	if len(siblingDeps) == 0 {
		return nil, nil
	}

	dirs, err := normalize.FindPackageDirs(repoRoot, manifestName)
	if err != nil {
		return nil, err
	}
	byBase := map[string]string{}
	ambiguous := map[string]bool{}
	for _, dir := range dirs {
		base := filepath.Base(dir)
		if _, ok := byBase[base]; ok {
			ambiguous[base] = true
			continue
		}
		byBase[base] = dir
	}

	out := make([]string, len(siblingDeps))
	for i, dep := range siblingDeps {
		dir, ok := byBase[dep]
		if !ok || ambiguous[dep] {
			out[i] = dep
			continue
		}
		pkg, err := pkgpath.OfFilesystem(repoRoot, dir)
		if err != nil {
			out[i] = dep
			continue
		}
		out[i] = pkg.Append(dep).String()
	}
	return out, nil
}
