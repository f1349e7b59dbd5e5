package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/bec-ca/mellow/internal/fetch"
	"github.com/bec-ca/mellow/internal/manifest"
	"github.com/bec-ca/mellow/internal/mellowerr"
	"github.com/bec-ca/mellow/internal/normalize"
	"github.com/bec-ca/mellow/internal/ui"
)

func newFetchCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download and unpack every external_package rule's archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(global)
		},
	}
}

func runFetch(global *globalFlags) error {
	repoRoot, cfg, _, err := resolvedConfig(global)
	if err != nil {
		return err
	}

	normalizer := &normalize.Normalizer{
		ManifestName:       cfg.ManifestName,
		ExternalPackageDir: cfg.ExternalPackageDir,
	}
	build, err := normalizer.NormalizeBuild(repoRoot)
	if err != nil {
		return err
	}

	f := fetch.New()
	for _, rule := range build.Rules {
		if rule.View.Kind() != manifest.KindExternalPackage {
			continue
		}
		pkg := rule.View.Raw().ExternalPackage
		if pkg.URL == "" {
			continue
		}
		destDir := filepath.Join(cfg.ExternalPackageDir, rule.PackageDir)

		var s *spinner.Spinner
		if ui.IsTTY {
			s = spinner.New(spinner.CharSets[11], 100*time.Millisecond)
			s.Suffix = fmt.Sprintf(" fetching %s -> %s", pkg.URL, destDir)
			s.Start()
		} else {
			fmt.Printf("fetching %s -> %s\n", pkg.URL, destDir)
		}

		err := f.FetchTarGz(context.Background(), pkg.URL, destDir)

		if s != nil {
			s.Stop()
		}
		if err != nil {
			return &mellowerr.Internal{Message: "fetching " + rule.Name.String() + ": " + err.Error()}
		}
	}
	return nil
}
