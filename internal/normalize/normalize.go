// Package normalize turns a tree of BUILD.yaml manifests into a single
// NormalizedBuild: a topologically sorted list of rules with their
// transitive library dependencies resolved, ready for internal/taskbuild.
// It is grounded directly on the original build_normalizer.cpp, including
// its exact fixed-point top_sort algorithm and cycle/unknown-dependency
// error text.
package normalize

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/bec-ca/mellow/internal/manifest"
	"github.com/bec-ca/mellow/internal/mellowerr"
	"github.com/bec-ca/mellow/internal/pkgpath"
	"github.com/bec-ca/mellow/internal/ruleview"
)

var ignoreDirs = map[string]bool{
	"build":    true,
	"build-ci": true,
	"publish":  true,
}

// FindPackageDirs walks rootDir recursively, skipping ignored build-output
// directories and dot-prefixed directories, and returns every directory that
// directly contains a file named manifestName.
func FindPackageDirs(rootDir, manifestName string) ([]string, error) {
	var out []string
	err := godirwalk.Walk(rootDir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			base := filepath.Base(path)
			if path != rootDir && (ignoreDirs[base] || strings.HasPrefix(base, ".")) {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(path, manifestName)); err == nil {
				out = append(out, path)
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", rootDir)
	}
	sort.Strings(out)
	return out, nil
}

// NormalizedRule is one build rule with its package location resolved and,
// once top-sorted, its transitive library set computed.
type NormalizedRule struct {
	Name          pkgpath.PackagePath
	PackageName   pkgpath.PackagePath
	PackageDir    string // relative to the repo root
	RootSourceDir string
	Deps          []pkgpath.PackagePath
	View          ruleview.View

	TransitiveLibs []*NormalizedRule
}

// Headers returns package-dir-joined header paths.
func (r *NormalizedRule) Headers() []string {
	return joinAll(r.PackageDir, r.View.Headers())
}

// Sources returns package-dir-joined source paths.
func (r *NormalizedRule) Sources() []string {
	return joinAll(r.PackageDir, r.View.Sources())
}

// Data returns package-dir-joined data file paths.
func (r *NormalizedRule) Data() []string {
	return joinAll(r.PackageDir, r.View.Data())
}

func joinAll(dir string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(dir, n)
	}
	return out
}

// NormalizedBuild is the fully resolved, topologically sorted build graph.
type NormalizedBuild struct {
	Rules    []*NormalizedRule
	Profiles []manifest.Profile
}

// ByName indexes Rules by their full package path.
func (b *NormalizedBuild) ByName() map[string]*NormalizedRule {
	out := make(map[string]*NormalizedRule, len(b.Rules))
	for _, r := range b.Rules {
		out[r.Name.String()] = r
	}
	return out
}

// Normalizer reads a build tree and produces a NormalizedBuild.
type Normalizer struct {
	ManifestName       string
	ExternalPackageDir string
}

// NormalizeBuild reads repoRootDir (and, if present, ExternalPackageDir),
// resolves every rule's deps, and returns the topologically sorted result.
func (n *Normalizer) NormalizeBuild(repoRootDir string) (*NormalizedBuild, error) {
	rules := map[string]*NormalizedRule{}
	var profiles []manifest.Profile

	readRules := func(rootPackageDir string, includeProfiles bool) error {
		dirs, err := FindPackageDirs(rootPackageDir, n.ManifestName)
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			packagePath, err := pkgpath.OfFilesystem(rootPackageDir, dir)
			if err != nil {
				return err
			}
			manifestPath := filepath.Join(dir, n.ManifestName)
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return &mellowerr.ConfigParse{Path: manifestPath, Err: err}
			}
			relDir, err := filepath.Rel(repoRootDir, dir)
			if err != nil {
				return errors.Wrapf(err, "relativizing %s to %s", dir, repoRootDir)
			}
			for _, entry := range m.Rules {
				switch entry.Kind {
				case manifest.KindProfile:
					if includeProfiles {
						profiles = append(profiles, *entry.Profile)
					}
					continue
				case manifest.KindExternalPackage:
					continue
				}

				view := ruleview.New(packagePath, entry)
				name := view.Name()

				deps := resolveDeps(packagePath, view)

				normalized := &NormalizedRule{
					Name:          name,
					PackageName:   name.Parent(),
					PackageDir:    relDir,
					RootSourceDir: name.Parent().RemoveSuffix(relDir),
					Deps:          deps,
					View:          view,
				}

				key := name.String()
				if existing, ok := rules[key]; ok {
					loc := view.Location()
					dupMsg := ""
					if existing.View.Location().File != "" {
						dupMsg = "; " + existing.View.Location().String() + ": package also defined here"
					}
					return &mellowerr.GraphError{Message: "duplicated package name " + key + " at " + loc.String() + dupMsg}
				}
				rules[key] = normalized
			}
		}
		return nil
	}

	if err := readRules(repoRootDir, true); err != nil {
		return nil, err
	}
	if n.ExternalPackageDir != "" {
		if _, err := os.Stat(n.ExternalPackageDir); err == nil {
			if err := readRules(n.ExternalPackageDir, false); err != nil {
				return nil, err
			}
		}
	}

	sorted, err := topSort(rules)
	if err != nil {
		return nil, err
	}

	return &NormalizedBuild{Rules: sorted, Profiles: profiles}, nil
}

func resolveDeps(packagePath pkgpath.PackagePath, view ruleview.View) []pkgpath.PackagePath {
	seen := map[string]bool{}
	var out []pkgpath.PackagePath
	add := func(p pkgpath.PackagePath) {
		if k := p.String(); !seen[k] {
			seen[k] = true
			out = append(out, p)
		}
	}
	for _, lib := range view.Libs() {
		add(packagePath.Append(lib))
	}
	for _, dep := range view.AdditionalDeps() {
		add(packagePath.Append(dep))
	}
	return out
}

// topSort is the Go equivalent of the original's fixed-point top_sort: it
// repeatedly sweeps the rule set, moving any rule whose deps (and whose
// libs, for transitive_libs purposes) are all already placed. A sweep with
// no progress and rules still unplaced means there's a cycle.
func topSort(rules map[string]*NormalizedRule) ([]*NormalizedRule, error) {
	done := map[*NormalizedRule]bool{}
	var sortedRules []*NormalizedRule

	// Deterministic iteration order, matching the map<PackagePath,...>
	// ordering the original relies on for stable error messages.
	var names []string
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	for {
		madeProgress := false
		allDone := true

		for _, name := range names {
			rule := rules[name]
			if done[rule] {
				continue
			}

			depsDone := true
			for _, dep := range rule.Deps {
				depRule, ok := rules[dep.String()]
				if !ok {
					kind := "rule"
					for _, lib := range view(rule).Libs() {
						if rule.Name.Parent().Append(lib).Equal(dep) {
							kind = "lib"
						}
					}
					return nil, &mellowerr.GraphError{
						Message: locPrefix(rule) + "rule '" + rule.Name.String() +
							"' depends on unknown " + kind + " '" + dep.String() + "'",
					}
				}
				if !done[depRule] {
					depsDone = false
					break
				}
			}

			if !depsDone {
				allDone = false
				continue
			}

			var transitive []*NormalizedRule
			transitiveSeen := map[*NormalizedRule]bool{}
			for _, lib := range view(rule).Libs() {
				libPath := rule.Name.Parent().Append(lib)
				libRule, ok := rules[libPath.String()]
				if !ok {
					return nil, &mellowerr.GraphError{
						Message: locPrefix(rule) + "rule '" + rule.Name.String() +
							"' depends on unknown lib '" + libPath.String() + "'",
					}
				}
				if !transitiveSeen[libRule] {
					transitiveSeen[libRule] = true
					transitive = append(transitive, libRule)
				}
				for _, t := range libRule.TransitiveLibs {
					if !transitiveSeen[t] {
						transitiveSeen[t] = true
						transitive = append(transitive, t)
					}
				}
			}

			rule.TransitiveLibs = transitive
			sortedRules = append(sortedRules, rule)
			done[rule] = true
			madeProgress = true
		}

		if allDone {
			break
		}
		if !madeProgress {
			var remaining []string
			for _, name := range names {
				if !done[rules[name]] {
					remaining = append(remaining, name)
				}
			}
			return nil, &mellowerr.GraphError{
				Message: "there is a dependency cycle somewhere, remaining rules: " + strings.Join(remaining, "\n"),
			}
		}
	}

	return sortedRules, nil
}

func view(r *NormalizedRule) ruleview.View { return r.View }

func locPrefix(r *NormalizedRule) string {
	loc := r.View.Location()
	if loc.File == "" {
		return ""
	}
	return loc.String() + ": "
}
