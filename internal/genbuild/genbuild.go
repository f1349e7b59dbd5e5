// Package genbuild scans a package directory's #include directives and
// emits a starter BUILD.yaml manifest. Deps are inferred as bare sibling
// package names — the first path segment of a quoted include — which
// cmd/mellow's genbuild command then resolves to the absolute package
// paths normalize.resolveDeps requires for cross-directory libs. Purely a
// convenience tool, not required by spec.md.
package genbuild

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var includeRe = regexp.MustCompile(`^\s*#include\s*"([^"]+)"`)

// Scan reads every .cpp/.cc/.hpp/.h file directly in dir (non-recursive, matching
// one package per directory) and returns their base names plus the set of
// sibling package names referenced via quoted #include.
func Scan(dir string) (sources, headers []string, deps []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, nil, err
	}

	depSet := map[string]bool{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch filepath.Ext(name) {
		case ".cpp", ".cc":
			sources = append(sources, name)
		case ".hpp", ".h":
			headers = append(headers, name)
		default:
			continue
		}

		includes, err := scanIncludes(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, nil, err
		}
		for _, inc := range includes {
			if pkg := firstSegment(inc); pkg != "" {
				depSet[pkg] = true
			}
		}
	}

	for d := range depSet {
		deps = append(deps, d)
	}
	sort.Strings(sources)
	sort.Strings(headers)
	sort.Strings(deps)
	return sources, headers, deps, nil
}

func scanIncludes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := includeRe.FindStringSubmatch(scanner.Text()); m != nil {
			out = append(out, m[1])
		}
	}
	return out, scanner.Err()
}

func firstSegment(includePath string) string {
	idx := strings.IndexByte(includePath, '/')
	if idx <= 0 {
		return ""
	}
	return includePath[:idx]
}

// Starter renders a minimal cpp_library manifest entry for a package with
// the given name, sources, headers, and libs.
func Starter(name string, sources, headers, libs []string) (string, error) {
	entry := map[string]interface{}{
		"cpp_library": map[string]interface{}{
			"name":    name,
			"sources": sources,
			"headers": headers,
			"libs":    libs,
		},
	}
	data, err := yaml.Marshal([]interface{}{entry})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
