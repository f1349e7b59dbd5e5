// Package pkgpath implements PackagePath: a canonical, rooted, '/'-separated
// identifier for a package or rule within a Mellow build tree. It is the Go
// equivalent of the original implementation's PackagePath, and is deliberately
// immutable: every mutating-looking operation returns a new value.
package pkgpath

import (
	"strings"

	"github.com/pkg/errors"
)

// PackagePath is a sequence of path components, always rooted at "/".
type PackagePath struct {
	parts []string
}

// Root returns the empty, root package path ("/").
func Root() PackagePath {
	return PackagePath{}
}

func isRootStr(s string) bool {
	return len(s) > 0 && s[0] == '/'
}

func endsWithSlash(s string) bool {
	return len(s) > 0 && s[len(s)-1] == '/'
}

func splitPath(path string) ([]string, error) {
	raw := strings.Split(path, "/")
	filtered := make([]string, 0, len(raw))
	for _, part := range raw {
		if part == "." || part == "" {
			continue
		}
		if part == ".." {
			return nil, errors.New("'..' is not allowed in package name")
		}
		filtered = append(filtered, part)
	}
	if len(filtered) > 1 && filtered[len(filtered)-1] == "" {
		filtered = filtered[:len(filtered)-1]
	}
	return filtered, nil
}

func splitPathForPackage(path string) ([]string, error) {
	if len(path) > 0 && path[0] != '/' {
		return nil, errors.New("package name must start with a slash")
	}
	start := 0
	for start < len(path) && path[start] == '/' {
		start++
	}
	return splitPath(path[start:])
}

func isPrefixOf(prefix, vec []string) bool {
	if len(prefix) > len(vec) {
		return false
	}
	for i := range prefix {
		if prefix[i] != vec[i] {
			return false
		}
	}
	return true
}

// OfString parses a package path of the form "/a/b/c". Rejects paths that
// don't start with a slash or that contain a ".." component.
func OfString(path string) (PackagePath, error) {
	parts, err := splitPathForPackage(path)
	if err != nil {
		return PackagePath{}, err
	}
	return PackagePath{parts: parts}, nil
}

// OfFilesystem computes the package path of path relative to rootPackageDir,
// requiring path to be a (possibly equal) descendant of rootPackageDir.
func OfFilesystem(rootPackageDir, path string) (PackagePath, error) {
	rootIsRoot := isRootStr(rootPackageDir)
	pathIsRoot := isRootStr(path)
	if rootIsRoot != pathIsRoot {
		return PackagePath{}, errors.New("of_filesystem() requires that neither inputs are root or that both are")
	}

	rootParts, err := splitPath(rootPackageDir)
	if err != nil {
		return PackagePath{}, err
	}
	pathParts, err := splitPath(path)
	if err != nil {
		return PackagePath{}, err
	}

	if !isPrefixOf(rootParts, pathParts) {
		return PackagePath{}, errors.Errorf(
			"path %q is not a child of the root package %q", path, rootPackageDir)
	}

	tail := Root()
	for i := len(rootParts); i < len(pathParts); i++ {
		tail.appendInplace(pathParts[i])
	}
	return tail, nil
}

// ToFilesystem joins the package path onto rootPackageDir to produce a
// filesystem path.
func (p PackagePath) ToFilesystem(rootPackageDir string) string {
	output := rootPackageDir
	for _, part := range p.parts {
		if !endsWithSlash(output) {
			output += "/"
		}
		output += part
	}
	return output
}

// String renders the canonical "/a/b/c" form.
func (p PackagePath) String() string {
	return "/" + strings.Join(p.parts, "/")
}

// AppendNoSep concatenates tail directly onto the last component (no
// separator inserted), then re-splits, e.g. "/a/b" + ".cpp" -> "/a/b.cpp".
func (p PackagePath) AppendNoSep(tail string) PackagePath {
	if len(p.parts) == 0 {
		out, err := OfString(tail)
		if err != nil {
			// matches original's `must`: only root-of-empty callers hit this,
			// and the original asserts rather than propagating an error here.
			return Root()
		}
		return out
	}
	copied := append([]string(nil), p.parts...)
	last := copied[len(copied)-1]
	newTail, err := splitPath(last + tail)
	if err != nil {
		return p
	}
	copied = copied[:len(copied)-1]
	copied = append(copied, newTail...)
	return PackagePath{parts: copied}
}

func (p *PackagePath) appendInplace(tail string) {
	if isRootStr(tail) {
		out, err := OfString(tail)
		if err == nil {
			*p = out
		}
		return
	}
	parts, err := splitPath(tail)
	if err != nil {
		return
	}
	p.parts = append(p.parts, parts...)
}

// Append concatenates tail as one or more new path components, e.g.
// "/a" + "b/c" -> "/a/b/c". An absolute tail ("/x/y") replaces the path
// entirely, matching the original's append_inplace semantics.
func (p PackagePath) Append(tail string) PackagePath {
	copied := PackagePath{parts: append([]string(nil), p.parts...)}
	copied.appendInplace(tail)
	return copied
}

// Equal reports whether p and other denote the same path.
func (p PackagePath) Equal(other PackagePath) bool {
	if len(p.parts) != len(other.parts) {
		return false
	}
	for i := range p.parts {
		if p.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// Less imposes a total order over PackagePath, component-wise, matching the
// original's defaulted operator<=> over the underlying vector<string>.
func (p PackagePath) Less(other PackagePath) bool {
	n := len(p.parts)
	if len(other.parts) < n {
		n = len(other.parts)
	}
	for i := 0; i < n; i++ {
		if p.parts[i] != other.parts[i] {
			return p.parts[i] < other.parts[i]
		}
	}
	return len(p.parts) < len(other.parts)
}

// Last returns the final path component. Panics on the root path, as the
// original asserts.
func (p PackagePath) Last() string {
	return p.parts[len(p.parts)-1]
}

// At returns the component at idx.
func (p PackagePath) At(idx int) string {
	return p.parts[idx]
}

// Size returns the number of path components.
func (p PackagePath) Size() int {
	return len(p.parts)
}

// IsAbsolute reports whether this path's first component is empty. Every
// constructor drops empty components (a leading "//" included), so this
// always reports false; kept for fidelity with the original, which computes
// this from the same vector representation.
func (p PackagePath) IsAbsolute() bool {
	return len(p.parts) > 0 && p.parts[0] == ""
}

// IsChildOf reports whether p is a strict descendant of parent.
func (p PackagePath) IsChildOf(parent PackagePath) bool {
	if p.Size() <= parent.Size() {
		return false
	}
	for i := 0; i < parent.Size(); i++ {
		if p.At(i) != parent.At(i) {
			return false
		}
	}
	return true
}

// RelativeTo renders p relative to parent: "./" if equal, the plain
// components joined by "/" if a child, or p's full string form otherwise.
func (p PackagePath) RelativeTo(parent PackagePath) string {
	if p.Equal(parent) {
		return "./"
	}
	if !p.IsChildOf(parent) {
		return p.String()
	}
	tail := p.parts[parent.Size():]
	return strings.Join(tail, "/")
}

// Parent returns p with its last component removed. Panics on the root path.
func (p PackagePath) Parent() PackagePath {
	return PackagePath{parts: append([]string(nil), p.parts[:len(p.parts)-1]...)}
}

// RemoveSuffix strips path components of p from the tail of inputPath, one
// directory level at a time, as long as each successive directory name
// matches the next component from the end of p.
func (p PackagePath) RemoveSuffix(inputPath string) string {
	path := inputPath
	parts := append([]string(nil), p.parts...)
	for len(parts) > 0 {
		base := lastComponent(path)
		if base != parts[len(parts)-1] {
			break
		}
		path = dirComponent(path)
		parts = parts[:len(parts)-1]
	}
	return path
}

func lastComponent(path string) string {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

func dirComponent(path string) string {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}
	if idx == 0 {
		return "/"
	}
	return trimmed[:idx]
}
