// Package diffcheck compares a CppTest rule's actual output against its
// golden expected output, producing a unified line diff when they differ.
// Grounded on build_engine.cpp's RunTest diff step, using go-difflib rather
// than reimplementing the Myers diff algorithm by hand.
package diffcheck

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Equal reports whether expected and actual are byte-identical.
func Equal(expected, actual string) bool {
	return expected == actual
}

// Diff renders a unified diff between expected and actual, labeled for a
// test-output comparison. Returns "" if they're equal.
func Diff(name, expected, actual string) (string, error) {
	if Equal(expected, actual) {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: fmt.Sprintf("%s (expected)", name),
		ToFile:   fmt.Sprintf("%s (actual)", name),
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
