// Package diff renders unified diffs between encoded documents.
package diff

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Unified returns a unified diff of before and after, or "" if they are
// equal. Context is the number of context lines; 0 selects 3.
func Unified(name string, before, after []byte, context int) (string, error) {
	if string(before) == string(after) {
		return "", nil
	}
	if context <= 0 {
		context = 3
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: name + " (current)",
		ToFile:   name + " (mapped)",
		Context:  context,
	})
}
