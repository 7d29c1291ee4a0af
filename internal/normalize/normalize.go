// Package normalize canonicalizes text before it is compared against or
// stored in a metadata tree.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SingleLine normalizes s to one line:
// - Unicode NFC
// - line breaks become spaces
// - runs of spaces and tabs collapse to one space
// - leading and trailing whitespace is removed
//
// SingleLine(SingleLine(s)) == SingleLine(s) for every s.
func SingleLine(s string) string {
	if s == "" {
		return ""
	}
	return collapse(norm.NFC.String(s), true)
}

// MultiLine is SingleLine applied per line, keeping line breaks. CRLF and CR
// are converted to LF and leading or trailing blank lines are dropped.
func MultiLine(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = collapse(line, false)
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

// Empty reports whether s normalizes to the empty string.
func Empty(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

func collapse(s string, foldNewlines bool) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if r == '\n' || r == '\r' {
			if !foldNewlines {
				b.WriteRune(r)
				continue
			}
			pending = true
			continue
		}
		if unicode.IsSpace(r) {
			pending = true
			continue
		}
		if pending && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pending = false
		b.WriteRune(r)
	}
	return b.String()
}
