// Package idlist reads batch files of source document ids.
package idlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/slub/qucosa-migrate/internal/id"
)

// Load reads an id list file.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read id list: %w", err)
	}
	defer f.Close()

	ids, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ids, nil
}

// Read parses one id per line. Blank lines and lines starting with # are
// skipped; duplicates are dropped, the first occurrence keeps its place.
// A pid (qucosa:123) is accepted in place of the bare id.
func Read(r io.Reader) ([]string, error) {
	var ids []string
	seen := map[string]bool{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		docID, err := Normalize(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if seen[docID] {
			continue
		}
		seen[docID] = true
		ids = append(ids, docID)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Normalize turns a document id or pid into a bare document id.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if id.IsDocumentID(s) {
		return s, nil
	}
	if docID, err := id.ParsePID(s); err == nil {
		return docID, nil
	}
	return "", fmt.Errorf("invalid document id: %q", s)
}
