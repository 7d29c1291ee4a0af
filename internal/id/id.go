package id

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
)

const (
	PersonPrefix      = "PERS_"
	CorporationPrefix = "CORP_"
	AttachmentPrefix  = "ATT-"
	PIDNamespace      = "qucosa"
)

var (
	tokenPattern      = regexp.MustCompile(`^[A-Z]+_[0-9a-f]{8}$`)
	attachmentPattern = regexp.MustCompile(`^ATT-\d+$`)
	pidPattern        = regexp.MustCompile(`^qucosa:\d+$`)
)

// Token derives a stable cross-reference identifier from name parts. Empty
// parts are skipped; the remaining parts are concatenated and an 8 digit
// hex FNV-1a hash of the concatenation is appended to prefix.
func Token(prefix string, parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(p)
	}
	h := fnv.New32a()
	h.Write([]byte(b.String()))
	return fmt.Sprintf("%s%08x", prefix, h.Sum32())
}

// IsToken checks if s has the shape of a generated token.
func IsToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// FormatAttachment formats the positional attachment reference for index i.
func FormatAttachment(i int) string {
	return AttachmentPrefix + strconv.Itoa(i)
}

// ParseAttachment parses an attachment reference back into its index.
func ParseAttachment(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if !attachmentPattern.MatchString(ref) {
		return 0, fmt.Errorf("invalid attachment reference: %s", ref)
	}
	return strconv.Atoi(ref[len(AttachmentPrefix):])
}

// FormatPID formats the repository object identifier for a source document id.
func FormatPID(documentID string) string {
	return PIDNamespace + ":" + strings.TrimSpace(documentID)
}

// ParsePID extracts the source document id from a repository identifier.
func ParsePID(pid string) (string, error) {
	pid = strings.TrimSpace(pid)
	if !pidPattern.MatchString(pid) {
		return "", fmt.Errorf("invalid pid format: %s", pid)
	}
	return pid[len(PIDNamespace)+1:], nil
}

// IsDocumentID checks if s is a plain numeric source document id.
func IsDocumentID(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
