package diff

import (
	"strings"
	"testing"
)

func TestUnifiedEqual(t *testing.T) {
	out, err := Unified("MODS", []byte("<a/>\n"), []byte("<a/>\n"), 0)
	if err != nil {
		t.Fatalf("Unified failed: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty diff, got %q", out)
	}
}

func TestUnifiedChanged(t *testing.T) {
	before := "<mods>\n  <title>Old</title>\n</mods>\n"
	after := "<mods>\n  <title>New</title>\n</mods>\n"

	out, err := Unified("MODS", []byte(before), []byte(after), 1)
	if err != nil {
		t.Fatalf("Unified failed: %v", err)
	}
	for _, want := range []string{
		"--- MODS (current)",
		"+++ MODS (mapped)",
		"-  <title>Old</title>",
		"+  <title>New</title>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("diff missing %q:\n%s", want, out)
		}
	}
}
