package render

import (
	"strings"
	"testing"
)

func TestRenderTableAlignsUnicode(t *testing.T) {
	var buf strings.Builder
	r := NewRenderer(&buf, Options{Format: FormatTable})
	err := r.Render(nil, Table{
		Headers: []string{"ID", "NAME", "OUTCOME"},
		Rows: [][]string{
			{"1", "Müller", "migrated"},
			{"22", "Li", "failed"},
		},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	want := "ID  NAME    OUTCOME\n" +
		"--  ------  --------\n" +
		"1   Müller  migrated\n" +
		"22  Li      failed\n"
	if buf.String() != want {
		t.Errorf("unexpected table:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestRenderStructured(t *testing.T) {
	data := []map[string]string{{"id": "1"}}

	var js strings.Builder
	if err := NewRenderer(&js, Options{Format: FormatJSON, Porcelain: true}).Render(data, Table{}); err != nil {
		t.Fatalf("json: %v", err)
	}
	if js.String() != "[{\"id\":\"1\"}]\n" {
		t.Errorf("unexpected json %q", js.String())
	}

	var ym strings.Builder
	if err := NewRenderer(&ym, Options{Format: FormatYAML}).Render(data, Table{}); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if ym.String() != "- id: \"1\"\n" {
		t.Errorf("unexpected yaml %q", ym.String())
	}

	var tsv strings.Builder
	if err := NewRenderer(&tsv, Options{Format: FormatTSV}).Render(data, Table{Headers: []string{"ID"}, Rows: [][]string{{"1"}}}); err != nil {
		t.Fatalf("tsv: %v", err)
	}
	if tsv.String() != "ID\n1\n" {
		t.Errorf("unexpected tsv %q", tsv.String())
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "JSON": FormatJSON, " yaml ": FormatYAML, "tsv": FormatTSV} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}
