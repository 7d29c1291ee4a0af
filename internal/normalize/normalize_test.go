package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"trim", "  Hans  ", "Hans"},
		{"tabs and runs", "Schriften\t\t  zur\tGeschichte", "Schriften zur Geschichte"},
		{"newlines", "line one\nline two\r\nline three", "line one line two line three"},
		{"quotes untouched", `Der "Titel"`, `Der "Titel"`},
		{"nfc", "Mu\u0308ller", "M\u00fcller"},
		{"only whitespace", " \t\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SingleLine(tt.input))
		})
	}
}

func TestMultiLine(t *testing.T) {
	in := "\n  First   line \r\n\tSecond\tline\n\n"
	assert.Equal(t, "First line\nSecond line", MultiLine(in))
}

func TestNormalizationIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"  a  b ",
		"x\n\ny",
		"Müller   Straße",
		" ́ leading combining",
		"tab\t\tend\t",
		"\r\n\r\n",
	}
	for _, s := range inputs {
		once := SingleLine(s)
		assert.Equal(t, once, SingleLine(once), "SingleLine(%q)", s)
		onceML := MultiLine(s)
		assert.Equal(t, onceML, MultiLine(onceML), "MultiLine(%q)", s)
	}
}

func TestEmpty(t *testing.T) {
	assert.True(t, Empty(" \n\t"))
	assert.False(t, Empty(" x "))
}
