package id

import (
	"testing"
)

func TestToken(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		parts  []string
		want   string
	}{
		{
			name:   "person with missing birth date",
			prefix: PersonPrefix,
			parts:  []string{"Hans", "Mustermann", ""},
			want:   "PERS_56bca38d",
		},
		{
			name:   "empty parts are skipped",
			prefix: PersonPrefix,
			parts:  []string{"", "Hans", "", "Mustermann"},
			want:   "PERS_56bca38d",
		},
		{
			name:   "no parts",
			prefix: CorporationPrefix,
			parts:  nil,
			want:   "CORP_811c9dc5",
		},
		{
			name:   "corporation",
			prefix: CorporationPrefix,
			parts:  []string{"Technische Universität Dresden"},
			want:   "CORP_58796d54",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Token(tt.prefix, tt.parts...)
			if got != tt.want {
				t.Errorf("Token(%q, %q) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
			}
			if again := Token(tt.prefix, tt.parts...); again != got {
				t.Errorf("Token is not stable: %q then %q", got, again)
			}
			if !IsToken(got) {
				t.Errorf("IsToken(%q) = false", got)
			}
		})
	}
}

func TestTokenDistinguishesNames(t *testing.T) {
	a := Token(PersonPrefix, "Hans", "Mustermann")
	b := Token(PersonPrefix, "Hanna", "Mustermann")
	if a == b {
		t.Errorf("expected different tokens, both %q", a)
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	for i := 0; i < 12; i++ {
		ref := FormatAttachment(i)
		got, err := ParseAttachment(ref)
		if err != nil {
			t.Fatalf("ParseAttachment(%q) error: %v", ref, err)
		}
		if got != i {
			t.Errorf("ParseAttachment(%q) = %d, want %d", ref, got, i)
		}
	}
	if FormatAttachment(0) != "ATT-0" {
		t.Errorf("FormatAttachment(0) = %q", FormatAttachment(0))
	}
}

func TestParseAttachmentInvalid(t *testing.T) {
	for _, ref := range []string{"", "ATT-", "ATT-x", "att-1", "ATT-00001x"} {
		if _, err := ParseAttachment(ref); err == nil {
			t.Errorf("ParseAttachment(%q) expected error", ref)
		}
	}
}

func TestPID(t *testing.T) {
	if got := FormatPID(" 4711 "); got != "qucosa:4711" {
		t.Errorf("FormatPID = %q", got)
	}
	docID, err := ParsePID("qucosa:4711")
	if err != nil || docID != "4711" {
		t.Errorf("ParsePID = %q, %v", docID, err)
	}
	if _, err := ParsePID("other:1"); err == nil {
		t.Error("expected error for foreign namespace")
	}
}

func TestIsDocumentID(t *testing.T) {
	cases := map[string]bool{"1": true, "004711": true, "": false, "12a": false, "-1": false}
	for in, want := range cases {
		if got := IsDocumentID(in); got != want {
			t.Errorf("IsDocumentID(%q) = %v, want %v", in, got, want)
		}
	}
}
