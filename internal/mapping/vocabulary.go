package mapping

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/slub/qucosa-migrate/internal/source"
)

// MARC relator codes per person role.
var personRoleCodes = map[string]string{
	source.RoleAuthor:      "aut",
	source.RoleEditor:      "edt",
	source.RoleAdvisor:     "ths",
	source.RoleReferee:     "rev",
	source.RoleContributor: "ctb",
	source.RoleTranslator:  "trl",
	source.RoleOther:       "oth",
}

// documentTypes maps source document types to the institutional vocabulary.
var documentTypes = map[string]string{
	"article":                    "article",
	"bachelor_thesis":            "bachelor_thesis",
	"book":                       "book",
	"book_part":                  "book_part",
	"bookpart":                   "book_part",
	"conference_object":          "conference_object",
	"contribution_to_periodical": "contribution_to_periodical",
	"diploma_thesis":             "diploma_thesis",
	"doctoral_thesis":            "doctoral_thesis",
	"festschrift":                "festschrift",
	"habilitation_thesis":        "habilitation_thesis",
	"in_book":                    "book_part",
	"in_proceedings":             "conference_object",
	"issue":                      "issue",
	"lecture":                    "lecture",
	"magister_thesis":            "magister_thesis",
	"master_thesis":              "master_thesis",
	"multivolume_work":           "multivolume_work",
	"paper":                      "paper",
	"periodical":                 "periodical",
	"periodicalpart":             "periodical_part",
	"preprint":                   "preprint",
	"proceedings":                "proceedings",
	"report":                     "report",
	"research_paper":             "research_paper",
	"study_thesis":               "study_thesis",
	"workingpaper":               "research_paper",
}

// isThesis reports whether a document type is an academic thesis.
func isThesis(docType string) bool {
	return strings.HasSuffix(docType, "_thesis")
}

// relatedItemTypes maps reference relations to MODS relatedItem types.
var relatedItemTypes = map[string]string{
	"series":      "series",
	"journal":     "host",
	"book":        "host",
	"host":        "host",
	"predecessor": "preceding",
	"preceding":   "preceding",
}

// subjectAuthorities maps subject vocabularies to classification authorities.
var subjectAuthorities = map[string]string{
	"ddc":          "ddc",
	"rvk":          "rvk",
	"swd":          "sswd",
	"uncontrolled": "z",
}

// ISO 639-2 terminology codes whose bibliographic form differs.
var bibliographicCodes = map[string]string{
	"bod": "tib", "ces": "cze", "cym": "wel", "deu": "ger", "ell": "gre",
	"eus": "baq", "fas": "per", "fra": "fre", "hye": "arm", "isl": "ice",
	"kat": "geo", "mkd": "mac", "mri": "mao", "msa": "may", "mya": "bur",
	"nld": "dut", "ron": "rum", "slk": "slo", "sqi": "alb", "zho": "chi",
}

// LanguageCode encodes a language as an ISO 639-2/B code. Two letter codes,
// terminology codes and bibliographic codes are accepted.
func LanguageCode(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty language code")
	}
	for _, b := range bibliographicCodes {
		if b == s {
			return s, nil
		}
	}
	base, err := language.ParseBase(s)
	if err != nil {
		return "", fmt.Errorf("unknown language code %q", s)
	}
	code := base.ISO3()
	if b, ok := bibliographicCodes[code]; ok {
		return b, nil
	}
	return code, nil
}

// languageAttr encodes a language for a lang attribute, falling back to the
// normalized input when it is not a known code.
func languageAttr(s string) string {
	if code, err := LanguageCode(s); err == nil {
		return code
	}
	return strings.ToLower(strings.TrimSpace(s))
}
