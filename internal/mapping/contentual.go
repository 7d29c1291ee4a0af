package mapping

import (
	"fmt"
	"strings"

	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// ContentualMapper writes abstracts, the table of contents, subject
// classifications and the document languages.
type ContentualMapper struct{}

func (ContentualMapper) Name() string { return "contentual" }

func (ContentualMapper) Map(src *source.Record, mods, _ *xmltree.Node, changes *Changes) error {
	changed := changes.ModsChanged
	docLang := languageAttr(src.FirstLanguage())

	seen := map[string]bool{}
	for _, a := range src.Abstracts() {
		lang := titleLanguage(a, docLang)
		if seen[lang] {
			continue
		}
		seen[lang] = true
		p := withLang(xmltree.Elem(schema.Mods("abstract")), lang).Attr("type", "summary")
		ensureText(mods, p, normalize.MultiLine(a.Value), changed)
	}

	if toc := src.TableOfContents(); len(toc) > 0 {
		ensureText(mods, xmltree.Elem(schema.Mods("tableOfContents")), normalize.MultiLine(strings.Join(toc, "\n")), changed)
	}

	for _, s := range src.Subjects() {
		authority, ok := subjectAuthorities[strings.ToLower(s.Type)]
		if !ok {
			return fmt.Errorf("unknown subject vocabulary %q", s.Type)
		}
		p := xmltree.Elem(schema.Mods("classification")).Attr("authority", authority)
		if authority == "z" {
			p = withLang(p, titleLanguage(source.Title{Language: s.Language}, docLang))
		}
		for _, term := range subjectTerms(s) {
			ensureValue(mods, p, term, changed)
		}
	}

	for _, l := range src.Languages() {
		code, err := LanguageCode(l)
		if err != nil {
			return err
		}
		ensureElem(mods, xmltree.Elem(schema.Mods("language")).
			Has(xmltree.Elem(schema.Mods("languageTerm")).
				Attr("authority", "iso639-2b").
				Attr("type", "code").
				WithText(code)), changed)
	}
	return nil
}

// subjectTerms splits comma separated keyword lists; controlled
// vocabularies keep their value as is.
func subjectTerms(s source.Subject) []string {
	if !strings.EqualFold(s.Type, "uncontrolled") && !strings.EqualFold(s.Type, "swd") {
		if v := normalize.SingleLine(s.Value); v != "" {
			return []string{v}
		}
		return nil
	}
	var terms []string
	for _, part := range strings.Split(s.Value, ",") {
		if v := normalize.SingleLine(part); v != "" {
			terms = append(terms, v)
		}
	}
	return terms
}
