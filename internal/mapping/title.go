package mapping

import (
	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// TitleMapper writes one titleInfo block per language and role. The main
// title in the document language is primary, other main titles are
// translated. Without a match the first main title becomes primary.
type TitleMapper struct{}

func (TitleMapper) Name() string { return "title" }

func (TitleMapper) Map(src *source.Record, mods, _ *xmltree.Node, changes *Changes) error {
	changed := changes.ModsChanged
	docLang := languageAttr(src.FirstLanguage())

	mains := src.Titles(source.TitleMain)
	primary := ""
	for _, t := range mains {
		if titleLanguage(t, docLang) == docLang {
			primary = docLang
			break
		}
	}
	if primary == "" && len(mains) > 0 {
		primary = titleLanguage(mains[0], docLang)
	}

	seen := map[string]bool{}
	for _, t := range mains {
		lang := titleLanguage(t, docLang)
		if seen[lang] {
			continue
		}
		seen[lang] = true
		block := mainTitleBlock(mods, lang, lang == primary, changed)
		ensureText(block, xmltree.Elem(schema.Mods("title")), normalize.SingleLine(t.Value), changed)
	}

	seen = map[string]bool{}
	for _, t := range src.Titles(source.TitleSub) {
		lang := titleLanguage(t, docLang)
		if seen[lang] {
			continue
		}
		seen[lang] = true
		block := mainTitleBlock(mods, lang, lang == primary, changed)
		ensureText(block, xmltree.Elem(schema.Mods("subTitle")), normalize.SingleLine(t.Value), changed)
	}

	for _, t := range src.Titles(source.TitleAlternative) {
		lang := titleLanguage(t, docLang)
		p := withLang(xmltree.Elem(schema.Mods("titleInfo")), lang).
			Attr("type", "alternative").
			Has(xmltree.Elem(schema.Mods("title")).WithText(normalize.SingleLine(t.Value)))
		ensureElem(mods, p, changed)
	}
	return nil
}

func mainTitleBlock(mods *xmltree.Node, lang string, primary bool, changed mark) *xmltree.Node {
	p := withLang(xmltree.Elem(schema.Mods("titleInfo")), lang)
	if primary {
		p = p.Attr("usage", "primary")
	} else {
		p = p.Attr("type", "translated")
	}
	return ensureElem(mods, p, changed)
}

func titleLanguage(t source.Title, fallback string) string {
	if t.Language == "" {
		return fallback
	}
	return languageAttr(t.Language)
}

// withLang constrains lang, or requires it absent when unknown.
func withLang(p xmltree.Predicate, lang string) xmltree.Predicate {
	if lang == "" {
		return p.NoAttr("lang")
	}
	return p.Attr("lang", lang)
}
