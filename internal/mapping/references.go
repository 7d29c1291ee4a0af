package mapping

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// ReferencesMapper writes series, host and preceding related items.
type ReferencesMapper struct{}

func (ReferencesMapper) Name() string { return "references" }

func (ReferencesMapper) Map(src *source.Record, mods, _ *xmltree.Node, changes *Changes) error {
	changed := changes.ModsChanged
	written := claims{}

	for _, t := range src.Titles(source.TitleParent) {
		title, volume := SplitParentTitle(normalize.SingleLine(t.Value))
		if title == "" {
			continue
		}
		item := ensureElem(mods, xmltree.Elem(schema.Mods("relatedItem")).
			Attr("type", "series").
			Has(xmltree.Elem(schema.Mods("titleInfo")).
				Has(xmltree.Elem(schema.Mods("title")).WithText(title))), changed)
		if volume != "" && written.claim(item, "volume") {
			partDetail(item, "volume", volume, changed)
		}
	}

	issue := normalize.SingleLine(src.Field("Issue"))
	for _, ref := range src.References() {
		itemType, ok := relatedItemTypes[strings.ToLower(ref.Relation)]
		if !ok {
			return fmt.Errorf("unknown reference relation %q", ref.Relation)
		}
		value := normalize.SingleLine(ref.Value)
		label := normalize.SingleLine(ref.Label)
		if value == "" && label == "" {
			continue
		}

		title, volume := label, ""
		if itemType == "series" {
			title, volume = SplitParentTitle(label)
		}

		p := xmltree.Elem(schema.Mods("relatedItem")).Attr("type", itemType)
		if value != "" {
			ident := xmltree.Elem(schema.Mods("identifier")).WithText(value)
			if kind := strings.ToLower(strings.TrimSpace(ref.Type)); kind != "" {
				ident = ident.Attr("type", kind)
			} else {
				ident = ident.NoAttr("type")
			}
			p = p.Has(ident)
		} else {
			p = p.Has(xmltree.Elem(schema.Mods("titleInfo")).
				Has(xmltree.Elem(schema.Mods("title")).WithText(title)))
		}
		item := ensureElem(mods, p, changed)

		if title != "" && written.claim(item, "title") {
			info := ensureElem(item, xmltree.Elem(schema.Mods("titleInfo")), changed)
			ensureText(info, xmltree.Elem(schema.Mods("title")), title, changed)
		}
		if order, ok := sortOrder(ref.SortOrder); ok && written.claim(item, "order") {
			part := ensureElem(item, xmltree.Elem(schema.Mods("part")), changed)
			setAttr(part, "order", strconv.Itoa(order), changed)
		}
		if volume != "" && written.claim(item, "volume") {
			partDetail(item, "volume", volume, changed)
		}
		if itemType == "host" && issue != "" {
			partDetail(item, "issue", issue, changed)
		}
	}
	return nil
}

func partDetail(item *xmltree.Node, kind, number string, changed mark) {
	part := ensureElem(item, xmltree.Elem(schema.Mods("part")), changed)
	detail := ensureElem(part, xmltree.Elem(schema.Mods("detail")).Attr("type", kind), changed)
	ensureText(detail, xmltree.Elem(schema.Mods("number")), number, changed)
}

// SplitParentTitle splits "Series ; Volume" on the last semicolon.
func SplitParentTitle(s string) (title, volume string) {
	i := strings.LastIndex(s, ";")
	if i < 0 {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
}

// sortOrder parses a sort order best effort; unparsable values are ignored.
func sortOrder(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
