package mapping

import (
	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

var identifierTypes = []struct {
	kind         string
	modsType     string
	otherVersion bool
}{
	{source.IdentifierDoi, "doi", true},
	{source.IdentifierIsbn, "isbn", false},
	{source.IdentifierIssn, "issn", false},
	{source.IdentifierPpn, "swb-ppn", false},
	{source.IdentifierUrn, "qucosa:urn", false},
}

// IdentifierMapper writes typed identifiers. DOIs identify the published
// version and go into an otherVersion related item.
type IdentifierMapper struct{}

func (IdentifierMapper) Name() string { return "identifier" }

func (IdentifierMapper) Map(src *source.Record, mods, _ *xmltree.Node, changes *Changes) error {
	changed := changes.ModsChanged
	for _, t := range identifierTypes {
		for _, ident := range src.Identifiers(t.kind) {
			value := normalize.SingleLine(ident.Value)
			if value == "" {
				continue
			}
			p := xmltree.Elem(schema.Mods("identifier")).Attr("type", t.modsType).WithText(value)
			if t.otherVersion {
				ensureElem(mods, xmltree.Elem(schema.Mods("relatedItem")).
					Attr("type", "otherVersion").
					Has(p), changed)
				continue
			}
			ensureElem(mods, p, changed)
		}
	}
	return nil
}
