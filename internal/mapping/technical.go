package mapping

import (
	"fmt"

	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// TechnicalInfoMapper writes the document type classification and the
// physical description.
type TechnicalInfoMapper struct{}

func (TechnicalInfoMapper) Name() string { return "technical-info" }

func (TechnicalInfoMapper) Map(src *source.Record, mods, slub *xmltree.Node, changes *Changes) error {
	docType := src.DocumentType()
	mapped, ok := documentTypes[docType]
	if !ok {
		return fmt.Errorf("unknown document type %q", docType)
	}
	ensureText(slub, xmltree.Elem(schema.Slub("documentType")), mapped, changes.SlubChanged)

	changed := changes.ModsChanged
	phys := ensureElem(mods, xmltree.Elem(schema.Mods("physicalDescription")), changed)
	ensureText(phys, xmltree.Elem(schema.Mods("digitalOrigin")), "born digital", changed)
	if pages := normalize.SingleLine(src.Field("PageNumber")); pages != "" {
		ensureText(phys, xmltree.Elem(schema.Mods("extent")).Attr("unit", "pages"), pages, changed)
	}
	return nil
}
