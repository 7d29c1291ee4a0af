package mapping

import (
	"fmt"
	"strings"

	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// AdministrativeInfoMapper writes notes, the source statement and the
// VG Wort open access key.
type AdministrativeInfoMapper struct{}

func (AdministrativeInfoMapper) Name() string { return "administrative-info" }

func (AdministrativeInfoMapper) Map(src *source.Record, mods, slub *xmltree.Node, changes *Changes) error {
	for _, note := range src.Notes() {
		scope := strings.ToLower(note.Scope)
		switch scope {
		case "":
			scope = "private"
		case "public", "private":
		default:
			return fmt.Errorf("unknown note scope %q", note.Scope)
		}
		msg := normalize.MultiLine(note.Message)
		ensureValue(slub, xmltree.Elem(schema.Slub("note")).Attr("type", scope), msg, changes.SlubChanged)
	}

	if statement := normalize.SingleLine(src.Field("Source")); statement != "" {
		ensureText(mods, xmltree.Elem(schema.Mods("note")).Attr("type", "source statement"), statement, changes.ModsChanged)
	}

	if key := normalize.SingleLine(src.Field("VgWortOpenKey")); key != "" {
		ensureText(slub, xmltree.Elem(schema.Slub("vgwortOpenKey")), key, changes.SlubChanged)
	}
	return nil
}
