package mapping

import (
	"strings"

	"github.com/slub/qucosa-migrate/internal/id"
	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

var (
	universityHierarchy = [3]string{"faculty", "institute", "chair"}
	sectionHierarchy    = [3]string{"section", "section", "section"}
)

// InstitutionMapper writes corporate names keyed by a token over the
// significant (first level) name and the lower levels, and the full name
// hierarchy as an extension block referencing the same token. Each unit
// thus owns its nodes; repeated entries for one unit only add roles.
type InstitutionMapper struct {
	Aliases map[string]string
}

func (InstitutionMapper) Name() string { return "institution" }

func (m InstitutionMapper) Map(src *source.Record, mods, _ *xmltree.Node, changes *Changes) error {
	changed := changes.ModsChanged
	docType := src.DocumentType()
	written := claims{}

	for _, org := range src.Organizations() {
		var levels [4]string
		for i, l := range org.Levels {
			levels[i] = normalize.SingleLine(l)
		}
		if levels[0] == "" {
			continue
		}
		significant := m.significantName(levels[0])
		token := id.Token(id.CorporationPrefix, significant, levels[1], levels[2], levels[3])

		name := ensureElem(mods, xmltree.Elem(schema.Mods("name")).
			Attr("type", "corporate").
			Attr("ID", token), changed)
		ensureText(name, xmltree.Elem(schema.Mods("namePart")), significant, changed)
		ensureRole(name, institutionRole(org, docType), changed)

		ext := ensureElem(mods, xmltree.Elem(schema.Mods("extension")), changed)
		corp := ensureElem(ext, xmltree.Elem(schema.Slub("corporation")).Attr("ref", token), changed)
		if !written.claim(corp, "unit") {
			continue
		}

		hierarchy := sectionHierarchy
		first := "institution"
		unitType := "other"
		if org.IsUniversity() {
			hierarchy = universityHierarchy
			first = "university"
			unitType = "university"
		}
		setAttr(corp, "type", unitType, changed)
		if place := normalize.SingleLine(org.Place); place != "" {
			setAttr(corp, "place", place, changed)
		}

		ensureText(corp, xmltree.Elem(schema.Slub(first)), levels[0], changed)
		for i, level := range levels[1:] {
			if level == "" {
				continue
			}
			ensureValue(corp, xmltree.Elem(schema.Slub(hierarchy[i])), level, changed)
		}
	}
	return nil
}

func (m InstitutionMapper) significantName(name string) string {
	if alias, ok := m.Aliases[name]; ok && alias != "" {
		return normalize.SingleLine(alias)
	}
	return name
}

// institutionRole selects the relator code from unit type and role.
// Editors are only distinguished for university units.
func institutionRole(org source.Organization, docType string) string {
	role := strings.ToLower(strings.TrimSpace(org.Role))
	publisher := role == "publisher"
	switch {
	case org.IsUniversity() && publisher:
		if docType == "paper" || isThesis(docType) {
			return "dgg"
		}
		return "pbl"
	case org.IsUniversity():
		if role == "editor" {
			return "edt"
		}
		return "ctb"
	case publisher:
		return "pbl"
	}
	return "ctb"
}
