package mapping

import (
	"github.com/slub/qucosa-migrate/internal/id"
	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// PersonMapper writes personal names keyed by a token over first name,
// last name and birth date. A person in several roles gets one name node
// with one role per relator code; its name parts come from the first
// entry that has them.
type PersonMapper struct{}

func (PersonMapper) Name() string { return "person" }

func (PersonMapper) Map(src *source.Record, mods, _ *xmltree.Node, changes *Changes) error {
	changed := changes.ModsChanged
	written := claims{}
	for _, role := range source.PersonRoles {
		code := personRoleCodes[role]
		for _, p := range src.Persons(role) {
			given := normalize.SingleLine(p.FirstName)
			family := normalize.SingleLine(p.LastName)
			birth := normalize.SingleLine(p.DateOfBirth)
			token := id.Token(id.PersonPrefix, given, family, birth)

			name := ensureElem(mods, xmltree.Elem(schema.Mods("name")).
				Attr("type", "personal").
				Attr("ID", token), changed)

			nameParts := []struct{ kind, value string }{
				{"given", given},
				{"family", family},
				{"termsOfAddress", normalize.SingleLine(p.AcademicTitle)},
				{"date", birth},
			}
			for _, part := range nameParts {
				if part.value == "" || !written.claim(name, part.kind) {
					continue
				}
				ensureText(name, xmltree.Elem(schema.Mods("namePart")).Attr("type", part.kind), part.value, changed)
			}
			ensureRole(name, code, changed)
		}
	}
	return nil
}

// ensureRole adds a marcrelator role term to a name node.
func ensureRole(name *xmltree.Node, code string, changed mark) {
	ensureElem(name, xmltree.Elem(schema.Mods("role")).
		Has(xmltree.Elem(schema.Mods("roleTerm")).
			Attr("type", "code").
			Attr("authority", "marcrelator").
			WithText(code)), changed)
}
