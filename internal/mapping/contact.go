package mapping

import (
	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// ContactInfoMapper writes submitters as FOAF persons.
type ContactInfoMapper struct{}

func (ContactInfoMapper) Name() string { return "contact-info" }

func (ContactInfoMapper) Map(src *source.Record, _, slub *xmltree.Node, changes *Changes) error {
	changed := changes.SlubChanged
	written := claims{}
	for _, p := range src.Persons(source.RoleSubmitter) {
		fullName := normalize.SingleLine(p.FirstName + " " + p.LastName)
		personPred := xmltree.Elem(schema.Foaf("Person")).
			Has(xmltree.Elem(schema.Foaf("name")).WithText(fullName))

		submitter := ensureElem(slub, xmltree.Elem(schema.Slub("submitter")).Has(personPred), changed)
		person := xmltree.Find(submitter, personPred)

		if email := normalize.SingleLine(p.Email); email != "" && written.claim(person, "mbox") {
			ensureText(person, xmltree.Elem(schema.Foaf("mbox")), email, changed)
		}
		if phone := normalize.SingleLine(p.Phone); phone != "" && written.claim(person, "phone") {
			ensureText(person, xmltree.Elem(schema.Foaf("phone")), phone, changed)
		}
	}
	return nil
}
