package mapping

import (
	"fmt"

	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// publicationDate picks the first present of published date, published
// year, date accepted and server publish date.
func publicationDate(src *source.Record) string {
	if d := src.Date(source.DatePublished); !d.IsZero() {
		return d.ISO8601()
	}
	if y := src.Year("PublishedYear"); y > 0 {
		return fmt.Sprintf("%04d", y)
	}
	if d := src.Date(source.DateAccepted); !d.IsZero() {
		return d.ISO8601()
	}
	return src.Date(source.DateServerPublished).ISO8601()
}

func completionDate(src *source.Record) string {
	if d := src.Date(source.DateCompleted); !d.IsZero() {
		return d.ISO8601()
	}
	if y := src.Year("CompletedYear"); y > 0 {
		return fmt.Sprintf("%04d", y)
	}
	return ""
}

func originInfo(mods *xmltree.Node, event string, changed mark) *xmltree.Node {
	return ensureElem(mods, xmltree.Elem(schema.Mods("originInfo")).Attr("eventType", event), changed)
}

// keyDate writes the record's key date. Only the publication event has one.
func keyDate(origin *xmltree.Node, element, date string, changed mark) {
	ensureText(origin, xmltree.Elem(schema.Mods(element)).
		Attr("encoding", "iso8601").
		Attr("keyDate", "yes"), date, changed)
}

func placeTerm(origin *xmltree.Node, place string, changed mark) {
	p := ensureElem(origin, xmltree.Elem(schema.Mods("place")), changed)
	ensureText(p, xmltree.Elem(schema.Mods("placeTerm")).Attr("type", "text"), place, changed)
}

// PublicationInfoMapper writes the publication and production events.
type PublicationInfoMapper struct{}

func (PublicationInfoMapper) Name() string { return "publication-info" }

func (PublicationInfoMapper) Map(src *source.Record, mods, _ *xmltree.Node, changes *Changes) error {
	changed := changes.ModsChanged

	date := publicationDate(src)
	publisher := normalize.SingleLine(src.Field("PublisherName"))
	place := normalize.SingleLine(src.Field("PublisherPlace"))
	edition := normalize.SingleLine(src.Field("Edition"))

	if date != "" || publisher != "" || place != "" || edition != "" {
		origin := originInfo(mods, "publication", changed)
		if date != "" {
			keyDate(origin, "dateIssued", date, changed)
		}
		if publisher != "" {
			ensureText(origin, xmltree.Elem(schema.Mods("publisher")), publisher, changed)
		}
		if place != "" {
			placeTerm(origin, place, changed)
		}
		if edition != "" {
			ensureText(origin, xmltree.Elem(schema.Mods("edition")), edition, changed)
		}
	}

	if created := completionDate(src); created != "" {
		origin := originInfo(mods, "production", changed)
		ensureText(origin, xmltree.Elem(schema.Mods("dateCreated")).Attr("encoding", "iso8601"), created, changed)
	}
	return nil
}

// DistributionInfoMapper writes the online distribution event: the server
// publish date and the configured distributor.
type DistributionInfoMapper struct {
	Publisher string
	Place     string
}

func (DistributionInfoMapper) Name() string { return "distribution-info" }

func (m DistributionInfoMapper) Map(src *source.Record, mods, _ *xmltree.Node, changes *Changes) error {
	changed := changes.ModsChanged

	date := src.Date(source.DateServerPublished).ISO8601()
	publisher := normalize.SingleLine(m.Publisher)
	if date == "" && publisher == "" {
		return nil
	}

	origin := originInfo(mods, "distribution", changed)
	if date != "" {
		ensureText(origin, xmltree.Elem(schema.Mods("dateIssued")).
			Attr("encoding", "iso8601").
			NoAttr("keyDate"), date, changed)
	}
	if publisher != "" {
		ensureText(origin, xmltree.Elem(schema.Mods("publisher")), publisher, changed)
	}
	if place := normalize.SingleLine(m.Place); place != "" && publisher != "" {
		placeTerm(origin, place, changed)
	}
	return nil
}
