// Package schema names the XML vocabularies written by the migration and
// provides the empty document templates.
package schema

import (
	"encoding/xml"

	"github.com/slub/qucosa-migrate/internal/xmltree"
)

const (
	ModsNS  = "http://www.loc.gov/mods/v3"
	SlubNS  = "http://slub-dresden.de/"
	FoafNS  = "http://xmlns.com/foaf/0.1/"
	XlinkNS = "http://www.w3.org/1999/xlink"
	MetsNS  = "http://www.loc.gov/METS/"
	XsiNS   = "http://www.w3.org/2001/XMLSchema-instance"
)

// Datastream ids of the two target documents.
const (
	DSMods = "MODS"
	DSSlub = "SLUB-INFO"
)

// Prefixes are the conventional prefixes used when encoding documents.
var Prefixes = xmltree.Namespaces{
	ModsNS:  "mods",
	SlubNS:  "slub",
	FoafNS:  "foaf",
	XlinkNS: "xlink",
	MetsNS:  "mets",
	XsiNS:   "xsi",
}

func Mods(local string) xml.Name { return xml.Name{Space: ModsNS, Local: local} }
func Slub(local string) xml.Name { return xml.Name{Space: SlubNS, Local: local} }
func Foaf(local string) xml.Name { return xml.Name{Space: FoafNS, Local: local} }
func Mets(local string) xml.Name { return xml.Name{Space: MetsNS, Local: local} }

// NewMods returns the empty bibliographic template.
func NewMods() *xmltree.Node {
	return xmltree.New(Mods("mods"))
}

// NewSlub returns the empty institutional extension template.
func NewSlub() *xmltree.Node {
	return xmltree.New(Slub("info"))
}

// Template returns the empty document for a datastream id, or nil.
func Template(dsid string) *xmltree.Node {
	switch dsid {
	case DSMods:
		return NewMods()
	case DSSlub:
		return NewSlub()
	}
	return nil
}
