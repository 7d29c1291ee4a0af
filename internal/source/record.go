// Package source reads legacy document records. A record is an immutable
// labeled tree with typed accessors for each logical field group.
package source

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// Title kinds.
const (
	TitleMain        = "TitleMain"
	TitleSub         = "TitleSub"
	TitleAlternative = "TitleAlternative"
	TitleParent      = "TitleParent"
)

// Person roles, in the order the mappers visit them.
const (
	RoleAuthor      = "author"
	RoleEditor      = "editor"
	RoleAdvisor     = "advisor"
	RoleReferee     = "referee"
	RoleContributor = "contributor"
	RoleTranslator  = "translator"
	RoleOther       = "other"
	RoleSubmitter   = "submitter"
)

// PersonRoles lists the roles of creator-like persons. Submitters are
// contacts and handled separately.
var PersonRoles = []string{
	RoleAuthor, RoleEditor, RoleAdvisor, RoleReferee, RoleContributor, RoleTranslator, RoleOther,
}

// Identifier kinds.
const (
	IdentifierDoi  = "IdentifierDoi"
	IdentifierIsbn = "IdentifierIsbn"
	IdentifierIssn = "IdentifierIssn"
	IdentifierPpn  = "IdentifierPpn"
	IdentifierUrn  = "IdentifierUrn"
)

// Date fields.
const (
	DatePublished       = "PublishedDate"
	DateCompleted       = "CompletedDate"
	DateAccepted        = "DateAccepted"
	DateServerPublished = "ServerDatePublished"
)

// Title is a language tagged title value.
type Title struct {
	Language string
	Value    string
}

// Person is a natural person attached to the document in some role.
type Person struct {
	Role          string
	FirstName     string
	LastName      string
	AcademicTitle string
	DateOfBirth   string
	Email         string
	Phone         string
	SortOrder     string
}

// Organization is a hierarchical corporate body. Levels holds the first to
// fourth level names; missing levels are empty strings.
type Organization struct {
	Type    string
	Role    string
	Levels  [4]string
	Place   string
	Address string
}

// IsUniversity reports whether the organization is a university unit.
func (o Organization) IsUniversity() bool {
	return strings.EqualFold(strings.TrimSpace(o.Type), "university")
}

// Identifier is a typed identifier value.
type Identifier struct {
	Kind  string
	Value string
}

// Reference links the document to a related resource.
type Reference struct {
	Type      string
	Relation  string
	Value     string
	Label     string
	SortOrder string
}

// Subject is a classification or keyword entry from a vocabulary.
type Subject struct {
	Type     string
	Language string
	Value    string
}

// Note is a free text note with a visibility scope.
type Note struct {
	Scope   string
	Message string
}

// Licence names the usage licence of the document.
type Licence struct {
	Name string
	URL  string
}

// File describes one attached file.
type File struct {
	PathName         string
	Label            string
	MimeType         string
	Language         string
	FrontdoorVisible bool
	OaiExport        bool
}

// Date is a possibly partial calendar date. A zero Year means absent.
type Date struct {
	Year  int
	Month int
	Day   int
}

// IsZero reports whether the date is absent.
func (d Date) IsZero() bool {
	return d.Year == 0
}

// ISO8601 formats the date with the precision it carries.
func (d Date) ISO8601() string {
	switch {
	case d.Year == 0:
		return ""
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Record is one source document.
type Record struct {
	doc *xmltree.Node
}

// New wraps a parsed tree. The root may be the Opus envelope or the
// Opus_Document element itself.
func New(root *xmltree.Node) (*Record, error) {
	if root == nil {
		return nil, fmt.Errorf("empty source record")
	}
	doc := root
	if root.Name.Local == "Opus" {
		doc = root.Child(xml.Name{Local: "Opus_Document"})
	}
	if doc == nil || doc.Name.Local != "Opus_Document" {
		return nil, fmt.Errorf("source record has no Opus_Document element")
	}
	return &Record{doc: doc}, nil
}

// Parse reads a record from XML.
func Parse(r io.Reader) (*Record, error) {
	root, err := xmltree.Parse(r)
	if err != nil {
		return nil, err
	}
	return New(root)
}

// Tree exposes the underlying document element.
func (r *Record) Tree() *xmltree.Node {
	return r.doc
}

// Field returns a trimmed scalar attribute of the document.
func (r *Record) Field(name string) string {
	return strings.TrimSpace(r.doc.Attr(name))
}

// ID returns the document id.
func (r *Record) ID() string { return r.Field("Id") }

// DocumentType returns the document type key.
func (r *Record) DocumentType() string { return r.Field("Type") }

// Languages returns the declared languages in order.
func (r *Record) Languages() []string {
	return strings.FieldsFunc(r.Field("Language"), func(c rune) bool {
		return c == ',' || c == ' ' || c == ';'
	})
}

// FirstLanguage returns the first declared language, or "".
func (r *Record) FirstLanguage() string {
	if langs := r.Languages(); len(langs) > 0 {
		return langs[0]
	}
	return ""
}

func (r *Record) elements(local string) []*xmltree.Node {
	return r.doc.ChildrenNamed(xml.Name{Local: local})
}

func attr(n *xmltree.Node, name string) string {
	return strings.TrimSpace(n.Attr(name))
}

// Titles returns all titles of a kind, skipping empty values.
func (r *Record) Titles(kind string) []Title {
	var out []Title
	for _, n := range r.elements(kind) {
		if v := attr(n, "Value"); v != "" {
			out = append(out, Title{Language: attr(n, "Language"), Value: v})
		}
	}
	return out
}

// Abstracts returns the language tagged abstracts.
func (r *Record) Abstracts() []Title {
	return r.Titles("TitleAbstract")
}

// TableOfContents returns the table of contents entries.
func (r *Record) TableOfContents() []string {
	var out []string
	for _, n := range r.elements("TableOfContent") {
		if v := n.Attr("Value"); strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// Persons returns persons in one role.
func (r *Record) Persons(role string) []Person {
	var out []Person
	for _, n := range r.elements("Person" + capitalize(role)) {
		p := Person{
			Role:          role,
			FirstName:     attr(n, "FirstName"),
			LastName:      attr(n, "LastName"),
			AcademicTitle: attr(n, "AcademicTitle"),
			DateOfBirth:   attr(n, "DateOfBirth"),
			Email:         attr(n, "Email"),
			Phone:         attr(n, "Phone"),
			SortOrder:     attr(n, "SortOrder"),
		}
		if p.FirstName == "" && p.LastName == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Organizations returns all corporate bodies.
func (r *Record) Organizations() []Organization {
	var out []Organization
	for _, n := range r.elements("Organization") {
		o := Organization{
			Type:    attr(n, "Type"),
			Role:    attr(n, "Role"),
			Place:   attr(n, "Place"),
			Address: attr(n, "Address"),
		}
		for i, level := range []string{"FirstLevelName", "SecondLevelName", "ThirdLevelName", "FourthLevelName"} {
			o.Levels[i] = attr(n, level)
		}
		out = append(out, o)
	}
	return out
}

// Identifiers returns identifiers of a kind, skipping empty values.
func (r *Record) Identifiers(kind string) []Identifier {
	var out []Identifier
	for _, n := range r.elements(kind) {
		if v := attr(n, "Value"); v != "" {
			out = append(out, Identifier{Kind: kind, Value: v})
		}
	}
	return out
}

// References returns the related resource links.
func (r *Record) References() []Reference {
	var out []Reference
	for _, n := range r.elements("Reference") {
		out = append(out, Reference{
			Type:      attr(n, "Type"),
			Relation:  attr(n, "Relation"),
			Value:     attr(n, "Value"),
			Label:     attr(n, "Label"),
			SortOrder: attr(n, "SortOrder"),
		})
	}
	return out
}

// Subjects returns classification and keyword entries.
func (r *Record) Subjects() []Subject {
	var out []Subject
	for _, n := range r.elements("Subject") {
		if v := attr(n, "Value"); v != "" {
			out = append(out, Subject{Type: attr(n, "Type"), Language: attr(n, "Language"), Value: v})
		}
	}
	return out
}

// Notes returns the document notes.
func (r *Record) Notes() []Note {
	var out []Note
	for _, n := range r.elements("Note") {
		if msg := n.Attr("Message"); strings.TrimSpace(msg) != "" {
			out = append(out, Note{Scope: attr(n, "Scope"), Message: msg})
		}
	}
	return out
}

// Licences returns the usage licences.
func (r *Record) Licences() []Licence {
	var out []Licence
	for _, n := range r.elements("Licence") {
		out = append(out, Licence{Name: attr(n, "Name"), URL: attr(n, "Url")})
	}
	return out
}

// Files returns the attached files in document order.
func (r *Record) Files() []File {
	var out []File
	for _, n := range r.elements("File") {
		out = append(out, File{
			PathName:         attr(n, "PathName"),
			Label:            attr(n, "Label"),
			MimeType:         attr(n, "MimeType"),
			Language:         attr(n, "Language"),
			FrontdoorVisible: flag(attr(n, "FrontdoorVisible")),
			OaiExport:        flag(attr(n, "OaiExport")),
		})
	}
	return out
}

// Date returns a date field; absent or malformed dates are zero.
func (r *Record) Date(field string) Date {
	n := r.doc.Child(xml.Name{Local: field})
	if n == nil {
		return Date{}
	}
	d := Date{Year: number(attr(n, "Year")), Month: number(attr(n, "Month")), Day: number(attr(n, "Day"))}
	if d.Month < 0 || d.Month > 12 || d.Day < 0 || d.Day > 31 || d.Year < 0 {
		return Date{}
	}
	if d.Month == 0 {
		d.Day = 0
	}
	return d
}

// Year returns a scalar year field, or 0.
func (r *Record) Year(field string) int {
	y := number(r.Field(field))
	if y < 0 {
		return 0
	}
	return y
}

func number(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func flag(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
