// Package deposit assembles METS submission packages around the mapped
// metadata documents.
package deposit

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slub/qucosa-migrate/internal/id"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// ContentType is the media type of a submission package.
const ContentType = "application/vnd.qucosa.mets+xml"

const (
	dmdID      = "DMD_000"
	amdID      = "AMD_000"
	techID     = "TECH_000"
	digiprovID = "DIGIPROV_000"

	sourceSystem = "qucosa-opus"
)

// Input is the content of one package.
type Input struct {
	PID string
	// Mods and Slub are embedded when non-nil.
	Mods *xmltree.Node
	Slub *xmltree.Node
	// Initial adds header, provenance, file locations and structure map
	// for a first-time deposit.
	Initial bool
	Record  *source.Record
}

// Builder creates packages. The zero value is usable; Now and NewID
// default to the wall clock and random UUIDs.
type Builder struct {
	Agent string
	// FilesURL is the base of the source file locations; files resolve to
	// {FilesURL}/{document id}/{path name}.
	FilesURL string
	RunID    string
	Now      func() time.Time
	NewID    func() string
}

// Build encodes a package. It fails if nothing would be embedded.
func (b *Builder) Build(in Input) ([]byte, error) {
	root, err := b.Tree(in)
	if err != nil {
		return nil, err
	}
	return xmltree.Marshal(root, schema.Prefixes)
}

// Tree assembles the package tree without encoding it.
func (b *Builder) Tree(in Input) (*xmltree.Node, error) {
	if in.PID == "" {
		return nil, errors.New("package requires a pid")
	}
	if in.Initial && (in.Mods == nil || in.Slub == nil || in.Record == nil) {
		return nil, errors.New("initial package requires both documents and the source record")
	}
	if in.Mods == nil && in.Slub == nil {
		return nil, errors.New("package has no content")
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	newID := uuid.NewString
	if b.NewID != nil {
		newID = b.NewID
	}
	created := now().UTC().Format(time.RFC3339)

	mets := xmltree.New(schema.Mets("mets"), "OBJID", in.PID, "ID", newID())
	if in.Initial {
		mets.Append(b.header(created))
	}

	if in.Mods != nil {
		mets.Append(xmltree.New(schema.Mets("dmdSec"), "ID", dmdID).
			Append(wrap(in.Mods.Clone(), "MODS", "")))
	}

	if in.Slub != nil || in.Initial {
		amd := xmltree.New(schema.Mets("amdSec"), "ID", amdID)
		if in.Slub != nil {
			amd.Append(xmltree.New(schema.Mets("techMD"), "ID", techID).
				Append(wrap(in.Slub.Clone(), "OTHER", "SLUBINFO")))
		}
		if in.Initial {
			amd.Append(xmltree.New(schema.Mets("digiprovMD"), "ID", digiprovID).
				Append(wrap(b.provenance(in.Record, created), "OTHER", "PROVENANCE")))
		}
		mets.Append(amd)
	}

	if in.Initial {
		files := in.Record.Files()
		if len(files) > 0 {
			mets.Append(b.fileSec(in.Record.ID(), files))
		}
		mets.Append(structMap(in.Record, len(files)))
	}
	return mets, nil
}

func (b *Builder) header(created string) *xmltree.Node {
	agent := b.Agent
	if agent == "" {
		agent = "qucosa-migrate"
	}
	return xmltree.New(schema.Mets("metsHdr"), "CREATEDATE", created).
		Append(xmltree.New(schema.Mets("agent"), "ROLE", "CREATOR", "TYPE", "ORGANIZATION").
			Append(xmltree.NewText(schema.Mets("name"), agent)))
}

func (b *Builder) provenance(rec *source.Record, created string) *xmltree.Node {
	p := xmltree.New(schema.Slub("provenance"))
	p.Append(xmltree.NewText(schema.Slub("sourceSystem"), sourceSystem))
	p.Append(xmltree.NewText(schema.Slub("sourceId"), rec.ID()))
	if b.RunID != "" {
		p.Append(xmltree.NewText(schema.Slub("migrationRun"), b.RunID))
	}
	p.Append(xmltree.NewText(schema.Slub("migrated"), created))
	return p
}

func (b *Builder) fileSec(docID string, files []source.File) *xmltree.Node {
	base := strings.TrimRight(b.FilesURL, "/")
	grp := xmltree.New(schema.Mets("fileGrp"), "USE", "ORIGINAL")
	for i, f := range files {
		file := xmltree.New(schema.Mets("file"), "ID", id.FormatAttachment(i))
		if f.MimeType != "" {
			file.SetAttr("MIMETYPE", f.MimeType)
		}
		loc := xmltree.New(schema.Mets("FLocat"), "LOCTYPE", "URL")
		loc.SetAttrNS(schema.XlinkNS, "href", fileURL(base, docID, f.PathName))
		grp.Append(file.Append(loc))
	}
	return xmltree.New(schema.Mets("fileSec")).Append(grp)
}

func structMap(rec *source.Record, files int) *xmltree.Node {
	div := xmltree.New(schema.Mets("div"),
		"TYPE", rec.DocumentType(),
		"DMDID", dmdID,
		"ADMID", amdID)
	for i := 0; i < files; i++ {
		div.Append(xmltree.New(schema.Mets("fptr"), "FILEID", id.FormatAttachment(i)))
	}
	return xmltree.New(schema.Mets("structMap"), "TYPE", "LOGICAL").Append(div)
}

func wrap(doc *xmltree.Node, mdType, otherType string) *xmltree.Node {
	w := xmltree.New(schema.Mets("mdWrap"), "MDTYPE", mdType)
	if otherType != "" {
		w.SetAttr("OTHERMDTYPE", otherType)
	}
	return w.Append(xmltree.New(schema.Mets("xmlData")).Append(doc))
}

func fileURL(base, docID, pathName string) string {
	segments := strings.Split(pathName, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	rel := url.PathEscape(docID) + "/" + strings.Join(segments, "/")
	if base == "" {
		return rel
	}
	return fmt.Sprintf("%s/%s", base, rel)
}
