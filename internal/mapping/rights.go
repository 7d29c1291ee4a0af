package mapping

import (
	"github.com/slub/qucosa-migrate/internal/id"
	"github.com/slub/qucosa-migrate/internal/normalize"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// RightsMapper reconciles attachment descriptors against the source file
// list and writes the usage licence.
//
// Attachments are keyed by positional reference (ATT-0, ATT-1, ...). Any
// existing attachment whose reference is not in the current file list is
// removed.
type RightsMapper struct{}

func (RightsMapper) Name() string { return "rights" }

func (RightsMapper) Map(src *source.Record, mods, slub *xmltree.Node, changes *Changes) error {
	changed := changes.SlubChanged
	attachmentPred := xmltree.Elem(schema.Slub("attachment"))

	files := src.Files()
	rights := xmltree.Find(slub, xmltree.Elem(schema.Slub("rights")))
	if rights == nil && len(files) > 0 {
		rights = ensureElem(slub, xmltree.Elem(schema.Slub("rights")), changed)
	}

	if rights != nil {
		current := make(map[string]bool, len(files))
		for i, f := range files {
			ref := id.FormatAttachment(i)
			current[ref] = true

			att := ensureElem(rights, attachmentPred.Attr("ref", ref), changed)
			setAttr(att, "isDownloadable", yesNo(f.FrontdoorVisible), changed)
			setAttr(att, "isRedistributable", yesNo(f.OaiExport), changed)
			if label := normalize.SingleLine(f.Label); label != "" {
				setAttr(att, "label", label, changed)
			}
		}
		for _, att := range xmltree.FindAll(rights, attachmentPred) {
			if !current[att.Attr("ref")] {
				rights.Remove(att)
				changed()
			}
		}
	}

	written := claims{}
	for _, l := range src.Licences() {
		name := normalize.SingleLine(l.Name)
		url := normalize.SingleLine(l.URL)
		if name == "" && url == "" {
			continue
		}
		p := xmltree.Elem(schema.Mods("accessCondition")).Attr("type", "use and reproduction")
		if url != "" {
			p = p.AttrNS(schema.XlinkNS, "href", url)
			cond := ensureElem(mods, p, changes.ModsChanged)
			if written.claim(cond, "text") && cond.SetText(name) {
				changes.ModsChanged()
			}
			continue
		}
		ensureValue(mods, p, name, changes.ModsChanged)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
