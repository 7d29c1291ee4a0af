package mapping

import (
	"encoding/xml"

	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// mark is the change signal of the document a helper writes into.
type mark func()

// ensure finds the child of parent matching p or appends construct().
func ensure(parent *xmltree.Node, p xmltree.Predicate, construct func() *xmltree.Node, changed mark) *xmltree.Node {
	n, created := xmltree.FindOrCreate(parent, p, construct)
	if created {
		changed()
	}
	return n
}

// ensureElem finds or appends an empty child element matching p, built from
// the predicate's name and attribute constraints.
func ensureElem(parent *xmltree.Node, p xmltree.Predicate, changed mark) *xmltree.Node {
	return ensure(parent, p, func() *xmltree.Node { return build(p) }, changed)
}

// ensureText finds or appends the child matching p and sets its text.
// The text is not part of the match, so a changed source value updates the
// existing node instead of adding a sibling.
func ensureText(parent *xmltree.Node, p xmltree.Predicate, text string, changed mark) *xmltree.Node {
	n := ensureElem(parent, p, changed)
	if n.SetText(text) {
		changed()
	}
	return n
}

// ensureValue finds or appends a child keyed by its text as well.
func ensureValue(parent *xmltree.Node, p xmltree.Predicate, text string, changed mark) *xmltree.Node {
	return ensureElem(parent, p.WithText(text), changed)
}

// claims records which fields of a node were written during one mapper
// run. Source entries that resolve to the same node keep the first value
// instead of overwriting each other.
type claims map[*xmltree.Node]map[string]bool

// claim reports whether field of n is still unwritten, and marks it written.
func (c claims) claim(n *xmltree.Node, field string) bool {
	fields := c[n]
	if fields == nil {
		fields = map[string]bool{}
		c[n] = fields
	}
	if fields[field] {
		return false
	}
	fields[field] = true
	return true
}

// setAttr sets an unqualified attribute on n.
func setAttr(n *xmltree.Node, name, value string, changed mark) {
	if n.SetAttr(name, value) {
		changed()
	}
}

// build materializes a predicate into a node satisfying it.
func build(p xmltree.Predicate) *xmltree.Node {
	n := &xmltree.Node{Name: p.Name}
	for _, a := range p.Attrs {
		if a.Absent {
			continue
		}
		n.Attrs = append(n.Attrs, xml.Attr{Name: a.Name, Value: a.Value})
	}
	if p.HasText {
		n.Text = p.Text
	}
	for _, cp := range p.Children {
		n.Append(build(cp))
	}
	return n
}
