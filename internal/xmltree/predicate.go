package xmltree

import "encoding/xml"

// AttrMatch constrains one attribute of a candidate element.
type AttrMatch struct {
	Name   xml.Name
	Value  string
	Absent bool
}

// Predicate is a structural query over the direct children of a node: an
// element name, ordered attribute constraints, an optional text constraint
// and nested predicates that must each match at least one child.
//
// Predicates are values; the builder methods return modified copies.
type Predicate struct {
	Name     xml.Name
	Attrs    []AttrMatch
	Text     string
	HasText  bool
	Children []Predicate
}

// Elem starts a predicate matching elements named name.
func Elem(name xml.Name) Predicate {
	return Predicate{Name: name}
}

// Attr adds an unqualified attribute equality constraint.
func (p Predicate) Attr(local, value string) Predicate {
	return p.AttrNS("", local, value)
}

// AttrNS adds a namespaced attribute equality constraint.
func (p Predicate) AttrNS(space, local, value string) Predicate {
	q := p.copy()
	q.Attrs = append(q.Attrs, AttrMatch{Name: xml.Name{Space: space, Local: local}, Value: value})
	return q
}

// NoAttr requires the unqualified attribute to be absent.
func (p Predicate) NoAttr(local string) Predicate {
	q := p.copy()
	q.Attrs = append(q.Attrs, AttrMatch{Name: xml.Name{Local: local}, Absent: true})
	return q
}

// WithText requires the element text to equal text.
func (p Predicate) WithText(text string) Predicate {
	q := p.copy()
	q.Text = text
	q.HasText = true
	return q
}

// Has requires at least one child matching child.
func (p Predicate) Has(child Predicate) Predicate {
	q := p.copy()
	q.Children = append(q.Children, child)
	return q
}

func (p Predicate) copy() Predicate {
	q := p
	q.Attrs = append([]AttrMatch(nil), p.Attrs...)
	q.Children = append([]Predicate(nil), p.Children...)
	return q
}

// Matches evaluates the predicate against n itself.
func (p Predicate) Matches(n *Node) bool {
	if n == nil || n.Name != p.Name {
		return false
	}
	for _, m := range p.Attrs {
		if m.Absent {
			if n.hasAttrNS(m.Name.Space, m.Name.Local) {
				return false
			}
			continue
		}
		if !n.hasAttrNS(m.Name.Space, m.Name.Local) || n.AttrNS(m.Name.Space, m.Name.Local) != m.Value {
			return false
		}
	}
	if p.HasText && n.Text != p.Text {
		return false
	}
	for _, cp := range p.Children {
		if Find(n, cp) == nil {
			return false
		}
	}
	return true
}

// Find returns the first direct child of parent matching p, or nil.
func Find(parent *Node, p Predicate) *Node {
	if parent == nil {
		return nil
	}
	for _, c := range parent.Children {
		if p.Matches(c) {
			return c
		}
	}
	return nil
}

// FindAll returns every direct child of parent matching p.
func FindAll(parent *Node, p Predicate) []*Node {
	if parent == nil {
		return nil
	}
	var out []*Node
	for _, c := range parent.Children {
		if p.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// FindOrCreate returns the first child of parent matching p. If there is
// none, construct is called, its result appended to parent and returned
// with created set. The constructed node should itself satisfy p so that a
// repeated call resolves to it.
func FindOrCreate(parent *Node, p Predicate, construct func() *Node) (node *Node, created bool) {
	if n := Find(parent, p); n != nil {
		return n, false
	}
	n := construct()
	parent.Append(n)
	return n, true
}
