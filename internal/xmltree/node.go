// Package xmltree is a small mutable labeled tree used for both the source
// records and the generated metadata documents. Elements carry a namespaced
// name, ordered attributes, child elements and character data.
package xmltree

import (
	"encoding/xml"
	"strings"
)

// Node is one element of a tree.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*Node
	Text     string
}

// New creates an element with the given name and attribute pairs
// (local name, value, local name, value, ...).
func New(name xml.Name, attrs ...string) *Node {
	n := &Node{Name: name}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.SetAttr(attrs[i], attrs[i+1])
	}
	return n
}

// NewText creates a leaf element holding text.
func NewText(name xml.Name, text string, attrs ...string) *Node {
	n := New(name, attrs...)
	n.Text = text
	return n
}

// Attr returns the value of an unqualified attribute.
func (n *Node) Attr(local string) string {
	return n.AttrNS("", local)
}

// AttrNS returns the value of a namespaced attribute.
func (n *Node) AttrNS(space, local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// HasAttr reports whether the unqualified attribute is present.
func (n *Node) HasAttr(local string) bool {
	return n.hasAttrNS("", local)
}

func (n *Node) hasAttrNS(space, local string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return true
		}
	}
	return false
}

// SetAttr sets an unqualified attribute, returning true if the value changed.
func (n *Node) SetAttr(local, value string) bool {
	return n.SetAttrNS("", local, value)
}

// SetAttrNS sets a namespaced attribute, returning true if the value changed.
func (n *Node) SetAttrNS(space, local, value string) bool {
	for i, a := range n.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			if a.Value == value {
				return false
			}
			n.Attrs[i].Value = value
			return true
		}
	}
	n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Space: space, Local: local}, Value: value})
	return true
}

// RemoveAttr deletes an unqualified attribute, returning true if it existed.
func (n *Node) RemoveAttr(local string) bool {
	for i, a := range n.Attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return true
		}
	}
	return false
}

// SetText replaces the character data, returning true if it changed.
func (n *Node) SetText(text string) bool {
	if n.Text == text {
		return false
	}
	n.Text = text
	return true
}

// Append adds children at the end and returns n.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Remove detaches child from n. It reports whether child was found.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return true
		}
	}
	return false
}

// Child returns the first direct child with the given name, or nil.
func (n *Node) Child(name xml.Name) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given name.
func (n *Node) ChildrenNamed(name xml.Name) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ChildText returns the trimmed text of the first child with the given name.
func (n *Node) ChildText(name xml.Name) string {
	return strings.TrimSpace(n.Child(name).textOrEmpty())
}

func (n *Node) textOrEmpty() string {
	if n == nil {
		return ""
	}
	return n.Text
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Name: n.Name, Text: n.Text}
	if len(n.Attrs) > 0 {
		c.Attrs = append([]xml.Attr(nil), n.Attrs...)
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.Clone())
	}
	return c
}

// Equal reports whether two trees are structurally identical, including
// attribute and child order.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name || a.Text != b.Text || len(a.Attrs) != len(b.Attrs) || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Attrs {
		if a.Attrs[i] != b.Attrs[i] {
			return false
		}
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
