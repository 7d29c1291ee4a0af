package xmltree

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// Namespaces maps namespace URIs to the prefixes used when encoding.
type Namespaces map[string]string

// Parse reads a single document and returns its root element.
// Whitespace-only character data between child elements is dropped.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	var (
		root  *Node
		stack []*Node
		texts []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				n.Attrs = append(n.Attrs, a)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("failed to parse xml: multiple root elements")
				}
				root = n
			} else {
				stack[len(stack)-1].Children = append(stack[len(stack)-1].Children, n)
			}
			stack = append(stack, n)
			texts = append(texts, &strings.Builder{})
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		case xml.EndElement:
			n := stack[len(stack)-1]
			text := texts[len(texts)-1].String()
			if len(n.Children) > 0 && strings.TrimSpace(text) == "" {
				text = ""
			}
			n.Text = text
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		}
	}
	if root == nil {
		return nil, fmt.Errorf("failed to parse xml: no root element")
	}
	return root, nil
}

// ParseBytes is Parse over a byte slice.
func ParseBytes(data []byte) (*Node, error) {
	return Parse(bytes.NewReader(data))
}

// Encode writes root as an indented document. Every namespace used in the
// tree is declared on the root element, using the prefixes in ns where known.
func Encode(w io.Writer, root *Node, ns Namespaces) error {
	if root == nil {
		return fmt.Errorf("cannot encode empty tree")
	}
	e := &encoder{w: bufio.NewWriter(w), prefixes: map[string]string{}}
	e.collect(root, ns)

	e.w.WriteString(xml.Header)
	e.element(root, 0, true)
	e.w.WriteString("\n")
	return e.w.Flush()
}

// Marshal encodes root into a byte slice.
func Marshal(root *Node, ns Namespaces) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, root, ns); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	w        *bufio.Writer
	prefixes map[string]string
	order    []string
}

func (e *encoder) collect(n *Node, ns Namespaces) {
	e.use(n.Name.Space, ns)
	for _, a := range n.Attrs {
		e.use(a.Name.Space, ns)
	}
	for _, c := range n.Children {
		e.collect(c, ns)
	}
}

func (e *encoder) use(uri string, ns Namespaces) {
	if uri == "" || uri == xmlNamespace {
		return
	}
	if _, ok := e.prefixes[uri]; ok {
		return
	}
	prefix, ok := ns[uri]
	if !ok || prefix == "" {
		prefix = fmt.Sprintf("ns%d", len(e.order)+1)
	}
	e.prefixes[uri] = prefix
	e.order = append(e.order, uri)
}

func (e *encoder) qname(name xml.Name) string {
	switch name.Space {
	case "":
		return name.Local
	case xmlNamespace:
		return "xml:" + name.Local
	}
	return e.prefixes[name.Space] + ":" + name.Local
}

func (e *encoder) element(n *Node, depth int, root bool) {
	indent := strings.Repeat("  ", depth)
	e.w.WriteString(indent)
	e.w.WriteString("<")
	e.w.WriteString(e.qname(n.Name))
	if root {
		for _, uri := range e.order {
			e.w.WriteString(" xmlns:")
			e.w.WriteString(e.prefixes[uri])
			e.w.WriteString(`="`)
			e.escape(uri)
			e.w.WriteString(`"`)
		}
	}
	for _, a := range n.Attrs {
		e.w.WriteString(" ")
		e.w.WriteString(e.qname(a.Name))
		e.w.WriteString(`="`)
		e.escape(a.Value)
		e.w.WriteString(`"`)
	}
	if len(n.Children) == 0 && n.Text == "" {
		e.w.WriteString("/>")
		return
	}
	e.w.WriteString(">")
	e.escape(n.Text)
	if len(n.Children) > 0 {
		for _, c := range n.Children {
			e.w.WriteString("\n")
			e.element(c, depth+1, false)
		}
		e.w.WriteString("\n")
		e.w.WriteString(indent)
	}
	e.w.WriteString("</")
	e.w.WriteString(e.qname(n.Name))
	e.w.WriteString(">")
}

func (e *encoder) escape(s string) {
	_ = xml.EscapeText(e.w, []byte(s))
}
