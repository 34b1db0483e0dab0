// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package xmltree decodes record XML into a generic element tree and offers
// the small path language the extractor navigates with.
package xmltree

import (
	"encoding/xml"
	"strings"
)

// Node is one XML element with its attributes and child elements. Any
// element shape decodes, so records with irregular or optional substructure
// never fail to load.
//
// Character data is kept in runs around the children: runs[i] precedes
// Children[i] and the last run follows the last child. Markup is not
// retained; InnerXML rebuilds it on demand.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr
	Children []*Node

	runs []string
}

func newNode(start xml.StartElement) *Node {
	return &Node{XMLName: start.Name, Attrs: start.Copy().Attr, runs: []string{""}}
}

// run returns the character data at position i, or "" when absent.
func (n *Node) run(i int) string {
	if i < len(n.runs) {
		return n.runs[i]
	}
	return ""
}

// Name returns the element's local name.
func (n *Node) Name() string {
	if n == nil {
		return ""
	}
	return n.XMLName.Local
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Text returns the element's direct character data. Nested element text is
// not included.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return strings.Join(n.runs, "")
}

// PlainText returns all character data inside the element, nested markup
// included, in document order with the tags removed.
func (n *Node) PlainText() string {
	if n == nil {
		return ""
	}
	if len(n.Children) == 0 {
		return n.Text()
	}

	var sb strings.Builder
	n.writePlain(&sb)
	return sb.String()
}

func (n *Node) writePlain(sb *strings.Builder) {
	sb.WriteString(n.run(0))
	for i, c := range n.Children {
		c.writePlain(sb)
		sb.WriteString(n.run(i + 1))
	}
}

// InnerXML returns the element's content as markup: character data escaped,
// nested elements written with their attributes. Comments and processing
// instructions are not preserved.
func (n *Node) InnerXML() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	n.writeInner(&sb)
	return sb.String()
}

func (n *Node) writeInner(sb *strings.Builder) {
	markupEscaper.WriteString(sb, n.run(0))
	for i, c := range n.Children {
		sb.WriteString("<" + c.XMLName.Local)
		for _, a := range c.Attrs {
			sb.WriteString(" " + a.Name.Local + `="`)
			attrEscaper.WriteString(sb, a.Value)
			sb.WriteString(`"`)
		}
		sb.WriteString(">")
		c.writeInner(sb)
		sb.WriteString("</" + c.XMLName.Local + ">")
		markupEscaper.WriteString(sb, n.run(i+1))
	}
}

var (
	markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;")
)

// Len returns the number of child elements.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}

// Find returns the first element matching path, or nil.
func (n *Node) Find(path string) *Node {
	found := n.FindAll(path)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// FindText returns the direct text of the first element matching path and
// whether such an element exists.
func (n *Node) FindText(path string) (string, bool) {
	el := n.Find(path)
	if el == nil {
		return "", false
	}
	return el.Text(), true
}

// FindAll returns every element matching path in document order.
//
// Paths are relative to n. Steps are separated by "/"; a "//" separator
// searches all descendants instead of direct children. "*" matches any
// element. A leading "./" is accepted and ignored, so ".//Journal",
// "./AuthorList" and "PubmedData/ArticleIdList" are all valid.
func (n *Node) FindAll(path string) []*Node {
	if n == nil {
		return nil
	}
	steps := parsePath(path)
	if len(steps) == 0 {
		return nil
	}

	current := []*Node{n}
	for _, st := range steps {
		var next []*Node
		seen := make(map[*Node]bool)
		for _, c := range current {
			var candidates []*Node
			if st.descendant {
				candidates = c.descendants()
			} else {
				candidates = c.Children
			}
			for _, cand := range candidates {
				if (st.name == "*" || cand.XMLName.Local == st.name) && !seen[cand] {
					seen[cand] = true
					next = append(next, cand)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// descendants returns all elements below n in document order.
func (n *Node) descendants() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(p *Node) {
		for _, c := range p.Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(n)
	return out
}

type step struct {
	name       string
	descendant bool
}

func parsePath(path string) []step {
	path = strings.TrimPrefix(path, ".")
	var steps []step
	descendant := false
	for i, part := range strings.Split(path, "/") {
		if part == "" {
			// A leading "/" after "." is the child separator; an empty part
			// anywhere else comes from "//".
			if i > 0 || strings.HasPrefix(path, "//") {
				descendant = true
			}
			continue
		}
		steps = append(steps, step{name: part, descendant: descendant})
		descendant = false
	}
	return steps
}
