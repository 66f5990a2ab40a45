// Package dom exposes a read-only element view over a parsed HTML tree.
// The locator and recorder packages consume the Node interface only, so
// live captures and parsed fixtures go through the same code paths.
package dom

import (
	"element-scout/internal/entity"
	"strings"

	"golang.org/x/net/html"
)

// Node is one document node. Implementations report layout and style
// facts when they are known; callers treat missing facts as unknown
// rather than as errors.
type Node interface {
	// Element reports whether the node is an element node.
	Element() bool
	// Attached reports whether the node is still connected to its document.
	Attached() bool
	Tag() string
	ID() string
	Name() string
	ClassAttr() string
	Attributes() map[string]string
	// Text is the rendered text of the node's subtree.
	Text() string
	// Style returns the computed value of one CSS property when known.
	Style(prop string) (string, bool)
	// Box returns the layout rectangle when known.
	Box() (entity.BoundingBox, bool)
	Parent() Node
	PrevSibling() Node
	// ShadowHost is the host element of the enclosing shadow root, nil
	// when the node lives in the regular document tree.
	ShadowHost() Node
}

type docNode struct {
	doc *Document
	n   *html.Node
}

func (d *docNode) Element() bool {
	return d.n.Type == html.ElementNode
}

func (d *docNode) Attached() bool {
	for n := d.n; n != nil; n = n.Parent {
		if d.doc.detached[n] {
			return false
		}
		if n == d.doc.root {
			return true
		}
	}
	return false
}

func (d *docNode) Tag() string {
	if d.n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(d.n.Data)
}

func (d *docNode) ID() string {
	return d.attr("id")
}

func (d *docNode) Name() string {
	return d.attr("name")
}

func (d *docNode) ClassAttr() string {
	return d.attr("class")
}

func (d *docNode) Attributes() map[string]string {
	if d.n.Type != html.ElementNode {
		return nil
	}
	attrs := make(map[string]string, len(d.n.Attr))
	for _, a := range d.n.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}
	return attrs
}

func (d *docNode) Text() string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "script", "style", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func (d *docNode) Style(prop string) (string, bool) {
	props, ok := d.doc.styles[d.n]
	if !ok {
		return "", false
	}
	v, ok := props[prop]
	return v, ok
}

func (d *docNode) Box() (entity.BoundingBox, bool) {
	box, ok := d.doc.boxes[d.n]
	return box, ok
}

func (d *docNode) Parent() Node {
	if _, ok := d.doc.hosts[d.n]; ok {
		// The node roots a shadow subtree; its ancestor chain ends here
		// the same way parentElement stops at a shadow root.
		return nil
	}
	p := d.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return &docNode{doc: d.doc, n: p}
}

func (d *docNode) PrevSibling() Node {
	s := d.n.PrevSibling
	if s == nil {
		return nil
	}
	return &docNode{doc: d.doc, n: s}
}

func (d *docNode) ShadowHost() Node {
	for n := d.n; n != nil; n = n.Parent {
		if host, ok := d.doc.hosts[n]; ok {
			return &docNode{doc: d.doc, n: host}
		}
	}
	return nil
}

func (d *docNode) attr(key string) string {
	if d.n.Type != html.ElementNode {
		return ""
	}
	for _, a := range d.n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
