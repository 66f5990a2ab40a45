package dom

import (
	"element-scout/internal/entity"
	"element-scout/pkg/apperr"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Document wraps a parsed HTML tree and carries the layout and style
// facts a renderer would supply. Facts are set per node; nodes without
// facts report them as unknown.
type Document struct {
	root     *html.Node
	styles   map[*html.Node]map[string]string
	boxes    map[*html.Node]entity.BoundingBox
	hosts    map[*html.Node]*html.Node
	detached map[*html.Node]bool
}

// Parse reads an HTML document. The parser inserts the html, head and
// body wrappers the same way a browser does.
func Parse(r io.Reader) (*Document, error) {
	const op = "Parse"

	root, err := html.Parse(r)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaStage: apperr.StageCapture,
		})
	}

	return &Document{
		root:     root,
		styles:   make(map[*html.Node]map[string]string),
		boxes:    make(map[*html.Node]entity.BoundingBox),
		hosts:    make(map[*html.Node]*html.Node),
		detached: make(map[*html.Node]bool),
	}, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ByID returns the first element carrying the id, nil when absent.
func (d *Document) ByID(id string) Node {
	return d.find(func(n *html.Node) bool {
		for _, a := range n.Attr {
			if strings.EqualFold(a.Key, "id") && a.Val == id {
				return true
			}
		}
		return false
	})
}

// First returns the first element with the tag in document order.
func (d *Document) First(tag string) Node {
	tag = strings.ToLower(tag)
	return d.find(func(n *html.Node) bool {
		return strings.ToLower(n.Data) == tag
	})
}

// All returns every element with the tag in document order.
func (d *Document) All(tag string) []Node {
	tag = strings.ToLower(tag)
	var out []Node
	d.walk(func(n *html.Node) bool {
		if strings.ToLower(n.Data) == tag {
			out = append(out, &docNode{doc: d, n: n})
		}
		return true
	})
	return out
}

// Elements returns every element in document order.
func (d *Document) Elements() []Node {
	var out []Node
	d.walk(func(n *html.Node) bool {
		out = append(out, &docNode{doc: d, n: n})
		return true
	})
	return out
}

// SetStyle records a computed style property for the node.
func (d *Document) SetStyle(n Node, prop, value string) {
	h := unwrap(n)
	if h == nil {
		return
	}
	props, ok := d.styles[h]
	if !ok {
		props = make(map[string]string)
		d.styles[h] = props
	}
	props[prop] = value
}

// SetBox records the layout rectangle for the node.
func (d *Document) SetBox(n Node, box entity.BoundingBox) {
	if h := unwrap(n); h != nil {
		d.boxes[h] = box
	}
}

// SetShadowHost declares that the node roots a shadow subtree hosted by
// host. The node's ancestor chain stops here and ShadowHost resolution
// within the subtree reports the host.
func (d *Document) SetShadowHost(n, host Node) {
	hn, hh := unwrap(n), unwrap(host)
	if hn != nil && hh != nil {
		d.hosts[hn] = hh
	}
}

// Detach marks the node and its subtree as disconnected from the document.
func (d *Document) Detach(n Node) {
	if h := unwrap(n); h != nil {
		d.detached[h] = true
	}
}

func (d *Document) find(match func(*html.Node) bool) Node {
	var found Node
	d.walk(func(n *html.Node) bool {
		if match(n) {
			found = &docNode{doc: d, n: n}
			return false
		}
		return true
	})
	return found
}

func (d *Document) walk(visit func(*html.Node) bool) {
	var rec func(n *html.Node) bool
	rec = func(n *html.Node) bool {
		if n.Type == html.ElementNode && !visit(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !rec(c) {
				return false
			}
		}
		return true
	}
	rec(d.root)
}

func unwrap(n Node) *html.Node {
	if dn, ok := n.(*docNode); ok {
		return dn.n
	}
	return nil
}
