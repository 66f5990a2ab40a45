// Package locator derives CSS and XPath selectors from an element's
// ancestor chain. Both selector forms come from the same chain, so a
// record's two locators always describe the same document position.
package locator

import (
	"element-scout/internal/dom"
	"fmt"
	"strings"
)

// Step is one level of an ancestor chain, root first. Ordinal is the
// 1-based position among preceding siblings sharing the same tag.
type Step struct {
	Tag     string
	ID      string
	Ordinal int
}

// Chain walks from the node to its root and returns the chain root
// first. Detached and non-element nodes yield an empty chain.
func Chain(n dom.Node) []Step {
	if n == nil || !n.Element() || !n.Attached() {
		return nil
	}

	var steps []Step
	for cur := n; cur != nil; cur = cur.Parent() {
		ord := 1
		for sib := cur.PrevSibling(); sib != nil; sib = sib.PrevSibling() {
			if sib.Element() && sib.Tag() == cur.Tag() {
				ord++
			}
		}
		steps = append(steps, Step{Tag: cur.Tag(), ID: cur.ID(), Ordinal: ord})
	}

	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}

// CSSPath renders the chain as a child-combinator CSS selector. The
// path starts at the deepest step carrying an id, rendered as tag#id;
// steps without an id disambiguate with :nth-of-type only when the
// ordinal exceeds one.
func CSSPath(chain []Step) string {
	if len(chain) == 0 {
		return ""
	}

	start := 0
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].ID != "" {
			start = i
			break
		}
	}

	parts := make([]string, 0, len(chain)-start)
	for i := start; i < len(chain); i++ {
		step := chain[i]
		part := step.Tag
		switch {
		case step.ID != "" && i == start:
			part += "#" + step.ID
		case step.Ordinal > 1:
			part += fmt.Sprintf(":nth-of-type(%d)", step.Ordinal)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " > ")
}

// XPath renders the chain as an absolute positional XPath. Every step
// carries its ordinal, so the path is unique in a static document.
func XPath(chain []Step) string {
	if len(chain) == 0 {
		return ""
	}

	var b strings.Builder
	for _, step := range chain {
		fmt.Fprintf(&b, "/%s[%d]", step.Tag, step.Ordinal)
	}
	return b.String()
}

// BuildCSSPath derives the CSS selector for a node.
func BuildCSSPath(n dom.Node) string {
	return CSSPath(Chain(n))
}

// BuildXPath derives the XPath selector for a node.
func BuildXPath(n dom.Node) string {
	return XPath(Chain(n))
}
