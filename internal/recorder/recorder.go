// Package recorder turns observed elements into ElementRecords. Two
// producers feed it: Serialize works on parsed document nodes, and
// FromPayload normalizes the raw payloads the in-page scripts emit.
// Both enforce the same visibility and truncation rules.
package recorder

import (
	"element-scout/internal/dom"
	"element-scout/internal/entity"
	"element-scout/internal/locator"
	"strings"
)

// maxTextLength bounds Text in code points. The in-page scripts trim
// earlier at a larger bound to keep transport payloads small.
const maxTextLength = 250

// Serialize builds a record from a document node. Non-element and
// detached nodes yield nil.
func Serialize(n dom.Node) *entity.ElementRecord {
	if n == nil || !n.Element() || !n.Attached() {
		return nil
	}

	attrs := normalizeAttributes(n.Attributes())
	rec := &entity.ElementRecord{
		Tag:               strings.ToLower(n.Tag()),
		ID:                n.ID(),
		Name:              n.Name(),
		ClassAttribute:    n.ClassAttr(),
		Role:              attrs["role"],
		AriaLabel:         attrs["aria-label"],
		Attributes:        attrs,
		DatasetAttributes: datasetOf(attrs),
		CSSSelector:       locator.BuildCSSPath(n),
		XPathSelector:     locator.BuildXPath(n),
		ShadowHostChain:   shadowChain(n),
	}

	text := n.Text()
	if strings.TrimSpace(text) == "" {
		text = attrs["value"]
	}
	rec.Text = Truncate(text)

	if box, ok := n.Box(); ok {
		rec.BoundingBox = &box
		rec.Visible = box.Width > 0 && box.Height > 0 && !styleHides(n)
	}
	return rec
}

// FromPayload builds a record from an in-page capture payload. Payloads
// describing detached nodes yield nil. The visibility verdict is
// re-checked against the bounding box so a record never claims to be
// visible without a positive box.
func FromPayload(payload map[string]any) *entity.ElementRecord {
	if payload == nil {
		return nil
	}
	if v, ok := payload["connected"].(bool); ok && !v {
		return nil
	}
	tag := strings.ToLower(getString(payload, "tag"))
	if tag == "" {
		return nil
	}

	attrs := normalizeAttributes(getStringMap(payload, "attributes"))
	chain := chainFromPayload(payload["chain"])
	rec := &entity.ElementRecord{
		Tag:               tag,
		ID:                getString(payload, "id"),
		Name:              getString(payload, "name"),
		ClassAttribute:    getString(payload, "className"),
		Text:              Truncate(getString(payload, "text")),
		Role:              getString(payload, "role"),
		AriaLabel:         getString(payload, "ariaLabel"),
		Attributes:        attrs,
		DatasetAttributes: datasetOf(attrs),
		CSSSelector:       locator.CSSPath(chain),
		XPathSelector:     locator.XPath(chain),
		ShadowHostChain:   getStringSlice(payload, "shadowHosts"),
		Visible:           getBool(payload, "visible"),
		CrossOriginFrame:  getBool(payload, "framed"),
	}

	if box, ok := boxFromPayload(payload["box"]); ok {
		rec.BoundingBox = &box
	}
	if rec.Visible && (rec.BoundingBox == nil || rec.BoundingBox.Width <= 0 || rec.BoundingBox.Height <= 0) {
		rec.Visible = false
	}
	return rec
}

// Truncate trims surrounding whitespace and caps the text at
// maxTextLength code points.
func Truncate(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxTextLength {
		return text
	}
	return string(runes[:maxTextLength])
}

func styleHides(n dom.Node) bool {
	if v, ok := n.Style("display"); ok && v == "none" {
		return true
	}
	if v, ok := n.Style("visibility"); ok && v == "hidden" {
		return true
	}
	if v, ok := n.Style("opacity"); ok && v == "0" {
		return true
	}
	return false
}

func shadowChain(n dom.Node) []string {
	var chain []string
	for host := n.ShadowHost(); host != nil; host = host.ShadowHost() {
		chain = append([]string{strings.ToLower(host.Tag())}, chain...)
	}
	return chain
}

func normalizeAttributes(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(in))
	for k, v := range in {
		attrs[strings.ToLower(k)] = v
	}
	return attrs
}

func datasetOf(attrs map[string]string) map[string]string {
	var ds map[string]string
	for k, v := range attrs {
		if strings.HasPrefix(k, "data-") {
			if ds == nil {
				ds = make(map[string]string)
			}
			ds[k] = v
		}
	}
	return ds
}

func chainFromPayload(v any) []locator.Step {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	steps := make([]locator.Step, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ord := int(getFloat(m, "ordinal"))
		if ord < 1 {
			ord = 1
		}
		steps = append(steps, locator.Step{
			Tag:     strings.ToLower(getString(m, "tag")),
			ID:      getString(m, "id"),
			Ordinal: ord,
		})
	}
	if len(steps) == 0 {
		return nil
	}
	return steps
}

func boxFromPayload(v any) (entity.BoundingBox, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return entity.BoundingBox{}, false
	}
	return entity.BoundingBox{
		X:      getFloat(m, "x"),
		Y:      getFloat(m, "y"),
		Width:  getFloat(m, "width"),
		Height: getFloat(m, "height"),
	}, true
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func getFloat(m map[string]any, key string) float64 {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
		if i, ok := v.(int); ok {
			return float64(i)
		}
	}
	return 0
}

func getStringMap(m map[string]any, key string) map[string]string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, item := range raw {
		if s, ok := item.(string); ok {
			out[k] = s
		}
	}
	return out
}

func getStringSlice(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
