// Package prompt renders captured elements into Markdown prompts for
// automation test authoring. Rendering is pure so the output writer can
// run it anywhere.
package prompt

import (
	"element-scout/internal/entity"
	"fmt"
	"strings"
	"time"
)

const maxTitleLength = 40

// Document renders the whole prompt file for a report: a session header
// followed by one numbered section per record.
func Document(report *entity.CaptureReport) string {
	var b strings.Builder

	b.WriteString("# Automation test prompts\n\n")
	fmt.Fprintf(&b, "- Target: %s\n", report.TargetURL)
	if report.PageTitle != "" {
		fmt.Fprintf(&b, "- Page title: %s\n", report.PageTitle)
	}
	fmt.Fprintf(&b, "- Session: %s\n", report.SessionID)
	fmt.Fprintf(&b, "- Captured: %s\n", report.StoppedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Elements: %d unique of %d seen (%d visible, %d hidden)\n\n",
		report.UniqueCount, report.TotalSeen, report.VisibleCount, report.HiddenCount)

	if len(report.Records) == 0 {
		b.WriteString("No elements were captured in this session.\n")

		return b.String()
	}

	for i, rec := range report.Records {
		b.WriteString(ForRecord(i+1, rec))
		b.WriteString("\n")
	}

	return b.String()
}

// ForRecord renders one numbered prompt section for a record.
func ForRecord(n int, rec *entity.ElementRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %d. %s\n\n", n, title(rec))
	fmt.Fprintf(&b, "%s\n\n", instruction(rec))
	fmt.Fprintf(&b, "- CSS selector: `%s`\n", rec.CSSSelector)
	fmt.Fprintf(&b, "- XPath fallback: `%s`\n", rec.XPathSelector)
	if rec.Text != "" {
		fmt.Fprintf(&b, "- Label text: %q\n", rec.Text)
	}
	if len(rec.ShadowHostChain) > 0 {
		fmt.Fprintf(&b, "- Shadow DOM: pierce hosts %s before resolving the selector\n",
			strings.Join(rec.ShadowHostChain, " > "))
	}
	if rec.CrossOriginFrame {
		b.WriteString("- Frame: the element lives in a child frame; switch frame context first\n")
	}
	if !rec.Visible {
		b.WriteString("- Visibility: hidden at capture time; make it visible before interacting\n")
	}
	if rec.AdvancedMetadata != nil && len(rec.AdvancedMetadata.Listeners) > 0 {
		fmt.Fprintf(&b, "- Listeners: %s\n", strings.Join(rec.AdvancedMetadata.Listeners, ", "))
	}

	return b.String()
}

func title(rec *entity.ElementRecord) string {
	t := rec.Tag
	if rec.ID != "" {
		t += "#" + rec.ID
	}
	if rec.Text != "" {
		label := []rune(rec.Text)
		if len(label) > maxTitleLength {
			label = label[:maxTitleLength]
		}
		t += fmt.Sprintf(" %q", string(label))
	}

	return t
}

func instruction(rec *entity.ElementRecord) string {
	switch classify(rec) {
	case kindLink:
		return "Write a test that clicks the link and asserts the expected navigation."
	case kindButton:
		return "Write a test that clicks the element and asserts the expected page reaction."
	case kindField:
		return "Write a test that types a representative value into the field and asserts it is accepted."
	case kindSelect:
		return "Write a test that selects an option and asserts the resulting state."
	case kindToggle:
		return "Write a test that toggles the control and asserts its checked state."
	default:
		return "Write a test that locates the element and asserts its visibility and content."
	}
}

type elementKind int

const (
	kindGeneric elementKind = iota
	kindLink
	kindButton
	kindField
	kindSelect
	kindToggle
)

func classify(rec *entity.ElementRecord) elementKind {
	switch rec.Tag {
	case "a":
		return kindLink
	case "button":
		return kindButton
	case "select":
		return kindSelect
	case "textarea":
		return kindField
	case "input":
		switch rec.Attributes["type"] {
		case "button", "submit", "reset", "image":
			return kindButton
		case "checkbox", "radio":
			return kindToggle
		default:
			return kindField
		}
	}

	switch rec.Role {
	case "link":
		return kindLink
	case "button", "tab", "menuitem":
		return kindButton
	case "checkbox", "radio", "switch":
		return kindToggle
	case "textbox", "searchbox", "combobox":
		return kindField
	}

	if rec.AdvancedMetadata != nil {
		for _, l := range rec.AdvancedMetadata.Listeners {
			if l == "click" {
				return kindButton
			}
		}
	}

	return kindGeneric
}
