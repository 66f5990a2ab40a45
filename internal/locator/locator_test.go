package locator

import (
	"element-scout/internal/dom"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body>
<div id="container">
	<form>
		<button id="loginBtn">Login</button>
		<button>Cancel</button>
	</form>
</div>
<div>
	<a href="#1">one</a><a href="#2">two</a><a href="#3">three</a>
	<p>text</p><span>s</span><a href="#4">four</a>
</div>
</body></html>`

func parseFixture(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(fixture)
	require.NoError(t, err)
	return doc
}

func TestChain(t *testing.T) {
	doc := parseFixture(t)

	t.Run("chain is root first with per-level ordinals", func(t *testing.T) {
		got := Chain(doc.ByID("loginBtn"))
		want := []Step{
			{Tag: "html", Ordinal: 1},
			{Tag: "body", Ordinal: 1},
			{Tag: "div", ID: "container", Ordinal: 1},
			{Tag: "form", Ordinal: 1},
			{Tag: "button", ID: "loginBtn", Ordinal: 1},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("chain mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ordinal counts same-tag siblings only", func(t *testing.T) {
		anchors := doc.All("a")
		require.Len(t, anchors, 4)

		// The fourth anchor sits after a p and a span; those do not count.
		chain := Chain(anchors[3])
		last := chain[len(chain)-1]
		assert.Equal(t, Step{Tag: "a", Ordinal: 4}, last)
	})

	t.Run("nil and detached nodes yield an empty chain", func(t *testing.T) {
		assert.Nil(t, Chain(nil))

		doc := parseFixture(t)
		btn := doc.ByID("loginBtn")
		doc.Detach(doc.First("form"))
		assert.Nil(t, Chain(btn))
	})
}

func TestCSSPath(t *testing.T) {
	t.Run("own id short-circuits the whole path", func(t *testing.T) {
		doc := parseFixture(t)
		assert.Equal(t, "button#loginBtn", BuildCSSPath(doc.ByID("loginBtn")))
	})

	t.Run("path starts at the deepest ancestor id", func(t *testing.T) {
		doc := parseFixture(t)
		buttons := doc.All("button")
		require.Len(t, buttons, 2)
		assert.Equal(t, "div#container > form > button:nth-of-type(2)", BuildCSSPath(buttons[1]))
	})

	t.Run("no id anywhere renders the full chain", func(t *testing.T) {
		doc := parseFixture(t)
		anchors := doc.All("a")
		require.Len(t, anchors, 4)
		assert.Equal(t, "html > body > div:nth-of-type(2) > a:nth-of-type(3)", BuildCSSPath(anchors[2]))
	})

	t.Run("id wins over ordinal at the starting step", func(t *testing.T) {
		chain := []Step{{Tag: "button", ID: "loginBtn", Ordinal: 2}}
		assert.Equal(t, "button#loginBtn", CSSPath(chain))
	})

	t.Run("hand-built chain", func(t *testing.T) {
		chain := []Step{
			{Tag: "div", ID: "root", Ordinal: 1},
			{Tag: "ul", Ordinal: 2},
			{Tag: "li", Ordinal: 3},
		}
		assert.Equal(t, "div#root > ul:nth-of-type(2) > li:nth-of-type(3)", CSSPath(chain))
	})

	t.Run("empty chain renders empty", func(t *testing.T) {
		assert.Equal(t, "", CSSPath(nil))
	})
}

func TestXPath(t *testing.T) {
	t.Run("every level carries its ordinal", func(t *testing.T) {
		doc := parseFixture(t)
		anchors := doc.All("a")
		require.Len(t, anchors, 4)
		assert.Equal(t, "/html[1]/body[1]/div[2]/a[3]", BuildXPath(anchors[2]))
	})

	t.Run("an id never shortens the path", func(t *testing.T) {
		doc := parseFixture(t)
		assert.Equal(t, "/html[1]/body[1]/div[1]/form[1]/button[1]", BuildXPath(doc.ByID("loginBtn")))
	})

	t.Run("detached node renders empty", func(t *testing.T) {
		doc := parseFixture(t)
		btn := doc.ByID("loginBtn")
		doc.Detach(btn)
		assert.Equal(t, "", BuildXPath(btn))
	})
}

func TestXPathUniqueness(t *testing.T) {
	doc := parseFixture(t)

	seen := make(map[string]string)
	for _, n := range doc.Elements() {
		path := BuildXPath(n)
		require.NotEmpty(t, path)
		if prev, dup := seen[path]; dup {
			t.Fatalf("xpath %q produced for both %s and %s", path, prev, n.Tag())
		}
		seen[path] = n.Tag()
	}
}

func TestPayloadAndNodeChainsAgree(t *testing.T) {
	// A chain shipped by the in-page script and a chain derived from a
	// parsed node must render the same selectors for the same structure.
	doc := parseFixture(t)
	buttons := doc.All("button")
	require.Len(t, buttons, 2)

	nodeChain := Chain(buttons[1])
	shipped := []Step{
		{Tag: "html", Ordinal: 1},
		{Tag: "body", Ordinal: 1},
		{Tag: "div", ID: "container", Ordinal: 1},
		{Tag: "form", Ordinal: 1},
		{Tag: "button", Ordinal: 2},
	}

	assert.Equal(t, CSSPath(shipped), CSSPath(nodeChain))
	assert.Equal(t, XPath(shipped), XPath(nodeChain))
}
