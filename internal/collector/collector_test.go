package collector

import (
	"element-scout/internal/entity"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func record(css string, visible bool) *entity.ElementRecord {
	return &entity.ElementRecord{
		Tag:           "button",
		PageURL:       "https://example.com/login",
		CSSSelector:   css,
		XPathSelector: "/html[1]/body[1]/" + css,
		Visible:       visible,
	}
}

func TestAccept(t *testing.T) {
	t.Run("new records are retained, duplicates only counted", func(t *testing.T) {
		c := New()
		defer c.Close()

		assert.True(t, c.Accept(record("button#a", true)))
		assert.False(t, c.Accept(record("button#a", true)))

		snap := c.Snapshot()
		assert.Equal(t, 2, snap.TotalSeen)
		assert.Equal(t, 1, snap.UniqueCount())
	})

	t.Run("identity is case-folded", func(t *testing.T) {
		c := New()
		defer c.Close()

		require.True(t, c.Accept(record("button#LoginBtn", true)))
		assert.False(t, c.Accept(record("BUTTON#loginbtn", true)))
		assert.Equal(t, 1, c.Snapshot().UniqueCount())
	})

	t.Run("every identity component separates records", func(t *testing.T) {
		c := New()
		defer c.Close()

		base := record("button#a", true)
		require.True(t, c.Accept(base))

		variants := []*entity.ElementRecord{
			{Tag: base.Tag, PageURL: "https://example.com/other", CSSSelector: base.CSSSelector, XPathSelector: base.XPathSelector},
			{Tag: "a", PageURL: base.PageURL, CSSSelector: base.CSSSelector, XPathSelector: base.XPathSelector},
			{Tag: base.Tag, PageURL: base.PageURL, ID: "x", CSSSelector: base.CSSSelector, XPathSelector: base.XPathSelector},
			{Tag: base.Tag, PageURL: base.PageURL, Name: "x", CSSSelector: base.CSSSelector, XPathSelector: base.XPathSelector},
			{Tag: base.Tag, PageURL: base.PageURL, CSSSelector: "button#b", XPathSelector: base.XPathSelector},
			{Tag: base.Tag, PageURL: base.PageURL, CSSSelector: base.CSSSelector, XPathSelector: "/html[1]/other"},
		}
		for i, v := range variants {
			assert.True(t, c.Accept(v), "variant %d should be distinct", i)
		}
		assert.Equal(t, 1+len(variants), c.Snapshot().UniqueCount())
	})

	t.Run("text and styling do not separate records", func(t *testing.T) {
		c := New()
		defer c.Close()

		a := record("button#a", true)
		a.Text = "Login"
		b := record("button#a", false)
		b.Text = "Logout"

		require.True(t, c.Accept(a))
		assert.False(t, c.Accept(b))
	})

	t.Run("nil records are ignored entirely", func(t *testing.T) {
		c := New()
		defer c.Close()

		assert.False(t, c.Accept(nil))
		assert.Equal(t, 0, c.Snapshot().TotalSeen)
	})

	t.Run("first seen wins", func(t *testing.T) {
		c := New()
		defer c.Close()

		first := record("button#a", true)
		first.Text = "first"
		second := record("button#a", true)
		second.Text = "second"

		require.True(t, c.Accept(first))
		require.False(t, c.Accept(second))

		snap := c.Snapshot()
		require.Len(t, snap.Records, 1)
		assert.Equal(t, "first", snap.Records[0].Text)
	})
}

func TestSnapshotCounts(t *testing.T) {
	c := New()
	defer c.Close()

	require.True(t, c.Accept(record("button#a", true)))
	require.True(t, c.Accept(record("button#b", true)))
	require.True(t, c.Accept(record("button#c", false)))

	snap := c.Snapshot()
	assert.Equal(t, 3, snap.TotalSeen)
	assert.Equal(t, 2, snap.VisibleCount)
	assert.Equal(t, 1, snap.HiddenCount)

	t.Run("records keep acceptance order", func(t *testing.T) {
		assert.Equal(t, "button#a", snap.Records[0].CSSSelector)
		assert.Equal(t, "button#b", snap.Records[1].CSSSelector)
		assert.Equal(t, "button#c", snap.Records[2].CSSSelector)
	})
}

func TestAttachMetadata(t *testing.T) {
	t.Run("attaches to the retained record", func(t *testing.T) {
		c := New()
		defer c.Close()

		rec := record("button#a", true)
		require.True(t, c.Accept(rec))

		meta := &entity.AdvancedMetadata{AriaRole: "button", Listeners: []string{"click"}}
		assert.True(t, c.AttachMetadata(IdentityKey(rec), meta))

		snap := c.Snapshot()
		require.NotNil(t, snap.Records[0].AdvancedMetadata)
		assert.Equal(t, "button", snap.Records[0].AdvancedMetadata.AriaRole)
	})

	t.Run("unknown keys and nil metadata are rejected", func(t *testing.T) {
		c := New()
		defer c.Close()

		assert.False(t, c.AttachMetadata("no-such-key", &entity.AdvancedMetadata{}))
		rec := record("button#a", true)
		require.True(t, c.Accept(rec))
		assert.False(t, c.AttachMetadata(IdentityKey(rec), nil))
	})
}

func TestClose(t *testing.T) {
	t.Run("returns the final snapshot and rejects everything after", func(t *testing.T) {
		c := New()
		rec := record("button#a", true)
		require.True(t, c.Accept(rec))

		final := c.Close()
		assert.Equal(t, 1, final.UniqueCount())

		assert.False(t, c.Accept(record("button#b", true)))
		assert.False(t, c.AttachMetadata(IdentityKey(rec), &entity.AdvancedMetadata{}))
		assert.Equal(t, final, c.Snapshot())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		c := New()
		require.True(t, c.Accept(record("button#a", true)))

		first := c.Close()
		second := c.Close()
		assert.Equal(t, first, second)
	})
}

func TestConcurrentProducers(t *testing.T) {
	c := New()

	const producers = 10
	const perProducer = 100
	const distinct = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				c.Accept(record(fmt.Sprintf("button#el%d", i%distinct), true))
			}
		}()
	}
	wg.Wait()

	snap := c.Close()
	assert.Equal(t, producers*perProducer, snap.TotalSeen)
	assert.Equal(t, distinct, snap.UniqueCount())
}

func TestIdentityKey(t *testing.T) {
	rec := record("button#A", true)
	key := IdentityKey(rec)

	assert.Equal(t, key, IdentityKey(record("BUTTON#a", true)), "key is case-folded")
	assert.Contains(t, key, "https://example.com/login")
}
