package fuser

import (
	"context"
	"element-scout/internal/entity"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSource struct {
	mu    sync.Mutex
	meta  *entity.AdvancedMetadata
	calls []string
}

func (s *stubSource) Fetch(_ context.Context, selector string) *entity.AdvancedMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, selector)
	return s.meta
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeSink struct {
	mu     sync.Mutex
	accept bool
	got    map[string]*entity.AdvancedMetadata
}

func newFakeSink() *fakeSink {
	return &fakeSink{accept: true, got: make(map[string]*entity.AdvancedMetadata)}
}

func (s *fakeSink) AttachMetadata(key string, meta *entity.AdvancedMetadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got[key] = meta
	return s.accept
}

func (s *fakeSink) metaFor(key string) *entity.AdvancedMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[key]
}

func (s *fakeSink) attachCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestEnrich(t *testing.T) {
	t.Run("delivers resolved metadata to the sink", func(t *testing.T) {
		src := &stubSource{meta: &entity.AdvancedMetadata{AriaRole: "button", Cursor: "pointer"}}
		sink := newFakeSink()
		f := New(src, sink, zap.NewNop())

		f.Enrich(context.Background(), "key-1", "button#a")
		f.Wait()

		meta := sink.metaFor("key-1")
		require.NotNil(t, meta)
		assert.Equal(t, "button", meta.AriaRole)
		assert.Equal(t, []string{"button#a"}, src.calls)
	})

	t.Run("missing result becomes an error indicator", func(t *testing.T) {
		src := &stubSource{meta: nil}
		sink := newFakeSink()
		f := New(src, sink, zap.NewNop())

		f.Enrich(context.Background(), "key-1", "button#a")
		f.Wait()

		meta := sink.metaFor("key-1")
		require.NotNil(t, meta)
		assert.True(t, meta.Failed())
	})

	t.Run("failed fetches still reach the sink", func(t *testing.T) {
		src := &stubSource{meta: &entity.AdvancedMetadata{FetchError: "node not found"}}
		sink := newFakeSink()
		f := New(src, sink, zap.NewNop())

		f.Enrich(context.Background(), "key-1", "button#a")
		f.Wait()

		meta := sink.metaFor("key-1")
		require.NotNil(t, meta)
		assert.Equal(t, "node not found", meta.FetchError)
	})

	t.Run("a rejecting sink does not disturb later fetches", func(t *testing.T) {
		src := &stubSource{meta: &entity.AdvancedMetadata{}}
		sink := newFakeSink()
		sink.accept = false
		f := New(src, sink, zap.NewNop())

		f.Enrich(context.Background(), "key-1", "button#a")
		f.Enrich(context.Background(), "key-2", "button#b")
		f.Wait()

		assert.Equal(t, 2, src.callCount())
		assert.Equal(t, 2, sink.attachCount())
	})

	t.Run("a cancelled context abandons the fetch", func(t *testing.T) {
		src := &stubSource{meta: &entity.AdvancedMetadata{}}
		sink := newFakeSink()
		f := New(src, sink, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		f.Enrich(ctx, "key-1", "button#a")
		f.Wait()

		assert.Equal(t, 0, src.callCount())
		assert.Equal(t, 0, sink.attachCount())
	})
}

type gatedSource struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	release chan struct{}
}

func (s *gatedSource) Fetch(_ context.Context, _ string) *entity.AdvancedMetadata {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	<-s.release

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return &entity.AdvancedMetadata{}
}

func (s *gatedSource) stats() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.maxSeen
}

func TestEnrichBoundsInFlightFetches(t *testing.T) {
	src := &gatedSource{release: make(chan struct{})}
	sink := newFakeSink()
	f := New(src, sink, zap.NewNop())

	const scheduled = 2 * maxInFlight
	for i := 0; i < scheduled; i++ {
		f.Enrich(context.Background(), "key", "button#a")
	}

	require.Eventually(t, func() bool {
		active, _ := src.stats()
		return active == maxInFlight
	}, 2*time.Second, 10*time.Millisecond, "the semaphore should admit exactly %d fetches", maxInFlight)

	close(src.release)
	f.Wait()

	_, maxSeen := src.stats()
	assert.Equal(t, maxInFlight, maxSeen)
	assert.Equal(t, 1, sink.attachCount(), "all fetches share one key")
}
