// Package fuser resolves advanced metadata for accepted records without
// blocking the capture path. Fetches run on their own goroutines behind
// a weighted semaphore and deliver through the sink, so the aggregate's
// single writer stays the only mutator. A fetch never fails the record:
// failures come back as an error indicator on the metadata itself.
package fuser

import (
	"context"
	"element-scout/internal/entity"
	"element-scout/pkg/logg"
	"element-scout/pkg/tracing"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	fuserName  = "MetadataFuser"
	tracerName = "fuser"

	maxInFlight  = 4
	fetchTimeout = 10 * time.Second
)

// Source resolves metadata for a selector. It reports failure through
// the FetchError field, never through a panic or a missing result.
type Source interface {
	Fetch(ctx context.Context, selector string) *entity.AdvancedMetadata
}

// Sink receives resolved metadata keyed by record identity. It returns
// false when the result was discarded.
type Sink interface {
	AttachMetadata(key string, meta *entity.AdvancedMetadata) bool
}

type Fuser struct {
	source Source
	sink   Sink
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *zap.Logger
}

func New(source Source, sink Sink, logger *zap.Logger) *Fuser {
	return &Fuser{
		source: source,
		sink:   sink,
		sem:    semaphore.NewWeighted(maxInFlight),
		logger: logger.With(zap.String(logg.Layer, fuserName)),
	}
}

// Enrich schedules a metadata fetch for the record retained under key.
// It returns immediately; the result is attached through the sink when
// the fetch resolves, or discarded if the sink no longer accepts it.
func (f *Fuser) Enrich(ctx context.Context, key, selector string) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		if err := f.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer f.sem.Release(1)

		f.fuse(ctx, key, selector)
	}()
}

// Wait blocks until every scheduled fetch has resolved or been
// abandoned. Cancel the context passed to Enrich first to abandon
// in-flight fetches.
func (f *Fuser) Wait() {
	f.wg.Wait()
}

func (f *Fuser) fuse(ctx context.Context, key, selector string) {
	const op = "Fuse"
	logger := f.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, otel.Tracer(tracerName), logger, op,
		attribute.String("selector", selector),
	)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	meta := f.source.Fetch(fetchCtx, selector)
	if meta == nil {
		meta = &entity.AdvancedMetadata{FetchError: "metadata source returned no result"}
	}

	var fetchErr error
	if meta.Failed() {
		fetchErr = errors.New(meta.FetchError)
	}
	step.End(fetchErr)

	if !f.sink.AttachMetadata(key, meta) {
		logger.Debug("Fusion result discarded")
	}
}
