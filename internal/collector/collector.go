// Package collector owns the deduplicated set of accepted records. All
// mutation happens on one goroutine; producers and the metadata fuser
// talk to it through an operations channel, so identity checks, inserts
// and metadata attachment stay atomic with respect to snapshots without
// shared locks.
package collector

import (
	"element-scout/internal/entity"
	"strings"
	"sync"
)

type acceptOp struct {
	rec   *entity.ElementRecord
	reply chan bool
}

type attachOp struct {
	key   string
	meta  *entity.AdvancedMetadata
	reply chan bool
}

type snapshotOp struct {
	reply chan entity.CaptureSnapshot
}

type closeOp struct {
	reply chan entity.CaptureSnapshot
}

// Collector accepts records concurrently and retains the first record
// for each identity key. After Close it rejects everything, so late
// fusion results are discarded rather than applied.
type Collector struct {
	ops   chan any
	done  chan struct{}
	once  sync.Once
	final entity.CaptureSnapshot
}

// New starts the collector's writer goroutine.
func New() *Collector {
	c := &Collector{
		ops:  make(chan any),
		done: make(chan struct{}),
	}
	go c.run()
	return c
}

// Accept submits a record. It returns true when the record was new and
// retained, false for duplicates, nil records and closed collectors.
// Every non-nil submission counts toward TotalSeen.
func (c *Collector) Accept(rec *entity.ElementRecord) bool {
	if rec == nil {
		return false
	}
	reply := make(chan bool, 1)
	select {
	case c.ops <- acceptOp{rec: rec, reply: reply}:
		return <-reply
	case <-c.done:
		return false
	}
}

// AttachMetadata sets the metadata of the record retained under key. It
// returns false when the key is unknown or the collector is closed.
func (c *Collector) AttachMetadata(key string, meta *entity.AdvancedMetadata) bool {
	if meta == nil {
		return false
	}
	reply := make(chan bool, 1)
	select {
	case c.ops <- attachOp{key: key, meta: meta, reply: reply}:
		return <-reply
	case <-c.done:
		return false
	}
}

// Snapshot returns a point-in-time view of the accepted set. After
// Close it returns the final snapshot.
func (c *Collector) Snapshot() entity.CaptureSnapshot {
	reply := make(chan entity.CaptureSnapshot, 1)
	select {
	case c.ops <- snapshotOp{reply: reply}:
		return <-reply
	case <-c.done:
		return c.final
	}
}

// Close stops the writer goroutine and returns the final snapshot. The
// snapshot and the shutdown are one atomic step, so nothing can slip in
// between them. Close is idempotent.
func (c *Collector) Close() entity.CaptureSnapshot {
	c.once.Do(func() {
		reply := make(chan entity.CaptureSnapshot, 1)
		c.ops <- closeOp{reply: reply}
		c.final = <-reply
		close(c.done)
	})
	return c.final
}

func (c *Collector) run() {
	st := &state{index: make(map[string]int)}
	for raw := range c.ops {
		switch op := raw.(type) {
		case acceptOp:
			op.reply <- st.accept(op.rec)
		case attachOp:
			op.reply <- st.attach(op.key, op.meta)
		case snapshotOp:
			op.reply <- st.snapshot()
		case closeOp:
			op.reply <- st.snapshot()
			return
		}
	}
}

type state struct {
	records   []*entity.ElementRecord
	index     map[string]int
	totalSeen int
}

func (s *state) accept(rec *entity.ElementRecord) bool {
	s.totalSeen++
	key := IdentityKey(rec)
	if _, dup := s.index[key]; dup {
		return false
	}
	s.index[key] = len(s.records)
	s.records = append(s.records, rec)
	return true
}

func (s *state) attach(key string, meta *entity.AdvancedMetadata) bool {
	i, ok := s.index[key]
	if !ok {
		return false
	}
	s.records[i].AdvancedMetadata = meta
	return true
}

func (s *state) snapshot() entity.CaptureSnapshot {
	// Record structs are copied so a held snapshot never races with a
	// later metadata attachment.
	records := make([]*entity.ElementRecord, len(s.records))
	for i, rec := range s.records {
		cp := *rec
		records[i] = &cp
	}
	snap := entity.CaptureSnapshot{
		Records:   records,
		TotalSeen: s.totalSeen,
	}
	for _, rec := range records {
		if rec.Visible {
			snap.VisibleCount++
		} else {
			snap.HiddenCount++
		}
	}
	return snap
}

// IdentityKey derives the case-folded identity of a record from its
// page URL, tag, id, name and both selectors. Empty components still
// take their position, so records differing only in text or styling
// share a key.
func IdentityKey(rec *entity.ElementRecord) string {
	return strings.ToLower(strings.Join([]string{
		rec.PageURL,
		rec.Tag,
		rec.ID,
		rec.Name,
		rec.CSSSelector,
		rec.XPathSelector,
	}, "\n"))
}
