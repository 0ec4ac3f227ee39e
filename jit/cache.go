package jit

import (
	"github.com/google/btree"
)

// CacheStats counts trace cache activity.
type CacheStats struct {
	Lookups       uint64
	Hits          uint64
	Inserts       uint64
	Invalidations uint64
	Flushes       uint64
}

// Misses returns the number of lookups that found nothing.
func (s CacheStats) Misses() uint64 {
	return s.Lookups - s.Hits
}

// TraceCache maps entry pcs to compiled traces. An ordered index over the
// entries supports dropping every trace built from a range of guest
// addresses.
type TraceCache struct {
	byPC    map[uint64]*CompiledTrace
	index   *btree.BTreeG[*CompiledTrace]
	maxSpan uint64
	stats   CacheStats
}

func byEntry(a, b *CompiledTrace) bool {
	return a.Entry() < b.Entry()
}

// NewTraceCache creates an empty cache.
func NewTraceCache() *TraceCache {
	return &TraceCache{
		byPC:  make(map[uint64]*CompiledTrace),
		index: btree.NewG(8, byEntry),
	}
}

// Lookup returns the trace entered at pc.
func (c *TraceCache) Lookup(pc uint64) (*CompiledTrace, bool) {
	c.stats.Lookups++
	t, ok := c.byPC[pc]
	if ok {
		c.stats.Hits++
	}
	return t, ok
}

// Contains reports whether a trace is entered at pc without counting a
// lookup.
func (c *TraceCache) Contains(pc uint64) bool {
	_, ok := c.byPC[pc]
	return ok
}

// Insert adds t. If a trace for the same entry already exists the cache
// keeps it and Insert returns the existing one and false.
func (c *TraceCache) Insert(t *CompiledTrace) (*CompiledTrace, bool) {
	if old, ok := c.byPC[t.Entry()]; ok {
		return old, false
	}
	c.byPC[t.Entry()] = t
	c.index.ReplaceOrInsert(t)
	c.maxSpan = max(c.maxSpan, t.Trace.End()-t.Entry())
	c.stats.Inserts++
	return t, true
}

// InvalidateRange removes and releases every trace built from a byte in
// [lo, hi). It returns the number of traces removed.
func (c *TraceCache) InvalidateRange(lo, hi uint64) int {
	if lo >= hi {
		return 0
	}

	from := uint64(0)
	if lo > c.maxSpan {
		from = lo - c.maxSpan
	}

	var victims []*CompiledTrace
	c.index.AscendRange(c.pivot(from), c.pivot(hi), func(t *CompiledTrace) bool {
		if t.Trace.Overlaps(lo, hi) {
			victims = append(victims, t)
		}
		return true
	})

	for _, t := range victims {
		c.remove(t)
	}
	c.stats.Invalidations += uint64(len(victims))
	return len(victims)
}

// Flush removes and releases every trace.
func (c *TraceCache) Flush() {
	for _, t := range c.byPC {
		_ = t.Release()
	}
	c.byPC = make(map[uint64]*CompiledTrace)
	c.index.Clear(false)
	c.maxSpan = 0
	c.stats.Flushes++
}

// Len returns the number of cached traces.
func (c *TraceCache) Len() int {
	return len(c.byPC)
}

// Stats returns the activity counters.
func (c *TraceCache) Stats() CacheStats {
	return c.stats
}

// CodeSize returns the total native code bytes held.
func (c *TraceCache) CodeSize() int {
	n := 0
	for _, t := range c.byPC {
		n += t.CodeSize()
	}
	return n
}

// Ascend visits the cached traces in entry order until fn returns false.
func (c *TraceCache) Ascend(fn func(t *CompiledTrace) bool) {
	c.index.Ascend(fn)
}

func (c *TraceCache) remove(t *CompiledTrace) {
	delete(c.byPC, t.Entry())
	c.index.Delete(t)
	_ = t.Release()
}

func (c *TraceCache) pivot(pc uint64) *CompiledTrace {
	return &CompiledTrace{Trace: &Trace{Entry: pc}}
}
