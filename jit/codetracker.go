package jit

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// TrackerStats counts code tracking activity.
type TrackerStats struct {
	Tracked   uint64
	Evictions uint64
	Writes    uint64 // guest stores that hit a tracked line
}

// CodeTracker records which guest code lines back compiled traces. It is a
// set-associative directory: when a set is full the least recently used
// line is evicted, and the caller must drop the traces built from it.
type CodeTracker struct {
	directory *akitacache.DirectoryImpl
	lineSize  uint64
	stats     TrackerStats
}

// NewCodeTracker creates a tracker with the given geometry. lineSize must
// be a power of two.
func NewCodeTracker(sets, ways, lineSize int) *CodeTracker {
	return &CodeTracker{
		directory: akitacache.NewDirectory(
			sets,
			ways,
			lineSize,
			akitacache.NewLRUVictimFinder(),
		),
		lineSize: uint64(lineSize),
	}
}

// LineSize returns the tracking granularity in bytes.
func (c *CodeTracker) LineSize() uint64 {
	return c.lineSize
}

func (c *CodeTracker) lineOf(addr uint64) uint64 {
	return addr &^ (c.lineSize - 1)
}

// Track marks every line of [lo, hi) as holding compiled code. It returns
// the lines evicted to make room, which are no longer tracked.
func (c *CodeTracker) Track(lo, hi uint64) []uint64 {
	var evicted []uint64
	for line := c.lineOf(lo); line < hi; line += c.lineSize {
		block := c.directory.Lookup(0, line)
		if block != nil && block.IsValid {
			c.directory.Visit(block)
			continue
		}

		victim := c.directory.FindVictim(line)
		if victim == nil {
			continue
		}
		if victim.IsValid {
			c.stats.Evictions++
			evicted = append(evicted, victim.Tag)
		}
		victim.Tag = line
		victim.IsValid = true
		victim.IsDirty = false
		c.directory.Visit(victim)
		c.stats.Tracked++
	}
	return evicted
}

// Covers reports whether every line of [lo, hi) is tracked.
func (c *CodeTracker) Covers(lo, hi uint64) bool {
	for line := c.lineOf(lo); line < hi; line += c.lineSize {
		block := c.directory.Lookup(0, line)
		if block == nil || !block.IsValid {
			return false
		}
	}
	return true
}

// Write reports the tracked lines a store of size bytes at addr touches
// and stops tracking them.
func (c *CodeTracker) Write(addr uint64, size int) []uint64 {
	var hit []uint64
	end := addr + uint64(size)
	for line := c.lineOf(addr); line < end; line += c.lineSize {
		block := c.directory.Lookup(0, line)
		if block == nil || !block.IsValid {
			continue
		}
		block.IsValid = false
		block.IsDirty = false
		hit = append(hit, line)
	}
	if len(hit) > 0 {
		c.stats.Writes++
	}
	return hit
}

// Reset stops tracking every line.
func (c *CodeTracker) Reset() {
	c.directory.Reset()
}

// Stats returns the activity counters.
func (c *CodeTracker) Stats() TrackerStats {
	return c.stats
}
