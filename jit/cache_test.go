package jit_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvjit/insts"
	"github.com/sarchlab/rvjit/jit"
)

// straightLine returns an uncompiled trace of n 4-byte ops at entry.
func straightLine(entry uint64, n int) *jit.CompiledTrace {
	t := &jit.Trace{Entry: entry, State: jit.Terminated}
	pc := entry
	for i := 0; i < n; i++ {
		inst := insts.Instruction{Op: insts.OpADDI, Format: insts.FormatI, Rd: 10, Rs1: 10, Imm: 1, Len: 4, PC: pc}
		t.Ops = append(t.Ops, jit.FusedOp{Kind: jit.FuseNone, Insts: []insts.Instruction{inst}})
		pc += 4
	}
	t.Term = jit.Terminator{Kind: jit.TermFallthrough, Next: pc}
	return &jit.CompiledTrace{Trace: t}
}

var _ = Describe("TraceCache", func() {
	var cache *jit.TraceCache

	BeforeEach(func() {
		cache = jit.NewTraceCache()
	})

	It("should count hits and misses", func() {
		t := straightLine(0x1000, 2)
		cache.Insert(t)

		got, ok := cache.Lookup(0x1000)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(t))
		_, ok = cache.Lookup(0x1004)
		Expect(ok).To(BeFalse())

		Expect(cache.Contains(0x1000)).To(BeTrue())
		Expect(cache.Stats().Lookups).To(Equal(uint64(2)))
		Expect(cache.Stats().Hits).To(Equal(uint64(1)))
		Expect(cache.Stats().Misses()).To(Equal(uint64(1)))
	})

	It("should keep the first trace for an entry", func() {
		first := straightLine(0x1000, 2)
		second := straightLine(0x1000, 3)

		got, ok := cache.Insert(first)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(first))

		got, ok = cache.Insert(second)
		Expect(ok).To(BeFalse())
		Expect(got).To(BeIdenticalTo(first))
		Expect(cache.Len()).To(Equal(1))
		Expect(cache.Stats().Inserts).To(Equal(uint64(1)))
	})

	It("should drop only traces overlapping a range", func() {
		cache.Insert(straightLine(0x1000, 4)) // [0x1000, 0x1010)
		cache.Insert(straightLine(0x1010, 4)) // [0x1010, 0x1020)
		cache.Insert(straightLine(0x2000, 1)) // [0x2000, 0x2004)

		Expect(cache.InvalidateRange(0x100c, 0x100d)).To(Equal(1))
		Expect(cache.Contains(0x1000)).To(BeFalse())
		Expect(cache.Contains(0x1010)).To(BeTrue())

		Expect(cache.InvalidateRange(0x1020, 0x2000)).To(BeZero())
		Expect(cache.InvalidateRange(0x1fff, 0x2001)).To(Equal(1))
		Expect(cache.InvalidateRange(0x1010, 0x1010)).To(BeZero())

		Expect(cache.Len()).To(Equal(1))
		Expect(cache.Stats().Invalidations).To(Equal(uint64(2)))
	})

	It("should find a long trace from a write near its end", func() {
		cache.Insert(straightLine(0x1000, 32)) // [0x1000, 0x1080)
		cache.Insert(straightLine(0x1080, 1))

		Expect(cache.InvalidateRange(0x107c, 0x1080)).To(Equal(1))
		Expect(cache.Contains(0x1000)).To(BeFalse())
		Expect(cache.Contains(0x1080)).To(BeTrue())
	})

	It("should visit traces in entry order", func() {
		for _, pc := range []uint64{0x3000, 0x1000, 0x2000} {
			cache.Insert(straightLine(pc, 1))
		}

		var entries []uint64
		cache.Ascend(func(t *jit.CompiledTrace) bool {
			entries = append(entries, t.Entry())
			return true
		})
		Expect(entries).To(Equal([]uint64{0x1000, 0x2000, 0x3000}))
	})

	It("should flush everything", func() {
		cache.Insert(straightLine(0x1000, 1))
		cache.Insert(straightLine(0x2000, 1))

		cache.Flush()

		Expect(cache.Len()).To(BeZero())
		Expect(cache.CodeSize()).To(BeZero())
		Expect(cache.Stats().Flushes).To(Equal(uint64(1)))
		Expect(cache.InvalidateRange(0, 0x10000)).To(BeZero())

		_, ok := cache.Insert(straightLine(0x1000, 1))
		Expect(ok).To(BeTrue())
	})
})
