package jit_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvjit/jit"
)

var _ = Describe("CodeTracker", func() {
	It("should cover every line of a range", func() {
		tracker := jit.NewCodeTracker(4, 2, 64)

		Expect(tracker.Track(0x1000, 0x10c0)).To(BeEmpty())
		Expect(tracker.Covers(0x1000, 0x10c0)).To(BeTrue())
		Expect(tracker.Covers(0x1010, 0x1014)).To(BeTrue())
		Expect(tracker.Covers(0x10c0, 0x10c4)).To(BeFalse())
		Expect(tracker.Stats().Tracked).To(Equal(uint64(3)))
	})

	It("should not track a line twice", func() {
		tracker := jit.NewCodeTracker(4, 2, 64)

		tracker.Track(0x1000, 0x1004)
		tracker.Track(0x1020, 0x1030)

		Expect(tracker.Stats().Tracked).To(Equal(uint64(1)))
	})

	It("should evict when a set is full", func() {
		tracker := jit.NewCodeTracker(1, 1, 64)

		Expect(tracker.Track(0x1000, 0x1004)).To(BeEmpty())
		Expect(tracker.Track(0x1040, 0x1044)).To(Equal([]uint64{0x1000}))

		Expect(tracker.Covers(0x1000, 0x1004)).To(BeFalse())
		Expect(tracker.Covers(0x1040, 0x1044)).To(BeTrue())
		Expect(tracker.Stats().Evictions).To(Equal(uint64(1)))
	})

	It("should evict the least recently used line", func() {
		tracker := jit.NewCodeTracker(1, 2, 64)

		tracker.Track(0x1000, 0x1004)
		tracker.Track(0x1040, 0x1044)
		tracker.Track(0x1000, 0x1004)

		Expect(tracker.Track(0x1080, 0x1084)).To(Equal([]uint64{0x1040}))
		Expect(tracker.Covers(0x1000, 0x1004)).To(BeTrue())
	})

	It("should report and forget lines that are written", func() {
		tracker := jit.NewCodeTracker(4, 2, 64)
		tracker.Track(0x1000, 0x1080)

		Expect(tracker.Write(0x2000, 8)).To(BeEmpty())
		Expect(tracker.Write(0x103c, 8)).To(Equal([]uint64{0x1000, 0x1040}))
		Expect(tracker.Covers(0x1000, 0x1004)).To(BeFalse())
		Expect(tracker.Write(0x1000, 4)).To(BeEmpty())
		Expect(tracker.Stats().Writes).To(Equal(uint64(1)))
	})

	It("should forget everything on reset", func() {
		tracker := jit.NewCodeTracker(4, 2, 64)
		tracker.Track(0x1000, 0x1004)

		tracker.Reset()

		Expect(tracker.Covers(0x1000, 0x1004)).To(BeFalse())
		Expect(tracker.Track(0x1000, 0x1004)).To(BeEmpty())
	})
})
