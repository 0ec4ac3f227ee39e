package jit_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvjit/asm/rv"
	"github.com/sarchlab/rvjit/config"
	"github.com/sarchlab/rvjit/emu"
	"github.com/sarchlab/rvjit/insts"
	"github.com/sarchlab/rvjit/jit"
)

const a7 = uint8(17)

// countdown sums 3 ten times into a0 and stops at a breakpoint.
func countdown(b *rv.Builder) {
	b.ADDI(a0, zero, 0)
	b.ADDI(a1, zero, 10)
	b.Label("loop")
	b.ADDI(a0, a0, 3)
	b.ADDI(a1, a1, -1)
	b.Branch(insts.OpBNE, a1, zero, "loop")
	b.EBREAK()
}

// interpreted starts with a store, which keeps its trace off the native
// path on every host.
func interpreted(b *rv.Builder) {
	b.Store(insts.OpSD, a0, sp, 0)
	b.FENCEI()
	b.EBREAK()
}

var _ = Describe("RunLoop", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.Default()
	})

	It("should start out interpreting", func() {
		loop := jit.NewRunLoop(newEmulator(countdown), jit.WithConfig(cfg))

		Expect(loop.Mode()).To(Equal(jit.ModeInterpret))
		Expect(loop.ID().String()).ToNot(BeEmpty())

		result := loop.Run()
		Expect(result.Trap).To(Equal(emu.TrapBreakpoint))
		Expect(loop.Emulator().State().ReadReg(a0)).To(Equal(uint64(30)))
		Expect(loop.Stats().Native).To(BeZero())
		Expect(loop.Stats().Interpreted).To(Equal(uint64(32)))
	})

	It("should cache traces without native code", func() {
		loop := jit.NewRunLoop(newEmulator(interpreted), jit.WithConfig(cfg))

		ct, err := loop.Compile(base)
		Expect(err).ToNot(HaveOccurred())
		Expect(ct.Native()).To(BeFalse())
		Expect(ct.Trace.Term.Kind).To(Equal(jit.TermInterpret))
		Expect(loop.Cache().Contains(base)).To(BeTrue())
		Expect(loop.Mode()).To(Equal(jit.ModeInterpret))

		again, err := loop.Compile(base)
		Expect(err).ToNot(HaveOccurred())
		Expect(again).To(BeIdenticalTo(ct))
		Expect(loop.Stats().Compiles).To(Equal(uint64(1)))
	})

	It("should drop a trace when its code is written", func() {
		e := newEmulator(interpreted)
		loop := jit.NewRunLoop(e, jit.WithConfig(cfg))
		_, err := loop.Compile(base)
		Expect(err).ToNot(HaveOccurred())

		e.Memory().Write32(base+0x100, 0)
		Expect(loop.Cache().Len()).To(Equal(1))

		e.Memory().Write32(base, 0x00100073)
		Expect(loop.Cache().Len()).To(BeZero())
		Expect(loop.Stats().Invalidations).To(Equal(uint64(1)))
	})

	It("should keep traces when invalidation is off", func() {
		cfg.Invalidation = false
		e := newEmulator(interpreted)
		loop := jit.NewRunLoop(e, jit.WithConfig(cfg))
		_, err := loop.Compile(base)
		Expect(err).ToNot(HaveOccurred())

		e.Memory().Write32(base, 0x00100073)

		Expect(loop.Cache().Len()).To(Equal(1))
	})

	It("should flush on FENCE.I", func() {
		loop := jit.NewRunLoop(newEmulator(interpreted), jit.WithConfig(cfg))
		_, err := loop.Compile(base)
		Expect(err).ToNot(HaveOccurred())

		result := loop.Run()

		Expect(result.Trap).To(Equal(emu.TrapBreakpoint))
		Expect(loop.Cache().Len()).To(BeZero())
		Expect(loop.Stats().Invalidations).To(Equal(uint64(1)))
		Expect(loop.Stats().Interpreted).To(Equal(uint64(2)))
		Expect(loop.Cache().Stats().Hits).To(Equal(uint64(1)))
	})

	It("should drop traces whose tracking line is evicted", func() {
		cfg.CodeSets, cfg.CodeWays = 1, 1
		loop := jit.NewRunLoop(newEmulator(func(b *rv.Builder) {
			b.Store(insts.OpSD, a0, sp, 0)
			for i := 0; i < 15; i++ {
				b.NOP()
			}
			b.Store(insts.OpSD, a1, sp, 8)
			b.EBREAK()
		}), jit.WithConfig(cfg))

		_, err := loop.Compile(base)
		Expect(err).ToNot(HaveOccurred())
		_, err = loop.Compile(base + 64)
		Expect(err).ToNot(HaveOccurred())

		Expect(loop.Cache().Contains(base)).To(BeFalse())
		Expect(loop.Cache().Contains(base + 64)).To(BeTrue())
		Expect(loop.Stats().Invalidations).To(Equal(uint64(1)))
		Expect(loop.Tracker().Stats().Evictions).To(Equal(uint64(1)))
	})

	It("should stop at the instruction limit", func() {
		cfg.MaxInstructions = 5
		cfg.HotThreshold = 1
		loop := jit.NewRunLoop(newEmulator(func(b *rv.Builder) {
			b.Label("spin")
			b.JAL(zero, "spin")
		}), jit.WithConfig(cfg))

		result := loop.Run()

		Expect(result.Err).To(MatchError(emu.ErrMaxInstructions))
		Expect(loop.Emulator().InstructionCount()).To(Equal(uint64(5)))
	})

	It("should release its traces on close", func() {
		loop := jit.NewRunLoop(newEmulator(interpreted), jit.WithConfig(cfg))
		_, err := loop.Compile(base)
		Expect(err).ToNot(HaveOccurred())

		loop.Close()

		Expect(loop.Cache().Len()).To(BeZero())
		Expect(loop.Tracker().Covers(base, base+4)).To(BeFalse())
	})

	It("should fall back to the interpreter on hosts without native code", func() {
		if jit.NativeSupported() {
			Skip("host runs native code")
		}
		cfg.HotThreshold = 1
		loop := jit.NewRunLoop(newEmulator(countdown), jit.WithConfig(cfg))

		_, err := loop.Compile(base)
		Expect(err).To(MatchError(jit.ErrUnsupportedHost))

		result := loop.Run()
		Expect(result.Trap).To(Equal(emu.TrapBreakpoint))
		Expect(loop.Emulator().State().ReadReg(a0)).To(Equal(uint64(30)))
	})

	Context("on a native host", func() {
		BeforeEach(requireNative)

		It("should compile a pc once", func() {
			loop := jit.NewRunLoop(newEmulator(countdown), jit.WithConfig(cfg))

			first, err := loop.Compile(base)
			Expect(err).ToNot(HaveOccurred())
			second, err := loop.Compile(base)
			Expect(err).ToNot(HaveOccurred())

			Expect(second).To(BeIdenticalTo(first))
			Expect(first.Native()).To(BeTrue())
			Expect(loop.Stats().Compiles).To(Equal(uint64(1)))
			Expect(loop.Stats().CodeBytes).To(Equal(uint64(first.CodeSize())))
			Expect(loop.Emulator().State().PC).To(Equal(uint64(base)))
		})

		It("should run hot code natively and retire the same instructions", func() {
			cfg.HotThreshold = 1
			loop := jit.NewRunLoop(newEmulator(countdown), jit.WithConfig(cfg))

			result := loop.Run()

			Expect(result.Trap).To(Equal(emu.TrapBreakpoint))
			Expect(loop.Emulator().State().ReadReg(a0)).To(Equal(uint64(30)))
			Expect(loop.Emulator().State().PC).To(Equal(uint64(base + 20)))
			Expect(loop.Emulator().InstructionCount()).To(Equal(uint64(32)))
			Expect(loop.Stats().Native).To(Equal(uint64(32)))
			Expect(loop.Stats().Compiles).To(Equal(uint64(3)))
			Expect(loop.Mode()).To(Equal(jit.ModeInterpret))
			Expect(loop.Stats().String()).To(ContainSubstring("native=32"))
		})

		It("should only compile after the threshold", func() {
			cfg.HotThreshold = 4
			loop := jit.NewRunLoop(newEmulator(countdown), jit.WithConfig(cfg))

			loop.Run()

			Expect(loop.Cache().Contains(base + 8)).To(BeTrue())
			Expect(loop.Cache().Contains(base)).To(BeFalse())
			Expect(loop.Stats().Native).To(BeNumerically(">", 0))
			Expect(loop.Stats().Interpreted).To(BeNumerically(">", 0))
			Expect(loop.Emulator().InstructionCount()).To(Equal(uint64(32)))
		})

		It("should hand a trap to the interpreter", func() {
			cfg.HotThreshold = 1
			loop := jit.NewRunLoop(newEmulator(func(b *rv.Builder) {
				b.ADDI(a7, zero, int64(emu.SyscallExit))
				b.ADDI(a0, zero, 7)
				b.ECALL()
			}), jit.WithConfig(cfg))

			result := loop.Run()

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(7)))
			Expect(loop.Stats().Native).To(Equal(uint64(2)))
			Expect(loop.Stats().Interpreted).To(Equal(uint64(1)))
		})

		It("should compile once when the tracker cannot hold the trace", func() {
			cfg.CodeLineSize, cfg.CodeSets, cfg.CodeWays = 4, 1, 1
			e := newEmulator(countdown)
			loop := jit.NewRunLoop(e, jit.WithConfig(cfg))

			first, err := loop.Compile(base + 8)
			Expect(err).ToNot(HaveOccurred())
			second, err := loop.Compile(base + 8)
			Expect(err).ToNot(HaveOccurred())

			Expect(second).To(BeIdenticalTo(first))
			Expect(loop.Stats().Compiles).To(Equal(uint64(1)))
			Expect(loop.Cache().Contains(base + 8)).To(BeTrue())
			Expect(loop.Tracker().Covers(base+8, base+20)).To(BeFalse())

			e.Memory().Write32(base+12, e.Memory().Read32(base+12))

			Expect(loop.Cache().Contains(base + 8)).To(BeFalse())
			Expect(loop.Stats().Invalidations).To(Equal(uint64(1)))
		})

		It("should recompile code that changed", func() {
			e := newEmulator(countdown)
			loop := jit.NewRunLoop(e, jit.WithConfig(cfg))
			_, err := loop.Compile(base)
			Expect(err).ToNot(HaveOccurred())

			// addi a1, zero, 1
			e.Memory().Write32(base+4, 0x00100593)
			Expect(loop.Cache().Contains(base)).To(BeFalse())

			_, err = loop.Compile(base)
			Expect(err).ToNot(HaveOccurred())
			loop.Run()

			Expect(e.State().ReadReg(a0)).To(Equal(uint64(3)))
		})
	})
})
