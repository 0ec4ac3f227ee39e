package emu_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvjit/emu"
	"github.com/sarchlab/rvjit/insts"
)

const (
	wordEBREAK = 0x00100073
	wordECALL  = 0x00000073
)

var _ = Describe("Emulator", func() {
	var (
		e         *emu.Emulator
		stdoutBuf *bytes.Buffer
	)

	BeforeEach(func() {
		stdoutBuf = &bytes.Buffer{}
		e = emu.NewEmulator(
			emu.WithStdout(stdoutBuf),
			emu.WithLogger(GinkgoLogr),
		)
	})

	Describe("NewEmulator", func() {
		It("should default to RV64IM with identity translation", func() {
			Expect(e.State()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
			Expect(e.Extensions()).To(Equal(insts.ExtM))
			Expect(e.Decoder().Extensions()).To(Equal(insts.ExtM))
		})

		It("should apply the initial stack pointer", func() {
			e = emu.NewEmulator(emu.WithStackPointer(0x7fff0000))

			Expect(e.State().ReadReg(insts.RegSP)).To(Equal(uint64(0x7fff0000)))
		})
	})

	Describe("LoadProgram", func() {
		It("should set the PC and copy the bytes", func() {
			e.LoadProgram(0x2000, []byte{0xde, 0xad, 0xbe, 0xef})

			Expect(e.State().PC).To(Equal(uint64(0x2000)))
			Expect(e.Memory().Read32(0x2000)).To(Equal(uint32(0xefbeadde)))
		})
	})

	Describe("Run", func() {
		It("should stop at a breakpoint without retiring it", func() {
			e.LoadProgram(0x1000, program(
				0x00500513, // addi a0, zero, 5
				0x00700593, // addi a1, zero, 7
				0x00b50633, // add a2, a0, a1
				wordEBREAK,
			))

			result := e.Run()

			Expect(result.Trap).To(Equal(emu.TrapBreakpoint))
			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.State().ReadReg(12)).To(Equal(uint64(12)))
			Expect(e.State().PC).To(Equal(uint64(0x100c)))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should exit through the exit syscall", func() {
			e.LoadProgram(0x1000, program(
				0x02a00513, // addi a0, zero, 42
				0x05d00893, // addi a7, zero, 93
				wordECALL,
			))

			result := e.Run()

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(42)))
		})

		It("should follow a backward branch", func() {
			e.LoadProgram(0x1000, program(
				0x00300513, // addi a0, zero, 3
				0xfff50513, // addi a0, a0, -1
				0xfe051ee3, // bne a0, zero, -4
				wordEBREAK,
			))

			result := e.Run()

			Expect(result.Trap).To(Equal(emu.TrapBreakpoint))
			Expect(e.State().ReadReg(insts.RegA0)).To(BeZero())
			Expect(e.InstructionCount()).To(Equal(uint64(7)))
		})

		It("should load and store with sign and zero extension", func() {
			e.LoadProgram(0x1000, program(
				0x000022b7, // lui t0, 0x2
				0xfff00313, // addi t1, zero, -1
				0x0062b423, // sd t1, 8(t0)
				0x0082a503, // lw a0, 8(t0)
				0x0082e583, // lwu a1, 8(t0)
				wordEBREAK,
			))

			e.Run()

			Expect(e.Memory().Read64(0x2008)).To(Equal(^uint64(0)))
			Expect(e.State().ReadReg(10)).To(Equal(^uint64(0)))
			Expect(e.State().ReadReg(11)).To(Equal(uint64(0xffffffff)))
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(emu.WithMaxInstructions(2))
			e.LoadProgram(0x1000, program(0x00300513, 0xfff50513, 0xfe051ee3, wordEBREAK))

			result := e.Run()

			Expect(result.Err).To(MatchError(emu.ErrMaxInstructions))
			Expect(e.InstructionCount()).To(Equal(uint64(2)))
		})
	})

	Describe("Step", func() {
		It("should trap on an illegal instruction and keep the pc", func() {
			e.LoadProgram(0x1000, program(0x00000000))

			result := e.Step()

			Expect(result.Trap).To(Equal(emu.TrapIllegalInstruction))
			Expect(result.Err).To(MatchError(emu.ErrIllegalInstruction))
			Expect(e.State().PC).To(Equal(uint64(0x1000)))
		})

		It("should fault on a misaligned pc", func() {
			e.State().PC = 0x1002

			result := e.Step()

			Expect(result.Trap).To(Equal(emu.TrapFault))
			Expect(result.Err).To(MatchError(emu.ErrMisalignedFetch))
		})

		It("should execute compressed parcels with the C extension", func() {
			e = emu.NewEmulator(emu.WithExtensions(insts.ExtM | insts.ExtC))
			e.LoadProgram(0x1000, []byte{0x15, 0x45, 0x02, 0x90}) // c.li a0, 5; c.ebreak

			result := e.Run()

			Expect(result.Trap).To(Equal(emu.TrapBreakpoint))
			Expect(e.State().ReadReg(insts.RegA0)).To(Equal(uint64(5)))
			Expect(e.State().PC).To(Equal(uint64(0x1002)))
		})

		It("should notify fence.i watchers", func() {
			calls := 0
			e.OnFenceI(func() { calls++ })
			e.LoadProgram(0x1000, program(0x0000100f, wordEBREAK))

			e.Run()

			Expect(calls).To(Equal(1))
		})

		It("should fault on stores the translator rejects", func() {
			e = emu.NewEmulator(emu.WithTranslator(emu.RangeTranslator{Lo: 0x1000, Hi: 0x2000}))
			e.LoadProgram(0x1000, program(0x000022b7, 0xfff00313, 0x0062b423))

			result := e.Run()

			Expect(result.Trap).To(Equal(emu.TrapFault))
			Expect(result.Err).To(MatchError(emu.ErrFault))
			Expect(e.State().PC).To(Equal(uint64(0x1008)))
		})
	})
})
