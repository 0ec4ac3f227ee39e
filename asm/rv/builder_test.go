package rv_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvjit/asm"
	"github.com/sarchlab/rvjit/asm/rv"
	"github.com/sarchlab/rvjit/imm"
	"github.com/sarchlab/rvjit/insts"
)

func words(a *asm.Assembler) []uint32 {
	buf := a.Bytes(".text")
	out := make([]uint32, len(buf)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return out
}

var _ = Describe("Builder", func() {
	var (
		a *asm.Assembler
		b *rv.Builder
	)

	BeforeEach(func() {
		a = asm.New()
		b = rv.NewBuilder(a)
	})

	It("should encode the base formats", func() {
		b.ADDI(insts.RegA0, insts.RegZero, 222)
		b.ADD(12, 10, 11)
		b.SUB(10, 11, 12)
		b.Load(insts.OpLD, insts.RegA0, insts.RegSP, 8)
		b.Store(insts.OpSD, insts.RegA0, insts.RegSP, 8)
		b.LUI(insts.RegA0, 0x12345)
		b.SLLI(10, 10, 63)
		b.SRAI(10, 10, 1)
		b.EBREAK()

		Expect(b.Err()).NotTo(HaveOccurred())
		Expect(words(a)).To(Equal([]uint32{
			0x0de00513, 0x00b50633, 0x40c58533, 0x00813503, 0x00a13423,
			0x12345537, 0x03f51513, 0x40155513, 0x00100073,
		}))
	})

	It("should decode back to the same operation for every encoding", func() {
		d := insts.NewDecoder(insts.WithExtensions(insts.ExtM))
		for _, op := range []insts.Op{
			insts.OpADD, insts.OpSUB, insts.OpSLL, insts.OpSLT, insts.OpSLTU, insts.OpXOR,
			insts.OpSRL, insts.OpSRA, insts.OpOR, insts.OpAND, insts.OpADDW, insts.OpSUBW,
			insts.OpSLLW, insts.OpSRLW, insts.OpSRAW, insts.OpMUL, insts.OpMULH,
			insts.OpMULHSU, insts.OpMULHU, insts.OpDIV, insts.OpDIVU, insts.OpREM,
			insts.OpREMU, insts.OpMULW, insts.OpDIVW, insts.OpDIVUW, insts.OpREMW, insts.OpREMUW,
		} {
			a := asm.New()
			rv.NewBuilder(a).R(op, 5, 6, 7)
			inst := d.Decode(words(a)[0], 0)

			Expect(inst.Op).To(Equal(op))
			Expect([]uint8{inst.Rd, inst.Rs1, inst.Rs2}).To(Equal([]uint8{5, 6, 7}))
		}

		for _, op := range []insts.Op{
			insts.OpADDI, insts.OpSLTI, insts.OpSLTIU, insts.OpXORI, insts.OpORI, insts.OpANDI,
			insts.OpADDIW, insts.OpJALR, insts.OpLB, insts.OpLWU,
		} {
			a := asm.New()
			rv.NewBuilder(a).I(op, 5, 6, -7)
			inst := d.Decode(words(a)[0], 0)

			Expect(inst.Op).To(Equal(op))
			Expect(inst.Imm).To(Equal(int64(-7)))
		}
	})

	It("should resolve backward and forward branch labels", func() {
		b.Label("top")
		b.Branch(insts.OpBEQ, insts.RegA0, insts.RegA1, "top")
		b.Branch(insts.OpBNE, insts.RegA0, insts.RegA1, "end")
		b.NOP()
		b.Label("end")
		b.JAL(insts.RegRA, "top")

		Expect(b.Err()).NotTo(HaveOccurred())
		Expect(a.Link(0x1000)).To(Succeed())

		w := words(a)
		Expect(w[0]).To(Equal(uint32(0x00b50063)))
		d := insts.NewDecoder()
		Expect(d.Decode(w[1], 0x1004).Target()).To(Equal(uint64(0x100c)))
		Expect(d.Decode(w[3], 0x100c).Target()).To(Equal(uint64(0x1000)))
	})

	It("should pair auipc and addi for a pc-relative address", func() {
		b.LA(insts.RegA0, "data")
		a.Section(".data", asm.KindData)
		b.Label("data")
		a.Emit64(0)

		Expect(a.Link(0x10000)).To(Succeed())
		dataAddr, err := a.Addr("data")
		Expect(err).NotTo(HaveOccurred())

		d := insts.NewDecoder()
		w := words(a)
		auipc := d.Decode(w[0], 0x10000)
		addi := d.Decode(w[1], 0x10004)
		Expect(auipc.Op).To(Equal(insts.OpAUIPC))
		Expect(addi.Op).To(Equal(insts.OpADDI))
		Expect(0x10000 + uint64(auipc.Imm) + uint64(addi.Imm)).To(Equal(dataAddr))
	})

	It("should record the first out-of-range immediate", func() {
		b.ADDI(insts.RegA0, insts.RegZero, 2048)
		b.SLLI(insts.RegA0, insts.RegA0, 64)

		Expect(b.Err()).To(MatchError(imm.ErrOutOfRange))
		Expect(b.Err().Error()).To(ContainSubstring("addi"))
		Expect(words(a)).To(HaveLen(2))
	})

	It("should reject a branch target out of range at link time", func() {
		b.Branch(insts.OpBEQ, 0, 0, "far")
		for i := 0; i < 1100; i++ {
			b.NOP()
		}
		b.Label("far")

		Expect(a.Link(0)).To(MatchError(asm.ErrRelocationRange))
	})
})
