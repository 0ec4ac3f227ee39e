package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvjit/insts"
)

var _ = Describe("Compressed decoding", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder(insts.WithExtensions(insts.ExtM | insts.ExtC))
	})

	type expansion struct {
		op            insts.Op
		rd, rs1, rs2 uint8
		imm          int64
	}

	DescribeTable("expanding parcels to base operations",
		func(parcel uint32, want expansion) {
			inst := decoder.Decode(parcel, 0x100)

			Expect(inst.Op).To(Equal(want.op))
			Expect(inst.Rd).To(Equal(want.rd))
			Expect(inst.Rs1).To(Equal(want.rs1))
			Expect(inst.Rs2).To(Equal(want.rs2))
			Expect(inst.Imm).To(Equal(want.imm))
			Expect(inst.Len).To(Equal(uint8(2)))
			Expect(inst.Raw).To(Equal(parcel))
		},
		Entry("c.li a0, 5", uint32(0x4515), expansion{insts.OpADDI, 10, 0, 0, 5}),
		Entry("c.addi a0, -1", uint32(0x157d), expansion{insts.OpADDI, 10, 10, 0, -1}),
		Entry("c.mv a0, a1", uint32(0x852e), expansion{insts.OpADD, 10, 0, 11, 0}),
		Entry("c.add a0, a1", uint32(0x952e), expansion{insts.OpADD, 10, 10, 11, 0}),
		Entry("c.sub a0, a1", uint32(0x8d0d), expansion{insts.OpSUB, 10, 10, 11, 0}),
		Entry("c.jr ra", uint32(0x8082), expansion{insts.OpJALR, 0, 1, 0, 0}),
		Entry("c.j -2", uint32(0xbffd), expansion{insts.OpJAL, 0, 0, 0, -2}),
		Entry("c.beqz a0, 0", uint32(0xc101), expansion{insts.OpBEQ, 0, 10, 0, 0}),
		Entry("c.slli a0, 3", uint32(0x050e), expansion{insts.OpSLLI, 10, 10, 0, 3}),
		Entry("c.lui a0, 1", uint32(0x6505), expansion{insts.OpLUI, 10, 0, 0, 4096}),
		Entry("c.addi16sp -64", uint32(0x7139), expansion{insts.OpADDI, 2, 2, 0, -64}),
		Entry("c.addi4spn a0, 16", uint32(0x0808), expansion{insts.OpADDI, 10, 2, 0, 16}),
		Entry("c.ld a0, 8(a1)", uint32(0x6588), expansion{insts.OpLD, 10, 11, 0, 8}),
		Entry("c.sdsp ra, 8", uint32(0xe406), expansion{insts.OpSD, 0, 2, 1, 8}),
	)

	It("should decode c.ebreak", func() {
		Expect(decoder.Decode(0x9002, 0).Op).To(Equal(insts.OpEBREAK))
	})

	It("should only look at the low parcel", func() {
		inst := decoder.Decode(0xdead4515, 0)

		Expect(inst.Op).To(Equal(insts.OpADDI))
		Expect(inst.Raw).To(Equal(uint32(0x4515)))
	})

	DescribeTable("reserved and floating-point parcels",
		func(parcel uint32) {
			inst := decoder.Decode(parcel, 0)

			Expect(inst.Op).To(Equal(insts.OpIllegal))
			Expect(inst.Len).To(Equal(uint8(2)))
		},
		Entry("all zeros", uint32(0x0000)),
		Entry("c.fld", uint32(0x2000)),
		Entry("c.addiw x0", uint32(0x2001)),
		Entry("c.addi4spn zero immediate", uint32(0x0004)),
		Entry("c.jr x0", uint32(0x8002)),
	)
})
