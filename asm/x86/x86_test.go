package x86_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvjit/asm"
	"github.com/sarchlab/rvjit/asm/x86"
)

var _ = Describe("Encoder", func() {
	var (
		a *asm.Assembler
		x *x86.Asm
	)

	BeforeEach(func() {
		a = asm.New()
		x = x86.New(a)
	})

	DescribeTable("encodings",
		func(emit func(x *x86.Asm), want []byte) {
			emit(x)

			Expect(a.Bytes(".text")).To(Equal(want))
		},
		Entry("mov rax, [rdi+80]",
			func(x *x86.Asm) { x.Load(x86.RAX, x86.RDI, 80) }, []byte{0x48, 0x8B, 0x47, 0x50}),
		Entry("mov rcx, [rdi]",
			func(x *x86.Asm) { x.Load(x86.RCX, x86.RDI, 0) }, []byte{0x48, 0x8B, 0x0F}),
		Entry("mov [rdi+256], rax",
			func(x *x86.Asm) { x.Store(x86.RDI, 256, x86.RAX) },
			[]byte{0x48, 0x89, 0x87, 0x00, 0x01, 0x00, 0x00}),
		Entry("mov rax, [rsp+8]",
			func(x *x86.Asm) { x.Load(x86.RAX, x86.RSP, 8) }, []byte{0x48, 0x8B, 0x44, 0x24, 0x08}),
		Entry("mov r8, [r13]",
			func(x *x86.Asm) { x.Load(x86.R8, x86.R13, 0) }, []byte{0x4D, 0x8B, 0x45, 0x00}),
		Entry("mov rax, rcx",
			func(x *x86.Asm) { x.Mov(x86.RAX, x86.RCX) }, []byte{0x48, 0x89, 0xC8}),
		Entry("mov eax, 1",
			func(x *x86.Asm) { x.MovImm(x86.RAX, 1) }, []byte{0xB8, 0x01, 0x00, 0x00, 0x00}),
		Entry("mov rax, -1",
			func(x *x86.Asm) { x.MovImm(x86.RAX, ^uint64(0)) },
			[]byte{0x48, 0xC7, 0xC0, 0xFF, 0xFF, 0xFF, 0xFF}),
		Entry("movabs rcx, 0xfeedcafebabe",
			func(x *x86.Asm) { x.MovImm(x86.RCX, 0xfeedcafebabe) },
			[]byte{0x48, 0xB9, 0xBE, 0xBA, 0xFE, 0xCA, 0xED, 0xFE, 0x00, 0x00}),
		Entry("mov r9d, 5",
			func(x *x86.Asm) { x.MovImm(x86.R9, 5) }, []byte{0x41, 0xB9, 0x05, 0x00, 0x00, 0x00}),
		Entry("add rax, rcx",
			func(x *x86.Asm) { x.ALU(x86.ADD, x86.RAX, x86.RCX) }, []byte{0x48, 0x01, 0xC8}),
		Entry("sub rax, rcx",
			func(x *x86.Asm) { x.ALU(x86.SUB, x86.RAX, x86.RCX) }, []byte{0x48, 0x29, 0xC8}),
		Entry("cmp rax, rcx",
			func(x *x86.Asm) { x.ALU(x86.CMP, x86.RAX, x86.RCX) }, []byte{0x48, 0x39, 0xC8}),
		Entry("add eax, ecx",
			func(x *x86.Asm) { x.ALU32(x86.ADD, x86.RAX, x86.RCX) }, []byte{0x01, 0xC8}),
		Entry("add rax, 1",
			func(x *x86.Asm) { x.ALUImm(x86.ADD, x86.RAX, 1) }, []byte{0x48, 0x83, 0xC0, 0x01}),
		Entry("and rax, -2",
			func(x *x86.Asm) { x.ALUImm(x86.AND, x86.RAX, -2) }, []byte{0x48, 0x83, 0xE0, 0xFE}),
		Entry("add rax, 0x1000",
			func(x *x86.Asm) { x.ALUImm(x86.ADD, x86.RAX, 0x1000) },
			[]byte{0x48, 0x81, 0xC0, 0x00, 0x10, 0x00, 0x00}),
		Entry("shl rax, 8",
			func(x *x86.Asm) { x.ShiftImm(x86.SHL, x86.RAX, 8) }, []byte{0x48, 0xC1, 0xE0, 0x08}),
		Entry("sar rax, 63",
			func(x *x86.Asm) { x.ShiftImm(x86.SAR, x86.RAX, 63) }, []byte{0x48, 0xC1, 0xF8, 0x3F}),
		Entry("shr rax, cl",
			func(x *x86.Asm) { x.ShiftCL(x86.SHR, x86.RAX) }, []byte{0x48, 0xD3, 0xE8}),
		Entry("movsxd rax, eax",
			func(x *x86.Asm) { x.Movsxd(x86.RAX, x86.RAX) }, []byte{0x48, 0x63, 0xC0}),
		Entry("imul rax, rcx",
			func(x *x86.Asm) { x.Imul(x86.RAX, x86.RCX) }, []byte{0x48, 0x0F, 0xAF, 0xC1}),
		Entry("imul rcx",
			func(x *x86.Asm) { x.MulWide(true, x86.RCX) }, []byte{0x48, 0xF7, 0xE9}),
		Entry("mul rcx",
			func(x *x86.Asm) { x.MulWide(false, x86.RCX) }, []byte{0x48, 0xF7, 0xE1}),
		Entry("setl al; movzx eax, al",
			func(x *x86.Asm) { x.Setcc(x86.CondL, x86.RAX) },
			[]byte{0x0F, 0x9C, 0xC0, 0x0F, 0xB6, 0xC0}),
		Entry("setb sil; movzx esi, sil",
			func(x *x86.Asm) { x.Setcc(x86.CondB, x86.RSI) },
			[]byte{0x40, 0x0F, 0x92, 0xC6, 0x40, 0x0F, 0xB6, 0xF6}),
		Entry("cmove rax, rdx",
			func(x *x86.Asm) { x.Cmov(x86.CondE, x86.RAX, x86.RDX) }, []byte{0x48, 0x0F, 0x44, 0xC2}),
		Entry("ret",
			func(x *x86.Asm) { x.Ret() }, []byte{0xC3}),
	)

	It("should resolve a forward jump through the assembler", func() {
		x.Jmp("exit")
		a.Emit(0x90)
		Expect(a.Label("exit")).To(Succeed())
		x.Ret()

		Expect(a.Link(0x4000)).To(Succeed())
		Expect(a.Bytes(".text")).To(Equal([]byte{0xE9, 0x01, 0x00, 0x00, 0x00, 0x90, 0xC3}))
	})

	It("should resolve a backward conditional jump", func() {
		Expect(a.Label("top")).To(Succeed())
		x.Jcc(x86.CondNE, "top")

		Expect(a.Link(0)).To(Succeed())
		Expect(a.Bytes(".text")).To(Equal([]byte{0x0F, 0x85, 0xFA, 0xFF, 0xFF, 0xFF}))
	})

	It("should reject displacements beyond 32 bits", func() {
		field := make([]byte, 4)

		Expect(x86.Rel32{}.Patch(field, 0, 1<<33)).To(MatchError(asm.ErrRelocationRange))
	})
})
