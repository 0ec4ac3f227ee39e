package oracle_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvjit/asm/rv"
	"github.com/sarchlab/rvjit/imm"
	"github.com/sarchlab/rvjit/insts"
	"github.com/sarchlab/rvjit/jit"
	"github.com/sarchlab/rvjit/oracle"
)

func scenario(name string) oracle.Program {
	for _, p := range oracle.Scenarios() {
		if p.Name == name {
			return p
		}
	}
	Fail("no scenario " + name)
	return oracle.Program{}
}

func requireNative() {
	if !jit.NativeSupported() {
		Skip("compiled traces need a linux or darwin amd64 host")
	}
}

var _ = Describe("Harness", func() {
	var h *oracle.Harness

	BeforeEach(func() {
		h = oracle.New(oracle.WithLogger(GinkgoLogr))
	})

	Describe("Assemble", func() {
		It("should append a breakpoint", func() {
			code, err := h.Assemble(scenario("addi_1"))

			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(HaveLen(8))
			Expect(binary.LittleEndian.Uint32(code)).To(Equal(uint32(0x0de00513)))
			Expect(binary.LittleEndian.Uint32(code[4:])).To(Equal(uint32(0x00100073)))
		})

		It("should report encoding errors", func() {
			_, err := h.Assemble(oracle.Program{Name: "bad", Build: func(b *rv.Builder) {
				b.ADDI(insts.RegA0, insts.RegZero, 5000)
			}})

			Expect(err).To(MatchError(imm.ErrOutOfRange))
		})
	})

	Describe("Scenarios", func() {
		It("should have unique names", func() {
			seen := map[string]bool{}
			for _, p := range oracle.Scenarios() {
				Expect(seen).ToNot(HaveKey(p.Name))
				seen[p.Name] = true
			}
			for _, name := range []string{
				"addi_1", "add_1", "add_2", "add_3", "add_4", "add_5", "add_6", "add_7", "add_8",
				"slli_1", "sll_1", "load_imm_1",
			} {
				Expect(seen).To(HaveKey(name))
			}
		})

		It("should agree with the interpreter on every scenario", func() {
			requireNative()

			reports, err := h.CheckAll(oracle.Scenarios())
			Expect(err).ToNot(HaveOccurred())
			Expect(reports).To(HaveLen(len(oracle.Scenarios())))
			for _, r := range reports {
				Expect(r.Passed()).To(BeTrue(), r.String())
			}
		})

		It("should fuse slli_1 into one shift-add", func() {
			requireNative()

			r, err := h.Check(scenario("slli_1"))
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Passed()).To(BeTrue(), r.String())
			Expect(r.Trace.Ops).To(HaveLen(1))
			Expect(r.Trace.Ops[0].Kind).To(Equal(jit.FuseShiftAdd))
			Expect(r.Want[insts.RegA0]).To(Equal(uint64(0xdeadbeef)))
		})

		It("should materialise load_imm_1 as one constant", func() {
			requireNative()

			r, err := h.Check(scenario("load_imm_1"))
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Passed()).To(BeTrue(), r.String())
			Expect(r.Steps).To(Equal(6))
			Expect(r.Trace.Ops).To(HaveLen(1))
			Expect(r.Trace.Ops[0].Kind).To(Equal(jit.FuseLoadConst))
			Expect(r.Got[insts.RegA0]).To(Equal(uint64(0xfeedcafebabe)))
		})
	})

	Describe("Check", func() {
		It("should report registers that differ", func() {
			requireNative()
			p := scenario("add_3")
			p.Steps = 2

			r, err := h.Check(p)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Passed()).To(BeFalse())
			Expect(r.Mismatches).To(ContainElement(oracle.Mismatch{Name: "a1", Want: 0x7ff, Got: 0x800}))
			Expect(r.Mismatches).To(ContainElement(HaveField("Name", "pc")))
			Expect(r.String()).To(ContainSubstring("FAIL"))
		})

		It("should fail when the interpreter stops early", func() {
			p := scenario("addi_1")
			p.Steps = 3

			_, err := h.Check(p)
			Expect(err).To(MatchError(oracle.ErrInterpreter))
		})

		It("should surface hosts without native code", func() {
			if jit.NativeSupported() {
				Skip("native host")
			}

			_, err := h.Check(scenario("addi_1"))
			Expect(err).To(MatchError(jit.ErrUnsupportedHost))
		})
	})
})
