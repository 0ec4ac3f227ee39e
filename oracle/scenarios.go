package oracle

import (
	"github.com/sarchlab/rvjit/asm/rv"
	"github.com/sarchlab/rvjit/insts"
)

const (
	zero = insts.RegZero
	ra   = insts.RegRA
	t0   = uint8(5)
	a0   = insts.RegA0
	a1   = insts.RegA1
	a2   = insts.RegA2
	a3   = uint8(13)
	a4   = uint8(14)
	a5   = uint8(15)
	s9   = uint8(25)
	s10  = uint8(26)
	s11  = uint8(27)
)

// Scenarios returns the built-in programs.
func Scenarios() []Program {
	return []Program{
		{Name: "addi_1", Steps: 1, Build: func(b *rv.Builder) {
			b.ADDI(a0, zero, 0xde)
		}},
		{Name: "add_1", Steps: 2, Build: func(b *rv.Builder) {
			b.ADDI(a1, zero, 0x7ff)
			b.ADD(a0, zero, a1)
		}},
		{Name: "add_2", Steps: 2, Build: func(b *rv.Builder) {
			b.ADDI(a1, zero, 0x7ff)
			b.ADD(a0, a1, zero)
		}},
		{Name: "add_3", Steps: 3, Build: func(b *rv.Builder) {
			b.ADDI(a1, zero, 0x7ff)
			b.ADDI(a0, zero, 0x1)
			b.ADD(a1, a1, a0)
		}},
		{Name: "add_4", Steps: 2, Build: func(b *rv.Builder) {
			b.ADDI(s10, zero, 0x7ff)
			b.ADD(s10, zero, s11)
		}},
		{Name: "add_5", Steps: 2, Build: func(b *rv.Builder) {
			b.ADDI(s10, zero, 0x7ff)
			b.ADD(s10, s11, zero)
		}},
		{Name: "add_6", Steps: 3, Build: func(b *rv.Builder) {
			b.ADDI(a0, zero, 0x7ff)
			b.ADDI(s11, zero, 1)
			b.ADD(a0, s9, s11)
		}},
		{Name: "add_7", Steps: 3, Build: func(b *rv.Builder) {
			b.ADDI(a0, zero, 0x7ff)
			b.ADDI(s11, zero, 1)
			b.ADD(s9, a0, s11)
		}},
		{Name: "add_8", Steps: 3, Build: func(b *rv.Builder) {
			b.ADDI(s10, zero, 0x7ff)
			b.ADDI(s11, zero, 1)
			b.ADD(s9, s10, s11)
		}},
		{Name: "slli_1", Steps: 7, Build: func(b *rv.Builder) {
			b.ADDI(a0, a0, 0xde)
			b.SLLI(a0, a0, 8)
			b.ADDI(a0, a0, 0xad)
			b.SLLI(a0, a0, 8)
			b.ADDI(a0, a0, 0xbe)
			b.SLLI(a0, a0, 8)
			b.ADDI(a0, a0, 0xef)
		}},
		{Name: "sll_1", Steps: 4, Build: func(b *rv.Builder) {
			b.ADDI(s9, zero, 12)
			b.ADDI(s10, zero, 0x7ff)
			b.ADD(s11, zero, s10)
			b.SLL(s11, s11, s9)
		}},
		{Name: "load_imm_1", Steps: rv.LoadImmLen(0xfeedcafebabe), Build: func(b *rv.Builder) {
			b.LoadImm(a0, 0xfeedcafebabe)
		}},
		{Name: "lui_addi_1", Steps: 2, Build: func(b *rv.Builder) {
			b.LUI(a0, 0x12345)
			b.ADDI(a0, a0, 0x678)
		}},
		{Name: "auipc_addi_1", Steps: 2, Build: func(b *rv.Builder) {
			b.AUIPC(a1, 0x1)
			b.ADDI(a1, a1, -4)
		}},
		{Name: "mul_const_1", Steps: 5, Build: func(b *rv.Builder) {
			b.ADDI(a0, zero, 100)
			b.SLLI(t0, a0, 3)
			b.ADD(a1, t0, a0)
			b.SLLI(t0, a0, 4)
			b.SUB(a2, t0, a0)
		}},
		{Name: "alu_1", Steps: rv.LoadImmLen(-5) + rv.LoadImmLen(0x123456789) + 9, Build: func(b *rv.Builder) {
			b.LoadImm(a0, -5)
			b.LoadImm(a1, 0x123456789)
			b.R(insts.OpSUB, a2, a0, a1)
			b.R(insts.OpXOR, a3, a0, a1)
			b.R(insts.OpOR, a4, a0, a1)
			b.R(insts.OpAND, a5, a0, a1)
			b.R(insts.OpSLT, t0, a0, a1)
			b.R(insts.OpSLTU, s9, a0, a1)
			b.R(insts.OpSRL, s10, a0, a1)
			b.R(insts.OpSRA, s11, a0, a1)
			b.R(insts.OpSLL, ra, a1, a1)
		}},
		{Name: "alu_imm_1", Steps: 1 + 8, Build: func(b *rv.Builder) {
			b.ADDI(a0, zero, -1000)
			b.I(insts.OpSLTI, a1, a0, -999)
			b.I(insts.OpSLTIU, a2, a0, 5)
			b.XORI(a3, a0, -1)
			b.ORI(a4, a0, 0x7f)
			b.ANDI(a5, a0, 0x3f0)
			b.SRLI(t0, a0, 60)
			b.SRAI(s9, a0, 3)
			b.SLLI(s10, a0, 63)
		}},
		{Name: "word_1", Steps: rv.LoadImmLen(0x7fffffff) + rv.LoadImmLen(-0x123456789) + 10, Build: func(b *rv.Builder) {
			b.LoadImm(a0, 0x7fffffff)
			b.LoadImm(a1, -0x123456789)
			b.ADDIW(a2, a0, 1)
			b.R(insts.OpADDW, a3, a0, a1)
			b.R(insts.OpSUBW, a4, a1, a0)
			b.R(insts.OpSLLW, a5, a1, a0)
			b.R(insts.OpSRLW, t0, a1, a0)
			b.R(insts.OpSRAW, s9, a1, a0)
			b.I(insts.OpSLLIW, s10, a1, 31)
			b.I(insts.OpSRLIW, s11, a1, 4)
			b.I(insts.OpSRAIW, ra, a1, 4)
			b.R(insts.OpMULW, a0, a0, a0)
		}},
		{Name: "mul_1", Steps: rv.LoadImmLen(-3) + rv.LoadImmLen(0x123456789abcdef) + 3, Build: func(b *rv.Builder) {
			b.LoadImm(a0, -3)
			b.LoadImm(a1, 0x123456789abcdef)
			b.MUL(a2, a0, a1)
			b.R(insts.OpMULH, a3, a0, a1)
			b.R(insts.OpMULHU, a4, a0, a1)
		}},
		{Name: "x0_1", Steps: 3, Build: func(b *rv.Builder) {
			b.ADDI(a0, zero, 7)
			b.ADDI(zero, a0, 5)
			b.ADD(a1, zero, a0)
		}},
		{Name: "branch_1", Steps: 3, Build: func(b *rv.Builder) {
			b.ADDI(a0, zero, 5)
			b.ADDI(a1, zero, 5)
			b.Branch(insts.OpBEQ, a0, a1, "taken")
			b.ADDI(a2, zero, 1)
			b.Label("taken")
		}},
		{Name: "branch_2", Steps: 3, Build: func(b *rv.Builder) {
			b.ADDI(a0, zero, -1)
			b.ADDI(a1, zero, 1)
			b.Branch(insts.OpBLTU, a0, a1, "taken")
			b.Label("taken")
		}},
		{Name: "jal_1", Steps: 1, Build: func(b *rv.Builder) {
			b.JAL(ra, "target")
			b.ADDI(a0, zero, 1)
			b.Label("target")
		}},
		{Name: "jalr_1", Steps: 3, Build: func(b *rv.Builder) {
			b.LA(t0, "target")
			b.JALR(t0, t0, 0)
			b.ADDI(a0, zero, 1)
			b.Label("target")
		}},
		{Name: "ebreak_1", Steps: 0},
	}
}
