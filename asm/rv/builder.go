// Package rv encodes RISC-V instructions into an asm.Assembler.
//
// Builder methods never return errors. The first immediate that does not
// fit its field is recorded and reported by Err; later instructions are
// still emitted so offsets stay meaningful.
package rv

import (
	"fmt"

	"github.com/sarchlab/rvjit/asm"
	"github.com/sarchlab/rvjit/imm"
	"github.com/sarchlab/rvjit/insts"
)

type encoding struct {
	opcode uint32
	funct3 uint32
	funct7 uint32
	format insts.Format
}

var encodings = map[insts.Op]encoding{
	insts.OpLUI:   {0b0110111, 0, 0, insts.FormatU},
	insts.OpAUIPC: {0b0010111, 0, 0, insts.FormatU},
	insts.OpJAL:   {0b1101111, 0, 0, insts.FormatJ},
	insts.OpJALR:  {0b1100111, 0, 0, insts.FormatI},

	insts.OpBEQ:  {0b1100011, 0, 0, insts.FormatB},
	insts.OpBNE:  {0b1100011, 1, 0, insts.FormatB},
	insts.OpBLT:  {0b1100011, 4, 0, insts.FormatB},
	insts.OpBGE:  {0b1100011, 5, 0, insts.FormatB},
	insts.OpBLTU: {0b1100011, 6, 0, insts.FormatB},
	insts.OpBGEU: {0b1100011, 7, 0, insts.FormatB},

	insts.OpLB:  {0b0000011, 0, 0, insts.FormatI},
	insts.OpLH:  {0b0000011, 1, 0, insts.FormatI},
	insts.OpLW:  {0b0000011, 2, 0, insts.FormatI},
	insts.OpLD:  {0b0000011, 3, 0, insts.FormatI},
	insts.OpLBU: {0b0000011, 4, 0, insts.FormatI},
	insts.OpLHU: {0b0000011, 5, 0, insts.FormatI},
	insts.OpLWU: {0b0000011, 6, 0, insts.FormatI},

	insts.OpSB: {0b0100011, 0, 0, insts.FormatS},
	insts.OpSH: {0b0100011, 1, 0, insts.FormatS},
	insts.OpSW: {0b0100011, 2, 0, insts.FormatS},
	insts.OpSD: {0b0100011, 3, 0, insts.FormatS},

	insts.OpADDI:  {0b0010011, 0, 0, insts.FormatI},
	insts.OpSLTI:  {0b0010011, 2, 0, insts.FormatI},
	insts.OpSLTIU: {0b0010011, 3, 0, insts.FormatI},
	insts.OpXORI:  {0b0010011, 4, 0, insts.FormatI},
	insts.OpORI:   {0b0010011, 6, 0, insts.FormatI},
	insts.OpANDI:  {0b0010011, 7, 0, insts.FormatI},
	insts.OpSLLI:  {0b0010011, 1, 0, insts.FormatI},
	insts.OpSRLI:  {0b0010011, 5, 0, insts.FormatI},
	insts.OpSRAI:  {0b0010011, 5, 0b0100000, insts.FormatI},

	insts.OpADD:  {0b0110011, 0, 0, insts.FormatR},
	insts.OpSUB:  {0b0110011, 0, 0b0100000, insts.FormatR},
	insts.OpSLL:  {0b0110011, 1, 0, insts.FormatR},
	insts.OpSLT:  {0b0110011, 2, 0, insts.FormatR},
	insts.OpSLTU: {0b0110011, 3, 0, insts.FormatR},
	insts.OpXOR:  {0b0110011, 4, 0, insts.FormatR},
	insts.OpSRL:  {0b0110011, 5, 0, insts.FormatR},
	insts.OpSRA:  {0b0110011, 5, 0b0100000, insts.FormatR},
	insts.OpOR:   {0b0110011, 6, 0, insts.FormatR},
	insts.OpAND:  {0b0110011, 7, 0, insts.FormatR},

	insts.OpADDIW: {0b0011011, 0, 0, insts.FormatI},
	insts.OpSLLIW: {0b0011011, 1, 0, insts.FormatI},
	insts.OpSRLIW: {0b0011011, 5, 0, insts.FormatI},
	insts.OpSRAIW: {0b0011011, 5, 0b0100000, insts.FormatI},
	insts.OpADDW:  {0b0111011, 0, 0, insts.FormatR},
	insts.OpSUBW:  {0b0111011, 0, 0b0100000, insts.FormatR},
	insts.OpSLLW:  {0b0111011, 1, 0, insts.FormatR},
	insts.OpSRLW:  {0b0111011, 5, 0, insts.FormatR},
	insts.OpSRAW:  {0b0111011, 5, 0b0100000, insts.FormatR},

	insts.OpMUL:    {0b0110011, 0, 1, insts.FormatR},
	insts.OpMULH:   {0b0110011, 1, 1, insts.FormatR},
	insts.OpMULHSU: {0b0110011, 2, 1, insts.FormatR},
	insts.OpMULHU:  {0b0110011, 3, 1, insts.FormatR},
	insts.OpDIV:    {0b0110011, 4, 1, insts.FormatR},
	insts.OpDIVU:   {0b0110011, 5, 1, insts.FormatR},
	insts.OpREM:    {0b0110011, 6, 1, insts.FormatR},
	insts.OpREMU:   {0b0110011, 7, 1, insts.FormatR},
	insts.OpMULW:   {0b0111011, 0, 1, insts.FormatR},
	insts.OpDIVW:   {0b0111011, 4, 1, insts.FormatR},
	insts.OpDIVUW:  {0b0111011, 5, 1, insts.FormatR},
	insts.OpREMW:   {0b0111011, 6, 1, insts.FormatR},
	insts.OpREMUW:  {0b0111011, 7, 1, insts.FormatR},
}

// Builder emits RISC-V instructions into an assembler.
type Builder struct {
	a   *asm.Assembler
	err error
}

// NewBuilder creates a builder emitting into a.
func NewBuilder(a *asm.Assembler) *Builder {
	return &Builder{a: a}
}

// Assembler returns the underlying assembler.
func (b *Builder) Assembler() *asm.Assembler {
	return b.a
}

// Err returns the first encoding error.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Label defines name at the current position.
func (b *Builder) Label(name string) {
	if err := b.a.Label(name); err != nil {
		b.fail(err)
	}
}

func (b *Builder) base(op insts.Op) (encoding, bool) {
	e, ok := encodings[op]
	if !ok {
		b.fail(fmt.Errorf("rv: no encoding for %s", op))
	}
	return e, ok
}

func (b *Builder) field(op insts.Op, d *imm.Descriptor, v imm.Value) uint32 {
	if !v.Valid() {
		b.fail(fmt.Errorf("rv: %s: %w: %s", op, imm.ErrOutOfRange, v))
		return 0
	}
	enc, err := d.Encode(v)
	if err != nil {
		b.fail(fmt.Errorf("rv: %s: %w", op, err))
		return 0
	}
	return enc
}

// R emits a register-register instruction.
func (b *Builder) R(op insts.Op, rd, rs1, rs2 uint8) {
	e, ok := b.base(op)
	if !ok {
		return
	}
	b.a.Emit32(e.funct7<<25 | uint32(rs2&31)<<20 | uint32(rs1&31)<<15 |
		e.funct3<<12 | uint32(rd&31)<<7 | e.opcode)
}

// I emits a register-immediate instruction. Shift amounts are checked
// against the 6-bit (or 5-bit for W forms) shamt field.
func (b *Builder) I(op insts.Op, rd, rs1 uint8, v int64) {
	e, ok := b.base(op)
	if !ok {
		return
	}

	var field uint32
	switch op {
	case insts.OpSLLI, insts.OpSRLI, insts.OpSRAI:
		field = b.field(op, insts.Shamt6, imm.U(6, uint64(v)))
	case insts.OpSLLIW, insts.OpSRLIW, insts.OpSRAIW:
		field = b.field(op, insts.Shamt5, imm.U(5, uint64(v)))
	default:
		field = b.field(op, insts.ImmI, imm.S(12, v))
	}

	b.a.Emit32(field | e.funct7<<25 | uint32(rs1&31)<<15 | e.funct3<<12 | uint32(rd&31)<<7 | e.opcode)
}

// Load emits rd = mem[rs1 + off].
func (b *Builder) Load(op insts.Op, rd, rs1 uint8, off int64) {
	b.I(op, rd, rs1, off)
}

// Store emits mem[rs1 + off] = rs2.
func (b *Builder) Store(op insts.Op, rs2, rs1 uint8, off int64) {
	e, ok := b.base(op)
	if !ok {
		return
	}
	field := b.field(op, insts.ImmS, imm.S(12, off))
	b.a.Emit32(field | uint32(rs2&31)<<20 | uint32(rs1&31)<<15 | e.funct3<<12 | e.opcode)
}

// LUI loads a 20-bit upper immediate: rd = sext(hi20 << 12).
func (b *Builder) LUI(rd uint8, hi20 uint32) {
	b.upper(insts.OpLUI, rd, hi20)
}

// AUIPC adds a 20-bit upper immediate to the pc.
func (b *Builder) AUIPC(rd uint8, hi20 uint32) {
	b.upper(insts.OpAUIPC, rd, hi20)
}

func (b *Builder) upper(op insts.Op, rd uint8, hi20 uint32) {
	e, _ := b.base(op)
	if !imm.U(20, uint64(hi20)).Valid() {
		b.fail(fmt.Errorf("rv: %s: %w: %#x", op, imm.ErrOutOfRange, hi20))
		hi20 = 0
	}
	field := b.field(op, insts.ImmU, imm.S(32, int64(int32(hi20<<12))))
	b.a.Emit32(field | uint32(rd&31)<<7 | e.opcode)
}

// Branch emits a conditional branch to label.
func (b *Builder) Branch(op insts.Op, rs1, rs2 uint8, label string) {
	e, ok := b.base(op)
	if !ok || e.format != insts.FormatB {
		b.fail(fmt.Errorf("rv: %s is not a branch", op))
		return
	}
	b.a.Ref(label, Branch{})
	b.a.Emit32(uint32(rs2&31)<<20 | uint32(rs1&31)<<15 | e.funct3<<12 | e.opcode)
}

// BranchOffset emits a conditional branch with a literal offset.
func (b *Builder) BranchOffset(op insts.Op, rs1, rs2 uint8, off int64) {
	e, ok := b.base(op)
	if !ok {
		return
	}
	field := b.field(op, insts.ImmB, imm.S(13, off))
	b.a.Emit32(field | uint32(rs2&31)<<20 | uint32(rs1&31)<<15 | e.funct3<<12 | e.opcode)
}

// JAL emits a jump-and-link to label.
func (b *Builder) JAL(rd uint8, label string) {
	b.a.Ref(label, Jal{})
	b.a.Emit32(uint32(rd&31)<<7 | encodings[insts.OpJAL].opcode)
}

// JALOffset emits a jump-and-link with a literal offset.
func (b *Builder) JALOffset(rd uint8, off int64) {
	field := b.field(insts.OpJAL, insts.ImmJ, imm.S(21, off))
	b.a.Emit32(field | uint32(rd&31)<<7 | encodings[insts.OpJAL].opcode)
}

// JALR emits rd = pc + len; pc = (rs1 + off) &^ 1.
func (b *Builder) JALR(rd, rs1 uint8, off int64) {
	b.I(insts.OpJALR, rd, rs1, off)
}

// LA loads the address of label with an AUIPC/ADDI pair.
func (b *Builder) LA(rd uint8, label string) {
	b.a.Ref(label, PCRelHi20{})
	b.AUIPC(rd, 0)
	b.a.Ref(label, PCRelLo12{Anchor: 4})
	b.ADDI(rd, rd, 0)
}

// ADDI emits rd = rs1 + v.
func (b *Builder) ADDI(rd, rs1 uint8, v int64) { b.I(insts.OpADDI, rd, rs1, v) }

// ADDIW emits rd = sext32(rs1 + v).
func (b *Builder) ADDIW(rd, rs1 uint8, v int64) { b.I(insts.OpADDIW, rd, rs1, v) }

// XORI emits rd = rs1 ^ v.
func (b *Builder) XORI(rd, rs1 uint8, v int64) { b.I(insts.OpXORI, rd, rs1, v) }

// ORI emits rd = rs1 | v.
func (b *Builder) ORI(rd, rs1 uint8, v int64) { b.I(insts.OpORI, rd, rs1, v) }

// ANDI emits rd = rs1 & v.
func (b *Builder) ANDI(rd, rs1 uint8, v int64) { b.I(insts.OpANDI, rd, rs1, v) }

// SLLI emits rd = rs1 << v.
func (b *Builder) SLLI(rd, rs1 uint8, v int64) { b.I(insts.OpSLLI, rd, rs1, v) }

// SRLI emits a logical right shift by v.
func (b *Builder) SRLI(rd, rs1 uint8, v int64) { b.I(insts.OpSRLI, rd, rs1, v) }

// SRAI emits an arithmetic right shift by v.
func (b *Builder) SRAI(rd, rs1 uint8, v int64) { b.I(insts.OpSRAI, rd, rs1, v) }

// ADD emits rd = rs1 + rs2.
func (b *Builder) ADD(rd, rs1, rs2 uint8) { b.R(insts.OpADD, rd, rs1, rs2) }

// SUB emits rd = rs1 - rs2.
func (b *Builder) SUB(rd, rs1, rs2 uint8) { b.R(insts.OpSUB, rd, rs1, rs2) }

// SLL emits rd = rs1 << rs2.
func (b *Builder) SLL(rd, rs1, rs2 uint8) { b.R(insts.OpSLL, rd, rs1, rs2) }

// MUL emits rd = rs1 * rs2.
func (b *Builder) MUL(rd, rs1, rs2 uint8) { b.R(insts.OpMUL, rd, rs1, rs2) }

// MV copies rs to rd.
func (b *Builder) MV(rd, rs uint8) { b.ADDI(rd, rs, 0) }

// NOP emits addi zero, zero, 0.
func (b *Builder) NOP() { b.ADDI(insts.RegZero, insts.RegZero, 0) }

// RET returns through ra.
func (b *Builder) RET() { b.JALR(insts.RegZero, insts.RegRA, 0) }

// ECALL emits an environment call.
func (b *Builder) ECALL() { b.a.Emit32(0x00000073) }

// EBREAK emits a breakpoint.
func (b *Builder) EBREAK() { b.a.Emit32(0x00100073) }

// FENCE emits a full fence.
func (b *Builder) FENCE() { b.a.Emit32(0x0ff0000f) }

// FENCEI emits an instruction-stream fence.
func (b *Builder) FENCEI() { b.a.Emit32(0x0000100f) }
