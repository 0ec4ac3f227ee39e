// Package x86 encodes the x86-64 instructions the trace emitter needs into
// an asm.Assembler. Encodings are host independent; only executing the
// result requires an amd64 host.
package x86

import (
	"encoding/binary"

	"github.com/sarchlab/rvjit/asm"
)

// Reg is a 64-bit general-purpose register number.
type Reg uint8

// General-purpose registers.
const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// Cond is a condition code as used by Jcc, SETcc and CMOVcc.
type Cond uint8

// Condition codes.
const (
	CondO  Cond = 0x0
	CondNO Cond = 0x1
	CondB  Cond = 0x2 // unsigned <
	CondAE Cond = 0x3 // unsigned >=
	CondE  Cond = 0x4
	CondNE Cond = 0x5
	CondBE Cond = 0x6
	CondA  Cond = 0x7
	CondS  Cond = 0x8
	CondNS Cond = 0x9
	CondL  Cond = 0xC // signed <
	CondGE Cond = 0xD // signed >=
	CondLE Cond = 0xE
	CondG  Cond = 0xF
)

// ALUOp selects a two-operand integer operation.
type ALUOp uint8

// Two-operand operations. The value is the ModRM digit of the immediate
// forms; the register form opcode is digit<<3 | 1.
const (
	ADD ALUOp = 0
	OR  ALUOp = 1
	AND ALUOp = 4
	SUB ALUOp = 5
	XOR ALUOp = 6
	CMP ALUOp = 7
)

// ShiftOp selects a shift. The value is the ModRM digit.
type ShiftOp uint8

// Shifts.
const (
	SHL ShiftOp = 4
	SHR ShiftOp = 5
	SAR ShiftOp = 7
)

// Asm emits x86-64 instructions.
type Asm struct {
	a *asm.Assembler
}

// New creates an encoder emitting into a.
func New(a *asm.Assembler) *Asm {
	return &Asm{a: a}
}

// rex returns the REX prefix for the given W bit, ModRM.reg and ModRM.rm
// registers, or 0 when none is needed.
func rex(w bool, reg, rm Reg) byte {
	var b byte
	if w {
		b |= 0x08
	}
	if reg >= R8 {
		b |= 0x04
	}
	if rm >= R8 {
		b |= 0x01
	}
	if b == 0 {
		return 0
	}
	return 0x40 | b
}

func modRM(mod byte, reg, rm Reg) byte {
	return mod<<6 | byte(reg&7)<<3 | byte(rm&7)
}

func (x *Asm) prefix(w bool, reg, rm Reg) {
	if p := rex(w, reg, rm); p != 0 {
		x.a.Emit(p)
	}
}

// regReg emits [REX] opcode ModRM(11, reg, rm).
func (x *Asm) regReg(w bool, reg, rm Reg, opcode ...byte) {
	x.prefix(w, reg, rm)
	x.a.Emit(opcode...)
	x.a.Emit(modRM(3, reg, rm))
}

// regMem emits [REX] opcode ModRM reg, [base+disp].
func (x *Asm) regMem(w bool, reg, base Reg, disp int32, opcode ...byte) {
	x.prefix(w, reg, base)
	x.a.Emit(opcode...)

	var mod byte
	switch {
	case disp == 0 && base&7 != RBP:
		mod = 0
	case disp >= -128 && disp <= 127:
		mod = 1
	default:
		mod = 2
	}
	x.a.Emit(modRM(mod, reg, base))
	if base&7 == RSP {
		x.a.Emit(0x24) // SIB: base only
	}
	switch mod {
	case 1:
		x.a.Emit(byte(int8(disp)))
	case 2:
		x.a.Emit32(uint32(disp))
	}
}

// Load emits MOV dst, qword [base+disp].
func (x *Asm) Load(dst, base Reg, disp int32) {
	x.regMem(true, dst, base, disp, 0x8B)
}

// Store emits MOV qword [base+disp], src.
func (x *Asm) Store(base Reg, disp int32, src Reg) {
	x.regMem(true, src, base, disp, 0x89)
}

// Mov emits MOV dst, src.
func (x *Asm) Mov(dst, src Reg) {
	x.regReg(true, src, dst, 0x89)
}

// MovImm loads a 64-bit constant using the shortest form.
func (x *Asm) MovImm(dst Reg, v uint64) {
	switch {
	case v <= 0xFFFFFFFF:
		// MOV r32, imm32 zero-extends
		x.prefix(false, 0, dst)
		x.a.Emit(0xB8 + byte(dst&7))
		x.a.Emit32(uint32(v))
	case int64(v) == int64(int32(v)):
		// MOV r/m64, imm32 sign-extends
		x.regReg(true, 0, dst, 0xC7)
		x.a.Emit32(uint32(v))
	default:
		x.prefix(true, 0, dst)
		x.a.Emit(0xB8 + byte(dst&7))
		x.a.Emit64(v)
	}
}

// ALU emits a 64-bit "op dst, src".
func (x *Asm) ALU(op ALUOp, dst, src Reg) {
	x.regReg(true, src, dst, byte(op)<<3|1)
}

// ALU32 emits a 32-bit "op dst, src". The upper half of dst is zeroed.
func (x *Asm) ALU32(op ALUOp, dst, src Reg) {
	x.regReg(false, src, dst, byte(op)<<3|1)
}

// ALUImm emits a 64-bit "op dst, imm" with a sign-extended immediate.
func (x *Asm) ALUImm(op ALUOp, dst Reg, v int32) {
	if v >= -128 && v <= 127 {
		x.regReg(true, Reg(op), dst, 0x83)
		x.a.Emit(byte(int8(v)))
		return
	}
	x.regReg(true, Reg(op), dst, 0x81)
	x.a.Emit32(uint32(v))
}

// ALUImm32 emits a 32-bit "op dst, imm".
func (x *Asm) ALUImm32(op ALUOp, dst Reg, v int32) {
	if v >= -128 && v <= 127 {
		x.regReg(false, Reg(op), dst, 0x83)
		x.a.Emit(byte(int8(v)))
		return
	}
	x.regReg(false, Reg(op), dst, 0x81)
	x.a.Emit32(uint32(v))
}

// ShiftImm emits a 64-bit shift by a constant.
func (x *Asm) ShiftImm(op ShiftOp, dst Reg, n uint8) {
	x.regReg(true, Reg(op), dst, 0xC1)
	x.a.Emit(n)
}

// ShiftImm32 emits a 32-bit shift by a constant.
func (x *Asm) ShiftImm32(op ShiftOp, dst Reg, n uint8) {
	x.regReg(false, Reg(op), dst, 0xC1)
	x.a.Emit(n)
}

// ShiftCL emits a 64-bit shift by CL. The hardware masks the count to 6 bits.
func (x *Asm) ShiftCL(op ShiftOp, dst Reg) {
	x.regReg(true, Reg(op), dst, 0xD3)
}

// ShiftCL32 emits a 32-bit shift by CL. The count is masked to 5 bits.
func (x *Asm) ShiftCL32(op ShiftOp, dst Reg) {
	x.regReg(false, Reg(op), dst, 0xD3)
}

// Movsxd emits MOVSXD dst, src32: sign-extends the low half of src.
func (x *Asm) Movsxd(dst, src Reg) {
	x.regReg(true, dst, src, 0x63)
}

// Imul emits the 64-bit two-operand IMUL dst, src.
func (x *Asm) Imul(dst, src Reg) {
	x.regReg(true, dst, src, 0x0F, 0xAF)
}

// Imul32 emits the 32-bit two-operand IMUL dst, src.
func (x *Asm) Imul32(dst, src Reg) {
	x.regReg(false, dst, src, 0x0F, 0xAF)
}

// MulWide emits the one-operand MUL (unsigned) or IMUL (signed):
// RDX:RAX = RAX * src.
func (x *Asm) MulWide(signed bool, src Reg) {
	digit := Reg(4)
	if signed {
		digit = 5
	}
	x.regReg(true, digit, src, 0xF7)
}

// Setcc emits SETcc on the low byte of dst followed by MOVZX dst32, dst8, so
// dst holds 0 or 1.
func (x *Asm) Setcc(cc Cond, dst Reg) {
	if dst >= RSP {
		x.a.Emit(0x40 | rex(false, 0, dst)&0x0F) // select SPL..DIL, not AH..BH
	}
	x.a.Emit(0x0F, 0x90|byte(cc), modRM(3, 0, dst))

	if dst >= RSP {
		x.a.Emit(0x40 | rex(false, dst, dst)&0x0F)
	}
	x.a.Emit(0x0F, 0xB6, modRM(3, dst, dst))
}

// Cmov emits CMOVcc dst, src.
func (x *Asm) Cmov(cc Cond, dst, src Reg) {
	x.regReg(true, dst, src, 0x0F, 0x40|byte(cc))
}

// Jmp emits JMP rel32 to label.
func (x *Asm) Jmp(label string) {
	x.a.Emit(0xE9)
	x.a.Ref(label, Rel32{})
	x.a.Emit32(0)
}

// Jcc emits Jcc rel32 to label.
func (x *Asm) Jcc(cc Cond, label string) {
	x.a.Emit(0x0F, 0x80|byte(cc))
	x.a.Ref(label, Rel32{})
	x.a.Emit32(0)
}

// Ret emits RET.
func (x *Asm) Ret() {
	x.a.Emit(0xC3)
}

// Rel32 patches a 32-bit displacement relative to the end of the field.
type Rel32 struct{}

// Size implements asm.Fixup.
func (Rel32) Size() int { return 4 }

// Patch implements asm.Fixup.
func (Rel32) Patch(field []byte, place, target uint64) error {
	rel := int64(target - (place + 4))
	if rel != int64(int32(rel)) {
		return asm.ErrRelocationRange
	}
	binary.LittleEndian.PutUint32(field, uint32(rel))
	return nil
}
