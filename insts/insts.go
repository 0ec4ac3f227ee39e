// Package insts provides RISC-V instruction definitions and decoding.
//
// This package decodes RV64 machine code into structured instruction
// representations. It supports:
//   - RV64I: LUI, AUIPC, JAL, JALR, branches, loads, stores, OP-IMM, OP,
//     OP-IMM-32, OP-32, FENCE, FENCE.I, ECALL, EBREAK
//   - M extension: MUL, MULH, MULHSU, MULHU, DIV, DIVU, REM, REMU and the
//     32-bit W forms
//   - C extension: 16-bit parcels expanded to the ops above with Len == 2
//
// Usage:
//
//	decoder := insts.NewDecoder(insts.WithExtensions(insts.ExtM))
//	inst := decoder.Decode(0x0de00513, 0x1000) // addi a0, zero, 222
//	fmt.Printf("Op: %v, Rd: %s, Imm: %d\n", inst.Op, insts.RegName(inst.Rd), inst.Imm)
package insts

import "fmt"

// Op represents a RISC-V operation.
type Op uint8

// RISC-V operations. OpIllegal is the zero value and marks words the decoder
// does not recognise.
const (
	OpIllegal Op = iota

	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU

	OpSB
	OpSH
	OpSW
	OpSD

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	OpFENCE
	OpFENCEI
	OpECALL
	OpEBREAK

	numOps
)

var opNames = [numOps]string{
	OpIllegal: "illegal",
	OpLUI:     "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLD: "ld", OpLBU: "lbu", OpLHU: "lhu", OpLWU: "lwu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw", OpSD: "sd",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori",
	OpANDI: "andi", OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpADDIW: "addiw", OpSLLIW: "slliw", OpSRLIW: "srliw", OpSRAIW: "sraiw",
	OpADDW: "addw", OpSUBW: "subw", OpSLLW: "sllw", OpSRLW: "srlw", OpSRAW: "sraw",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpMULW: "mulw", OpDIVW: "divw", OpDIVUW: "divuw", OpREMW: "remw", OpREMUW: "remuw",
	OpFENCE: "fence", OpFENCEI: "fence.i", OpECALL: "ecall", OpEBREAK: "ebreak",
}

func (op Op) String() string {
	if op < numOps {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // rd, rs1, rs2
	FormatI              // rd, rs1, imm[11:0]
	FormatS              // rs1, rs2, imm[11:5|4:0]
	FormatB              // rs1, rs2, offset[12|10:5|4:1|11]
	FormatU              // rd, imm[31:12]
	FormatJ              // rd, offset[20|10:1|11|19:12]
)

// Ext is a set of optional ISA extensions.
type Ext uint8

// Optional extensions. The base integer ISA is always enabled.
const (
	ExtM Ext = 1 << iota // integer multiply and divide
	ExtC                 // compressed 16-bit parcels
)

// Has reports whether all extensions in x are in e.
func (e Ext) Has(x Ext) bool {
	return e&x == x
}

func (e Ext) String() string {
	s := "rv64i"
	if e.Has(ExtM) {
		s += "m"
	}
	if e.Has(ExtC) {
		s += "c"
	}
	return s
}

// ParseExt parses an ISA string such as "rv64imc" or "imc".
func ParseExt(s string) (Ext, error) {
	var e Ext
	rest := s
	if len(rest) >= 4 && rest[:4] == "rv64" {
		rest = rest[4:]
	}
	if len(rest) > 0 && rest[0] == 'i' {
		rest = rest[1:]
	}
	for _, c := range rest {
		switch c {
		case 'm':
			e |= ExtM
		case 'c':
			e |= ExtC
		default:
			return 0, fmt.Errorf("insts: unsupported extension %q in %q", c, s)
		}
	}
	return e, nil
}

// Instruction represents a decoded RISC-V instruction.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register
	Rs2 uint8 // Second source register

	Imm int64  // Sign- or zero-extended immediate, shift amount for shifts
	Len uint8  // Encoded length in bytes: 4, or 2 for compressed parcels
	PC  uint64 // Address the word was fetched from
	Raw uint32 // Original encoding
}

// Next returns the address of the sequentially following instruction.
func (i Instruction) Next() uint64 {
	return i.PC + uint64(i.Len)
}

// Target returns the pc-relative target of JAL and conditional branches.
func (i Instruction) Target() uint64 {
	return i.PC + uint64(i.Imm)
}

// IsBranch reports whether the instruction is a conditional branch.
func (i Instruction) IsBranch() bool {
	return i.Op >= OpBEQ && i.Op <= OpBGEU
}

// IsJump reports whether the instruction is JAL or JALR.
func (i Instruction) IsJump() bool {
	return i.Op == OpJAL || i.Op == OpJALR
}

// IsTrap reports whether the instruction transfers control to the
// environment.
func (i Instruction) IsTrap() bool {
	return i.Op == OpECALL || i.Op == OpEBREAK
}

// IsControlTransfer reports whether the instruction may change the pc
// non-sequentially.
func (i Instruction) IsControlTransfer() bool {
	return i.IsBranch() || i.IsJump() || i.IsTrap()
}

// IsLoad reports whether the instruction reads memory.
func (i Instruction) IsLoad() bool {
	return i.Op >= OpLB && i.Op <= OpLWU
}

// IsStore reports whether the instruction writes memory.
func (i Instruction) IsStore() bool {
	return i.Op >= OpSB && i.Op <= OpSD
}

// String renders the operation and its fields for logs.
func (i Instruction) String() string {
	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s %s, %s, %s", i.Op, RegName(i.Rd), RegName(i.Rs1), RegName(i.Rs2))
	case FormatI:
		return fmt.Sprintf("%s %s, %s, %d", i.Op, RegName(i.Rd), RegName(i.Rs1), i.Imm)
	case FormatS, FormatB:
		return fmt.Sprintf("%s %s, %s, %d", i.Op, RegName(i.Rs1), RegName(i.Rs2), i.Imm)
	case FormatU, FormatJ:
		return fmt.Sprintf("%s %s, %#x", i.Op, RegName(i.Rd), i.Imm)
	}
	if i.Op == OpIllegal {
		return fmt.Sprintf("illegal %#08x", i.Raw)
	}
	return i.Op.String()
}
