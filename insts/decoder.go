package insts

// Major opcodes, bits [6:0].
const (
	opcLoad     = 0b0000011
	opcMiscMem  = 0b0001111
	opcOpImm    = 0b0010011
	opcAUIPC    = 0b0010111
	opcOpImm32  = 0b0011011
	opcStore    = 0b0100011
	opcOp       = 0b0110011
	opcLUI      = 0b0110111
	opcOp32     = 0b0111011
	opcBranch   = 0b1100011
	opcJALR     = 0b1100111
	opcJAL      = 0b1101111
	opcSystem   = 0b1110011
	wordECALL   = 0x00000073
	wordEBREAK  = 0x00100073
	funct7Alt   = 0b0100000
	funct7MulDv = 0b0000001
)

// Decoder decodes RISC-V machine code into instructions.
type Decoder struct {
	ext Ext
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithExtensions enables optional ISA extensions.
func WithExtensions(ext Ext) DecoderOption {
	return func(d *Decoder) {
		d.ext |= ext
	}
}

// NewDecoder creates a new RV64I decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Extensions returns the enabled extension set.
func (d *Decoder) Extensions() Ext {
	return d.ext
}

// InstLen returns the encoded length of the instruction whose first parcel
// is p: 2 for compressed encodings, 4 otherwise.
func InstLen(p uint16) int {
	if p&0b11 != 0b11 {
		return 2
	}
	return 4
}

// Decode decodes the instruction at pc. word holds the 32 bits fetched at
// pc; for compressed parcels only the low half is used. Decode is total:
// unrecognised words give OpIllegal with Raw set.
func (d *Decoder) Decode(word uint32, pc uint64) Instruction {
	if InstLen(uint16(word)) == 2 {
		if !d.ext.Has(ExtC) {
			return illegal(word, pc, 4)
		}
		return d.decodeCompressed(uint16(word), pc)
	}

	// bits [4:2] == 111 selects 48-bit and longer encodings
	if word&0b11100 == 0b11100 {
		return illegal(word, pc, 4)
	}

	inst := Instruction{Len: 4, PC: pc, Raw: word}

	opcode := word & 0x7F         // bits [6:0]
	rd := uint8(word>>7) & 0x1F   // bits [11:7]
	funct3 := (word >> 12) & 0x7  // bits [14:12]
	rs1 := uint8(word>>15) & 0x1F // bits [19:15]
	rs2 := uint8(word>>20) & 0x1F // bits [24:20]
	funct7 := word >> 25          // bits [31:25]

	switch opcode {
	case opcLUI, opcAUIPC:
		inst.Format = FormatU
		inst.Rd = rd
		inst.Imm = ImmU.Decode(word)
		inst.Op = OpLUI
		if opcode == opcAUIPC {
			inst.Op = OpAUIPC
		}

	case opcJAL:
		inst.Format = FormatJ
		inst.Op = OpJAL
		inst.Rd = rd
		inst.Imm = ImmJ.Decode(word)

	case opcJALR:
		if funct3 != 0 {
			return illegal(word, pc, 4)
		}
		d.setI(&inst, OpJALR, rd, rs1, word)

	case opcBranch:
		op := [8]Op{OpBEQ, OpBNE, OpIllegal, OpIllegal, OpBLT, OpBGE, OpBLTU, OpBGEU}[funct3]
		if op == OpIllegal {
			return illegal(word, pc, 4)
		}
		inst.Format = FormatB
		inst.Op = op
		inst.Rs1, inst.Rs2 = rs1, rs2
		inst.Imm = ImmB.Decode(word)

	case opcLoad:
		op := [8]Op{OpLB, OpLH, OpLW, OpLD, OpLBU, OpLHU, OpLWU, OpIllegal}[funct3]
		if op == OpIllegal {
			return illegal(word, pc, 4)
		}
		d.setI(&inst, op, rd, rs1, word)

	case opcStore:
		if funct3 > 3 {
			return illegal(word, pc, 4)
		}
		inst.Format = FormatS
		inst.Op = [4]Op{OpSB, OpSH, OpSW, OpSD}[funct3]
		inst.Rs1, inst.Rs2 = rs1, rs2
		inst.Imm = ImmS.Decode(word)

	case opcOpImm:
		return d.decodeOpImm(inst, word, rd, funct3, rs1)

	case opcOpImm32:
		return d.decodeOpImm32(inst, word, rd, funct3, rs1, funct7)

	case opcOp:
		op := d.opTable(funct3, funct7)
		if op == OpIllegal {
			return illegal(word, pc, 4)
		}
		setR(&inst, op, rd, rs1, rs2)

	case opcOp32:
		op := d.op32Table(funct3, funct7)
		if op == OpIllegal {
			return illegal(word, pc, 4)
		}
		setR(&inst, op, rd, rs1, rs2)

	case opcMiscMem:
		switch funct3 {
		case 0:
			inst.Op = OpFENCE
		case 1:
			inst.Op = OpFENCEI
		default:
			return illegal(word, pc, 4)
		}

	case opcSystem:
		switch word {
		case wordECALL:
			inst.Op = OpECALL
		case wordEBREAK:
			inst.Op = OpEBREAK
		default:
			return illegal(word, pc, 4)
		}

	default:
		return illegal(word, pc, 4)
	}

	return inst
}

func (d *Decoder) setI(inst *Instruction, op Op, rd, rs1 uint8, word uint32) {
	inst.Format = FormatI
	inst.Op = op
	inst.Rd = rd
	inst.Rs1 = rs1
	inst.Imm = ImmI.Decode(word)
}

func setR(inst *Instruction, op Op, rd, rs1, rs2 uint8) {
	inst.Format = FormatR
	inst.Op = op
	inst.Rd = rd
	inst.Rs1 = rs1
	inst.Rs2 = rs2
}

// decodeOpImm decodes the OP-IMM major opcode.
// Shifts: funct6 | shamt[5:0] | rs1 | funct3 | rd | 0010011
func (d *Decoder) decodeOpImm(inst Instruction, word uint32, rd uint8, funct3 uint32, rs1 uint8) Instruction {
	switch funct3 {
	case 1, 5:
		funct6 := word >> 26 // bits [31:26]
		var op Op
		switch {
		case funct3 == 1 && funct6 == 0:
			op = OpSLLI
		case funct3 == 5 && funct6 == 0:
			op = OpSRLI
		case funct3 == 5 && funct6 == funct7Alt>>1:
			op = OpSRAI
		default:
			return illegal(word, inst.PC, 4)
		}
		inst.Format = FormatI
		inst.Op = op
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Imm = Shamt6.Decode(word)
		return inst
	}

	op := [8]Op{OpADDI, OpIllegal, OpSLTI, OpSLTIU, OpXORI, OpIllegal, OpORI, OpANDI}[funct3]
	d.setI(&inst, op, rd, rs1, word)
	return inst
}

// decodeOpImm32 decodes the OP-IMM-32 major opcode.
func (d *Decoder) decodeOpImm32(
	inst Instruction, word uint32, rd uint8, funct3 uint32, rs1 uint8, funct7 uint32,
) Instruction {
	var op Op
	switch {
	case funct3 == 0:
		d.setI(&inst, OpADDIW, rd, rs1, word)
		return inst
	case funct3 == 1 && funct7 == 0:
		op = OpSLLIW
	case funct3 == 5 && funct7 == 0:
		op = OpSRLIW
	case funct3 == 5 && funct7 == funct7Alt:
		op = OpSRAIW
	default:
		return illegal(word, inst.PC, 4)
	}
	inst.Format = FormatI
	inst.Op = op
	inst.Rd, inst.Rs1 = rd, rs1
	inst.Imm = Shamt5.Decode(word)
	return inst
}

func (d *Decoder) opTable(funct3, funct7 uint32) Op {
	switch funct7 {
	case 0:
		return [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}[funct3]
	case funct7Alt:
		switch funct3 {
		case 0:
			return OpSUB
		case 5:
			return OpSRA
		}
	case funct7MulDv:
		if d.ext.Has(ExtM) {
			return [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}[funct3]
		}
	}
	return OpIllegal
}

func (d *Decoder) op32Table(funct3, funct7 uint32) Op {
	switch funct7 {
	case 0:
		switch funct3 {
		case 0:
			return OpADDW
		case 1:
			return OpSLLW
		case 5:
			return OpSRLW
		}
	case funct7Alt:
		switch funct3 {
		case 0:
			return OpSUBW
		case 5:
			return OpSRAW
		}
	case funct7MulDv:
		if d.ext.Has(ExtM) {
			return [8]Op{OpMULW, OpIllegal, OpIllegal, OpIllegal, OpDIVW, OpDIVUW, OpREMW, OpREMUW}[funct3]
		}
	}
	return OpIllegal
}

func illegal(word uint32, pc uint64, length uint8) Instruction {
	return Instruction{Op: OpIllegal, Raw: word, PC: pc, Len: length}
}
