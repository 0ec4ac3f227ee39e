package insts

// decodeCompressed expands a 16-bit parcel into the equivalent base
// instruction with Len == 2. Floating-point and reserved encodings are
// illegal.
func (d *Decoder) decodeCompressed(p uint16, pc uint64) Instruction {
	word := uint32(p)
	inst := Instruction{Len: 2, PC: pc, Raw: word}

	if p == 0 {
		return illegal(word, pc, 2)
	}

	quadrant := p & 0b11        // bits [1:0]
	funct3 := (p >> 13) & 0x7   // bits [15:13]
	rd := uint8(p>>7) & 0x1F    // bits [11:7]
	rs2 := uint8(p>>2) & 0x1F   // bits [6:2]
	rdp := 8 + uint8(p>>2)&0x7  // rd' bits [4:2]
	rs1p := 8 + uint8(p>>7)&0x7 // rs1' bits [9:7]

	var ok bool
	switch quadrant {
	case 0b00:
		ok = d.quadrant0(&inst, word, funct3, rdp, rs1p)
	case 0b01:
		ok = d.quadrant1(&inst, word, p, funct3, rd, rdp, rs1p)
	case 0b10:
		ok = d.quadrant2(&inst, word, p, funct3, rd, rs2)
	}
	if !ok {
		return illegal(word, pc, 2)
	}
	return inst
}

func (d *Decoder) quadrant0(inst *Instruction, word uint32, funct3 uint16, rdp, rs1p uint8) bool {
	switch funct3 {
	case 0b000: // c.addi4spn
		v := ImmCIW.Decode(word)
		if v == 0 {
			return false
		}
		cI(inst, OpADDI, rdp, RegSP, v)
	case 0b010: // c.lw
		cI(inst, OpLW, rdp, rs1p, ImmCLW.Decode(word))
	case 0b011: // c.ld
		cI(inst, OpLD, rdp, rs1p, ImmCLD.Decode(word))
	case 0b110: // c.sw
		cS(inst, OpSW, rs1p, rdp, ImmCLW.Decode(word))
	case 0b111: // c.sd
		cS(inst, OpSD, rs1p, rdp, ImmCLD.Decode(word))
	default:
		return false
	}
	return true
}

func (d *Decoder) quadrant1(
	inst *Instruction, word uint32, p uint16, funct3 uint16, rd, rdp, rs1p uint8,
) bool {
	switch funct3 {
	case 0b000: // c.addi, c.nop
		cI(inst, OpADDI, rd, rd, ImmCI.Decode(word))
	case 0b001: // c.addiw
		if rd == 0 {
			return false
		}
		cI(inst, OpADDIW, rd, rd, ImmCI.Decode(word))
	case 0b010: // c.li
		cI(inst, OpADDI, rd, RegZero, ImmCI.Decode(word))
	case 0b011:
		if rd == RegSP { // c.addi16sp
			v := ImmCADDI16SP.Decode(word)
			if v == 0 {
				return false
			}
			cI(inst, OpADDI, RegSP, RegSP, v)
			return true
		}
		v := ImmCLUI.Decode(word) // c.lui
		if rd == 0 || v == 0 {
			return false
		}
		inst.Format = FormatU
		inst.Op = OpLUI
		inst.Rd = rd
		inst.Imm = v
	case 0b100:
		return d.quadrant1Arith(inst, word, p, rs1p, rdp)
	case 0b101: // c.j
		inst.Format = FormatJ
		inst.Op = OpJAL
		inst.Rd = RegZero
		inst.Imm = ImmCJ.Decode(word)
	case 0b110, 0b111: // c.beqz, c.bnez
		inst.Format = FormatB
		inst.Op = OpBEQ
		if funct3 == 0b111 {
			inst.Op = OpBNE
		}
		inst.Rs1 = rs1p
		inst.Rs2 = RegZero
		inst.Imm = ImmCB.Decode(word)
	}
	return true
}

// quadrant1Arith decodes the register-register and register-immediate
// group selected by bits [11:10].
func (d *Decoder) quadrant1Arith(inst *Instruction, word uint32, p uint16, rs1p, rs2p uint8) bool {
	funct2 := (p >> 10) & 0x3 // bits [11:10]
	switch funct2 {
	case 0b00: // c.srli
		cI(inst, OpSRLI, rs1p, rs1p, ShamtC.Decode(word))
		return true
	case 0b01: // c.srai
		cI(inst, OpSRAI, rs1p, rs1p, ShamtC.Decode(word))
		return true
	case 0b10: // c.andi
		cI(inst, OpANDI, rs1p, rs1p, ImmCI.Decode(word))
		return true
	}

	sel := (p >> 5) & 0x3 // bits [6:5]
	var op Op
	if p&(1<<12) == 0 {
		op = [4]Op{OpSUB, OpXOR, OpOR, OpAND}[sel]
	} else {
		op = [4]Op{OpSUBW, OpADDW, OpIllegal, OpIllegal}[sel]
	}
	if op == OpIllegal {
		return false
	}
	setR(inst, op, rs1p, rs1p, rs2p)
	return true
}

func (d *Decoder) quadrant2(inst *Instruction, word uint32, p uint16, funct3 uint16, rd, rs2 uint8) bool {
	bit12 := p&(1<<12) != 0
	switch funct3 {
	case 0b000: // c.slli
		cI(inst, OpSLLI, rd, rd, ShamtC.Decode(word))
	case 0b010: // c.lwsp
		if rd == 0 {
			return false
		}
		cI(inst, OpLW, rd, RegSP, ImmCLWSP.Decode(word))
	case 0b011: // c.ldsp
		if rd == 0 {
			return false
		}
		cI(inst, OpLD, rd, RegSP, ImmCLDSP.Decode(word))
	case 0b100:
		switch {
		case !bit12 && rs2 == 0: // c.jr
			if rd == 0 {
				return false
			}
			cI(inst, OpJALR, RegZero, rd, 0)
		case !bit12: // c.mv
			setR(inst, OpADD, rd, RegZero, rs2)
		case rd == 0 && rs2 == 0: // c.ebreak
			inst.Op = OpEBREAK
		case rs2 == 0: // c.jalr
			cI(inst, OpJALR, RegRA, rd, 0)
		default: // c.add
			setR(inst, OpADD, rd, rd, rs2)
		}
	case 0b110: // c.swsp
		cS(inst, OpSW, RegSP, rs2, ImmCSWSP.Decode(word))
	case 0b111: // c.sdsp
		cS(inst, OpSD, RegSP, rs2, ImmCSDSP.Decode(word))
	default:
		return false
	}
	return true
}

func cI(inst *Instruction, op Op, rd, rs1 uint8, v int64) {
	inst.Format = FormatI
	inst.Op = op
	inst.Rd = rd
	inst.Rs1 = rs1
	inst.Imm = v
}

func cS(inst *Instruction, op Op, rs1, rs2 uint8, v int64) {
	inst.Format = FormatS
	inst.Op = op
	inst.Rs1 = rs1
	inst.Rs2 = rs2
	inst.Imm = v
}
