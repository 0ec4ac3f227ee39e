package emu

import "github.com/sarchlab/rvjit/insts"

// BranchUnit implements RISC-V jumps and conditional branches.
type BranchUnit struct {
	state *State
}

// NewBranchUnit creates a new BranchUnit connected to the given state.
func NewBranchUnit(state *State) *BranchUnit {
	return &BranchUnit{state: state}
}

// Taken reports whether a conditional branch with operands x and y is taken.
func Taken(op insts.Op, x, y uint64) bool {
	switch op {
	case insts.OpBEQ:
		return x == y
	case insts.OpBNE:
		return x != y
	case insts.OpBLT:
		return int64(x) < int64(y)
	case insts.OpBGE:
		return int64(x) >= int64(y)
	case insts.OpBLTU:
		return x < y
	case insts.OpBGEU:
		return x >= y
	}
	return false
}

// Execute performs JAL, JALR or a conditional branch and updates the pc. It
// reports false for other operations.
func (b *BranchUnit) Execute(inst insts.Instruction) bool {
	switch {
	case inst.Op == insts.OpJAL:
		b.state.WriteReg(inst.Rd, inst.Next())
		b.state.PC = inst.Target()
	case inst.Op == insts.OpJALR:
		// Read rs1 before linking; rd may equal rs1.
		target := (b.state.ReadReg(inst.Rs1) + uint64(inst.Imm)) &^ 1
		b.state.WriteReg(inst.Rd, inst.Next())
		b.state.PC = target
	case inst.IsBranch():
		if Taken(inst.Op, b.state.ReadReg(inst.Rs1), b.state.ReadReg(inst.Rs2)) {
			b.state.PC = inst.Target()
		} else {
			b.state.PC = inst.Next()
		}
	default:
		return false
	}
	return true
}
