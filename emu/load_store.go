package emu

import (
	"fmt"

	"github.com/sarchlab/rvjit/insts"
)

// LoadStoreUnit implements RISC-V loads and stores.
type LoadStoreUnit struct {
	state      *State
	memory     *Memory
	translator Translator
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given state
// and memory. Addresses pass through the translator.
func NewLoadStoreUnit(state *State, memory *Memory, translator Translator) *LoadStoreUnit {
	return &LoadStoreUnit{
		state:      state,
		memory:     memory,
		translator: translator,
	}
}

func accessSize(op insts.Op) int {
	switch op {
	case insts.OpLB, insts.OpLBU, insts.OpSB:
		return 1
	case insts.OpLH, insts.OpLHU, insts.OpSH:
		return 2
	case insts.OpLW, insts.OpLWU, insts.OpSW:
		return 4
	}
	return 8
}

// Load executes a load instruction.
func (lsu *LoadStoreUnit) Load(inst insts.Instruction) error {
	size := accessSize(inst.Op)
	vaddr := lsu.state.ReadReg(inst.Rs1) + uint64(inst.Imm)
	addr, err := lsu.translator.Translate(vaddr, size, AccessLoad)
	if err != nil {
		return fmt.Errorf("%s at pc=%#x: %w", inst.Op, inst.PC, err)
	}

	var v uint64
	switch inst.Op {
	case insts.OpLB:
		v = uint64(int64(int8(lsu.memory.Read8(addr))))
	case insts.OpLBU:
		v = uint64(lsu.memory.Read8(addr))
	case insts.OpLH:
		v = uint64(int64(int16(lsu.memory.Read16(addr))))
	case insts.OpLHU:
		v = uint64(lsu.memory.Read16(addr))
	case insts.OpLW:
		v = sext32(lsu.memory.Read32(addr))
	case insts.OpLWU:
		v = uint64(lsu.memory.Read32(addr))
	case insts.OpLD:
		v = lsu.memory.Read64(addr)
	}
	lsu.state.WriteReg(inst.Rd, v)
	return nil
}

// Store executes a store instruction.
func (lsu *LoadStoreUnit) Store(inst insts.Instruction) error {
	size := accessSize(inst.Op)
	vaddr := lsu.state.ReadReg(inst.Rs1) + uint64(inst.Imm)
	addr, err := lsu.translator.Translate(vaddr, size, AccessStore)
	if err != nil {
		return fmt.Errorf("%s at pc=%#x: %w", inst.Op, inst.PC, err)
	}

	v := lsu.state.ReadReg(inst.Rs2)
	switch size {
	case 1:
		lsu.memory.Write8(addr, byte(v))
	case 2:
		lsu.memory.Write16(addr, uint16(v))
	case 4:
		lsu.memory.Write32(addr, uint32(v))
	default:
		lsu.memory.Write64(addr, v)
	}
	return nil
}
