package emu

import (
	"math"
	"math/bits"

	"github.com/sarchlab/rvjit/insts"
)

// ALU implements the RV64IM integer operations.
type ALU struct {
	state *State
}

// NewALU creates a new ALU connected to the given state.
func NewALU(state *State) *ALU {
	return &ALU{state: state}
}

// Execute computes an OP, OP-IMM, OP-32, OP-IMM-32, LUI or AUIPC instruction
// and writes rd. It reports false for operations outside the ALU.
func (a *ALU) Execute(inst insts.Instruction) bool {
	switch inst.Op {
	case insts.OpLUI:
		a.state.WriteReg(inst.Rd, uint64(inst.Imm))
		return true
	case insts.OpAUIPC:
		a.state.WriteReg(inst.Rd, inst.PC+uint64(inst.Imm))
		return true
	}

	x := a.state.ReadReg(inst.Rs1)
	y := uint64(inst.Imm)
	if inst.Format == insts.FormatR {
		y = a.state.ReadReg(inst.Rs2)
	}

	v, ok := Eval(inst.Op, x, y)
	if ok {
		a.state.WriteReg(inst.Rd, v)
	}
	return ok
}

// Eval applies an arithmetic operation to two operands. For immediate forms
// y is the immediate. It reports false for operations that are not pure
// register computations.
func Eval(op insts.Op, x, y uint64) (uint64, bool) {
	switch op {
	case insts.OpADD, insts.OpADDI:
		return x + y, true
	case insts.OpSUB:
		return x - y, true
	case insts.OpSLT, insts.OpSLTI:
		return b2u(int64(x) < int64(y)), true
	case insts.OpSLTU, insts.OpSLTIU:
		return b2u(x < y), true
	case insts.OpXOR, insts.OpXORI:
		return x ^ y, true
	case insts.OpOR, insts.OpORI:
		return x | y, true
	case insts.OpAND, insts.OpANDI:
		return x & y, true
	case insts.OpSLL, insts.OpSLLI:
		return x << (y & 63), true
	case insts.OpSRL, insts.OpSRLI:
		return x >> (y & 63), true
	case insts.OpSRA, insts.OpSRAI:
		return uint64(int64(x) >> (y & 63)), true

	case insts.OpADDW, insts.OpADDIW:
		return sext32(uint32(x + y)), true
	case insts.OpSUBW:
		return sext32(uint32(x - y)), true
	case insts.OpSLLW, insts.OpSLLIW:
		return sext32(uint32(x) << (y & 31)), true
	case insts.OpSRLW, insts.OpSRLIW:
		return sext32(uint32(x) >> (y & 31)), true
	case insts.OpSRAW, insts.OpSRAIW:
		return sext32(uint32(int32(x) >> (y & 31))), true
	}
	return evalMulDiv(op, x, y)
}

// evalMulDiv covers the M extension. Division by zero and signed overflow
// produce the architectural results rather than traps.
func evalMulDiv(op insts.Op, x, y uint64) (uint64, bool) {
	switch op {
	case insts.OpMUL:
		return x * y, true
	case insts.OpMULH:
		return mulh(x, y), true
	case insts.OpMULHSU:
		return mulhsu(x, y), true
	case insts.OpMULHU:
		hi, _ := bits.Mul64(x, y)
		return hi, true
	case insts.OpDIV:
		return uint64(div64(int64(x), int64(y))), true
	case insts.OpDIVU:
		if y == 0 {
			return math.MaxUint64, true
		}
		return x / y, true
	case insts.OpREM:
		return uint64(rem64(int64(x), int64(y))), true
	case insts.OpREMU:
		if y == 0 {
			return x, true
		}
		return x % y, true

	case insts.OpMULW:
		return sext32(uint32(x) * uint32(y)), true
	case insts.OpDIVW:
		return sext32(uint32(div32(int32(x), int32(y)))), true
	case insts.OpDIVUW:
		if uint32(y) == 0 {
			return math.MaxUint64, true
		}
		return sext32(uint32(x) / uint32(y)), true
	case insts.OpREMW:
		return sext32(uint32(rem32(int32(x), int32(y)))), true
	case insts.OpREMUW:
		if uint32(y) == 0 {
			return sext32(uint32(x)), true
		}
		return sext32(uint32(x) % uint32(y)), true
	}
	return 0, false
}

func mulh(x, y uint64) uint64 {
	hi, _ := bits.Mul64(x, y)
	if int64(x) < 0 {
		hi -= y
	}
	if int64(y) < 0 {
		hi -= x
	}
	return hi
}

func mulhsu(x, y uint64) uint64 {
	hi, _ := bits.Mul64(x, y)
	if int64(x) < 0 {
		hi -= y
	}
	return hi
}

func div64(x, y int64) int64 {
	switch {
	case y == 0:
		return -1
	case x == math.MinInt64 && y == -1:
		return x
	}
	return x / y
}

func rem64(x, y int64) int64 {
	switch {
	case y == 0:
		return x
	case x == math.MinInt64 && y == -1:
		return 0
	}
	return x % y
}

func div32(x, y int32) int32 {
	switch {
	case y == 0:
		return -1
	case x == math.MinInt32 && y == -1:
		return x
	}
	return x / y
}

func rem32(x, y int32) int32 {
	switch {
	case y == 0:
		return x
	case x == math.MinInt32 && y == -1:
		return 0
	}
	return x % y
}

func sext32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
