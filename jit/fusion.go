package jit

import (
	"github.com/sarchlab/rvjit/insts"
)

// matcher recognises an idiom at the start of window. It returns the fused
// op and true, or false when the idiom does not apply. The op covers at
// least two instructions.
type matcher func(window []insts.Instruction) (FusedOp, bool)

// fusionTable is tried in order; the longest match wins and ties go to the
// earlier entry.
var fusionTable = []matcher{
	matchAffine,
	matchMulConst,
}

// fuse returns the best idiom at the start of window.
func fuse(window []insts.Instruction) (FusedOp, bool) {
	var (
		best  FusedOp
		found bool
	)
	for _, m := range fusionTable {
		op, ok := m(window)
		if !ok || op.Len() < 2 {
			continue
		}
		if !found || op.Len() > best.Len() {
			best, found = op, true
		}
	}
	return best, found
}

// affine tracks rd = (base << shift) + c, or rd = c when constant.
type affine struct {
	rd       uint8
	base     uint8
	shift    uint
	c        uint64
	constant bool
}

// start recognises the first instruction of a chain.
func (a *affine) start(inst insts.Instruction) bool {
	if inst.Rd == insts.RegZero {
		return false
	}
	a.rd = inst.Rd
	switch inst.Op {
	case insts.OpLUI:
		a.constant, a.c = true, uint64(inst.Imm)
	case insts.OpAUIPC:
		a.constant, a.c = true, inst.PC+uint64(inst.Imm)
	case insts.OpADDI:
		if inst.Rs1 == insts.RegZero {
			a.constant, a.c = true, uint64(inst.Imm)
		} else {
			a.base, a.c = inst.Rs1, uint64(inst.Imm)
		}
	case insts.OpADDIW:
		if inst.Rs1 != insts.RegZero {
			return false
		}
		a.constant, a.c = true, uint64(inst.Imm)
	case insts.OpSLLI:
		if inst.Rs1 == insts.RegZero {
			a.constant, a.c = true, 0
		} else {
			a.base, a.shift = inst.Rs1, uint(inst.Imm)
		}
	default:
		return false
	}
	return true
}

// extend folds inst into the chain, or reports false if it does not
// continue it.
func (a *affine) extend(inst insts.Instruction) bool {
	if inst.Format != insts.FormatI || inst.Rd != a.rd || inst.Rs1 != a.rd {
		return false
	}
	v := uint64(inst.Imm)
	switch inst.Op {
	case insts.OpADDI:
		a.c += v
	case insts.OpSLLI:
		if !a.constant && a.shift+uint(v) >= 64 {
			return false
		}
		a.shift += uint(v)
		a.c <<= v
	case insts.OpADDIW:
		if !a.constant {
			return false
		}
		a.c = uint64(int64(int32(uint32(a.c + v))))
	case insts.OpORI:
		if !a.constant {
			return false
		}
		a.c |= v
	case insts.OpXORI:
		if !a.constant {
			return false
		}
		a.c ^= v
	default:
		return false
	}
	return true
}

// matchAffine collapses a run of LUI, AUIPC, ADDI, ADDIW, ORI, XORI and
// SLLI on one destination.
func matchAffine(window []insts.Instruction) (FusedOp, bool) {
	if len(window) < 2 {
		return FusedOp{}, false
	}

	var a affine
	if !a.start(window[0]) {
		return FusedOp{}, false
	}

	n := 1
	for n < len(window) && a.extend(window[n]) {
		n++
	}
	if n < 2 {
		return FusedOp{}, false
	}

	op := FusedOp{
		Insts: window[:n:n],
		Rd:    a.rd,
		Value: int64(a.c),
	}
	if a.constant {
		op.Kind = FuseLoadConst
	} else {
		op.Kind = FuseShiftAdd
		op.Rs = a.base
		op.Shift = uint8(a.shift)
	}
	return op, true
}

// matchMulConst recognises "slli rt, rs, k" followed by "add rd, rt, rs",
// "add rd, rs, rt" or "sub rd, rt, rs".
func matchMulConst(window []insts.Instruction) (FusedOp, bool) {
	if len(window) < 2 {
		return FusedOp{}, false
	}

	sh, ar := window[0], window[1]
	if sh.Op != insts.OpSLLI || sh.Imm == 0 {
		return FusedOp{}, false
	}
	rt, rs := sh.Rd, sh.Rs1
	if rt == insts.RegZero || rs == insts.RegZero || rt == rs {
		return FusedOp{}, false
	}

	k := uint(sh.Imm)
	var value int64
	switch {
	case ar.Op == insts.OpADD && (ar.Rs1 == rt && ar.Rs2 == rs || ar.Rs1 == rs && ar.Rs2 == rt):
		value = int64(uint64(1)<<k + 1)
	case ar.Op == insts.OpSUB && ar.Rs1 == rt && ar.Rs2 == rs:
		value = int64(uint64(1)<<k - 1)
	default:
		return FusedOp{}, false
	}

	return FusedOp{
		Kind:  FuseMulConst,
		Insts: window[:2:2],
		Rd:    ar.Rd,
		Rs:    rs,
		Rt:    rt,
		Shift: uint8(k),
		Value: value,
	}, true
}
