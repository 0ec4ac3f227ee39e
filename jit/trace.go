package jit

import (
	"fmt"
	"strings"

	"github.com/sarchlab/rvjit/insts"
)

// TraceState is the tracer's state when a trace was finished.
type TraceState uint8

// Tracer states.
const (
	Extending TraceState = iota
	Terminated
	Bailed
)

func (s TraceState) String() string {
	switch s {
	case Extending:
		return "extending"
	case Terminated:
		return "terminated"
	case Bailed:
		return "bailed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// TermKind says how control leaves a trace.
type TermKind uint8

// Terminator kinds.
const (
	// TermFallthrough continues at Next after the length limit.
	TermFallthrough TermKind = iota
	// TermJump is a JAL with a static target.
	TermJump
	// TermIndirect is a JALR whose target is only known at run time.
	TermIndirect
	// TermBranch is a conditional branch with two targets.
	TermBranch
	// TermTrap stops at an ECALL or EBREAK for the interpreter.
	TermTrap
	// TermBail stops at Next, an op the emitter cannot lower.
	TermBail
	// TermInterpret marks a trace with no native code at all.
	TermInterpret
)

func (k TermKind) String() string {
	switch k {
	case TermFallthrough:
		return "fallthrough"
	case TermJump:
		return "jump"
	case TermIndirect:
		return "indirect"
	case TermBranch:
		return "branch"
	case TermTrap:
		return "trap"
	case TermBail:
		return "bail"
	case TermInterpret:
		return "interpret"
	}
	return fmt.Sprintf("term(%d)", uint8(k))
}

// Terminator ends a trace.
type Terminator struct {
	Kind TermKind

	// Inst is the control transfer for TermJump, TermIndirect, TermBranch
	// and TermTrap.
	Inst insts.Instruction

	// Next is where execution continues for TermFallthrough, and the pc
	// handed back to the interpreter for TermTrap, TermBail and
	// TermInterpret.
	Next uint64
}

// Native reports whether the terminator instruction runs in native code.
func (t Terminator) Native() bool {
	return t.Kind == TermJump || t.Kind == TermIndirect || t.Kind == TermBranch
}

// Targets returns the statically known successors.
func (t Terminator) Targets() []uint64 {
	switch t.Kind {
	case TermJump:
		return []uint64{t.Inst.Target()}
	case TermBranch:
		return []uint64{t.Inst.Target(), t.Inst.Next()}
	case TermFallthrough:
		return []uint64{t.Next}
	}
	return nil
}

// FusedKind identifies an idiom.
type FusedKind uint8

// Fusion kinds.
const (
	// FuseNone wraps exactly one instruction.
	FuseNone FusedKind = iota
	// FuseLoadConst sets Rd = Value.
	FuseLoadConst
	// FuseShiftAdd sets Rd = (Rs << Shift) + Value.
	FuseShiftAdd
	// FuseMulConst sets Rt = Rs << Shift, then Rd = Rs * Value.
	FuseMulConst
)

func (k FusedKind) String() string {
	switch k {
	case FuseNone:
		return "none"
	case FuseLoadConst:
		return "load-const"
	case FuseShiftAdd:
		return "shift-add"
	case FuseMulConst:
		return "mul-const"
	}
	return fmt.Sprintf("fuse(%d)", uint8(k))
}

// FusedOp is one or more consecutive instructions executed as a unit.
type FusedOp struct {
	Kind  FusedKind
	Insts []insts.Instruction

	Rd    uint8
	Rs    uint8
	Rt    uint8
	Shift uint8
	Value int64
}

// Len returns the number of guest instructions covered.
func (f FusedOp) Len() int {
	return len(f.Insts)
}

// Inst returns the wrapped instruction of a FuseNone op.
func (f FusedOp) Inst() insts.Instruction {
	return f.Insts[0]
}

func (f FusedOp) String() string {
	rd := insts.RegName(f.Rd)
	switch f.Kind {
	case FuseLoadConst:
		return fmt.Sprintf("%s = %#x", rd, uint64(f.Value))
	case FuseShiftAdd:
		return fmt.Sprintf("%s = (%s << %d) + %#x", rd, insts.RegName(f.Rs), f.Shift, uint64(f.Value))
	case FuseMulConst:
		return fmt.Sprintf("%s = %s << %d; %s = %s * %d",
			insts.RegName(f.Rt), insts.RegName(f.Rs), f.Shift, rd, insts.RegName(f.Rs), f.Value)
	}
	return f.Inst().String()
}

// Trace is a decoded, fused straight-line region starting at Entry. It
// always covers at least one instruction.
type Trace struct {
	Entry uint64
	Ops   []FusedOp
	Term  Terminator
	State TraceState
}

// Len returns the number of guest instructions in the trace, terminator
// included.
func (t *Trace) Len() int {
	n := 0
	for _, op := range t.Ops {
		n += op.Len()
	}
	if t.Term.Kind != TermFallthrough && t.Term.Kind != TermBail && t.Term.Kind != TermInterpret {
		n++
	}
	return n
}

// NativeLen returns the number of guest instructions the native code
// retires.
func (t *Trace) NativeLen() int {
	if t.Term.Kind == TermInterpret {
		return 0
	}
	n := 0
	for _, op := range t.Ops {
		n += op.Len()
	}
	if t.Term.Native() {
		n++
	}
	return n
}

// End returns the address just past the last instruction byte the trace
// was built from.
func (t *Trace) End() uint64 {
	end := t.Entry
	for _, op := range t.Ops {
		for _, inst := range op.Insts {
			end = max(end, inst.Next())
		}
	}
	switch t.Term.Kind {
	case TermJump, TermIndirect, TermBranch, TermTrap:
		end = max(end, t.Term.Inst.Next())
	}
	return end
}

// Overlaps reports whether the trace was built from any byte in [lo, hi).
func (t *Trace) Overlaps(lo, hi uint64) bool {
	return t.Entry < hi && lo < t.End()
}

func (t *Trace) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "trace %#x (%s, %d insts)\n", t.Entry, t.State, t.Len())
	for _, op := range t.Ops {
		fmt.Fprintf(&sb, "  %#x: %s\n", op.Insts[0].PC, op)
	}
	switch t.Term.Kind {
	case TermJump, TermIndirect, TermBranch, TermTrap:
		fmt.Fprintf(&sb, "  %#x: %s [%s]\n", t.Term.Inst.PC, t.Term.Inst, t.Term.Kind)
	default:
		fmt.Fprintf(&sb, "  -> %#x [%s]\n", t.Term.Next, t.Term.Kind)
	}
	return sb.String()
}
