package jit

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rvjit/asm"
	"github.com/sarchlab/rvjit/asm/x86"
	"github.com/sarchlab/rvjit/emu"
	"github.com/sarchlab/rvjit/insts"
)

// Native register use. The state pointer arrives in RDI and stays there;
// RAX, RCX and RDX are scratch. RAX carries the next pc into the exit
// block.
const (
	regState  = x86.RDI
	exitLabel = "exit"
)

// Lowerable reports whether the emitter can translate op.
func Lowerable(op insts.Op) bool {
	switch op {
	case insts.OpLUI, insts.OpAUIPC,
		insts.OpADDI, insts.OpSLTI, insts.OpSLTIU, insts.OpXORI, insts.OpORI, insts.OpANDI,
		insts.OpSLLI, insts.OpSRLI, insts.OpSRAI,
		insts.OpADD, insts.OpSUB, insts.OpSLL, insts.OpSLT, insts.OpSLTU,
		insts.OpXOR, insts.OpSRL, insts.OpSRA, insts.OpOR, insts.OpAND,
		insts.OpADDIW, insts.OpSLLIW, insts.OpSRLIW, insts.OpSRAIW,
		insts.OpADDW, insts.OpSUBW, insts.OpSLLW, insts.OpSRLW, insts.OpSRAW,
		insts.OpMUL, insts.OpMULH, insts.OpMULHU, insts.OpMULW,
		insts.OpFENCE,
		insts.OpJAL, insts.OpJALR,
		insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE, insts.OpBLTU, insts.OpBGEU:
		return true
	}
	return false
}

// Emitter lowers traces to x86-64.
type Emitter struct {
	log      logr.Logger
	compiled uint64
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithEmitterLogger sets the logger. V(2) reports code sizes.
func WithEmitterLogger(l logr.Logger) EmitterOption {
	return func(e *Emitter) {
		e.log = l
	}
}

// NewEmitter creates an emitter.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{log: logr.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compiled returns how many traces Compile has turned into native code.
func (e *Emitter) Compiled() uint64 {
	return e.compiled
}

// Compile lowers t into sealed executable memory. Traces with an
// interpret terminator yield a CompiledTrace without native code.
func (e *Emitter) Compile(t *Trace) (*CompiledTrace, error) {
	if t.Term.Kind == TermInterpret {
		return &CompiledTrace{Trace: t}, nil
	}
	if !NativeSupported() {
		return nil, ErrUnsupportedHost
	}

	a, err := e.Lower(t)
	if err != nil {
		return nil, err
	}
	code, err := a.Assemble()
	if err != nil {
		return nil, fmt.Errorf("jit: assemble trace %#x: %w", t.Entry, err)
	}
	entry, err := code.Entry(0)
	if err != nil {
		_ = code.Release()
		return nil, err
	}

	e.compiled++
	e.log.V(2).Info("compiled", "entry", fmt.Sprintf("%#x", t.Entry), "insts", t.Len(), "bytes", code.Len())
	return &CompiledTrace{Trace: t, code: code, entry: entry}, nil
}

// Lower emits the native code for t into a fresh assembler without mapping
// it. The code is position independent.
func (e *Emitter) Lower(t *Trace) (*asm.Assembler, error) {
	if t.Term.Kind == TermInterpret {
		return nil, fmt.Errorf("%w: %s at %#x", ErrNotLowerable, t.Ops[0].Inst().Op, t.Entry)
	}

	a := asm.New()
	l := lowering{x: x86.New(a)}

	for _, op := range t.Ops {
		if err := l.op(op); err != nil {
			return nil, err
		}
	}
	l.terminator(t.Term)

	if err := a.Label(exitLabel); err != nil {
		return nil, err
	}
	l.x.Store(regState, emu.OffsetPC, x86.RAX)
	l.x.Ret()

	if err := a.Link(0); err != nil {
		return nil, err
	}
	return a, nil
}

type lowering struct {
	x *x86.Asm
}

// load reads guest register r into dst. x0 reads as zero.
func (l lowering) load(dst x86.Reg, r uint8) {
	if r == insts.RegZero {
		l.x.MovImm(dst, 0)
		return
	}
	l.x.Load(dst, regState, emu.OffsetOfX(r))
}

// store writes src to guest register r. Writes to x0 are dropped.
func (l lowering) store(r uint8, src x86.Reg) {
	if r == insts.RegZero {
		return
	}
	l.x.Store(regState, emu.OffsetOfX(r), src)
}

// addImm adds a 64-bit constant to dst, using RCX when it does not fit an
// imm32.
func (l lowering) addImm(dst x86.Reg, v int64) {
	switch {
	case v == 0:
	case v == int64(int32(v)):
		l.x.ALUImm(x86.ADD, dst, int32(v))
	default:
		l.x.MovImm(x86.RCX, uint64(v))
		l.x.ALU(x86.ADD, dst, x86.RCX)
	}
}

func (l lowering) op(op FusedOp) error {
	switch op.Kind {
	case FuseLoadConst:
		if op.Rd != insts.RegZero {
			l.x.MovImm(x86.RAX, uint64(op.Value))
			l.store(op.Rd, x86.RAX)
		}
		return nil

	case FuseShiftAdd:
		if op.Rd != insts.RegZero {
			l.load(x86.RAX, op.Rs)
			if op.Shift > 0 {
				l.x.ShiftImm(x86.SHL, x86.RAX, op.Shift)
			}
			l.addImm(x86.RAX, op.Value)
			l.store(op.Rd, x86.RAX)
		}
		return nil

	case FuseMulConst:
		l.load(x86.RAX, op.Rs)
		l.x.Mov(x86.RCX, x86.RAX)
		l.x.ShiftImm(x86.SHL, x86.RCX, op.Shift)
		l.store(op.Rt, x86.RCX)
		l.x.MovImm(x86.RCX, uint64(op.Value))
		l.x.Imul(x86.RAX, x86.RCX)
		l.store(op.Rd, x86.RAX)
		return nil
	}

	return l.inst(op.Inst())
}

var aluOps = map[insts.Op]x86.ALUOp{
	insts.OpADD: x86.ADD, insts.OpADDI: x86.ADD, insts.OpADDW: x86.ADD, insts.OpADDIW: x86.ADD,
	insts.OpSUB: x86.SUB, insts.OpSUBW: x86.SUB,
	insts.OpXOR: x86.XOR, insts.OpXORI: x86.XOR,
	insts.OpOR: x86.OR, insts.OpORI: x86.OR,
	insts.OpAND: x86.AND, insts.OpANDI: x86.AND,
}

var shiftOps = map[insts.Op]x86.ShiftOp{
	insts.OpSLL: x86.SHL, insts.OpSLLI: x86.SHL, insts.OpSLLW: x86.SHL, insts.OpSLLIW: x86.SHL,
	insts.OpSRL: x86.SHR, insts.OpSRLI: x86.SHR, insts.OpSRLW: x86.SHR, insts.OpSRLIW: x86.SHR,
	insts.OpSRA: x86.SAR, insts.OpSRAI: x86.SAR, insts.OpSRAW: x86.SAR, insts.OpSRAIW: x86.SAR,
}

var branchConds = map[insts.Op]x86.Cond{
	insts.OpBEQ:  x86.CondE,
	insts.OpBNE:  x86.CondNE,
	insts.OpBLT:  x86.CondL,
	insts.OpBGE:  x86.CondGE,
	insts.OpBLTU: x86.CondB,
	insts.OpBGEU: x86.CondAE,
}

// inst lowers one unfused instruction.
func (l lowering) inst(inst insts.Instruction) error {
	x := l.x
	switch inst.Op {
	case insts.OpFENCE:
		return nil

	case insts.OpLUI:
		x.MovImm(x86.RAX, uint64(inst.Imm))

	case insts.OpAUIPC:
		x.MovImm(x86.RAX, inst.PC+uint64(inst.Imm))

	case insts.OpADDI, insts.OpXORI, insts.OpORI, insts.OpANDI:
		l.load(x86.RAX, inst.Rs1)
		x.ALUImm(aluOps[inst.Op], x86.RAX, int32(inst.Imm))

	case insts.OpSLTI, insts.OpSLTIU:
		l.load(x86.RAX, inst.Rs1)
		x.ALUImm(x86.CMP, x86.RAX, int32(inst.Imm))
		x.Setcc(setCond(inst.Op == insts.OpSLTI), x86.RAX)

	case insts.OpSLLI, insts.OpSRLI, insts.OpSRAI:
		l.load(x86.RAX, inst.Rs1)
		x.ShiftImm(shiftOps[inst.Op], x86.RAX, uint8(inst.Imm&63))

	case insts.OpADD, insts.OpSUB, insts.OpXOR, insts.OpOR, insts.OpAND:
		l.load(x86.RAX, inst.Rs1)
		l.load(x86.RCX, inst.Rs2)
		x.ALU(aluOps[inst.Op], x86.RAX, x86.RCX)

	case insts.OpSLT, insts.OpSLTU:
		l.load(x86.RAX, inst.Rs1)
		l.load(x86.RCX, inst.Rs2)
		x.ALU(x86.CMP, x86.RAX, x86.RCX)
		x.Setcc(setCond(inst.Op == insts.OpSLT), x86.RAX)

	case insts.OpSLL, insts.OpSRL, insts.OpSRA:
		l.load(x86.RAX, inst.Rs1)
		l.load(x86.RCX, inst.Rs2)
		x.ShiftCL(shiftOps[inst.Op], x86.RAX)

	case insts.OpADDIW:
		l.load(x86.RAX, inst.Rs1)
		x.ALUImm32(x86.ADD, x86.RAX, int32(inst.Imm))
		x.Movsxd(x86.RAX, x86.RAX)

	case insts.OpSLLIW, insts.OpSRLIW, insts.OpSRAIW:
		l.load(x86.RAX, inst.Rs1)
		x.ShiftImm32(shiftOps[inst.Op], x86.RAX, uint8(inst.Imm&31))
		x.Movsxd(x86.RAX, x86.RAX)

	case insts.OpADDW, insts.OpSUBW:
		l.load(x86.RAX, inst.Rs1)
		l.load(x86.RCX, inst.Rs2)
		x.ALU32(aluOps[inst.Op], x86.RAX, x86.RCX)
		x.Movsxd(x86.RAX, x86.RAX)

	case insts.OpSLLW, insts.OpSRLW, insts.OpSRAW:
		l.load(x86.RAX, inst.Rs1)
		l.load(x86.RCX, inst.Rs2)
		x.ShiftCL32(shiftOps[inst.Op], x86.RAX)
		x.Movsxd(x86.RAX, x86.RAX)

	case insts.OpMUL:
		l.load(x86.RAX, inst.Rs1)
		l.load(x86.RCX, inst.Rs2)
		x.Imul(x86.RAX, x86.RCX)

	case insts.OpMULW:
		l.load(x86.RAX, inst.Rs1)
		l.load(x86.RCX, inst.Rs2)
		x.Imul32(x86.RAX, x86.RCX)
		x.Movsxd(x86.RAX, x86.RAX)

	case insts.OpMULH, insts.OpMULHU:
		// RDX:RAX = RAX * RCX
		l.load(x86.RAX, inst.Rs1)
		l.load(x86.RCX, inst.Rs2)
		x.MulWide(inst.Op == insts.OpMULH, x86.RCX)
		x.Mov(x86.RAX, x86.RDX)

	default:
		return fmt.Errorf("%w: %s at %#x", ErrNotLowerable, inst.Op, inst.PC)
	}

	l.store(inst.Rd, x86.RAX)
	return nil
}

func setCond(signed bool) x86.Cond {
	if signed {
		return x86.CondL
	}
	return x86.CondB
}

// terminator materialises the next pc in RAX and jumps to the exit block.
func (l lowering) terminator(term Terminator) {
	x := l.x
	inst := term.Inst
	switch term.Kind {
	case TermJump:
		if inst.Rd != insts.RegZero {
			x.MovImm(x86.RAX, inst.Next())
			l.store(inst.Rd, x86.RAX)
		}
		x.MovImm(x86.RAX, inst.Target())

	case TermIndirect:
		// The target is computed before rd is linked; rd may equal rs1.
		l.load(x86.RAX, inst.Rs1)
		l.addImm(x86.RAX, inst.Imm)
		x.ALUImm(x86.AND, x86.RAX, -2)
		if inst.Rd != insts.RegZero {
			x.MovImm(x86.RCX, inst.Next())
			l.store(inst.Rd, x86.RCX)
		}

	case TermBranch:
		l.load(x86.RAX, inst.Rs1)
		l.load(x86.RCX, inst.Rs2)
		x.ALU(x86.CMP, x86.RAX, x86.RCX)
		// MOV leaves the flags alone.
		x.MovImm(x86.RAX, inst.Next())
		x.MovImm(x86.RDX, inst.Target())
		x.Cmov(branchConds[inst.Op], x86.RAX, x86.RDX)

	default:
		x.MovImm(x86.RAX, term.Next)
	}
	x.Jmp(exitLabel)
}
