package emu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rvjit/insts"
)

var (
	// ErrIllegalInstruction is reported for words the decoder rejects.
	ErrIllegalInstruction = errors.New("emu: illegal instruction")

	// ErrMisalignedFetch is reported for a pc that is not a valid
	// instruction address for the enabled extensions.
	ErrMisalignedFetch = errors.New("emu: misaligned instruction fetch")

	// ErrMaxInstructions is reported once the instruction limit is hit.
	ErrMaxInstructions = errors.New("emu: max instructions reached")
)

// Trap classifies why a step stopped without retiring its instruction.
type Trap uint8

// Traps.
const (
	TrapNone Trap = iota
	TrapBreakpoint
	TrapIllegalInstruction
	TrapFault
)

func (t Trap) String() string {
	switch t {
	case TrapNone:
		return "none"
	case TrapBreakpoint:
		return "breakpoint"
	case TrapIllegalInstruction:
		return "illegal-instruction"
	case TrapFault:
		return "fault"
	}
	return fmt.Sprintf("trap(%d)", uint8(t))
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Trap is set when the instruction did not retire. The pc still
	// addresses it.
	Trap Trap

	// Err is set if an error occurred during execution.
	Err error
}

// Stopped reports whether execution cannot continue past this step.
func (r StepResult) Stopped() bool {
	return r.Exited || r.Trap != TrapNone || r.Err != nil
}

// Emulator executes RISC-V instructions functionally.
type Emulator struct {
	state          *State
	memory         *Memory
	decoder        *insts.Decoder
	ext            insts.Ext
	translator     Translator
	syscallHandler SyscallHandler

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	// I/O
	stdout io.Writer
	stderr io.Writer

	log           logr.Logger
	fenceIWatches []func()

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint64) EmulatorOption {
	return func(e *Emulator) {
		e.state.WriteReg(insts.RegSP, sp)
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithExtensions sets the optional ISA extensions. The default is M.
func WithExtensions(ext insts.Ext) EmulatorOption {
	return func(e *Emulator) {
		e.ext = ext
	}
}

// WithTranslator sets the address translator. The default is identity.
func WithTranslator(t Translator) EmulatorOption {
	return func(e *Emulator) {
		e.translator = t
	}
}

// WithMemory makes the emulator use an existing memory.
func WithMemory(m *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = m
	}
}

// WithLogger sets the logger. V(1) logs every executed instruction.
func WithLogger(l logr.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.log = l
	}
}

// NewEmulator creates a new RV64 emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		state:      &State{},
		memory:     NewMemory(),
		ext:        insts.ExtM,
		translator: IdentityTranslator{},
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		log:        logr.Discard(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.decoder = insts.NewDecoder(insts.WithExtensions(e.ext))
	e.alu = NewALU(e.state)
	e.lsu = NewLoadStoreUnit(e.state, e.memory, e.translator)
	e.branchUnit = NewBranchUnit(e.state)

	if e.syscallHandler == nil {
		e.syscallHandler = NewDefaultSyscallHandler(e.state, e.memory, e.stdout, e.stderr)
	}

	return e
}

// State returns the emulator's architectural state.
func (e *Emulator) State() *State {
	return e.state
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// Decoder returns the decoder configured with the emulator's extensions.
func (e *Emulator) Decoder() *insts.Decoder {
	return e.decoder
}

// Extensions returns the enabled ISA extensions.
func (e *Emulator) Extensions() insts.Ext {
	return e.ext
}

// Logger returns the emulator's logger.
func (e *Emulator) Logger() logr.Logger {
	return e.log
}

// InstructionCount returns the number of retired instructions.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Retire counts n instructions executed outside Step.
func (e *Emulator) Retire(n uint64) {
	e.instructionCount += n
}

// LoadProgram loads a program into memory and sets the entry point.
func (e *Emulator) LoadProgram(entry uint64, program []byte) {
	e.memory.LoadProgram(entry, program)
	e.state.PC = entry
}

// OnFenceI registers fn to run whenever FENCE.I executes.
func (e *Emulator) OnFenceI(fn func()) {
	e.fenceIWatches = append(e.fenceIWatches, fn)
}

// Fetch returns the 32 bits at pc. Compressed parcels occupy the low half.
func (e *Emulator) Fetch(pc uint64) (uint32, error) {
	align := uint64(3)
	if e.ext.Has(insts.ExtC) {
		align = 1
	}
	if pc&align != 0 {
		return 0, fmt.Errorf("%w: pc=%#x", ErrMisalignedFetch, pc)
	}

	addr, err := e.translator.Translate(pc, 2, AccessFetch)
	if err != nil {
		return 0, err
	}
	lo := e.memory.Read16(addr)
	if insts.InstLen(lo) == 2 {
		return uint32(lo), nil
	}

	addr, err = e.translator.Translate(pc+2, 2, AccessFetch)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(e.memory.Read16(addr))<<16, nil
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.state.PC
	word, err := e.Fetch(pc)
	if err != nil {
		return StepResult{Trap: TrapFault, Err: err}
	}

	inst := e.decoder.Decode(word, pc)
	if l := e.log.V(1); l.Enabled() {
		l.Info("exec", "pc", fmt.Sprintf("%#x", pc), "inst", inst.String())
	}

	result := e.execute(inst)
	if result.Trap == TrapNone && result.Err == nil {
		e.instructionCount++
	}
	return result
}

// Run executes instructions until the program exits, traps or an error
// occurs, and returns the last step's result.
func (e *Emulator) Run() StepResult {
	for {
		result := e.Step()
		if result.Stopped() {
			return result
		}
	}
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst insts.Instruction) StepResult {
	switch {
	case inst.Op == insts.OpIllegal:
		return StepResult{
			Trap: TrapIllegalInstruction,
			Err:  fmt.Errorf("%w %#08x at pc=%#x", ErrIllegalInstruction, inst.Raw, inst.PC),
		}

	case inst.Op == insts.OpECALL:
		// The return address is the next instruction.
		e.state.PC = inst.Next()
		sys := e.syscallHandler.Handle()
		return StepResult{Exited: sys.Exited, ExitCode: sys.ExitCode}

	case inst.Op == insts.OpEBREAK:
		return StepResult{Trap: TrapBreakpoint}

	case inst.Op == insts.OpFENCE:

	case inst.Op == insts.OpFENCEI:
		for _, fn := range e.fenceIWatches {
			fn()
		}

	case inst.IsLoad():
		if err := e.lsu.Load(inst); err != nil {
			return StepResult{Trap: TrapFault, Err: err}
		}

	case inst.IsStore():
		if err := e.lsu.Store(inst); err != nil {
			return StepResult{Trap: TrapFault, Err: err}
		}

	case e.branchUnit.Execute(inst):
		return StepResult{} // PC already updated

	case e.alu.Execute(inst):

	default:
		return StepResult{
			Err: fmt.Errorf("unimplemented op %s at pc=%#x", inst.Op, inst.PC),
		}
	}

	e.state.PC = inst.Next()
	return StepResult{}
}
