// Package oracle checks compiled traces against the interpreter. A program
// runs for a fixed number of interpreter steps from cleared registers; the
// same code is then traced, compiled and run once natively from cleared
// registers, and the two register files are compared.
package oracle

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rvjit/asm"
	"github.com/sarchlab/rvjit/asm/rv"
	"github.com/sarchlab/rvjit/config"
	"github.com/sarchlab/rvjit/emu"
	"github.com/sarchlab/rvjit/insts"
	"github.com/sarchlab/rvjit/jit"
)

// ErrInterpreter is returned when the reference run stops early.
var ErrInterpreter = errors.New("oracle: interpreter stopped")

// Program is a test program. Build emits the body; the harness appends an
// EBREAK. Steps is the number of instructions the interpreter executes.
type Program struct {
	Name  string
	Steps int
	Build func(b *rv.Builder)
}

// Mismatch is one register that differs.
type Mismatch struct {
	Name string
	Want uint64 // interpreter
	Got  uint64 // compiled trace
}

func (m Mismatch) String() string {
	return fmt.Sprintf("interp-%s=%#016x jit-%s=%#016x", m.Name, m.Want, m.Name, m.Got)
}

// Report is the outcome of one program.
type Report struct {
	Name  string
	Steps int
	Trace *jit.Trace

	Want   [32]uint64
	Got    [32]uint64
	WantPC uint64
	GotPC  uint64

	Mismatches []Mismatch
}

// Passed reports whether the register files and pcs agree.
func (r *Report) Passed() bool {
	return len(r.Mismatches) == 0
}

func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TEST: %s ", r.Name)
	if r.Passed() {
		sb.WriteString("PASS")
		return sb.String()
	}
	sb.WriteString("FAIL")
	for _, m := range r.Mismatches {
		fmt.Fprintf(&sb, "\n  ERROR %s", m)
	}
	return sb.String()
}

// Harness runs programs through both engines.
type Harness struct {
	base uint64
	cfg  *config.Config
	log  logr.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithBase sets the load address. Default: 0x10000.
func WithBase(addr uint64) Option {
	return func(h *Harness) {
		h.base = addr
	}
}

// WithConfig sets the trace compiler configuration.
func WithConfig(cfg *config.Config) Option {
	return func(h *Harness) {
		h.cfg = cfg
	}
}

// WithLogger sets the logger. V(1) logs interpreted instructions and
// traces.
func WithLogger(l logr.Logger) Option {
	return func(h *Harness) {
		h.log = l
	}
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		base: 0x10000,
		cfg:  config.Default(),
		log:  logr.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Assemble builds p followed by EBREAK, linked at the harness base.
func (h *Harness) Assemble(p Program) ([]byte, error) {
	a := asm.New()
	b := rv.NewBuilder(a)
	if p.Build != nil {
		p.Build(b)
	}
	b.EBREAK()
	if err := b.Err(); err != nil {
		return nil, fmt.Errorf("oracle: %s: %w", p.Name, err)
	}
	if err := a.Link(h.base); err != nil {
		return nil, fmt.Errorf("oracle: %s: %w", p.Name, err)
	}
	return a.Bytes(".text"), nil
}

func (h *Harness) newEmulator(code []byte) (*emu.Emulator, error) {
	ext, err := h.cfg.ISA()
	if err != nil {
		return nil, err
	}
	e := emu.NewEmulator(
		emu.WithExtensions(ext),
		emu.WithStdout(io.Discard),
		emu.WithStderr(io.Discard),
		emu.WithLogger(h.log),
	)
	e.LoadProgram(h.base, code)
	e.State().Reset()
	e.State().PC = h.base
	return e, nil
}

// Check runs p through the interpreter and a compiled trace.
func (h *Harness) Check(p Program) (*Report, error) {
	code, err := h.Assemble(p)
	if err != nil {
		return nil, err
	}

	ref, err := h.newEmulator(code)
	if err != nil {
		return nil, err
	}
	for i := 0; i < p.Steps; i++ {
		if result := ref.Step(); result.Stopped() {
			return nil, fmt.Errorf("%w: %s at step %d, pc=%#x, trap=%s: %v",
				ErrInterpreter, p.Name, i, ref.State().PC, result.Trap, result.Err)
		}
	}

	target, err := h.newEmulator(code)
	if err != nil {
		return nil, err
	}
	loop := jit.NewRunLoop(target, jit.WithConfig(h.cfg), jit.WithLogger(h.log))
	defer loop.Close()

	ct, err := loop.Compile(h.base)
	if err != nil {
		return nil, err
	}
	state := target.State()
	state.Reset()
	if _, err := ct.Run(state); err != nil {
		return nil, err
	}

	report := &Report{
		Name:   p.Name,
		Steps:  p.Steps,
		Trace:  ct.Trace,
		WantPC: ref.State().PC,
		GotPC:  state.PC,
	}
	for i := range report.Want {
		report.Want[i] = ref.State().ReadReg(uint8(i))
		report.Got[i] = state.ReadReg(uint8(i))
		if report.Want[i] != report.Got[i] {
			report.Mismatches = append(report.Mismatches,
				Mismatch{Name: insts.RegName(uint8(i)), Want: report.Want[i], Got: report.Got[i]})
		}
	}
	if report.WantPC != report.GotPC {
		report.Mismatches = append(report.Mismatches, Mismatch{Name: "pc", Want: report.WantPC, Got: report.GotPC})
	}

	h.log.V(1).Info("checked", "program", p.Name, "passed", report.Passed(), "insts", ct.Trace.Len())
	return report, nil
}

// CheckAll checks every program and stops at the first error.
func (h *Harness) CheckAll(programs []Program) ([]*Report, error) {
	reports := make([]*Report, 0, len(programs))
	for _, p := range programs {
		r, err := h.Check(p)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}
