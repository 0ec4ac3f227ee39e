package jit

import (
	"errors"
	"fmt"

	"github.com/docker/go-units"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/sarchlab/rvjit/config"
	"github.com/sarchlab/rvjit/emu"
)

// Mode is what the run-loop is doing.
type Mode uint8

// Run-loop modes.
const (
	ModeInterpret Mode = iota
	ModeCompile
	ModeExecuteCompiled
)

func (m Mode) String() string {
	switch m {
	case ModeInterpret:
		return "interpret"
	case ModeCompile:
		return "compile"
	case ModeExecuteCompiled:
		return "execute-compiled"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Stats counts run-loop activity.
type Stats struct {
	// Interpreted is the number of instructions retired by the
	// interpreter.
	Interpreted uint64
	// Native is the number of instructions retired by compiled traces.
	Native uint64
	// TraceRuns is the number of compiled trace executions.
	TraceRuns uint64
	// Compiles is the number of traces compiled.
	Compiles uint64
	// CompileErrors is the number of failed compilations.
	CompileErrors uint64
	// Invalidations is the number of traces dropped because their code
	// changed or their tracking line was evicted.
	Invalidations uint64
	// CodeBytes is the total native code emitted.
	CodeBytes uint64
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"interpreted=%d native=%d trace_runs=%d compiles=%d compile_errors=%d invalidations=%d code=%s",
		s.Interpreted, s.Native, s.TraceRuns, s.Compiles, s.CompileErrors, s.Invalidations,
		units.HumanSize(float64(s.CodeBytes)))
}

// RunLoop alternates between the interpreter and compiled traces for one
// emulator. It is not safe for concurrent use.
type RunLoop struct {
	id      uuid.UUID
	cfg     *config.Config
	emu     *emu.Emulator
	tracer  *Tracer
	emitter *Emitter
	cache   *TraceCache
	tracker *CodeTracker

	visits map[uint64]uint64
	native bool
	mode   Mode
	stats  Stats
	log    logr.Logger

	// entries of cached traces whose lines the tracker could not hold
	untracked map[uint64]struct{}
}

// RunLoopOption configures a RunLoop.
type RunLoopOption func(*RunLoop)

// WithConfig sets the configuration. The default is config.Default().
func WithConfig(cfg *config.Config) RunLoopOption {
	return func(r *RunLoop) {
		r.cfg = cfg
	}
}

// WithLogger sets the logger. Every line carries the run-loop id.
func WithLogger(l logr.Logger) RunLoopOption {
	return func(r *RunLoop) {
		r.log = l
	}
}

// WithEmitter replaces the emitter.
func WithEmitter(e *Emitter) RunLoopOption {
	return func(r *RunLoop) {
		r.emitter = e
	}
}

// NewRunLoop creates a run-loop driving e. With invalidation enabled it
// watches e's memory and FENCE.I.
func NewRunLoop(e *emu.Emulator, opts ...RunLoopOption) *RunLoop {
	r := &RunLoop{
		id:     uuid.New(),
		cfg:    config.Default(),
		emu:    e,
		cache:  NewTraceCache(),
		visits:    make(map[uint64]uint64),
		untracked: make(map[uint64]struct{}),
		native:    NativeSupported(),
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.log = r.log.WithValues("loop", r.id.String())
	r.tracer = NewTracer(e, e.Decoder(),
		WithMaxTraceLength(r.cfg.MaxTraceLength),
		WithFusionWindow(r.cfg.FusionWindow),
		WithFusion(r.cfg.Fusion),
		WithTracerLogger(r.log),
	)
	if r.emitter == nil {
		r.emitter = NewEmitter(WithEmitterLogger(r.log))
	}
	r.tracker = NewCodeTracker(r.cfg.CodeSets, r.cfg.CodeWays, r.cfg.CodeLineSize)

	if r.cfg.Invalidation {
		e.Memory().Watch(r.onStore)
		e.OnFenceI(r.onFenceI)
	}
	return r
}

// ID returns the run-loop's instance id.
func (r *RunLoop) ID() uuid.UUID {
	return r.id
}

// Emulator returns the driven emulator.
func (r *RunLoop) Emulator() *emu.Emulator {
	return r.emu
}

// Cache returns the trace cache.
func (r *RunLoop) Cache() *TraceCache {
	return r.cache
}

// Tracker returns the code tracker.
func (r *RunLoop) Tracker() *CodeTracker {
	return r.tracker
}

// Mode returns the current mode.
func (r *RunLoop) Mode() Mode {
	return r.mode
}

// Stats returns the activity counters.
func (r *RunLoop) Stats() Stats {
	return r.stats
}

// Compile traces and compiles the code at pc unless a trace for pc is
// already cached, in which case it returns the cached one. A trace whose
// code lines cannot all be tracked is still cached; any store into its
// bytes drops it.
func (r *RunLoop) Compile(pc uint64) (*CompiledTrace, error) {
	if t, ok := r.cache.byPC[pc]; ok {
		return t, nil
	}

	prev := r.mode
	r.mode = ModeCompile
	defer func() { r.mode = prev }()

	trace, err := r.tracer.Trace(pc)
	if err != nil {
		r.stats.CompileErrors++
		return nil, err
	}
	ct, err := r.emitter.Compile(trace)
	if err != nil {
		r.stats.CompileErrors++
		return nil, fmt.Errorf("jit: compile %#x: %w", pc, err)
	}
	r.stats.Compiles++
	r.stats.CodeBytes += uint64(ct.CodeSize())

	if r.cfg.Invalidation {
		lo, hi := trace.Entry, trace.End()
		for _, line := range r.tracker.Track(lo, hi) {
			r.dropLine(line)
		}
		if !r.tracker.Covers(lo, hi) {
			r.untracked[pc] = struct{}{}
			r.log.V(1).Info("trace lines not tracked", "entry", fmt.Sprintf("%#x", pc))
		}
	}

	r.cache.Insert(ct)
	return ct, nil
}

// Step executes the cached trace at the pc if there is one, and otherwise
// interprets one instruction. A trace that stops at a trap or an op it
// could not lower is followed by interpreting that instruction.
func (r *RunLoop) Step() emu.StepResult {
	if limit := r.cfg.MaxInstructions; limit > 0 && r.emu.InstructionCount() >= limit {
		return emu.StepResult{Err: emu.ErrMaxInstructions}
	}

	state := r.emu.State()
	pc := state.PC

	ct, ok := r.cache.Lookup(pc)
	if !ok && r.native && r.cfg.HotThreshold > 0 {
		r.visits[pc]++
		if r.visits[pc] >= r.cfg.HotThreshold {
			delete(r.visits, pc)
			var err error
			ct, err = r.Compile(pc)
			switch {
			case errors.Is(err, ErrUnsupportedHost):
				r.native = false
			case err != nil:
				r.log.Error(err, "compile failed", "pc", fmt.Sprintf("%#x", pc))
			}
			ok = err == nil
		}
	}

	if ok && ct.Native() {
		return r.execute(ct)
	}
	return r.interpret()
}

func (r *RunLoop) execute(ct *CompiledTrace) emu.StepResult {
	r.mode = ModeExecuteCompiled
	state := r.emu.State()
	if _, err := ct.Run(state); err != nil {
		return emu.StepResult{Err: err}
	}

	if !r.cache.Contains(ct.Entry()) {
		_ = ct.Release()
	}

	n := uint64(ct.Trace.NativeLen())
	r.emu.Retire(n)
	r.stats.Native += n
	r.stats.TraceRuns++

	switch ct.Trace.Term.Kind {
	case TermTrap, TermBail:
		return r.interpret()
	}
	return emu.StepResult{}
}

func (r *RunLoop) interpret() emu.StepResult {
	r.mode = ModeInterpret
	before := r.emu.InstructionCount()
	result := r.emu.Step()
	r.stats.Interpreted += r.emu.InstructionCount() - before
	return result
}

// Run steps until the program exits, traps or fails.
func (r *RunLoop) Run() emu.StepResult {
	for {
		result := r.Step()
		if result.Stopped() {
			if result.Err != nil {
				r.log.V(1).Info("stopped", "pc", fmt.Sprintf("%#x", r.emu.State().PC), "err", result.Err.Error())
			}
			return result
		}
	}
}

// Close releases every compiled trace.
func (r *RunLoop) Close() {
	r.cache.Flush()
	r.tracker.Reset()
	clear(r.untracked)
}

func (r *RunLoop) onStore(addr uint64, size int) {
	for _, line := range r.tracker.Write(addr, size) {
		r.dropLine(line)
	}
	if len(r.untracked) > 0 {
		r.dropUntracked(addr, addr+uint64(size))
	}
}

// dropUntracked removes the traces built from [lo, hi) when any of them
// is one the tracker cannot see.
func (r *RunLoop) dropUntracked(lo, hi uint64) {
	hit := false
	for entry := range r.untracked {
		ct, ok := r.cache.byPC[entry]
		if !ok {
			delete(r.untracked, entry)
			continue
		}
		if ct.Trace.Overlaps(lo, hi) {
			delete(r.untracked, entry)
			hit = true
		}
	}
	if !hit {
		return
	}
	n := r.cache.InvalidateRange(lo, hi)
	r.stats.Invalidations += uint64(n)
	r.log.V(1).Info("invalidated untracked", "addr", fmt.Sprintf("%#x", lo), "traces", n)
}

func (r *RunLoop) onFenceI() {
	n := r.cache.Len()
	r.cache.Flush()
	r.tracker.Reset()
	clear(r.untracked)
	r.stats.Invalidations += uint64(n)
	r.log.V(1).Info("fence.i", "dropped", n)
}

func (r *RunLoop) dropLine(line uint64) {
	n := r.cache.InvalidateRange(line, line+r.tracker.LineSize())
	r.stats.Invalidations += uint64(n)
	if n > 0 {
		r.log.V(1).Info("invalidated", "line", fmt.Sprintf("%#x", line), "traces", n)
	}
}
