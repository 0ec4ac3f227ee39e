package jit

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rvjit/insts"
)

// Fetcher supplies instruction words. emu.Emulator implements it.
type Fetcher interface {
	Fetch(pc uint64) (uint32, error)
}

// Tracer builds traces from guest code. It does not modify guest state.
type Tracer struct {
	fetcher Fetcher
	decoder *insts.Decoder
	maxLen  int
	window  int
	fusion  bool
	log     logr.Logger
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithMaxTraceLength limits the number of instructions per trace.
func WithMaxTraceLength(n int) TracerOption {
	return func(t *Tracer) {
		t.maxLen = n
	}
}

// WithFusionWindow sets how many instructions a fusion may span.
func WithFusionWindow(n int) TracerOption {
	return func(t *Tracer) {
		t.window = n
	}
}

// WithFusion turns idiom fusion on or off.
func WithFusion(enabled bool) TracerOption {
	return func(t *Tracer) {
		t.fusion = enabled
	}
}

// WithTracerLogger sets the logger. V(1) logs every finished trace.
func WithTracerLogger(l logr.Logger) TracerOption {
	return func(t *Tracer) {
		t.log = l
	}
}

// NewTracer creates a tracer reading code through fetcher.
func NewTracer(fetcher Fetcher, decoder *insts.Decoder, opts ...TracerOption) *Tracer {
	t := &Tracer{
		fetcher: fetcher,
		decoder: decoder,
		maxLen:  64,
		window:  8,
		fusion:  true,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// stop records why scanning the straight-line body ended.
type stop struct {
	state TraceState
	term  Terminator
	inst  insts.Instruction // the op that could not be lowered
}

// Trace builds the trace starting at entry. The result is never empty.
func (t *Tracer) Trace(entry uint64) (*Trace, error) {
	if t.maxLen <= 0 {
		return nil, fmt.Errorf("jit: max trace length %d", t.maxLen)
	}

	body, end := t.scan(entry)

	trace := &Trace{Entry: entry, State: end.state, Term: end.term}
	for i := 0; i < len(body); {
		if t.fusion {
			n := min(t.window, len(body)-i)
			if op, ok := fuse(body[i : i+n]); ok {
				trace.Ops = append(trace.Ops, op)
				i += op.Len()
				continue
			}
		}
		trace.Ops = append(trace.Ops, single(body[i]))
		i++
	}

	if end.state == Bailed && len(trace.Ops) == 0 {
		trace.Ops = []FusedOp{single(end.inst)}
		trace.Term = Terminator{Kind: TermInterpret, Next: entry}
	}

	if l := t.log.V(1); l.Enabled() {
		l.Info("trace", "entry", fmt.Sprintf("%#x", entry), "state", trace.State.String(),
			"ops", len(trace.Ops), "insts", trace.Len(), "term", trace.Term.Kind.String())
		for _, op := range trace.Ops {
			if op.Kind != FuseNone {
				l.Info("fused", "pc", fmt.Sprintf("%#x", op.Insts[0].PC), "kind", op.Kind.String(), "op", op.String())
			}
		}
	}
	return trace, nil
}

// scan decodes the straight-line body from entry up to the first control
// transfer, unlowerable op, fetch fault or the length limit.
func (t *Tracer) scan(entry uint64) ([]insts.Instruction, stop) {
	var body []insts.Instruction
	pc := entry
	for {
		if len(body) == t.maxLen {
			return body, stop{state: Terminated, term: Terminator{Kind: TermFallthrough, Next: pc}}
		}

		word, err := t.fetcher.Fetch(pc)
		if err != nil {
			bad := insts.Instruction{Op: insts.OpIllegal, PC: pc, Len: 4}
			return body, stop{state: Bailed, term: Terminator{Kind: TermBail, Next: pc}, inst: bad}
		}
		inst := t.decoder.Decode(word, pc)

		switch {
		case inst.IsTrap():
			return body, stop{state: Terminated, term: Terminator{Kind: TermTrap, Inst: inst, Next: pc}}
		case inst.Op == insts.OpJAL:
			return body, stop{state: Terminated, term: Terminator{Kind: TermJump, Inst: inst}}
		case inst.Op == insts.OpJALR:
			return body, stop{state: Terminated, term: Terminator{Kind: TermIndirect, Inst: inst}}
		case inst.IsBranch():
			return body, stop{state: Terminated, term: Terminator{Kind: TermBranch, Inst: inst}}
		case !Lowerable(inst.Op):
			return body, stop{state: Bailed, term: Terminator{Kind: TermBail, Next: pc}, inst: inst}
		}

		body = append(body, inst)
		pc = inst.Next()
	}
}

func single(inst insts.Instruction) FusedOp {
	return FusedOp{
		Kind:  FuseNone,
		Insts: []insts.Instruction{inst},
		Rd:    inst.Rd,
		Rs:    inst.Rs1,
		Rt:    inst.Rs2,
		Value: inst.Imm,
	}
}
