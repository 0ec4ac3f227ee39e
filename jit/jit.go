// Package jit translates straight-line RISC-V regions into native x86-64
// code and runs them against an emu.Emulator.
//
// A Tracer decodes from an entry pc and fuses common idioms. The Emitter
// lowers the resulting Trace into an executable buffer. The RunLoop keeps
// compiled traces in a TraceCache, drops them when guest code changes and
// falls back to the interpreter for everything it cannot run natively.
//
// Usage:
//
//	e := emu.NewEmulator()
//	e.LoadProgram(entry, code)
//	loop := jit.NewRunLoop(e, jit.WithConfig(config.Default()))
//	if _, err := loop.Compile(entry); err != nil { ... }
//	result := loop.Run()
package jit

import (
	"errors"

	"github.com/sarchlab/rvjit/asm"
)

var (
	// ErrUnsupportedHost is returned when native code cannot be produced or
	// run on this machine.
	ErrUnsupportedHost = asm.ErrUnsupportedHost

	// ErrNotNative is returned when running a trace that has no native
	// code.
	ErrNotNative = errors.New("jit: trace has no native code")

	// ErrNotLowerable is returned by the emitter for ops it cannot lower.
	ErrNotLowerable = errors.New("jit: op cannot be lowered")
)
