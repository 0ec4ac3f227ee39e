package jit

import (
	"github.com/sarchlab/rvjit/asm"
	"github.com/sarchlab/rvjit/emu"
)

// CompiledTrace is a trace together with its native code.
type CompiledTrace struct {
	Trace *Trace

	code  *asm.ExecutableBuffer
	entry uintptr
}

// Entry returns the guest pc the trace starts at.
func (c *CompiledTrace) Entry() uint64 {
	return c.Trace.Entry
}

// Native reports whether the trace has native code to run.
func (c *CompiledTrace) Native() bool {
	return c.code != nil && c.entry != 0
}

// CodeSize returns the number of native code bytes.
func (c *CompiledTrace) CodeSize() int {
	if c.code == nil {
		return 0
	}
	return c.code.Len()
}

// Code returns the native code bytes, or nil.
func (c *CompiledTrace) Code() []byte {
	if !c.Native() {
		return nil
	}
	return c.code.Bytes()
}

// Run executes the native code against state and returns the next pc,
// which is also stored in state.PC.
func (c *CompiledTrace) Run(state *emu.State) (uint64, error) {
	if !c.Native() {
		return 0, ErrNotNative
	}
	return runNative(c.entry, state)
}

// Release unmaps the native code. The trace must not be run afterwards.
func (c *CompiledTrace) Release() error {
	if c.code == nil {
		return nil
	}
	err := c.code.Release()
	c.code = nil
	c.entry = 0
	return err
}
