//go:build amd64 && (linux || darwin)

package jit

import "github.com/sarchlab/rvjit/emu"

// callTrace calls native trace code with state in RDI and returns RAX.
//
//go:noescape
func callTrace(code uintptr, state *emu.State) uint64

// NativeSupported reports whether compiled traces can run on this host.
func NativeSupported() bool {
	return true
}

func runNative(code uintptr, state *emu.State) (uint64, error) {
	return callTrace(code, state), nil
}
