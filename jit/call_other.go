//go:build !(amd64 && (linux || darwin))

package jit

import "github.com/sarchlab/rvjit/emu"

// NativeSupported reports whether compiled traces can run on this host.
func NativeSupported() bool {
	return false
}

func runNative(uintptr, *emu.State) (uint64, error) {
	return 0, ErrUnsupportedHost
}
