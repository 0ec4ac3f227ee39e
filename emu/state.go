// Package emu provides functional RISC-V emulation.
package emu

// Byte offsets of the State fields. Native code addresses the state through
// a base pointer and these displacements.
const (
	OffsetX    = 0
	OffsetPC   = 256
	OffsetF    = 264
	OffsetFCSR = 520
	StateSize  = 528
)

// OffsetOfX returns the byte offset of integer register r.
func OffsetOfX(r uint8) int32 {
	return OffsetX + 8*int32(r)
}

// Register holds one 64-bit architectural register.
type Register uint64

// Read returns the low width bits, sign- or zero-extended to 64 bits.
func (r Register) Read(width uint, signed bool) uint64 {
	if width >= 64 {
		return uint64(r)
	}
	shift := 64 - width
	if signed {
		return uint64(int64(r<<shift) >> shift)
	}
	return uint64(r<<shift) >> shift
}

// Write stores the low width bits of v, sign-extended to 64 bits the way
// RV64 keeps narrow results.
func (r *Register) Write(width uint, v uint64) {
	*r = Register(Register(v).Read(width, true))
}

// State is the architectural state of one hart. The field layout is fixed:
// X at offset 0, PC at 256, F at 264 and FCSR at 520.
type State struct {
	// X holds the integer registers. X[0] reads as zero through ReadReg.
	X [32]Register

	// PC is the program counter.
	PC uint64

	// F holds the raw bits of the floating-point registers.
	F [32]uint64

	// FCSR is the floating-point control and status register.
	FCSR uint64
}

// ReadReg reads an integer register. Register 0 always returns 0.
func (s *State) ReadReg(r uint8) uint64 {
	if r == 0 || r >= 32 {
		return 0
	}
	return uint64(s.X[r])
}

// WriteReg writes an integer register. Writes to register 0 are ignored.
func (s *State) WriteReg(r uint8, v uint64) {
	if r == 0 || r >= 32 {
		return
	}
	s.X[r] = Register(v)
}

// WriteReg32 writes a 32-bit result, sign-extended.
func (s *State) WriteReg32(r uint8, v uint32) {
	s.WriteReg(r, uint64(int64(int32(v))))
}

// Reset clears every register and the pc.
func (s *State) Reset() {
	*s = State{}
}
