package rv

import (
	"math/bits"

	"github.com/sarchlab/rvjit/insts"
)

// LoadImm emits the shortest LUI/ADDI(W)/SLLI/ADDI sequence that leaves v
// in rd. Values that fit 32 bits take at most two instructions; wider values
// recurse on the upper part and append SLLI and ADDI.
func (b *Builder) LoadImm(rd uint8, v int64) {
	if int64(int32(v)) == v {
		hi20 := uint32((v+0x800)>>12) & 0xfffff
		lo12 := sext12(v)
		if hi20 != 0 {
			b.LUI(rd, hi20)
		}
		switch {
		case hi20 != 0 && lo12 != 0:
			b.ADDIW(rd, rd, lo12)
		case hi20 == 0:
			b.ADDI(rd, insts.RegZero, lo12)
		}
		return
	}

	lo12 := sext12(v)
	rest := int64(uint64(v) - uint64(lo12))
	shift := bits.TrailingZeros64(uint64(rest))
	rest >>= shift

	// Prefer LUI for the upper part when it saves an ADDI.
	if shift > 12 && sext12(rest) != rest && int64(int32(rest<<12)) == rest<<12 {
		shift -= 12
		rest <<= 12
	}

	b.LoadImm(rd, rest)
	if shift != 0 {
		b.SLLI(rd, rd, int64(shift))
	}
	if lo12 != 0 {
		b.ADDI(rd, rd, lo12)
	}
}

// LoadImmLen returns the number of instructions LoadImm emits for v.
func LoadImmLen(v int64) int {
	if int64(int32(v)) == v {
		if (v+0x800)>>12&0xfffff != 0 && sext12(v) != 0 {
			return 2
		}
		return 1
	}
	lo12 := sext12(v)
	rest := int64(uint64(v) - uint64(lo12))
	shift := bits.TrailingZeros64(uint64(rest))
	rest >>= shift
	if shift > 12 && sext12(rest) != rest && int64(int32(rest<<12)) == rest<<12 {
		shift -= 12
		rest <<= 12
	}
	n := LoadImmLen(rest)
	if shift != 0 {
		n++
	}
	if lo12 != 0 {
		n++
	}
	return n
}
