// Package imm provides a data-driven model of instruction immediates whose
// bits are scattered across an instruction word.
//
// A Descriptor is a flat list of segments, each mapping a bit range of the
// instruction word to a bit range of the logical immediate. The shift for
// every segment is computed once, when the descriptor is built, and the same
// segment list drives both decoding and encoding.
//
// Usage:
//
//	// RISC-V B-type offset: imm[12|10:5] = inst[31:25], imm[4:1|11] = inst[11:7]
//	b := imm.MustDescriptor(13, true, 1,
//		imm.Segment{SrcHi: 31, SrcLo: 31, DstHi: 12, DstLo: 12},
//		imm.Segment{SrcHi: 30, SrcLo: 25, DstHi: 10, DstLo: 5},
//		imm.Segment{SrcHi: 11, SrcLo: 8, DstHi: 4, DstLo: 1},
//		imm.Segment{SrcHi: 7, SrcLo: 7, DstHi: 11, DstLo: 11},
//	)
//	off := b.Decode(word)
//	bits, err := b.Encode(imm.S(13, -16))
package imm

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a value does not fit the declared width.
	ErrOutOfRange = errors.New("imm: value out of range")

	// ErrMisaligned is returned when a value has bits set below the
	// descriptor's implicit-zero alignment.
	ErrMisaligned = errors.New("imm: value misaligned")

	// ErrMalformed is returned for descriptors whose segments overlap or do
	// not cover the declared width.
	ErrMalformed = errors.New("imm: malformed descriptor")
)

// Segment maps instruction bits [SrcHi:SrcLo] to immediate bits [DstHi:DstLo].
type Segment struct {
	SrcHi, SrcLo uint
	DstHi, DstLo uint
}

type segment struct {
	srcMask uint32
	dstMask uint64
	shift   int // dstLo - srcLo; negative shifts right on decode
}

// Descriptor describes one immediate encoding.
type Descriptor struct {
	Width  uint // bit width of the logical value, sign/zero extension point
	Signed bool
	Align  uint // low bits that are implicitly zero and not encoded

	segs    []segment
	srcMask uint32
}

// NewDescriptor builds a descriptor and checks its invariants: source ranges
// are within the 32-bit word and disjoint, destination ranges are disjoint
// and together cover exactly [Align, Width).
func NewDescriptor(width uint, signed bool, align uint, segments ...Segment) (*Descriptor, error) {
	if width == 0 || width > 64 || align >= width {
		return nil, fmt.Errorf("%w: width %d align %d", ErrMalformed, width, align)
	}

	d := &Descriptor{Width: width, Signed: signed, Align: align}

	var covered uint64
	for _, s := range segments {
		if s.SrcHi < s.SrcLo || s.DstHi < s.DstLo {
			return nil, fmt.Errorf("%w: inverted range %+v", ErrMalformed, s)
		}
		if s.SrcHi-s.SrcLo != s.DstHi-s.DstLo {
			return nil, fmt.Errorf("%w: width mismatch %+v", ErrMalformed, s)
		}
		if s.SrcHi > 31 || s.DstHi >= width || s.DstLo < align {
			return nil, fmt.Errorf("%w: range outside field %+v", ErrMalformed, s)
		}

		seg := segment{
			srcMask: uint32(bitMask(s.SrcHi, s.SrcLo)),
			dstMask: bitMask(s.DstHi, s.DstLo),
			shift:   int(s.DstLo) - int(s.SrcLo),
		}
		if covered&seg.dstMask != 0 {
			return nil, fmt.Errorf("%w: overlapping destination %+v", ErrMalformed, s)
		}
		if d.srcMask&seg.srcMask != 0 {
			return nil, fmt.Errorf("%w: overlapping source %+v", ErrMalformed, s)
		}
		covered |= seg.dstMask
		d.srcMask |= seg.srcMask
		d.segs = append(d.segs, seg)
	}

	if covered != bitMask(width-1, align) {
		return nil, fmt.Errorf("%w: destination bits %#x do not cover [%d:%d]",
			ErrMalformed, covered, width-1, align)
	}

	return d, nil
}

// MustDescriptor is NewDescriptor for package-level tables. It panics on a
// malformed descriptor.
func MustDescriptor(width uint, signed bool, align uint, segments ...Segment) *Descriptor {
	d, err := NewDescriptor(width, signed, align, segments...)
	if err != nil {
		panic(err)
	}
	return d
}

// Decode extracts the immediate from an instruction word. It is defined for
// every input.
func (d *Descriptor) Decode(word uint32) int64 {
	var v uint64
	for _, s := range d.segs {
		bits := uint64(word & s.srcMask)
		if s.shift >= 0 {
			v |= bits << uint(s.shift)
		} else {
			v |= bits >> uint(-s.shift)
		}
	}
	return extend(v, d.Width, d.Signed)
}

// Encode scatters v into the instruction bit positions of this descriptor.
// Bits outside Mask() are zero in the result.
func (d *Descriptor) Encode(v Value) (uint32, error) {
	if !v.Valid() || !d.Fits(v) {
		return 0, fmt.Errorf("%w: %s does not fit %s", ErrOutOfRange, v, d)
	}
	if d.Align > 0 && v.Bits&bitMask(d.Align-1, 0) != 0 {
		return 0, fmt.Errorf("%w: %s needs %d zero low bits", ErrMisaligned, v, d.Align)
	}

	u := v.Bits & bitMask(d.Width-1, 0)
	var word uint32
	for _, s := range d.segs {
		bits := u & s.dstMask
		if s.shift >= 0 {
			word |= uint32(bits >> uint(s.shift))
		} else {
			word |= uint32(bits << uint(-s.shift))
		}
	}
	return word, nil
}

// Fits reports whether v is inside this descriptor's range, independent of
// the width v itself declares.
func (d *Descriptor) Fits(v Value) bool {
	if v.Signed && int64(v.Bits) < 0 {
		return d.Signed && int64(v.Bits) >= d.Min()
	}
	if d.Signed {
		return v.Bits <= uint64(d.Max())
	}
	return d.Width == 64 || v.Bits <= uint64(d.Max())
}

// Min returns the smallest representable value.
func (d *Descriptor) Min() int64 {
	if !d.Signed {
		return 0
	}
	return -1 << (d.Width - 1)
}

// Max returns the largest representable value. Unsigned 64-bit descriptors
// report -1, i.e. all ones.
func (d *Descriptor) Max() int64 {
	if d.Signed {
		if d.Width == 1 {
			return 0
		}
		return int64(bitMask(d.Width-2, 0))
	}
	return int64(bitMask(d.Width-1, 0))
}

// Mask returns the union of all source bit ranges.
func (d *Descriptor) Mask() uint32 {
	return d.srcMask
}

func (d *Descriptor) String() string {
	sign := "u"
	if d.Signed {
		sign = "s"
	}
	return fmt.Sprintf("%simm%d/%d", sign, d.Width, len(d.segs))
}

// bitMask returns ones in bits [hi:lo]. hi may be below lo, giving zero.
func bitMask(hi, lo uint) uint64 {
	if hi < lo || lo > 63 {
		return 0
	}
	var upper uint64
	if hi >= 63 {
		upper = ^uint64(0)
	} else {
		upper = (uint64(1) << (hi + 1)) - 1
	}
	return upper &^ ((uint64(1) << lo) - 1)
}

// extend sign- or zero-extends the low width bits of v.
func extend(v uint64, width uint, signed bool) int64 {
	if width >= 64 {
		return int64(v)
	}
	shift := 64 - width
	if signed {
		return int64(v<<shift) >> shift
	}
	return int64(v << shift >> shift)
}
