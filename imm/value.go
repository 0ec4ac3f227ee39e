package imm

import "fmt"

// Value is an immediate tagged with the width and signedness it was declared
// with. Bits holds the two's-complement representation.
type Value struct {
	Bits   uint64
	Width  uint
	Signed bool
}

// S declares a signed immediate of the given width.
func S(width uint, v int64) Value {
	return Value{Bits: uint64(v), Width: width, Signed: true}
}

// U declares an unsigned immediate of the given width.
func U(width uint, v uint64) Value {
	return Value{Bits: v, Width: width}
}

// Int returns the value as a signed integer.
func (v Value) Int() int64 {
	return int64(v.Bits)
}

// Min returns the smallest value representable at the declared width.
func (v Value) Min() int64 {
	if !v.Signed || v.Width == 0 || v.Width > 64 {
		return 0
	}
	return -1 << (v.Width - 1)
}

// Max returns the largest value representable at the declared width.
func (v Value) Max() uint64 {
	switch {
	case v.Width == 0 || v.Width > 64:
		return 0
	case v.Signed:
		return uint64(1)<<(v.Width-1) - 1
	case v.Width == 64:
		return ^uint64(0)
	default:
		return uint64(1)<<v.Width - 1
	}
}

// Valid reports whether min <= value <= max for the declared width.
func (v Value) Valid() bool {
	if v.Width == 0 || v.Width > 64 {
		return false
	}
	if v.Signed {
		x := int64(v.Bits)
		return x >= v.Min() && (x < 0 || uint64(x) <= v.Max())
	}
	return v.Bits <= v.Max()
}

func (v Value) String() string {
	if v.Signed {
		return fmt.Sprintf("simm%d(%d)", v.Width, int64(v.Bits))
	}
	return fmt.Sprintf("uimm%d(%#x)", v.Width, v.Bits)
}
