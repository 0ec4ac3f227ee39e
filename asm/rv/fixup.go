package rv

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/rvjit/asm"
	"github.com/sarchlab/rvjit/imm"
	"github.com/sarchlab/rvjit/insts"
)

// patch clears the descriptor's field in the instruction word and scatters
// v into it.
func patch(field []byte, d *imm.Descriptor, v imm.Value) error {
	word := binary.LittleEndian.Uint32(field)
	enc, err := d.Encode(v)
	if err != nil {
		return fmt.Errorf("%w: %w", asm.ErrRelocationRange, err)
	}
	binary.LittleEndian.PutUint32(field, word&^d.Mask()|enc)
	return nil
}

// Branch patches the 13-bit pc-relative offset of a conditional branch.
type Branch struct{}

// Size implements asm.Fixup.
func (Branch) Size() int { return 4 }

// Patch implements asm.Fixup.
func (Branch) Patch(field []byte, place, target uint64) error {
	return patch(field, insts.ImmB, imm.S(64, int64(target-place)))
}

// Jal patches the 21-bit pc-relative offset of JAL.
type Jal struct{}

// Size implements asm.Fixup.
func (Jal) Size() int { return 4 }

// Patch implements asm.Fixup.
func (Jal) Patch(field []byte, place, target uint64) error {
	return patch(field, insts.ImmJ, imm.S(64, int64(target-place)))
}

// PCRelHi20 patches AUIPC with the upper 20 bits of target-place, rounded so
// that a following PCRelLo12 adds a signed low part.
type PCRelHi20 struct{}

// Size implements asm.Fixup.
func (PCRelHi20) Size() int { return 4 }

// Patch implements asm.Fixup.
func (PCRelHi20) Patch(field []byte, place, target uint64) error {
	off := int64(target - place)
	return patch(field, insts.ImmU, imm.S(64, (off+0x800)>>12<<12))
}

// PCRelLo12 patches the I-type immediate of the instruction paired with an
// AUIPC located Anchor bytes earlier.
type PCRelLo12 struct {
	Anchor uint64
}

// Size implements asm.Fixup.
func (PCRelLo12) Size() int { return 4 }

// Patch implements asm.Fixup.
func (f PCRelLo12) Patch(field []byte, place, target uint64) error {
	off := int64(target - (place - f.Anchor))
	return patch(field, insts.ImmI, imm.S(12, sext12(off)))
}

func sext12(v int64) int64 {
	return v << 52 >> 52
}
