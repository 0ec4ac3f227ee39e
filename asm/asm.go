// Package asm is a small multi-section assembler. Instruction encoders live
// in ISA packages (asm/rv, asm/x86); this package owns sections, symbols,
// relocations and the transition of linked code into executable memory.
//
// Usage:
//
//	a := asm.New()
//	a.Emit32(word)
//	a.Ref("done", rv.Branch{})
//	a.Emit32(branchWord)
//	a.Label("done")
//	buf, err := a.Assemble()
package asm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
)

var (
	// ErrUndefinedSymbol is returned by Link for references to symbols that
	// were never defined.
	ErrUndefinedSymbol = errors.New("asm: undefined symbol")

	// ErrDuplicateSymbol is returned when a symbol is defined twice.
	ErrDuplicateSymbol = errors.New("asm: duplicate symbol")

	// ErrRelocationRange is returned by fixups whose target does not fit
	// the field.
	ErrRelocationRange = errors.New("asm: relocation out of range")

	// ErrNotLinked is returned when addresses are requested before Link.
	ErrNotLinked = errors.New("asm: not linked")
)

// SectionKind classifies a section.
type SectionKind uint8

// Section kinds.
const (
	KindText SectionKind = iota
	KindData
	KindRodata
)

// Fixup patches a reference once the referenced symbol has an address. Each
// ISA supplies its own fixups.
type Fixup interface {
	// Size is the number of bytes at the reference site that Patch may
	// rewrite.
	Size() int

	// Patch rewrites field, which is located at address place, so that it
	// refers to target.
	Patch(field []byte, place, target uint64) error
}

// Section is a named, contiguous run of bytes.
type Section struct {
	Name string
	Kind SectionKind

	buf    []byte
	base   uint64
	offset uint64 // offset in the linked image
}

// Len returns the section size in bytes.
func (s *Section) Len() int {
	return len(s.buf)
}

type symbol struct {
	section  *Section // nil for absolute symbols
	offset   int
	absolute uint64
}

type reloc struct {
	section *Section
	offset  int
	name    string
	fixup   Fixup
}

// Assembler collects sections, symbols and references.
type Assembler struct {
	sections []*Section
	current  *Section
	symbols  map[string]symbol
	relocs   []reloc
	align    int
	linked   bool
	base     uint64
	size     int
	log      logr.Logger

	newBuffer func(size int) (*WritableBuffer, error)
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithSectionAlign sets the alignment of each section in the linked image.
func WithSectionAlign(n int) Option {
	return func(a *Assembler) {
		a.align = n
	}
}

// WithLogger sets the logger. V(2) reports section sizes at link time.
func WithLogger(l logr.Logger) Option {
	return func(a *Assembler) {
		a.log = l
	}
}

// New creates an assembler whose current section is ".text".
func New(opts ...Option) *Assembler {
	a := &Assembler{
		symbols:   make(map[string]symbol),
		align:     16,
		log:       logr.Discard(),
		newBuffer: NewWritableBuffer,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Section(".text", KindText)
	return a
}

// Section selects the named section, creating it if needed.
func (a *Assembler) Section(name string, kind SectionKind) *Section {
	for _, s := range a.sections {
		if s.Name == name {
			a.current = s
			return s
		}
	}
	s := &Section{Name: name, Kind: kind}
	a.sections = append(a.sections, s)
	a.current = s
	a.linked = false
	return s
}

// Current returns the section being emitted into.
func (a *Assembler) Current() *Section {
	return a.current
}

// Offset returns the current position in the current section.
func (a *Assembler) Offset() int {
	return len(a.current.buf)
}

// Emit appends raw bytes.
func (a *Assembler) Emit(b ...byte) {
	a.current.buf = append(a.current.buf, b...)
	a.linked = false
}

// Emit16 appends a little-endian halfword.
func (a *Assembler) Emit16(v uint16) {
	a.Emit(byte(v), byte(v>>8))
}

// Emit32 appends a little-endian word.
func (a *Assembler) Emit32(v uint32) {
	a.current.buf = binary.LittleEndian.AppendUint32(a.current.buf, v)
	a.linked = false
}

// Emit64 appends a little-endian doubleword.
func (a *Assembler) Emit64(v uint64) {
	a.current.buf = binary.LittleEndian.AppendUint64(a.current.buf, v)
	a.linked = false
}

// Align pads the current section with fill up to a multiple of n.
func (a *Assembler) Align(n int, fill byte) {
	for len(a.current.buf)%n != 0 {
		a.current.buf = append(a.current.buf, fill)
	}
}

// Label defines name at the current position.
func (a *Assembler) Label(name string) error {
	if _, ok := a.symbols[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, name)
	}
	a.symbols[name] = symbol{section: a.current, offset: len(a.current.buf)}
	return nil
}

// Define binds name to an absolute address outside the image.
func (a *Assembler) Define(name string, addr uint64) error {
	if _, ok := a.symbols[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, name)
	}
	a.symbols[name] = symbol{absolute: addr}
	return nil
}

// Ref records a reference to name at the current position. The caller
// emits the field afterwards; fx patches it during Link. Forward references
// are allowed.
func (a *Assembler) Ref(name string, fx Fixup) {
	a.relocs = append(a.relocs, reloc{
		section: a.current,
		offset:  len(a.current.buf),
		name:    name,
		fixup:   fx,
	})
	a.linked = false
}

// Link lays the sections out from base in creation order and resolves every
// reference.
func (a *Assembler) Link(base uint64) error {
	off := uint64(0)
	for _, s := range a.sections {
		off = alignUp(off, uint64(a.align))
		s.offset = off
		s.base = base + off
		off += uint64(len(s.buf))
		a.log.V(2).Info("section", "name", s.Name, "base", fmt.Sprintf("%#x", s.base), "size", len(s.buf))
	}
	a.base = base
	a.size = int(off)

	for _, r := range a.relocs {
		target, ok := a.resolve(r.name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUndefinedSymbol, r.name)
		}
		end := r.offset + r.fixup.Size()
		if end > len(r.section.buf) {
			return fmt.Errorf("asm: reference to %s at %s+%#x has no field", r.name, r.section.Name, r.offset)
		}
		place := r.section.base + uint64(r.offset)
		if err := r.fixup.Patch(r.section.buf[r.offset:end], place, target); err != nil {
			return fmt.Errorf("asm: %s at %s+%#x: %w", r.name, r.section.Name, r.offset, err)
		}
	}

	a.linked = true
	return nil
}

func (a *Assembler) resolve(name string) (uint64, bool) {
	sym, ok := a.symbols[name]
	if !ok {
		return 0, false
	}
	if sym.section == nil {
		return sym.absolute, true
	}
	return sym.section.base + uint64(sym.offset), true
}

// Addr returns the linked address of a symbol.
func (a *Assembler) Addr(name string) (uint64, error) {
	if !a.linked {
		return 0, ErrNotLinked
	}
	addr, ok := a.resolve(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUndefinedSymbol, name)
	}
	return addr, nil
}

// Bytes returns the contents of a section.
func (a *Assembler) Bytes(name string) []byte {
	for _, s := range a.sections {
		if s.Name == name {
			return s.buf
		}
	}
	return nil
}

// Image returns the linked image: all sections at their offsets, padding
// zeroed.
func (a *Assembler) Image() ([]byte, error) {
	if !a.linked {
		return nil, ErrNotLinked
	}
	img := make([]byte, a.size)
	for _, s := range a.sections {
		copy(img[s.offset:], s.buf)
	}
	return img, nil
}

// Assemble links the image at the address of a fresh writable buffer,
// copies it in and seals the buffer.
func (a *Assembler) Assemble() (*ExecutableBuffer, error) {
	size := 0
	for _, s := range a.sections {
		size = int(alignUp(uint64(size), uint64(a.align))) + len(s.buf)
	}

	wb, err := a.newBuffer(size)
	if err != nil {
		return nil, err
	}
	if err := a.Link(uint64(wb.Addr())); err != nil {
		_ = wb.Release()
		return nil, err
	}
	img, err := a.Image()
	if err != nil {
		_ = wb.Release()
		return nil, err
	}
	if _, err := wb.Write(img); err != nil {
		_ = wb.Release()
		return nil, err
	}
	return wb.Seal()
}

func alignUp(v, n uint64) uint64 {
	if n <= 1 {
		return v
	}
	return (v + n - 1) / n * n
}

// Abs64 stores the absolute target address as a little-endian doubleword.
type Abs64 struct{}

// Size implements Fixup.
func (Abs64) Size() int { return 8 }

// Patch implements Fixup.
func (Abs64) Patch(field []byte, _, target uint64) error {
	binary.LittleEndian.PutUint64(field, target)
	return nil
}
