package emu

import (
	"errors"
	"fmt"
)

// ErrFault is wrapped by translators that reject an access.
var ErrFault = errors.New("emu: access fault")

// Access is the kind of memory access being translated.
type Access uint8

// Access kinds.
const (
	AccessFetch Access = iota
	AccessLoad
	AccessStore
)

func (a Access) String() string {
	switch a {
	case AccessFetch:
		return "fetch"
	case AccessLoad:
		return "load"
	case AccessStore:
		return "store"
	}
	return fmt.Sprintf("access(%d)", uint8(a))
}

// Translator maps guest virtual addresses to guest physical addresses.
type Translator interface {
	Translate(vaddr uint64, size int, access Access) (uint64, error)
}

// IdentityTranslator maps every address to itself.
type IdentityTranslator struct{}

// Translate implements Translator.
func (IdentityTranslator) Translate(vaddr uint64, _ int, _ Access) (uint64, error) {
	return vaddr, nil
}

// RangeTranslator is an identity mapping restricted to [Lo, Hi). Accesses
// outside the window fault.
type RangeTranslator struct {
	Lo, Hi uint64
}

// Translate implements Translator.
func (t RangeTranslator) Translate(vaddr uint64, size int, access Access) (uint64, error) {
	end := vaddr + uint64(size)
	if vaddr < t.Lo || end > t.Hi || end < vaddr {
		return 0, fmt.Errorf("%w: %s of %d bytes at %#x", ErrFault, access, size, vaddr)
	}
	return vaddr, nil
}
