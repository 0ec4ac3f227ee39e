// Package loader reads RV64 ELF executables into an emulator.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rvjit/emu"
	"github.com/sarchlab/rvjit/insts"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackTop is the initial stack pointer for RV64 Linux user space.
const DefaultStackTop = 0x3ffffff000

// efRISCVRVC is the e_flags bit set for code that uses compressed parcels.
const efRISCVRVC = 0x1

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Contains reports whether addr falls inside the segment's memory image.
func (s Segment) Contains(addr uint64) bool {
	return addr >= s.VirtAddr && addr-s.VirtAddr < s.MemSize
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
	// Compressed is set when the file is marked as using the C extension.
	Compressed bool
}

// Extensions returns the extensions the program needs beyond RV64IM.
func (p *Program) Extensions() insts.Ext {
	ext := insts.ExtM
	if p.Compressed {
		ext |= insts.ExtC
	}
	return ext
}

// Install copies the segments into e's memory, zero-fills the rest of each
// segment, and points pc and sp at the entry and stack top.
func (p *Program) Install(e *emu.Emulator) {
	mem := e.Memory()
	for _, seg := range p.Segments {
		mem.WriteBytes(seg.VirtAddr, seg.Data)
		if seg.MemSize > uint64(len(seg.Data)) {
			bss := make([]byte, seg.MemSize-uint64(len(seg.Data)))
			mem.WriteBytes(seg.VirtAddr+uint64(len(seg.Data)), bss)
		}
	}

	state := e.State()
	state.PC = p.EntryPoint
	state.WriteReg(insts.RegSP, p.InitialSP)
}

// Load parses an RV64 ELF executable.
func Load(path string) (*Program, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = file.Close() }()

	f, err := elf.NewFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}
	eflags, err := elfFlags(file, f)
	if err != nil {
		return nil, err
	}

	prog := &Program{
		EntryPoint: f.Entry,
		InitialSP:  DefaultStackTop,
		Compressed: eflags&efRISCVRVC != 0,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

// elfFlags reads e_flags from an ELF64 header, which debug/elf does not
// expose.
func elfFlags(r io.ReaderAt, f *elf.File) (uint32, error) {
	var buf [4]byte
	if _, err := r.ReadAt(buf[:], 48); err != nil {
		return 0, fmt.Errorf("failed to read ELF flags: %w", err)
	}
	return f.ByteOrder.Uint32(buf[:]), nil
}
