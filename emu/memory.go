package emu

import "encoding/binary"

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// StoreObserver is notified after every write to memory.
type StoreObserver func(addr uint64, size int)

// Memory is a sparse, little-endian guest memory. Unwritten bytes read as 0.
type Memory struct {
	pages     map[uint64]*[pageSize]byte
	observers []StoreObserver
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[pageSize]byte)}
}

// Watch registers an observer for subsequent writes.
func (m *Memory) Watch(o StoreObserver) {
	m.observers = append(m.observers, o)
}

func (m *Memory) page(addr uint64, create bool) *[pageSize]byte {
	p, ok := m.pages[addr>>pageBits]
	if !ok && create {
		p = new([pageSize]byte)
		m.pages[addr>>pageBits] = p
	}
	return p
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) byte {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&pageMask]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, v byte) {
	m.page(addr, true)[addr&pageMask] = v
	m.notify(addr, 1)
}

// ReadBytes fills buf from addr.
func (m *Memory) ReadBytes(addr uint64, buf []byte) {
	for i := range buf {
		buf[i] = m.Read8(addr + uint64(i))
	}
}

// WriteBytes copies buf to addr.
func (m *Memory) WriteBytes(addr uint64, buf []byte) {
	for i, b := range buf {
		m.page(addr+uint64(i), true)[(addr+uint64(i))&pageMask] = b
	}
	if len(buf) > 0 {
		m.notify(addr, len(buf))
	}
}

func (m *Memory) read(addr uint64, n int) uint64 {
	var buf [8]byte
	if off := addr & pageMask; off+uint64(n) <= pageSize {
		if p := m.page(addr, false); p != nil {
			copy(buf[:n], p[off:off+uint64(n)])
		}
	} else {
		m.ReadBytes(addr, buf[:n])
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func (m *Memory) write(addr uint64, n int, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	m.WriteBytes(addr, buf[:n])
}

// Read16 reads a little-endian halfword.
func (m *Memory) Read16(addr uint64) uint16 { return uint16(m.read(addr, 2)) }

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint64) uint32 { return uint32(m.read(addr, 4)) }

// Read64 reads a little-endian doubleword.
func (m *Memory) Read64(addr uint64) uint64 { return m.read(addr, 8) }

// Write16 writes a little-endian halfword.
func (m *Memory) Write16(addr uint64, v uint16) { m.write(addr, 2, uint64(v)) }

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint64, v uint32) { m.write(addr, 4, uint64(v)) }

// Write64 writes a little-endian doubleword.
func (m *Memory) Write64(addr uint64, v uint64) { m.write(addr, 8, v) }

// LoadProgram copies program bytes to addr.
func (m *Memory) LoadProgram(addr uint64, program []byte) {
	m.WriteBytes(addr, program)
}

func (m *Memory) notify(addr uint64, size int) {
	for _, o := range m.observers {
		o(addr, size)
	}
}
