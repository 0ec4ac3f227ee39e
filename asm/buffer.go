package asm

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrSealed is returned by a writable buffer that has been sealed or
	// released.
	ErrSealed = errors.New("asm: buffer sealed")

	// ErrBufferFull is returned when a write does not fit the buffer.
	ErrBufferFull = errors.New("asm: buffer full")

	// ErrUnsupportedHost is returned where executable memory is not
	// available.
	ErrUnsupportedHost = errors.New("asm: executable memory not supported on this host")
)

// WritableBuffer is mapped read-write and never executable. Seal converts
// it into an ExecutableBuffer; after that the writable buffer is consumed.
type WritableBuffer struct {
	mem  []byte
	used int
	done bool
}

// ExecutableBuffer is mapped read-execute. It has no write methods.
type ExecutableBuffer struct {
	mem  []byte
	size int
}

// Write appends p. It implements io.Writer.
func (b *WritableBuffer) Write(p []byte) (int, error) {
	if b.done {
		return 0, ErrSealed
	}
	if b.used+len(p) > len(b.mem) {
		return 0, fmt.Errorf("%w: %d + %d > %d", ErrBufferFull, b.used, len(p), len(b.mem))
	}
	copy(b.mem[b.used:], p)
	b.used += len(p)
	return len(p), nil
}

// Addr returns the address the buffer is mapped at. It stays the same after
// sealing.
func (b *WritableBuffer) Addr() uintptr {
	if len(b.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.mem[0]))
}

// Len returns the number of bytes written.
func (b *WritableBuffer) Len() int {
	return b.used
}

// Cap returns the mapped size.
func (b *WritableBuffer) Cap() int {
	return len(b.mem)
}

// Seal makes the buffer executable and read-only.
func (b *WritableBuffer) Seal() (*ExecutableBuffer, error) {
	if b.done {
		return nil, ErrSealed
	}
	if err := protectExec(b.mem); err != nil {
		return nil, fmt.Errorf("asm: seal: %w", err)
	}
	x := &ExecutableBuffer{mem: b.mem, size: b.used}
	b.mem = nil
	b.done = true
	return x, nil
}

// Release unmaps a buffer that will not be sealed.
func (b *WritableBuffer) Release() error {
	if b.done {
		return ErrSealed
	}
	b.done = true
	mem := b.mem
	b.mem = nil
	return unmap(mem)
}

// Entry returns the address of offset for use as a call target.
func (x *ExecutableBuffer) Entry(offset int) (uintptr, error) {
	if x.mem == nil {
		return 0, ErrSealed
	}
	if offset < 0 || offset >= x.size {
		return 0, fmt.Errorf("asm: entry offset %d outside [0, %d)", offset, x.size)
	}
	return uintptr(unsafe.Pointer(&x.mem[offset])), nil
}

// Addr returns the base address of the buffer.
func (x *ExecutableBuffer) Addr() uintptr {
	if x.mem == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(&x.mem[0]))
}

// Len returns the number of code bytes.
func (x *ExecutableBuffer) Len() int {
	return x.size
}

// Mapped returns the number of bytes mapped, a multiple of the page size.
func (x *ExecutableBuffer) Mapped() int {
	return len(x.mem)
}

// Bytes returns a read-only view of the code, or nil once released.
func (x *ExecutableBuffer) Bytes() []byte {
	if x.mem == nil {
		return nil
	}
	return x.mem[:x.size:x.size]
}

// Release unmaps the buffer. Entries obtained earlier must not be called
// afterwards.
func (x *ExecutableBuffer) Release() error {
	if x.mem == nil {
		return nil
	}
	mem := x.mem
	x.mem = nil
	return unmap(mem)
}
