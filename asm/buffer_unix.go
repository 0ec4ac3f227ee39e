//go:build unix

package asm

import "golang.org/x/sys/unix"

// NewWritableBuffer maps at least size bytes of read-write memory.
func NewWritableBuffer(size int) (*WritableBuffer, error) {
	page := unix.Getpagesize()
	n := (size + page - 1) / page * page
	if n == 0 {
		n = page
	}
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return &WritableBuffer{mem: mem}, nil
}

func protectExec(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC)
}

func unmap(mem []byte) error {
	if mem == nil {
		return nil
	}
	return unix.Munmap(mem)
}
