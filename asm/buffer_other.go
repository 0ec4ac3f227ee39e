//go:build !unix

package asm

// NewWritableBuffer is unavailable without mmap.
func NewWritableBuffer(int) (*WritableBuffer, error) {
	return nil, ErrUnsupportedHost
}

func protectExec([]byte) error {
	return ErrUnsupportedHost
}

func unmap([]byte) error {
	return nil
}
