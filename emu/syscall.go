package emu

import (
	"io"

	"github.com/sarchlab/rvjit/insts"
)

// RISC-V Linux syscall numbers.
const (
	SyscallRead      uint64 = 63 // read(fd, buf, count)
	SyscallWrite     uint64 = 64 // write(fd, buf, count)
	SyscallExit      uint64 = 93 // exit(status)
	SyscallExitGroup uint64 = 94 // exit_group(status)
)

// maxTransfer bounds the buffer a single read or write may touch.
const maxTransfer = 1 << 20

// Linux error codes.
const (
	EBADF  = 9  // Bad file descriptor
	ENOSYS = 38 // Function not implemented
	EIO    = 5  // I/O error
)

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler is the interface for handling ECALL.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the state.
	// RISC-V Linux syscall convention:
	//   - Syscall number in a7
	//   - Arguments in a0-a5
	//   - Return value in a0
	Handle() SyscallResult
}

// DefaultSyscallHandler provides exit, read and write on the standard
// streams.
type DefaultSyscallHandler struct {
	state  *State
	memory *Memory
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(state *State, memory *Memory, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		state:  state,
		memory: memory,
		stdout: stdout,
		stderr: stderr,
	}
}

// SetStdin sets the stdin reader for the syscall handler.
func (h *DefaultSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// Handle executes the syscall indicated by the state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.state.ReadReg(insts.RegA7) {
	case SyscallRead:
		return h.handleRead()
	case SyscallWrite:
		return h.handleWrite()
	case SyscallExit, SyscallExitGroup:
		return SyscallResult{
			Exited:   true,
			ExitCode: int64(h.state.ReadReg(insts.RegA0)),
		}
	default:
		h.setError(ENOSYS)
		return SyscallResult{}
	}
}

func (h *DefaultSyscallHandler) handleRead() SyscallResult {
	fd := h.state.ReadReg(insts.RegA0)
	bufPtr := h.state.ReadReg(insts.RegA1)
	count := h.state.ReadReg(insts.RegA2)

	// Only stdin (fd=0) is supported
	if fd != 0 {
		h.setError(EBADF)
		return SyscallResult{}
	}

	// No stdin reads as EOF
	if h.stdin == nil {
		h.state.WriteReg(insts.RegA0, 0)
		return SyscallResult{}
	}

	buf := make([]byte, min(count, maxTransfer))
	n, err := h.stdin.Read(buf)
	if err != nil && n == 0 {
		h.state.WriteReg(insts.RegA0, 0)
		return SyscallResult{}
	}

	h.memory.WriteBytes(bufPtr, buf[:n])
	h.state.WriteReg(insts.RegA0, uint64(n))
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleWrite() SyscallResult {
	fd := h.state.ReadReg(insts.RegA0)
	bufPtr := h.state.ReadReg(insts.RegA1)
	count := h.state.ReadReg(insts.RegA2)

	var writer io.Writer
	switch fd {
	case 1:
		writer = h.stdout
	case 2:
		writer = h.stderr
	default:
		h.setError(EBADF)
		return SyscallResult{}
	}

	buf := make([]byte, min(count, maxTransfer))
	h.memory.ReadBytes(bufPtr, buf)

	n, err := writer.Write(buf)
	if err != nil {
		h.setError(EIO)
		return SyscallResult{}
	}

	h.state.WriteReg(insts.RegA0, uint64(n))
	return SyscallResult{}
}

// setError sets a0 to -errno.
func (h *DefaultSyscallHandler) setError(errno int) {
	h.state.WriteReg(insts.RegA0, uint64(-int64(errno)))
}
