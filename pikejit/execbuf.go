package pikejit

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// execBuf owns one W^X page mapping: code is assembled into a
// writable, non-executable mapping, then remapped read+execute before
// any call into it, mirroring the mmap/mprotect handshake
// other_examples' launix-de-memcp uses for its own JIT buffers (that
// repo's execBuf/allocExec/makeRX helpers), the only pack repo that
// emits and runs native code rather than just encoding it.
type execBuf struct {
	mem []byte
}

// newExecBuf maps size bytes (rounded up to a page) RW, to be filled
// with machine code, then finalized to RX via makeExecutable.
func newExecBuf(size int) (*execBuf, error) {
	if size <= 0 {
		size = unix.Getpagesize()
	}
	pageSize := unix.Getpagesize()
	size = ((size + pageSize - 1) / pageSize) * pageSize

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("pikejit: mmap: %w", err)
	}
	return &execBuf{mem: mem}, nil
}

// write copies code into the mapping. Must run before makeExecutable.
func (b *execBuf) write(code []byte) error {
	if len(code) > len(b.mem) {
		return fmt.Errorf("pikejit: code (%d bytes) exceeds mapped buffer (%d bytes)", len(code), len(b.mem))
	}
	copy(b.mem, code)
	return nil
}

// makeExecutable flips the mapping from RW to RX. After this call the
// buffer must never be written again; W^X forbids holding both
// permissions at once.
func (b *execBuf) makeExecutable() error {
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("pikejit: mprotect: %w", err)
	}
	return nil
}

// addr returns the base address of the mapping as a uintptr suitable
// for the trampoline's indirect call.
func (b *execBuf) addr() uintptr {
	return uintptr(unsafe.Pointer(&b.mem[0]))
}

func (b *execBuf) close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	return err
}
