//go:build unix

package runtime

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/tcc-runtime/errors"
)

// AllocExecMemory maps an anonymous read/write/execute region of at least
// size bytes, rounded up to whole pages.
func AllocExecMemory(size int) (*ExecMemory, error) {
	if size <= 0 {
		return nil, errors.InvalidInput(errors.PhaseCompile, "exec memory size must be positive")
	}
	page := unix.Getpagesize()
	size = (size + page - 1) &^ (page - 1)

	buf, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.AllocationFailed(errors.PhaseCompile, size, err)
	}
	return &ExecMemory{buf: buf}, nil
}

// Free unmaps the region. Free is idempotent.
func (m *ExecMemory) Free() error {
	if m == nil || m.buf == nil {
		return nil
	}
	buf := m.buf
	m.buf = nil
	if err := unix.Munmap(buf); err != nil {
		return errors.Wrap(errors.PhaseCompile, errors.KindAllocation, err, "munmap exec memory")
	}
	return nil
}
