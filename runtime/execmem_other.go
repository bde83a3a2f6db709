//go:build !unix

package runtime

import "github.com/wippyai/tcc-runtime/errors"

// AllocExecMemory is not available on this platform.
func AllocExecMemory(size int) (*ExecMemory, error) {
	return nil, errors.Unsupported(errors.PhaseCompile, "executable memory is only available on unix")
}

// Free releases nothing on this platform.
func (m *ExecMemory) Free() error {
	if m != nil {
		m.buf = nil
	}
	return nil
}
