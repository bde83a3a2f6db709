package runtime

import "unsafe"

// ExecMemory is caller-owned storage for a relocated image. It must
// outlive every context compiled into it.
type ExecMemory struct {
	buf []byte
}

// Ptr returns the start of the region, or nil after Free.
func (m *ExecMemory) Ptr() unsafe.Pointer {
	if m == nil || len(m.buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&m.buf[0])
}

// Len returns the usable size in bytes.
func (m *ExecMemory) Len() int {
	if m == nil {
		return 0
	}
	return len(m.buf)
}

// Bytes exposes the region.
func (m *ExecMemory) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.buf
}
