//go:build tcc && cgo

package native

/*
#cgo pkg-config: libffi
#include <ffi.h>
#include <stdlib.h>
#include <stdint.h>

static void tcc_ffi_call(ffi_cif* cif, void* fn, void* rvalue, void** avalue) {
	ffi_call(cif, (void (*)(void))fn, rvalue, avalue);
}

static ffi_cif* tcc_alloc_cif(void) {
	return (ffi_cif*)malloc(sizeof(ffi_cif));
}

static void* tcc_closure_alloc(void** executable) {
	return ffi_closure_alloc(sizeof(ffi_closure), executable);
}

static void tcc_closure_free(void* closure) {
	ffi_closure_free((ffi_closure*)closure);
}

extern void tccCallbackInvoke(ffi_cif*, void*, void**, uintptr_t);

static void tcc_callback_thunk(ffi_cif* cif, void* ret, void** args, void* user) {
	tccCallbackInvoke(cif, ret, args, (uintptr_t)user);
}

static int tcc_prep_closure(void* closure, ffi_cif* cif, uintptr_t user, void* executable) {
	return ffi_prep_closure_loc((ffi_closure*)closure, cif, tcc_callback_thunk, (void*)user, executable);
}
*/
import "C"

import (
	"reflect"
	"runtime"
	"runtime/cgo"
	"strings"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/tcc-runtime/abi"
	"github.com/wippyai/tcc-runtime/errors"
)

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// FFI is the libffi Bridge. Call interfaces are prepared once per
// signature shape and live until Close.
type FFI struct {
	cifs   map[string]*preparedCIF
	mu     sync.Mutex
	closed bool
}

type preparedCIF struct {
	cif   *C.ffi_cif
	types unsafe.Pointer // ffi_type** read by libffi on every call
}

type callbackContext struct {
	fn  reflect.Value
	sig *abi.Signature
}

// NewFFI creates a libffi bridge.
func NewFFI() *FFI {
	return &FFI{cifs: make(map[string]*preparedCIF)}
}

// Name implements Bridge.
func (f *FFI) Name() string { return "libffi" }

func ffiTypeFor(k abi.Kind) *C.ffi_type {
	switch k {
	case abi.Void:
		return &C.ffi_type_void
	case abi.Bool, abi.Uint8:
		return &C.ffi_type_uint8
	case abi.Int8:
		return &C.ffi_type_sint8
	case abi.Int16:
		return &C.ffi_type_sint16
	case abi.Uint16:
		return &C.ffi_type_uint16
	case abi.Int32:
		return &C.ffi_type_sint32
	case abi.Uint32:
		return &C.ffi_type_uint32
	case abi.Int64:
		return &C.ffi_type_sint64
	case abi.Uint64:
		return &C.ffi_type_uint64
	case abi.Float32:
		return &C.ffi_type_float
	case abi.Float64:
		return &C.ffi_type_double
	case abi.Pointer, abi.String:
		return &C.ffi_type_pointer
	}
	return nil
}

func shapeKey(sig *abi.Signature) string {
	var b strings.Builder
	b.WriteString(sig.ResultKind.String())
	for _, k := range sig.Kinds {
		b.WriteByte(',')
		b.WriteString(k.String())
	}
	return b.String()
}

// prepare returns the cif for sig's shape, preparing it on first use.
func (f *FFI) prepare(sig *abi.Signature) (*C.ffi_cif, error) {
	key := shapeKey(sig)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, errors.InvalidState(errors.PhaseInvoke, "libffi bridge closed")
	}
	if p, ok := f.cifs[key]; ok {
		return p.cif, nil
	}

	n := len(sig.Kinds)
	var types unsafe.Pointer
	if n > 0 {
		types = C.malloc(C.size_t(n * ptrSize))
		if types == nil {
			return nil, errors.AllocationFailed(errors.PhaseInvoke, n*ptrSize, nil)
		}
		vec := unsafe.Slice((**C.ffi_type)(types), n)
		for i, k := range sig.Kinds {
			vec[i] = ffiTypeFor(k)
		}
	}

	cif := C.tcc_alloc_cif()
	if cif == nil {
		C.free(types)
		return nil, errors.AllocationFailed(errors.PhaseInvoke, int(C.sizeof_ffi_cif), nil)
	}
	st := C.ffi_prep_cif(cif, C.FFI_DEFAULT_ABI, C.uint(n), ffiTypeFor(sig.ResultKind), (**C.ffi_type)(types))
	if st != C.FFI_OK {
		C.free(unsafe.Pointer(cif))
		C.free(types)
		return nil, errors.New(errors.PhaseInvoke, errors.KindUnsupported).
			Detail("ffi_prep_cif failed for (%s): status %d", key, int(st)).
			Build()
	}

	f.cifs[key] = &preparedCIF{cif: cif, types: types}
	Logger().Debug("prepared call interface", zap.String("shape", key))
	return cif, nil
}

// Call implements Bridge.
func (f *FFI) Call(addr unsafe.Pointer, sig *abi.Signature, args []reflect.Value) (reflect.Value, error) {
	if addr == nil {
		return reflect.Value{}, errors.InvalidInput(errors.PhaseInvoke, "call through nil address")
	}
	if len(args) != len(sig.Kinds) {
		return reflect.Value{}, errors.InvalidInput(errors.PhaseInvoke, "argument count does not match signature")
	}
	cif, err := f.prepare(sig)
	if err != nil {
		return reflect.Value{}, err
	}

	n := len(args)
	size := n*slotSize + n*ptrSize + slotSize
	mem := C.calloc(C.size_t(size), 1)
	if mem == nil {
		return reflect.Value{}, errors.AllocationFailed(errors.PhaseInvoke, size, nil)
	}
	defer C.free(mem)

	values := mem
	argv := unsafe.Add(mem, n*slotSize)
	rvalue := unsafe.Add(argv, n*ptrSize)

	var pinner runtime.Pinner
	defer pinner.Unpin()
	var cstrs []unsafe.Pointer
	defer func() {
		for _, p := range cstrs {
			C.free(p)
		}
	}()

	for i, a := range args {
		slot := unsafe.Add(values, i*slotSize)
		switch k := sig.Kinds[i]; k {
		case abi.String:
			cs := unsafe.Pointer(C.CString(a.String()))
			cstrs = append(cstrs, cs)
			*(*unsafe.Pointer)(slot) = cs
		case abi.Pointer:
			if p := asPointer(a); p != nil {
				pinner.Pin(p)
			}
			store(slot, k, a)
		default:
			store(slot, k, a)
		}
		*(*unsafe.Pointer)(unsafe.Add(argv, i*ptrSize)) = slot
	}

	C.tcc_ffi_call(cif, addr, rvalue, (*unsafe.Pointer)(argv))

	if sig.Result == nil {
		return reflect.Value{}, nil
	}
	return loadReturn(rvalue, sig.ResultKind, sig.Result), nil
}

// NewCallback implements Bridge with a libffi closure.
func (f *FFI) NewCallback(fn reflect.Value, sig *abi.Signature) (Callback, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, errors.InvalidInput(errors.PhaseRegister, "callback must be a function")
	}
	if sig == nil {
		var err error
		if sig, err = abi.SignatureOf(fn.Type()); err != nil {
			return nil, err
		}
	}
	if err := sig.CheckCallback(); err != nil {
		return nil, err
	}
	cif, err := f.prepare(sig)
	if err != nil {
		return nil, err
	}

	var exec unsafe.Pointer
	closure := C.tcc_closure_alloc(&exec)
	if closure == nil {
		return nil, errors.AllocationFailed(errors.PhaseRegister, int(C.sizeof_ffi_closure), nil)
	}

	h := cgo.NewHandle(&callbackContext{fn: fn, sig: sig})
	if st := C.tcc_prep_closure(closure, cif, C.uintptr_t(h), exec); st != C.FFI_OK {
		h.Delete()
		C.tcc_closure_free(closure)
		return nil, errors.New(errors.PhaseRegister, errors.KindUnsupported).
			GoType(fn.Type().String()).
			Detail("ffi_prep_closure_loc failed: status %d", int(st)).
			Build()
	}
	return &ffiCallback{closure: closure, exec: exec, handle: h}, nil
}

// Close frees every prepared call interface. Callbacks must be released first.
func (f *FFI) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	for key, p := range f.cifs {
		C.free(unsafe.Pointer(p.cif))
		if p.types != nil {
			C.free(p.types)
		}
		delete(f.cifs, key)
	}
	return nil
}

type ffiCallback struct {
	closure unsafe.Pointer
	exec    unsafe.Pointer
	handle  cgo.Handle
	once    sync.Once
}

func (c *ffiCallback) Addr() unsafe.Pointer { return c.exec }

func (c *ffiCallback) Release() {
	c.once.Do(func() {
		C.tcc_closure_free(c.closure)
		c.handle.Delete()
	})
}
