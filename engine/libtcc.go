//go:build tcc && cgo

package engine

/*
#cgo LDFLAGS: -ltcc -ldl -lm
#include <libtcc.h>
#include <stdlib.h>
#include <stdint.h>

extern void tccErrorInvoke(uintptr_t, char*);

static void tcc_error_thunk(void* opaque, const char* msg) {
	tccErrorInvoke((uintptr_t)opaque, (char*)msg);
}

static void tcc_set_error_handle(TCCState* s, uintptr_t h) {
	if (h == 0) {
		tcc_set_error_func(s, NULL, NULL);
		return;
	}
	tcc_set_error_func(s, (void*)h, tcc_error_thunk);
}

static int tcc_add_symbol_addr(TCCState* s, const char* name, uintptr_t addr) {
	return tcc_add_symbol(s, name, (const void*)addr);
}

static int tcc_relocate_auto(TCCState* s) {
	return tcc_relocate(s, TCC_RELOCATE_AUTO);
}

static int tcc_relocate_size(TCCState* s) {
	return tcc_relocate(s, NULL);
}

static int tcc_relocate_into(TCCState* s, uintptr_t mem) {
	return tcc_relocate(s, (void*)mem);
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"go.uber.org/zap"

	tccruntime "github.com/wippyai/tcc-runtime"
	"github.com/wippyai/tcc-runtime/errors"
	"github.com/wippyai/tcc-runtime/native"
)

// TCC creates libtcc compiler states. Functions cross the boundary through
// libffi.
type TCC struct {
	bridge *native.FFI
}

// NewTCC returns the libtcc engine.
func NewTCC() Engine {
	return &TCC{bridge: native.NewFFI()}
}

func (e *TCC) Name() string { return "libtcc" }

func (e *TCC) Bridge() native.Bridge { return e.bridge }

func (e *TCC) New() (Instance, error) {
	s := C.tcc_new()
	if s == nil {
		return nil, errors.InstanceCreation(e.Name(), nil)
	}
	Logger().Debug("created compiler state", zap.Uintptr("state", uintptr(unsafe.Pointer(s))))
	return &tccInstance{s: s}, nil
}

type tccInstance struct {
	s         *C.TCCState
	errHandle cgo.Handle
}

func (i *tccInstance) SetErrorFunc(fn ErrorFunc) {
	old := i.errHandle
	if fn == nil {
		i.errHandle = 0
		C.tcc_set_error_handle(i.s, 0)
	} else {
		i.errHandle = cgo.NewHandle(fn)
		C.tcc_set_error_handle(i.s, C.uintptr_t(i.errHandle))
	}
	if old != 0 {
		old.Delete()
	}
}

func (i *tccInstance) SetOptions(opts string) {
	cs := C.CString(opts)
	defer C.free(unsafe.Pointer(cs))
	C.tcc_set_options(i.s, cs)
}

func (i *tccInstance) SetLibPath(path string) {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	C.tcc_set_lib_path(i.s, cs)
}

func (i *tccInstance) AddIncludePath(path string) error {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return status(C.tcc_add_include_path(i.s, cs), errors.PhaseConfigure, "tcc_add_include_path", path)
}

func (i *tccInstance) AddSysIncludePath(path string) error {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return status(C.tcc_add_sysinclude_path(i.s, cs), errors.PhaseConfigure, "tcc_add_sysinclude_path", path)
}

func (i *tccInstance) AddLibraryPath(path string) error {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return status(C.tcc_add_library_path(i.s, cs), errors.PhaseConfigure, "tcc_add_library_path", path)
}

func (i *tccInstance) AddLibrary(name string) error {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	return status(C.tcc_add_library(i.s, cs), errors.PhaseConfigure, "tcc_add_library", name)
}

func (i *tccInstance) DefineSymbol(name, value string) {
	cn := C.CString(name)
	defer C.free(unsafe.Pointer(cn))
	cv := C.CString(value)
	defer C.free(unsafe.Pointer(cv))
	C.tcc_define_symbol(i.s, cn, cv)
}

func (i *tccInstance) UndefineSymbol(name string) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	C.tcc_undefine_symbol(i.s, cs)
}

func (i *tccInstance) SetOutputType(kind tccruntime.OutputKind) error {
	var t C.int
	switch kind {
	case tccruntime.OutputMemory:
		t = C.TCC_OUTPUT_MEMORY
	case tccruntime.OutputExecutable:
		t = C.TCC_OUTPUT_EXE
	case tccruntime.OutputSharedLibrary:
		t = C.TCC_OUTPUT_DLL
	case tccruntime.OutputObject:
		t = C.TCC_OUTPUT_OBJ
	case tccruntime.OutputPreprocess:
		t = C.TCC_OUTPUT_PREPROCESS
	default:
		return errors.InvalidInput(errors.PhaseConfigure, "unknown output kind "+kind.String())
	}
	return status(C.tcc_set_output_type(i.s, t), errors.PhaseConfigure, "tcc_set_output_type", kind.String())
}

func (i *tccInstance) AddFile(path string) error {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return status(C.tcc_add_file(i.s, cs), errors.PhaseSource, "tcc_add_file", path)
}

func (i *tccInstance) CompileString(src string) error {
	cs := C.CString(src)
	defer C.free(unsafe.Pointer(cs))
	return status(C.tcc_compile_string(i.s, cs), errors.PhaseSource, "tcc_compile_string", "")
}

// AddSymbol passes addr as an integer. Go memory behind it is pinned by
// the caller and may itself hold Go pointers.
func (i *tccInstance) AddSymbol(name string, addr unsafe.Pointer) error {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	return status(C.tcc_add_symbol_addr(i.s, cs, C.uintptr_t(uintptr(addr))), errors.PhaseRegister, "tcc_add_symbol", name)
}

func (i *tccInstance) GetSymbol(name string) unsafe.Pointer {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	return C.tcc_get_symbol(i.s, cs)
}

func (i *tccInstance) Relocate() error {
	return status(C.tcc_relocate_auto(i.s), errors.PhaseCompile, "tcc_relocate", "auto")
}

func (i *tccInstance) RelocateSize() (int, error) {
	n := int(C.tcc_relocate_size(i.s))
	if n < 0 {
		return 0, errors.New(errors.PhaseCompile, errors.KindCompileFailure).
			Detail("tcc_relocate size query returned %d", n).
			Build()
	}
	return n, nil
}

func (i *tccInstance) RelocateInto(mem unsafe.Pointer, size int) error {
	if mem == nil || size <= 0 {
		return errors.InvalidInput(errors.PhaseCompile, "relocation target is empty")
	}
	return status(C.tcc_relocate_into(i.s, C.uintptr_t(uintptr(mem))), errors.PhaseCompile, "tcc_relocate", "caller memory")
}

func (i *tccInstance) OutputFile(path string) error {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return status(C.tcc_output_file(i.s, cs), errors.PhaseOutput, "tcc_output_file", path)
}

func (i *tccInstance) Run(args []string) (int, error) {
	argc := len(args)
	var argv **C.char
	if argc > 0 {
		mem := C.calloc(C.size_t(argc+1), C.size_t(unsafe.Sizeof(uintptr(0))))
		if mem == nil {
			return 0, errors.AllocationFailed(errors.PhaseInvoke, (argc+1)*int(unsafe.Sizeof(uintptr(0))), nil)
		}
		defer C.free(mem)
		vec := unsafe.Slice((**C.char)(mem), argc+1)
		for j, a := range args {
			vec[j] = C.CString(a)
		}
		defer func() {
			for j := 0; j < argc; j++ {
				C.free(unsafe.Pointer(vec[j]))
			}
		}()
		argv = (**C.char)(mem)
	}
	return int(C.tcc_run(i.s, C.int(argc), argv)), nil
}

func (i *tccInstance) Delete() {
	if i.s == nil {
		return
	}
	C.tcc_delete(i.s)
	i.s = nil
	if i.errHandle != 0 {
		i.errHandle.Delete()
		i.errHandle = 0
	}
}

func status(rc C.int, phase errors.Phase, call, arg string) error {
	if rc >= 0 {
		return nil
	}
	b := errors.New(phase, kindFor(phase)).Detail("%s returned %d", call, int(rc))
	if arg != "" {
		b = b.Value(arg)
	}
	return b.Build()
}

func kindFor(phase errors.Phase) errors.Kind {
	switch phase {
	case errors.PhaseSource:
		return errors.KindSourceFailure
	case errors.PhaseCompile:
		return errors.KindCompileFailure
	case errors.PhaseOutput:
		return errors.KindOutputFailure
	case errors.PhaseRegister:
		return errors.KindRegistration
	}
	return errors.KindInvalidInput
}
