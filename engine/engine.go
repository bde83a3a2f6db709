package engine

import (
	"unsafe"

	tccruntime "github.com/wippyai/tcc-runtime"
	"github.com/wippyai/tcc-runtime/native"
)

// ErrorFunc receives compiler diagnostics, one message per call.
type ErrorFunc func(msg string)

// Engine creates compiler instances.
type Engine interface {
	// Name identifies the engine in logs and errors.
	Name() string

	// New creates a fresh compiler instance.
	New() (Instance, error)

	// Bridge returns the bridge used to expose Go functions to code
	// compiled by this engine and to call into it.
	Bridge() native.Bridge
}

// Instance is one compiler state. Methods mirror the libtcc entry points.
// An Instance is used from a single goroutine and deleted exactly once.
type Instance interface {
	SetErrorFunc(fn ErrorFunc)
	SetOptions(opts string)
	SetLibPath(path string)
	AddIncludePath(path string) error
	AddSysIncludePath(path string) error
	AddLibraryPath(path string) error
	AddLibrary(name string) error
	// DefineSymbol defines name as value verbatim; an empty value gives an
	// empty macro.
	DefineSymbol(name, value string)
	UndefineSymbol(name string)

	// SetOutputType must be called before the first source is added.
	SetOutputType(kind tccruntime.OutputKind) error
	AddFile(path string) error
	CompileString(src string) error

	AddSymbol(name string, addr unsafe.Pointer) error
	GetSymbol(name string) unsafe.Pointer

	// Relocate links the image into storage managed by the instance.
	Relocate() error
	// RelocateSize reports the storage RelocateInto needs.
	RelocateSize() (int, error)
	// RelocateInto links the image into caller storage of at least
	// RelocateSize bytes. The storage must outlive the instance.
	RelocateInto(mem unsafe.Pointer, size int) error

	OutputFile(path string) error
	Run(args []string) (int, error)

	Delete()
}

// SymbolLister is implemented by instances that can enumerate their
// global symbols.
type SymbolLister interface {
	ListSymbols(fn func(name string, addr unsafe.Pointer))
}
