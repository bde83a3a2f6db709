// Package engine defines the compiler engine contract and provides the
// libtcc binding.
//
// An Engine creates Instances. An Instance is a single compiler state:
// include and library search paths, macros, the output kind, ingested
// translation units, host symbols and, after relocation, the compiled
// image. Its methods mirror the libtcc entry points one to one, so any
// other C compiler with the same embedding surface can be plugged in.
//
// # Implementations
//
//	TCC              libtcc through cgo (build tag "tcc"), libffi bridge
//	enginetest.New   in-memory double for tests, pure-Go bridge
//
// Without the tcc tag, NewTCC still exists but every New call fails with
// an instance_creation error caused by an unavailable error.
//
// # Output Kind
//
// libtcc fixes the output kind when the first translation unit is added.
// Callers must call SetOutputType before AddFile or CompileString.
//
// # Relocation
//
//	Relocate         link into storage owned by the instance
//	RelocateSize     query the size needed for caller storage
//	RelocateInto     link into caller storage (must outlive the instance)
//
// Addresses returned by GetSymbol are valid until Delete.
package engine
