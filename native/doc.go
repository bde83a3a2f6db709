// Package native bridges Go functions and raw code addresses.
//
// A Bridge does two things:
//
//	NewCallback  exposes a Go function at an address C code can call
//	Call         calls the code at an address with Go arguments
//
// FFI is the libffi implementation used together with the libtcc engine
// (build tag tcc). Table is a pure-Go implementation whose addresses are
// only meaningful to itself; engine doubles use it so the whole runtime
// can be exercised without a C toolchain.
//
// # Value Conversion
//
// Arguments and results are classified with abi.KindOf. Integers are
// truncated or widened to the C width, strings are copied into C memory for
// the duration of a call, and pointers are passed through unchanged. Go
// pointers handed to C must stay pinned for as long as C keeps them.
package native
