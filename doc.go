// Package tccruntime embeds the Tiny C Compiler in Go programs.
//
// C source is compiled at runtime by an in-process compiler instance, host
// functions, methods and data are exposed to the compiled code by name, and
// compiled functions are called back from Go without an external toolchain.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	tccruntime/          Root package with the OutputKind enumeration
//	├── runtime/         Context: lifecycle, symbol registry, invocation
//	├── engine/          Compiler engine contract and the libtcc binding
//	├── native/          Go function <-> code address bridge (libffi, handle table)
//	├── abi/             Go to C type mapping and method qualifier resolution
//	├── trampoline/      Method-to-plain-function adapters
//	├── errors/          Structured error types for debugging
//	└── cmd/tccrun/      Command line runner with an interactive mode
//
// # Quick Start
//
// Compile a file and call its main function:
//
//	c, err := runtime.New(engine.NewTCC(), &runtime.Config{
//	    LibraryPaths: []string{"lib"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Destroy()
//
//	if err := c.AddFile("basic.c"); err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Compile(); err != nil {
//	    log.Fatal(err)
//	}
//
//	code, err := runtime.Invoke[int32](c, "main")
//
// # Host Functions
//
// Register Go functions before compiling sources that import them:
//
//	c.RegisterFunction("GetFour", func() int32 { return 4 })
//
// Methods are registered through a trampoline that takes the receiver as
// an explicit first argument. The receiver itself is registered separately:
//
//	c.AddSymbol("foo", unsafe.Pointer(&foo))
//	c.RegisterMethod("Foo_Bar", (*Foo).Bar)
//
// # Thread Safety
//
// A Context is NOT thread-safe. Every operation is synchronous and the
// host must serialize access. Addresses obtained from a Context are valid
// only until it is destroyed or recreated.
//
// # Build Tags
//
// The libtcc and libffi bindings require cgo and are enabled with the
// "tcc" build tag. Without it engine.NewTCC reports an unavailable engine
// and the in-memory engine in engine/enginetest remains usable for tests.
package tccruntime
