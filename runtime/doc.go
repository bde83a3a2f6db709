// Package runtime is the embedding API: a Context owns one compiler
// instance, binds host symbols into it and calls compiled code.
//
// # Quick Start
//
//	c, err := runtime.New(engine.NewTCC(), &runtime.Config{
//	    LibraryPaths: []string{"lib"},
//	    ScriptHeader: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Destroy()
//
//	// Host functions must be registered before compiling code that
//	// imports them
//	c.RegisterFunction("GetFour", func() int32 { return 4 })
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
// # Lifecycle
//
//	Empty -> Created -> Configured -> SourceLoaded -> Compiled | Written
//
// Create moves an Empty context to Created, Destroy returns it to Empty
// from any state. Configuration calls on an Empty context are ignored and
// logged; operations that produce a result return a KindNotInitialized
// error. The output kind is fixed by the first AddFile or AddSource.
//
// # Invocation
//
// Three dispatch policies share one calling path:
//
//	Invoke[R]        returns an error, errors.ErrSymbolNotFound when missing
//	MustInvoke[R]    panics with that error
//	InvokeSafely[R]  returns false and leaves the output untouched
//	InvokeOpt[R]     returns an empty Optional
//
// The callee signature is taken from R and the argument types. It is not
// checked: calling a function with the wrong signature is undefined.
// Use Void as R for functions without a result.
//
// # Type Mapping
//
//	Go                      C
//	bool                    _Bool
//	int8 / uint8            signed char / unsigned char
//	int16 / uint16          short / unsigned short
//	int32 / uint32          int / unsigned int
//	int64 / uint64          long long / unsigned long long
//	int / uint / uintptr    pointer-sized integer
//	float32 / float64       float / double
//	string                  const char* (parameters only)
//	*T / unsafe.Pointer     T* / void*
//
// # Symbols
//
// The first binding of a name wins. Later registrations under the same
// name succeed without changing the binding. Lookups are never cached.
//
// # Thread Safety
//
// A Context is NOT thread-safe and performs no locking.
package runtime
