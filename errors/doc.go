// Package errors provides structured error types for the tcc-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the symbol name, Go/C type names, compiler diagnostics
// and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
//		Symbol("Foo_Bar").
//		GoType("map[string]int").
//		Detail("parameter 1 has no C representation").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.SymbolNotFound("main")
//	err := errors.SourceFailed("basic.c", diagnostics)
//
// All errors implement the standard error interface and support errors.Is/As.
// A missing symbol matches the ErrSymbolNotFound sentinel:
//
//	if errors.Is(err, errors.ErrSymbolNotFound) { ... }
package errors
