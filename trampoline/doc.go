// Package trampoline turns bound methods into plain functions that take the
// receiver as an explicit first argument.
//
// A method expression such as (*Counter).Add already has that shape in Go,
// but C code sees only addresses and a calling convention. The generator
// builds a func(*T, args...) R for every resolved descriptor, honouring the
// receiver category and the noexcept flag:
//
//	gen := trampoline.NewGenerator()
//	d, _ := abi.ResolveMethod((*Counter).Add)
//	fn, _ := gen.Generate(d)
//	add := fn.Interface().(func(*Counter, int32) int32)
//
// Trampolines that are not noexcept recover host panics. The zero value is
// handed back to the caller and the panic is kept as a Fault until the next
// TakeFault.
package trampoline
