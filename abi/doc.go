// Package abi maps Go types onto the C calling convention used by compiled
// code and classifies methods for trampoline generation.
//
// # Type Mapping
//
// Only scalars cross the boundary. Aggregates must be passed by pointer.
//
//	Go                      C
//	bool                    _Bool
//	int8 / uint8            signed char / unsigned char
//	int16 / uint16          short / unsigned short
//	int32 / uint32          int / unsigned int
//	int64 / uint64          long long / unsigned long long
//	int / uint / uintptr    long long / unsigned long long (64-bit targets)
//	float32 / float64       float / double
//	unsafe.Pointer, *T      void*, T*
//	string                  const char* (arguments and call results only)
//
// # Method Qualifiers
//
// C++ distinguishes methods by cv-qualification, reference category,
// noexcept and C variadics. Go methods carry none of these, so the finite
// qualifier space is requested explicitly and validated by ResolveMethod:
//
//	d, err := abi.ResolveMethod(Counter.Get, abi.Const)
//	d, err := abi.ResolveMethod((*Counter).Add, abi.LValue, abi.NoExcept)
//
// A value receiver is const by construction: the method only ever sees a
// copy of the receiver. Requesting Const on a pointer receiver is rejected,
// as are Go variadic methods.
package abi
