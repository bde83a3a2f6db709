package native

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/tcc-runtime/abi"
	"github.com/wippyai/tcc-runtime/errors"
)

// Bridge moves calls between Go and code addresses.
type Bridge interface {
	// Name identifies the bridge in logs and errors.
	Name() string

	// NewCallback exposes fn at a C-callable address. sig must describe fn.
	NewCallback(fn reflect.Value, sig *abi.Signature) (Callback, error)

	// Call invokes the code at addr. sig describes the callee as the caller
	// believes it to be; a wrong signature is undefined behaviour for
	// bridges that cannot check it.
	Call(addr unsafe.Pointer, sig *abi.Signature, args []reflect.Value) (reflect.Value, error)
}

// Callback is a Go function exposed at a native address.
type Callback interface {
	Addr() unsafe.Pointer
	// Release frees the address. Calling it afterwards is undefined.
	Release()
}

// Caller returns a Go function of type ft that calls addr through b.
// Call failures panic with the bridge error.
func Caller(b Bridge, addr unsafe.Pointer, ft reflect.Type) (reflect.Value, error) {
	sig, err := abi.SignatureOf(ft)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		res, err := b.Call(addr, sig, args)
		if err != nil {
			panic(err)
		}
		if sig.Result == nil {
			return nil
		}
		return []reflect.Value{res}
	}), nil
}

// convert coerces v to t for the pure-Go paths.
func convert(v reflect.Value, t reflect.Type, pos string) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(t), nil
	}
	if v.Type() == t {
		return v, nil
	}
	if isPointer(v.Type()) && isPointer(t) {
		return pointerValue(v.UnsafePointer(), t), nil
	}
	if v.Type().ConvertibleTo(t) && sameClass(v.Type(), t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
		GoType(v.Type().String()).
		CType(abi.CType(t)).
		Detail("%s: cannot convert to %s", pos, t).
		Build()
}

func isPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer || t.Kind() == reflect.UnsafePointer
}

// pointerValue views p as a value of pointer type t.
func pointerValue(p unsafe.Pointer, t reflect.Type) reflect.Value {
	if t.Kind() == reflect.UnsafePointer {
		return reflect.ValueOf(p).Convert(t)
	}
	return reflect.NewAt(t.Elem(), p).Convert(t)
}

// sameClass keeps conversions that C would accept implicitly and rejects
// the ones reflect allows but C does not, such as int to string.
func sameClass(from, to reflect.Type) bool {
	fk, err := abi.KindOf(from)
	if err != nil {
		return false
	}
	tk, err := abi.KindOf(to)
	if err != nil {
		return false
	}
	switch {
	case fk == tk:
		return true
	case fk.IsInteger() && tk.IsInteger():
		return true
	case (fk == abi.Float32 || fk == abi.Float64) && (tk == abi.Float32 || tk == abi.Float64):
		return true
	case fk.IsInteger() && (tk == abi.Float32 || tk == abi.Float64):
		return true
	case (fk == abi.Float32 || fk == abi.Float64) && tk.IsInteger():
		return true
	}
	return false
}
