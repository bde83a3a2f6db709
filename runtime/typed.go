package runtime

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/wippyai/tcc-runtime/native"
)

// GetSymbolAs views the symbol name as a *T, or nil when it does not
// resolve. The view is unchecked: T must be the real type of the object.
func GetSymbolAs[T any](c *Context, name string) *T {
	return (*T)(c.GetSymbol(name))
}

// GetFunction returns a Go function of type F that calls the symbol name.
// The view is unchecked: F must match the C signature of the symbol.
// GetFunction panics when F is not a function type or has a parameter or
// result with no C equivalent.
func GetFunction[F any](c *Context, name string) (F, bool) {
	var zero F
	ft := reflect.TypeOf((*F)(nil)).Elem()
	if ft.Kind() != reflect.Func {
		panic(fmt.Sprintf("runtime: GetFunction needs a function type, got %s", ft))
	}
	addr := c.GetSymbol(name)
	if addr == nil {
		return zero, false
	}
	fn, err := caller(c, addr, ft)
	if err != nil {
		panic(err)
	}
	return fn.Interface().(F), true
}

// caller builds a Go function of type ft for the code at addr. Host panics
// recovered during the call are re-raised as errors.
func caller(c *Context, addr unsafe.Pointer, ft reflect.Type) (reflect.Value, error) {
	call, err := native.Caller(c.bridge(), addr, ft)
	if err != nil {
		return reflect.Value{}, err
	}
	gen := c.gen
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		out := call.Call(args)
		if f := gen.TakeFault(); f != nil {
			panic(f.Err())
		}
		return out
	}), nil
}
