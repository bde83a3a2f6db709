package runtime

import (
	"reflect"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/tcc-runtime/abi"
	"github.com/wippyai/tcc-runtime/errors"
)

// Void is the result type of functions that return nothing:
//
//	_, err := runtime.Invoke[runtime.Void](c, "PrintHello")
type Void struct{}

var (
	voidType    = reflect.TypeOf(Void{})
	pointerType = reflect.TypeOf(unsafe.Pointer(nil))
)

// Invoke calls the function name with args and returns its result as R.
//
// The C signature is derived from R and the dynamic types of args; it is
// not checked against the callee. A name that does not resolve yields an
// error matching errors.ErrSymbolNotFound. A panic in a host function
// reached during the call yields a KindPanic error.
func Invoke[R any](c *Context, name string, args ...any) (R, error) {
	var zero R
	addr := c.GetSymbol(name)
	if addr == nil {
		return zero, errors.SymbolNotFound(name)
	}
	res, err := c.call(name, addr, reflect.TypeOf((*R)(nil)).Elem(), args)
	if err != nil {
		return zero, err
	}
	if !res.IsValid() {
		return zero, nil
	}
	return res.Interface().(R), nil
}

// MustInvoke is Invoke for callers that treat every failure as fatal. It
// panics with the *errors.Error Invoke would return.
func MustInvoke[R any](c *Context, name string, args ...any) R {
	r, err := Invoke[R](c, name, args...)
	if err != nil {
		panic(err)
	}
	return r
}

// InvokeSafely calls name and stores the result in out. It returns false
// and leaves out untouched when the name does not resolve or the call
// fails.
func InvokeSafely[R any](c *Context, name string, out *R, args ...any) bool {
	addr := c.GetSymbol(name)
	if addr == nil {
		return false
	}
	res, err := c.call(name, addr, reflect.TypeOf((*R)(nil)).Elem(), args)
	if err != nil {
		Logger().Warn("invoke failed", zap.String("name", name), zap.Error(err))
		return false
	}
	if out != nil {
		if res.IsValid() {
			*out = res.Interface().(R)
		} else {
			var zero R
			*out = zero
		}
	}
	return true
}

// Optional holds a value or nothing.
type Optional[R any] struct {
	value R
	ok    bool
}

// Some wraps v.
func Some[R any](v R) Optional[R] { return Optional[R]{value: v, ok: true} }

// Get returns the value and whether there is one.
func (o Optional[R]) Get() (R, bool) { return o.value, o.ok }

// HasValue reports whether o holds a value.
func (o Optional[R]) HasValue() bool { return o.ok }

// Value returns the value. It panics when o is empty.
func (o Optional[R]) Value() R {
	if !o.ok {
		panic("runtime: Value of empty Optional")
	}
	return o.value
}

// OrElse returns the value, or def when o is empty.
func (o Optional[R]) OrElse(def R) R {
	if !o.ok {
		return def
	}
	return o.value
}

// InvokeOpt calls name and returns its result, or an empty Optional when
// the name does not resolve or the call fails.
func InvokeOpt[R any](c *Context, name string, args ...any) Optional[R] {
	var r R
	if !InvokeSafely(c, name, &r, args...) {
		return Optional[R]{}
	}
	return Some(r)
}

// call performs one dispatch through the engine bridge.
func (c *Context) call(name string, addr unsafe.Pointer, rt reflect.Type, args []any) (reflect.Value, error) {
	sig, in, err := dynamicSignature(name, rt, args)
	if err != nil {
		return reflect.Value{}, err
	}

	c.gen.TakeFault()
	res, err := c.bridge().Call(addr, sig, in)
	if err != nil {
		if e, ok := err.(*errors.Error); ok && e.Symbol == "" {
			e.Symbol = name
		}
		return reflect.Value{}, err
	}
	if f := c.gen.TakeFault(); f != nil {
		Logger().Debug("host function panicked", zap.String("invoked", name), zap.String("host", f.Symbol))
		return reflect.Value{}, f.Err()
	}
	return res, nil
}

// dynamicSignature derives the callee signature from the expected result
// type and the argument values. Untyped nil arguments are null pointers.
func dynamicSignature(name string, rt reflect.Type, args []any) (*abi.Signature, []reflect.Value, error) {
	params := make([]reflect.Type, len(args))
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			params[i] = pointerType
			in[i] = reflect.Zero(pointerType)
			continue
		}
		v := reflect.ValueOf(a)
		params[i] = v.Type()
		in[i] = v
	}

	var results []reflect.Type
	if rt != voidType {
		results = []reflect.Type{rt}
	}

	sig, err := abi.SignatureOf(reflect.FuncOf(params, results, false))
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.Phase = errors.PhaseInvoke
			e.Symbol = name
		}
		return nil, nil, err
	}
	return sig, in, nil
}
