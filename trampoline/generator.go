package trampoline

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/wippyai/tcc-runtime/abi"
	"github.com/wippyai/tcc-runtime/errors"
)

// Fault is a panic recovered inside a trampoline.
type Fault struct {
	Value  any
	Symbol string
	Stack  []byte
}

// Err converts the fault into the error surfaced by the dispatcher.
func (f *Fault) Err() *errors.Error {
	return errors.Panic(f.Symbol, f.Value)
}

// Generator builds and caches trampolines. It belongs to one Context and,
// like it, is not safe for concurrent use.
type Generator struct {
	cache map[abi.Key]reflect.Value
	fault *Fault
}

// NewGenerator creates an empty generator.
func NewGenerator() *Generator {
	return &Generator{
		cache: make(map[abi.Key]reflect.Value),
	}
}

// Generate returns the trampoline for d, creating it on first use.
func (g *Generator) Generate(d *abi.Descriptor) (reflect.Value, error) {
	if d == nil || d.Signature == nil || !d.Method.IsValid() {
		return reflect.Value{}, errors.InvalidInput(errors.PhaseRegister, "unresolved method descriptor")
	}
	key := d.Key()
	if fn, ok := g.cache[key]; ok {
		return fn, nil
	}

	fn := reflect.MakeFunc(d.TrampolineType(), g.body(d))
	g.cache[key] = fn
	return fn, nil
}

func (g *Generator) body(d *abi.Descriptor) func([]reflect.Value) []reflect.Value {
	method := d.Method
	recvType := d.Receiver
	byPointer := d.PointerReceiver
	temporary := d.Category == abi.RValue
	name := d.Name

	call := func(args []reflect.Value) []reflect.Value {
		self := args[0]
		if self.IsNil() {
			panic(fmt.Sprintf("%s: nil receiver", name))
		}

		in := make([]reflect.Value, len(args))
		copy(in[1:], args[1:])
		switch {
		case !byPointer:
			in[0] = self.Elem()
		case temporary:
			tmp := reflect.New(recvType)
			tmp.Elem().Set(self.Elem())
			in[0] = tmp
		default:
			in[0] = self
		}
		return method.Call(in)
	}

	if d.NoExcept {
		return call
	}
	return g.guard(name, d.TrampolineType(), call)
}

// Guard wraps a plain function so panics are recovered and recorded the
// same way as for non-noexcept methods.
func (g *Generator) Guard(name string, fn reflect.Value) reflect.Value {
	return reflect.MakeFunc(fn.Type(), g.guard(name, fn.Type(), fn.Call))
}

func (g *Generator) guard(name string, ft reflect.Type, call func([]reflect.Value) []reflect.Value) func([]reflect.Value) []reflect.Value {
	return func(args []reflect.Value) (out []reflect.Value) {
		defer func() {
			if r := recover(); r != nil {
				g.record(&Fault{Symbol: name, Value: r, Stack: debug.Stack()})
				out = zeroResults(ft)
			}
		}()
		return call(args)
	}
}

func zeroResults(ft reflect.Type) []reflect.Value {
	out := make([]reflect.Value, ft.NumOut())
	for i := range out {
		out[i] = reflect.Zero(ft.Out(i))
	}
	return out
}

// first fault wins until taken
func (g *Generator) record(f *Fault) {
	if g.fault == nil {
		g.fault = f
	}
}

// TakeFault returns and clears the pending fault, if any.
func (g *Generator) TakeFault() *Fault {
	f := g.fault
	g.fault = nil
	return f
}

// Len returns the number of cached trampolines.
func (g *Generator) Len() int {
	return len(g.cache)
}

// Reset drops the cache and any pending fault.
func (g *Generator) Reset() {
	clear(g.cache)
	g.fault = nil
}
