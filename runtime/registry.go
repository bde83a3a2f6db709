package runtime

import (
	"reflect"
	"strings"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/tcc-runtime/abi"
	"github.com/wippyai/tcc-runtime/engine"
	"github.com/wippyai/tcc-runtime/errors"
	"github.com/wippyai/tcc-runtime/native"
)

// Symbol is one entry of the instance's symbol table.
type Symbol struct {
	Name string
	Addr unsafe.Pointer
}

// AddSymbol binds name to addr in the instance. The first binding of a
// name wins: a later one is accepted and ignored. Go memory behind addr is
// pinned until the context is destroyed.
func (c *Context) AddSymbol(name string, addr unsafe.Pointer) error {
	if err := c.guard(errors.PhaseRegister); err != nil {
		return err
	}
	if addr == nil {
		return errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Symbol(name).
			Detail("nil address").
			Build()
	}
	if c.bound(name) {
		return nil
	}
	c.pins.Pin(addr)
	return c.bind(name, addr)
}

// RegisterFunction exposes fn to compiled code under name. Parameters and
// the result must map to C scalars or pointers. A panic in fn is recovered
// and reported by the invocation that triggered it.
func (c *Context) RegisterFunction(name string, fn any) error {
	if err := c.guard(errors.PhaseRegister); err != nil {
		return err
	}
	sig, err := abi.ResolveFunc(fn)
	if err != nil {
		if e, ok := err.(*errors.Error); ok && e.Symbol == "" {
			e.Symbol = name
		}
		return err
	}
	if c.bound(name) {
		return nil
	}

	guarded := c.gen.Guard(name, reflect.ValueOf(fn))
	cb, err := c.eng.Bridge().NewCallback(guarded, sig)
	if err != nil {
		return errors.Registration(name, err)
	}
	c.callbacks = append(c.callbacks, cb)
	c.declare(sig.Prototype(name))
	return c.bind(name, cb.Addr())
}

// RegisterMethod exposes a method expression such as (*Counter).Add under
// name. Compiled code calls it with the receiver address as the first
// argument; bind the receiver itself with AddSymbol.
//
// Qualifiers describe the receiver: abi.Const and abi.Volatile, abi.LValue
// or abi.RValue, and abi.NoExcept. A value receiver is const by
// construction. A pointer receiver cannot be const and variadic methods
// are rejected.
func (c *Context) RegisterMethod(name string, method any, q ...abi.Qualifier) error {
	if err := c.guard(errors.PhaseRegister); err != nil {
		return err
	}
	d, err := abi.ResolveMethod(method, q...)
	if err != nil {
		return err
	}
	if c.bound(name) {
		return nil
	}

	cb, ok := c.methods[d.Key()]
	if !ok {
		fn, err := c.gen.Generate(d)
		if err != nil {
			return err
		}
		cb, err = c.eng.Bridge().NewCallback(fn, d.TrampolineSignature())
		if err != nil {
			return errors.Registration(name, err)
		}
		c.callbacks = append(c.callbacks, cb)
		c.methods[d.Key()] = cb
	}
	Logger().Debug("method registered", zap.String("name", name), zap.Stringer("method", d))
	c.declare(d.Prototype(name))
	return c.bind(name, cb.Addr())
}

// bound reports whether name already has a binding and logs the ignored
// registration.
func (c *Context) bound(name string) bool {
	if c.inst.GetSymbol(name) == nil {
		return false
	}
	Logger().Debug("symbol already bound; keeping the first binding", zap.String("name", name))
	return true
}

func (c *Context) bind(name string, addr unsafe.Pointer) error {
	c.begin()
	if err := c.inst.AddSymbol(name, addr); err != nil {
		e := errors.Registration(name, err)
		e.Diagnostics = c.collected()
		return e
	}
	c.advance(StateConfigured)
	return nil
}

func (c *Context) declare(prototype string) {
	c.decls = append(c.decls, "import "+prototype+";")
}

// GetSymbol returns the address bound to name, or nil. The lookup always
// asks the instance; nothing is cached.
func (c *Context) GetSymbol(name string) unsafe.Pointer {
	if c.inst == nil {
		return nil
	}
	return c.inst.GetSymbol(name)
}

// HasSymbol reports whether name resolves.
func (c *Context) HasSymbol(name string) bool {
	return c.GetSymbol(name) != nil
}

// Symbols lists the instance's symbol table when the engine can enumerate
// it.
func (c *Context) Symbols() ([]Symbol, error) {
	if err := c.guard(errors.PhaseResolve); err != nil {
		return nil, err
	}
	lister, ok := c.inst.(engine.SymbolLister)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseResolve, c.eng.Name()+" cannot enumerate symbols")
	}
	var out []Symbol
	lister.ListSymbols(func(name string, addr unsafe.Pointer) {
		out = append(out, Symbol{Name: name, Addr: addr})
	})
	return out, nil
}

// Declarations returns C import declarations for every function and method
// registered so far, one per line, ready to prepend to a source.
func (c *Context) Declarations() string {
	if len(c.decls) == 0 {
		return ""
	}
	return strings.Join(c.decls, "\n") + "\n"
}

// bridge returns the engine's bridge.
func (c *Context) bridge() native.Bridge {
	return c.eng.Bridge()
}
