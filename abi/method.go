package abi

import (
	"reflect"
	"runtime"
	"strings"

	"github.com/wippyai/tcc-runtime/errors"
)

// Qualifier is an option accepted by ResolveMethod.
type Qualifier interface {
	apply(d *Descriptor)
}

// Qualifiers is the cv-qualification of a receiver.
type Qualifiers uint8

const (
	Const Qualifiers = 1 << iota
	Volatile
)

func (q Qualifiers) apply(d *Descriptor) { d.Qualifiers |= q }

func (q Qualifiers) String() string {
	switch q & (Const | Volatile) {
	case Const:
		return "const"
	case Volatile:
		return "volatile"
	case Const | Volatile:
		return "const volatile"
	}
	return ""
}

// Category is the value category the receiver is bound with.
type Category uint8

const (
	CategoryNone Category = iota
	LValue
	RValue
)

func (c Category) apply(d *Descriptor) { d.Category = c }

func (c Category) String() string {
	switch c {
	case LValue:
		return "&"
	case RValue:
		return "&&"
	}
	return ""
}

type noExcept struct{}

func (noExcept) apply(d *Descriptor) { d.NoExcept = true }

// NoExcept marks a method that never panics. Its trampoline does not
// recover, so a panic crossing native frames aborts the process.
var NoExcept Qualifier = noExcept{}

// Key identifies one trampoline: a method code pointer plus its qualifier set.
// A code pointer identifies a method expression but not a closure, which is
// why ResolveMethod accepts method expressions only.
type Key struct {
	Code       uintptr
	Qualifiers Qualifiers
	Category   Category
	NoExcept   bool
}

// Descriptor is the classification of one method for trampoline generation.
type Descriptor struct {
	Method          reflect.Value
	Receiver        reflect.Type // receiver type without the pointer
	Signature       *Signature   // parameters after the receiver
	Name            string
	PointerReceiver bool
	Qualifiers      Qualifiers
	Category        Category
	NoExcept        bool
	Variadic        bool
}

// ResolveMethod classifies a method expression such as (*T).M or T.M.
func ResolveMethod(method any, q ...Qualifier) (*Descriptor, error) {
	mv := reflect.ValueOf(method)
	if !mv.IsValid() || mv.Kind() != reflect.Func || mv.IsNil() {
		return nil, errors.TypeMismatch(errors.PhaseRegister, "", typeName(method), "not a method expression")
	}
	mt := mv.Type()

	d := &Descriptor{
		Method:   mv,
		Name:     funcName(mv),
		Variadic: mt.IsVariadic(),
	}
	for _, opt := range q {
		if opt != nil {
			opt.apply(d)
		}
	}

	if d.Variadic {
		return nil, errors.New(errors.PhaseRegister, errors.KindUnsupported).
			Symbol(d.Name).
			GoType(mt.String()).
			Detail("C-like variadic arguments in method are not supported").
			Build()
	}
	if mt.NumIn() == 0 {
		return nil, errors.TypeMismatch(errors.PhaseRegister, d.Name, mt.String(),
			"method expression must take the receiver as its first parameter")
	}

	recv := mt.In(0)
	if recv.Kind() == reflect.Pointer {
		d.PointerReceiver = true
		recv = recv.Elem()
	}
	if recv.Name() == "" || recv.PkgPath() == "" || recv.Kind() == reflect.Interface || recv.Kind() == reflect.Pointer {
		return nil, errors.TypeMismatch(errors.PhaseRegister, d.Name, mt.In(0).String(),
			"receiver must be a named non-interface type or a pointer to one")
	}
	d.Receiver = recv
	if !isMethodExpr(mv, mt.In(0)) {
		return nil, errors.TypeMismatch(errors.PhaseRegister, d.Name, mt.String(),
			"not a method expression of "+mt.In(0).String())
	}

	if d.PointerReceiver && d.Qualifiers&Const != 0 {
		return nil, errors.TypeMismatch(errors.PhaseRegister, d.Name, mt.String(),
			"const qualifier requires a value receiver")
	}
	if !d.PointerReceiver {
		d.Qualifiers |= Const
	}

	in := make([]reflect.Type, mt.NumIn()-1)
	for i := range in {
		in[i] = mt.In(i + 1)
	}
	out := make([]reflect.Type, mt.NumOut())
	for i := range out {
		out[i] = mt.Out(i)
	}
	sig, err := SignatureOf(reflect.FuncOf(in, out, false))
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.Symbol = d.Name
		}
		return nil, err
	}
	if err := sig.CheckCallback(); err != nil {
		return nil, err
	}
	d.Signature = sig
	return d, nil
}

// Key returns the trampoline cache key.
func (d *Descriptor) Key() Key {
	return Key{
		Code:       d.Method.Pointer(),
		Qualifiers: d.Qualifiers,
		Category:   d.Category,
		NoExcept:   d.NoExcept,
	}
}

// ReceiverPointer is the type of the trampoline's first parameter.
func (d *Descriptor) ReceiverPointer() reflect.Type {
	return reflect.PointerTo(d.Receiver)
}

// TrampolineType is func(*Receiver, params...) result.
func (d *Descriptor) TrampolineType() reflect.Type {
	in := make([]reflect.Type, 0, len(d.Signature.Params)+1)
	in = append(in, d.ReceiverPointer())
	in = append(in, d.Signature.Params...)
	var out []reflect.Type
	if d.Signature.Result != nil {
		out = []reflect.Type{d.Signature.Result}
	}
	return reflect.FuncOf(in, out, false)
}

// TrampolineSignature is the C-visible signature of the trampoline.
func (d *Descriptor) TrampolineSignature() *Signature {
	params := make([]reflect.Type, 0, len(d.Signature.Params)+1)
	params = append(params, d.ReceiverPointer())
	params = append(params, d.Signature.Params...)
	kinds := make([]Kind, 0, len(params))
	kinds = append(kinds, Pointer)
	kinds = append(kinds, d.Signature.Kinds...)
	return &Signature{
		Params:     params,
		Kinds:      kinds,
		Result:     d.Signature.Result,
		ResultKind: d.Signature.ResultKind,
	}
}

// Prototype renders the trampoline as a C declaration whose receiver
// parameter carries the cv-qualifiers, e.g.
// "void Foo_Bar(const struct Foo* self, int)".
func (d *Descriptor) Prototype(name string) string {
	var b strings.Builder
	b.WriteString(CType(d.Signature.Result))
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteByte('(')
	if q := d.Qualifiers.String(); q != "" {
		b.WriteString(q)
		b.WriteByte(' ')
	}
	b.WriteString(pointee(d.Receiver))
	b.WriteString("* self")
	for _, pt := range d.Signature.Params {
		b.WriteString(", ")
		b.WriteString(CType(pt))
	}
	b.WriteByte(')')
	return b.String()
}

// String describes the method in C++ notation, handy in logs.
func (d *Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.Name)
	if q := d.Qualifiers.String(); q != "" {
		b.WriteByte(' ')
		b.WriteString(q)
	}
	if c := d.Category.String(); c != "" {
		b.WriteByte(' ')
		b.WriteString(c)
	}
	if d.NoExcept {
		b.WriteString(" noexcept")
	}
	return b.String()
}

// isMethodExpr reports whether fn is the method expression T.M or (*T).M
// for the receiver type recv, as opposed to a closure or plain function
// that happens to take the receiver first.
func isMethodExpr(fn reflect.Value, recv reflect.Type) bool {
	f := runtime.FuncForPC(fn.Pointer())
	if f == nil {
		return false
	}
	full := strings.ReplaceAll(f.Name(), "[...]", "")
	dot := strings.LastIndexByte(full, '.')
	if dot < 0 {
		return false
	}
	owner, method := full[:dot], full[dot+1:]

	m, ok := recv.MethodByName(method)
	if !ok || m.Type != fn.Type() {
		return false
	}
	base := recv
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	name, _, _ := strings.Cut(base.Name(), "[")
	if recv.Kind() == reflect.Pointer {
		return strings.HasSuffix(owner, ".(*"+name+")")
	}
	return strings.HasSuffix(owner, "."+name)
}

func funcName(fn reflect.Value) string {
	if f := runtime.FuncForPC(fn.Pointer()); f != nil {
		name := f.Name()
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		return name
	}
	return fn.Type().String()
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
