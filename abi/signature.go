package abi

import (
	"reflect"
	"strings"

	"github.com/wippyai/tcc-runtime/errors"
)

// Signature is the C-visible shape of a Go function type.
type Signature struct {
	Result     reflect.Type // nil when nothing is returned
	Params     []reflect.Type
	Kinds      []Kind
	ResultKind Kind
}

// SignatureOf validates ft and classifies its parameters and result.
func SignatureOf(ft reflect.Type) (*Signature, error) {
	if ft == nil || ft.Kind() != reflect.Func {
		name := "<nil>"
		if ft != nil {
			name = ft.String()
		}
		return nil, errors.TypeMismatch(errors.PhaseRegister, "", name, "not a function")
	}
	if ft.IsVariadic() {
		return nil, errors.New(errors.PhaseRegister, errors.KindUnsupported).
			GoType(ft.String()).
			Detail("C-like variadic arguments are not supported").
			Build()
	}
	if ft.NumOut() > 1 {
		return nil, errors.New(errors.PhaseRegister, errors.KindUnsupported).
			GoType(ft.String()).
			Detail("C functions return at most one value").
			Build()
	}

	sig := &Signature{
		Params:     make([]reflect.Type, ft.NumIn()),
		Kinds:      make([]Kind, ft.NumIn()),
		ResultKind: Void,
	}
	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		k, err := KindOf(pt)
		if err != nil {
			return nil, errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
				GoType(pt.String()).
				Detail("parameter %d of %s has no C representation", i, ft).
				Cause(err).
				Build()
		}
		sig.Params[i] = pt
		sig.Kinds[i] = k
	}
	if ft.NumOut() == 1 {
		rt := ft.Out(0)
		k, err := KindOf(rt)
		if err != nil {
			return nil, errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
				GoType(rt.String()).
				Detail("result of %s has no C representation", ft).
				Cause(err).
				Build()
		}
		sig.Result = rt
		sig.ResultKind = k
	}
	return sig, nil
}

// ResolveFunc classifies a plain Go function that will be exposed to C.
func ResolveFunc(fn any) (*Signature, error) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, errors.TypeMismatch(errors.PhaseRegister, "", typeName(fn), "not a function")
	}
	sig, err := SignatureOf(fv.Type())
	if err != nil {
		return nil, err
	}
	if err := sig.CheckCallback(); err != nil {
		return nil, err
	}
	return sig, nil
}

// CheckCallback rejects shapes that Go cannot hand back to C safely.
// A string result would need C memory that nobody frees.
func (s *Signature) CheckCallback() error {
	if s.ResultKind == String {
		return errors.New(errors.PhaseRegister, errors.KindUnsupported).
			GoType(s.Result.String()).
			Detail("string results cannot be returned to C; return a pointer").
			Build()
	}
	return nil
}

// FuncType rebuilds the Go function type.
func (s *Signature) FuncType() reflect.Type {
	var out []reflect.Type
	if s.Result != nil {
		out = []reflect.Type{s.Result}
	}
	return reflect.FuncOf(s.Params, out, false)
}

// Prototype renders a C declaration such as "int add(int, int)".
func (s *Signature) Prototype(name string) string {
	var b strings.Builder
	b.WriteString(CType(s.Result))
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteByte('(')
	if len(s.Params) == 0 {
		b.WriteString("void")
	}
	for i, pt := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(CType(pt))
	}
	b.WriteByte(')')
	return b.String()
}
