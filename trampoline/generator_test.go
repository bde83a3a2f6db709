package trampoline

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/tcc-runtime/abi"
	"github.com/wippyai/tcc-runtime/errors"
)

type Foo struct {
	base int32
}

func (f *Foo) Bar(x int32) int32 { return f.base + x }
func (f *Foo) Bump() int32       { f.base++; return f.base }
func (f Foo) Peek() int32        { return f.base }
func (f Foo) Mutate() int32      { f.base = 100; return f.base }
func (f *Foo) Boom(x int32) int32 {
	if x < 0 {
		panic("negative input")
	}
	return x
}

func resolve(t *testing.T, method any, q ...abi.Qualifier) *abi.Descriptor {
	t.Helper()
	d, err := abi.ResolveMethod(method, q...)
	require.NoError(t, err)
	return d
}

func TestGenerate_MatchesDirectCall(t *testing.T) {
	gen := NewGenerator()
	fn, err := gen.Generate(resolve(t, (*Foo).Bar))
	require.NoError(t, err)

	bar := fn.Interface().(func(*Foo, int32) int32)
	foo := &Foo{base: 2}
	for _, x := range []int32{-5, 0, 2, 40} {
		require.Equal(t, foo.Bar(x), bar(foo, x))
	}
}

func TestGenerate_ValueReceiverSeesCopy(t *testing.T) {
	gen := NewGenerator()
	fn, err := gen.Generate(resolve(t, Foo.Mutate))
	require.NoError(t, err)

	mutate := fn.Interface().(func(*Foo) int32)
	foo := &Foo{base: 1}
	require.Equal(t, int32(100), mutate(foo))
	require.Equal(t, int32(1), foo.base)

	fn, err = gen.Generate(resolve(t, Foo.Peek, abi.Volatile))
	require.NoError(t, err)
	require.Equal(t, int32(1), fn.Interface().(func(*Foo) int32)(foo))
}

func TestGenerate_RValueUsesTemporary(t *testing.T) {
	gen := NewGenerator()

	lv, err := gen.Generate(resolve(t, (*Foo).Bump, abi.LValue))
	require.NoError(t, err)
	rv, err := gen.Generate(resolve(t, (*Foo).Bump, abi.RValue))
	require.NoError(t, err)

	foo := &Foo{}
	require.Equal(t, int32(1), rv.Interface().(func(*Foo) int32)(foo))
	require.Equal(t, int32(0), foo.base)

	require.Equal(t, int32(1), lv.Interface().(func(*Foo) int32)(foo))
	require.Equal(t, int32(1), foo.base)
}

func TestGenerate_Cache(t *testing.T) {
	gen := NewGenerator()

	a, err := gen.Generate(resolve(t, (*Foo).Bar))
	require.NoError(t, err)
	b, err := gen.Generate(resolve(t, (*Foo).Bar))
	require.NoError(t, err)
	require.Equal(t, a.Pointer(), b.Pointer())
	require.Equal(t, 1, gen.Len())

	_, err = gen.Generate(resolve(t, (*Foo).Bar, abi.NoExcept))
	require.NoError(t, err)
	require.Equal(t, 2, gen.Len())

	gen.Reset()
	require.Equal(t, 0, gen.Len())
}

func TestGenerate_RecoversPanic(t *testing.T) {
	gen := NewGenerator()
	fn, err := gen.Generate(resolve(t, (*Foo).Boom))
	require.NoError(t, err)
	boom := fn.Interface().(func(*Foo, int32) int32)

	require.Equal(t, int32(3), boom(&Foo{}, 3))
	require.Nil(t, gen.TakeFault())

	require.Equal(t, int32(0), boom(&Foo{}, -1))
	f := gen.TakeFault()
	require.NotNil(t, f)
	require.Equal(t, "negative input", f.Value)
	require.Contains(t, f.Symbol, "Boom")
	require.NotEmpty(t, f.Stack)
	require.True(t, stderrors.Is(f.Err(), &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindPanic}))

	require.Nil(t, gen.TakeFault())
}

func TestGenerate_NilReceiver(t *testing.T) {
	gen := NewGenerator()
	fn, err := gen.Generate(resolve(t, (*Foo).Bar))
	require.NoError(t, err)

	require.Equal(t, int32(0), fn.Interface().(func(*Foo, int32) int32)(nil, 1))
	require.NotNil(t, gen.TakeFault())
}

func TestGenerate_NoExceptPropagates(t *testing.T) {
	gen := NewGenerator()
	fn, err := gen.Generate(resolve(t, (*Foo).Boom, abi.NoExcept))
	require.NoError(t, err)
	boom := fn.Interface().(func(*Foo, int32) int32)

	require.PanicsWithValue(t, "negative input", func() { boom(&Foo{}, -1) })
	require.Nil(t, gen.TakeFault())
}

func TestGenerate_InvalidDescriptor(t *testing.T) {
	_, err := NewGenerator().Generate(nil)
	require.Error(t, err)
}

func TestGuard(t *testing.T) {
	gen := NewGenerator()
	div := func(a, b int32) int32 { return a / b }
	guarded := gen.Guard("div", reflect.ValueOf(div)).Interface().(func(int32, int32) int32)

	require.Equal(t, int32(4), guarded(8, 2))
	require.Equal(t, int32(0), guarded(1, 0))

	f := gen.TakeFault()
	require.NotNil(t, f)
	require.Equal(t, "div", f.Symbol)
	_, isErr := f.Value.(error)
	require.True(t, isErr)
	require.ErrorIs(t, f.Err(), f.Value.(error))
}
