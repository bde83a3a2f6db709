package abi

import (
	stderrors "errors"
	"reflect"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/tcc-runtime/errors"
)

type Counter struct {
	n int32
}

func (c *Counter) Add(d int32) int32 { c.n += d; return c.n }
func (c Counter) Get() int32         { return c.n }
func (c *Counter) Reset()            { c.n = 0 }
func (c *Counter) Sum(xs ...int32) int32 {
	for _, x := range xs {
		c.n += x
	}
	return c.n
}
func (c *Counter) Pair() (int32, int32) { return c.n, c.n }
func (c *Counter) Name() string         { return "counter" }
func (c *Counter) Slice(xs []int32)     {}

type Point struct{ X, Y float64 }

func TestKindOf(t *testing.T) {
	tests := []struct {
		v    any
		want Kind
	}{
		{true, Bool},
		{int8(0), Int8},
		{int16(0), Int16},
		{int32(0), Int32},
		{int64(0), Int64},
		{uint8(0), Uint8},
		{uint16(0), Uint16},
		{uint32(0), Uint32},
		{uint64(0), Uint64},
		{float32(0), Float32},
		{float64(0), Float64},
		{"", String},
		{unsafe.Pointer(nil), Pointer},
		{(*Point)(nil), Pointer},
	}
	for _, tt := range tests {
		k, err := KindOf(reflect.TypeOf(tt.v))
		require.NoError(t, err)
		require.Equal(t, tt.want, k, "%T", tt.v)
	}

	k, err := KindOf(nil)
	require.NoError(t, err)
	require.Equal(t, Void, k)

	for _, v := range []any{Point{}, []int{}, map[string]int{}, make(chan int), complex(1, 2)} {
		_, err := KindOf(reflect.TypeOf(v))
		require.Error(t, err, "%T", v)
		require.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseRegister, Kind: errors.KindTypeMismatch}))
	}
}

func TestKind_Size(t *testing.T) {
	require.Equal(t, uintptr(1), Bool.Size())
	require.Equal(t, uintptr(2), Int16.Size())
	require.Equal(t, uintptr(4), Float32.Size())
	require.Equal(t, uintptr(8), Uint64.Size())
	require.Equal(t, unsafe.Sizeof(uintptr(0)), Pointer.Size())
	require.Equal(t, uintptr(0), Void.Size())
	require.True(t, Int32.IsSigned())
	require.False(t, Uint32.IsSigned())
	require.True(t, Bool.IsInteger())
	require.False(t, Float64.IsInteger())
}

func TestCType(t *testing.T) {
	tests := []struct {
		t    reflect.Type
		want string
	}{
		{nil, "void"},
		{reflect.TypeOf(int32(0)), "int"},
		{reflect.TypeOf(uint64(0)), "unsigned long long"},
		{reflect.TypeOf(float64(0)), "double"},
		{reflect.TypeOf(""), "const char*"},
		{reflect.TypeOf((*int32)(nil)), "int*"},
		{reflect.TypeOf((*Point)(nil)), "struct Point*"},
		{reflect.TypeOf((**Point)(nil)), "struct Point**"},
		{reflect.TypeOf(unsafe.Pointer(nil)), "void*"},
		{reflect.TypeOf((*unsafe.Pointer)(nil)), "void**"},
		{reflect.TypeOf((*string)(nil)), "void*"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CType(tt.t))
	}
}

func TestSignatureOf(t *testing.T) {
	sig, err := SignatureOf(reflect.TypeOf(func(a, b int32) int32 { return a + b }))
	require.NoError(t, err)
	require.Equal(t, []Kind{Int32, Int32}, sig.Kinds)
	require.Equal(t, Int32, sig.ResultKind)
	require.Equal(t, "int add(int, int)", sig.Prototype("add"))

	sig, err = SignatureOf(reflect.TypeOf(func() {}))
	require.NoError(t, err)
	require.Equal(t, Void, sig.ResultKind)
	require.Nil(t, sig.Result)
	require.Equal(t, "void noop(void)", sig.Prototype("noop"))
	require.Equal(t, reflect.TypeOf(func() {}), sig.FuncType())

	_, err = SignatureOf(reflect.TypeOf(func(...int32) {}))
	require.ErrorContains(t, err, "variadic")

	_, err = SignatureOf(reflect.TypeOf(func() (int32, error) { return 0, nil }))
	require.ErrorContains(t, err, "at most one value")

	_, err = SignatureOf(reflect.TypeOf(func(Point) {}))
	require.ErrorContains(t, err, "parameter 0")

	_, err = SignatureOf(reflect.TypeOf(0))
	require.ErrorContains(t, err, "not a function")
}

func TestResolveFunc(t *testing.T) {
	sig, err := ResolveFunc(func(s string) int32 { return int32(len(s)) })
	require.NoError(t, err)
	require.Equal(t, []Kind{String}, sig.Kinds)

	_, err = ResolveFunc(func() string { return "" })
	require.ErrorContains(t, err, "string results")

	_, err = ResolveFunc(42)
	require.Error(t, err)

	var nilFn func()
	_, err = ResolveFunc(nilFn)
	require.Error(t, err)
}

func TestResolveMethod_PointerReceiver(t *testing.T) {
	d, err := ResolveMethod((*Counter).Add)
	require.NoError(t, err)
	require.True(t, d.PointerReceiver)
	require.Equal(t, reflect.TypeOf(Counter{}), d.Receiver)
	require.Equal(t, Qualifiers(0), d.Qualifiers)
	require.Equal(t, CategoryNone, d.Category)
	require.False(t, d.NoExcept)
	require.Contains(t, d.Name, "Add")
	require.Equal(t, reflect.TypeOf(func(*Counter, int32) int32 { return 0 }), d.TrampolineType())
	require.Equal(t, "int Counter_Add(struct Counter* self, int)", d.Prototype("Counter_Add"))

	ts := d.TrampolineSignature()
	require.Equal(t, []Kind{Pointer, Int32}, ts.Kinds)
	require.Equal(t, Int32, ts.ResultKind)
}

func TestResolveMethod_ValueReceiverImpliesConst(t *testing.T) {
	d, err := ResolveMethod(Counter.Get)
	require.NoError(t, err)
	require.False(t, d.PointerReceiver)
	require.Equal(t, Const, d.Qualifiers)
	require.Equal(t, "int Counter_Get(const struct Counter* self)", d.Prototype("Counter_Get"))

	d, err = ResolveMethod(Counter.Get, Volatile, LValue, NoExcept)
	require.NoError(t, err)
	require.Equal(t, Const|Volatile, d.Qualifiers)
	require.Equal(t, LValue, d.Category)
	require.True(t, d.NoExcept)
	require.True(t, strings.HasSuffix(d.String(), "const volatile & noexcept"), d.String())
	require.Equal(t, "int Counter_Get(const volatile struct Counter* self)", d.Prototype("Counter_Get"))
}

func TestResolveMethod_Rejections(t *testing.T) {
	_, err := ResolveMethod((*Counter).Add, Const)
	require.ErrorContains(t, err, "const qualifier requires a value receiver")

	_, err = ResolveMethod((*Counter).Sum)
	require.ErrorContains(t, err, "C-like variadic arguments in method are not supported")
	require.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseRegister, Kind: errors.KindUnsupported}))

	_, err = ResolveMethod((*Counter).Pair)
	require.Error(t, err)

	_, err = ResolveMethod((*Counter).Name)
	require.ErrorContains(t, err, "string results")

	_, err = ResolveMethod((*Counter).Slice)
	require.Error(t, err)

	_, err = ResolveMethod(func() {})
	require.ErrorContains(t, err, "receiver")

	_, err = ResolveMethod(func(int32) {})
	require.ErrorContains(t, err, "receiver")

	_, err = ResolveMethod("nope")
	require.ErrorContains(t, err, "not a method expression")

	_, err = ResolveMethod(func(c *Counter, d int32) int32 { return c.n + d })
	require.ErrorContains(t, err, "not a method expression of *abi.Counter")
	require.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseRegister, Kind: errors.KindTypeMismatch}))

	_, err = ResolveMethod(addCounter)
	require.ErrorContains(t, err, "not a method expression")
}

func addCounter(c *Counter, d int32) int32 { return c.n + d }

func TestResolveMethod_ValueMethodThroughPointer(t *testing.T) {
	d, err := ResolveMethod((*Counter).Get)
	require.NoError(t, err)
	require.True(t, d.PointerReceiver)
	require.Zero(t, d.Qualifiers&Const)
}

func TestDescriptor_Key(t *testing.T) {
	a, err := ResolveMethod((*Counter).Add)
	require.NoError(t, err)
	b, err := ResolveMethod((*Counter).Add)
	require.NoError(t, err)
	require.Equal(t, a.Key(), b.Key())

	c, err := ResolveMethod((*Counter).Add, NoExcept)
	require.NoError(t, err)
	require.NotEqual(t, a.Key(), c.Key())

	r, err := ResolveMethod((*Counter).Add, RValue)
	require.NoError(t, err)
	require.NotEqual(t, a.Key(), r.Key())

	other, err := ResolveMethod((*Counter).Reset)
	require.NoError(t, err)
	require.NotEqual(t, a.Key().Code, other.Key().Code)
	require.Equal(t, "void Counter_Reset(struct Counter* self)", other.Prototype("Counter_Reset"))
}
