package runtime

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/tcc-runtime/abi"
	"github.com/wippyai/tcc-runtime/errors"
)

type Foo struct {
	base int32
}

func (f *Foo) Bar(x int32) int32 { f.base += x; return f.base }
func (f Foo) Peek() int32        { return f.base }
func (f Foo) Clobber() int32     { f.base = -1; return f.base }
func (f *Foo) Boom(x int32) int32 {
	if x < 0 {
		panic("negative input")
	}
	return x
}
func (f *Foo) Sum(xs ...int32) int32 { return 0 }

func TestAddSymbol_RoundTrip(t *testing.T) {
	c, _ := newContext(t)

	v := new(int32)
	*v = 42
	require.NoError(t, c.AddSymbol("universeNumber", unsafe.Pointer(v)))
	require.Equal(t, unsafe.Pointer(v), c.GetSymbol("universeNumber"))
	require.True(t, c.HasSymbol("universeNumber"))

	p := GetSymbolAs[int32](c, "universeNumber")
	require.Same(t, v, p)
	require.Nil(t, GetSymbolAs[int32](c, "missing"))
}

func TestAddSymbol_FirstWriterWins(t *testing.T) {
	c, _ := newContext(t)

	first, second := new(float32), new(float32)
	require.NoError(t, c.AddSymbol("pi", unsafe.Pointer(first)))
	require.NoError(t, c.AddSymbol("pi", unsafe.Pointer(second)))
	require.Equal(t, unsafe.Pointer(first), c.GetSymbol("pi"))

	require.NoError(t, c.RegisterFunction("pi", func() int32 { return 3 }))
	require.Equal(t, unsafe.Pointer(first), c.GetSymbol("pi"))
	require.Empty(t, c.Declarations())
}

func TestAddSymbol_NilAddress(t *testing.T) {
	c, _ := newContext(t)
	requireKind(t, c.AddSymbol("x", nil), errors.KindInvalidInput)
}

func TestRegisterFunction_RoundTrip(t *testing.T) {
	c, _ := newContext(t)

	f := func(a, b int32) int32 { return a*10 + b }
	require.NoError(t, c.RegisterFunction("f", f))

	g, ok := GetFunction[func(int32, int32) int32](c, "f")
	require.True(t, ok)
	for _, in := range [][2]int32{{0, 0}, {3, 4}, {-7, 2}} {
		require.Equal(t, f(in[0], in[1]), g(in[0], in[1]))
	}

	_, ok = GetFunction[func() int32](c, "missing")
	require.False(t, ok)
}

func TestRegisterFunction_Rejects(t *testing.T) {
	c, _ := newContext(t)

	requireKind(t, c.RegisterFunction("n", 42), errors.KindTypeMismatch)
	requireKind(t, c.RegisterFunction("s", func([]int32) {}), errors.KindTypeMismatch)
	require.False(t, c.HasSymbol("n"))
}

func TestGetFunction_NeedsFuncType(t *testing.T) {
	c, _ := newContext(t)
	require.Panics(t, func() { GetFunction[int32](c, "x") })
}

func TestRegisterMethod_MatchesDirectCall(t *testing.T) {
	c, _ := newContext(t)
	require.NoError(t, c.RegisterMethod("Foo_Bar", (*Foo).Bar))

	bar, ok := GetFunction[func(*Foo, int32) int32](c, "Foo_Bar")
	require.True(t, ok)

	viaTrampoline, direct := &Foo{base: 1}, &Foo{base: 1}
	for _, x := range []int32{20, -3, 0} {
		require.Equal(t, direct.Bar(x), bar(viaTrampoline, x))
		require.Equal(t, direct.base, viaTrampoline.base)
	}
}

func TestRegisterMethod_ValueReceiverCannotMutate(t *testing.T) {
	c, _ := newContext(t)
	require.NoError(t, c.RegisterMethod("Foo_Clobber", Foo.Clobber))
	require.NoError(t, c.RegisterMethod("Foo_Peek", Foo.Peek, abi.Volatile))

	clobber, ok := GetFunction[func(*Foo) int32](c, "Foo_Clobber")
	require.True(t, ok)
	peek, ok := GetFunction[func(*Foo) int32](c, "Foo_Peek")
	require.True(t, ok)

	o := &Foo{base: 5}
	require.Equal(t, int32(-1), clobber(o))
	require.Equal(t, int32(5), o.base)
	require.Equal(t, int32(5), peek(o))

	require.Contains(t, c.Declarations(), "import int Foo_Clobber(const struct Foo* self);")
	require.Contains(t, c.Declarations(), "import int Foo_Peek(const volatile struct Foo* self);")
}

func TestRegisterMethod_RValueWorksOnTemporary(t *testing.T) {
	c, _ := newContext(t)
	require.NoError(t, c.RegisterMethod("Foo_Bar_tmp", (*Foo).Bar, abi.RValue))

	bar, ok := GetFunction[func(*Foo, int32) int32](c, "Foo_Bar_tmp")
	require.True(t, ok)

	o := &Foo{base: 1}
	require.Equal(t, int32(11), bar(o, 10))
	require.Equal(t, int32(1), o.base)
}

func TestRegisterMethod_SharesTrampoline(t *testing.T) {
	c, _ := newContext(t)
	require.NoError(t, c.RegisterMethod("a", (*Foo).Bar))
	require.NoError(t, c.RegisterMethod("b", (*Foo).Bar))
	require.Equal(t, c.GetSymbol("a"), c.GetSymbol("b"))

	require.NoError(t, c.RegisterMethod("c", (*Foo).Bar, abi.NoExcept))
	require.NotEqual(t, c.GetSymbol("a"), c.GetSymbol("c"))
}

func TestRegisterMethod_Rejects(t *testing.T) {
	c, _ := newContext(t)

	requireKind(t, c.RegisterMethod("x", (*Foo).Bar, abi.Const), errors.KindTypeMismatch)
	err := c.RegisterMethod("y", (*Foo).Sum)
	requireKind(t, err, errors.KindUnsupported)
	require.Contains(t, err.Error(), "C-like variadic arguments in method are not supported")
	requireKind(t, c.RegisterMethod("z", func() {}), errors.KindTypeMismatch)

	require.False(t, c.HasSymbol("x"))
	require.False(t, c.HasSymbol("y"))
}

func TestRegisterMethod_RejectsClosures(t *testing.T) {
	c, _ := newContext(t)

	for _, off := range []int32{1, 100} {
		add := func(f *Foo, x int32) int32 { return f.base + x + off }
		err := c.RegisterMethod(fmt.Sprintf("plus%d", off), add)
		requireKind(t, err, errors.KindTypeMismatch)
		require.Contains(t, err.Error(), "not a method expression")
	}
	require.False(t, c.HasSymbol("plus1"))
	require.False(t, c.HasSymbol("plus100"))

	// closures go through RegisterFunction, one callback each
	for _, off := range []int32{1, 100} {
		add := func(f *Foo, x int32) int32 { return f.base + x + off }
		require.NoError(t, c.RegisterFunction(fmt.Sprintf("plus%d", off), add))
	}
	plus1, ok := GetFunction[func(*Foo, int32) int32](c, "plus1")
	require.True(t, ok)
	plus100, ok := GetFunction[func(*Foo, int32) int32](c, "plus100")
	require.True(t, ok)
	require.Equal(t, int32(1), plus1(&Foo{}, 0))
	require.Equal(t, int32(100), plus100(&Foo{}, 0))
}

func TestSymbols(t *testing.T) {
	c, _ := newContext(t)
	v := new(int64)
	require.NoError(t, c.AddSymbol("v", unsafe.Pointer(v)))
	require.NoError(t, c.RegisterFunction("f", func() {}))

	syms, err := c.Symbols()
	require.NoError(t, err)
	require.Len(t, syms, 2)
	require.Equal(t, "v", syms[0].Name)
	require.Equal(t, unsafe.Pointer(v), syms[0].Addr)
	require.Equal(t, "f", syms[1].Name)
}

func TestDeclarations(t *testing.T) {
	c, _ := newContext(t)
	require.NoError(t, c.RegisterFunction("GetFour", func() int32 { return 4 }))
	require.NoError(t, c.RegisterFunction("PrintFloat", func(*float32) {}))
	require.NoError(t, c.RegisterMethod("Foo_Bar", (*Foo).Bar))

	require.Equal(t,
		"import int GetFour(void);\n"+
			"import void PrintFloat(float*);\n"+
			"import int Foo_Bar(struct Foo* self, int);\n",
		c.Declarations())
}

func TestDestroyReleasesCallbacks(t *testing.T) {
	c, e := newContext(t)
	require.NoError(t, c.RegisterFunction("f", func() {}))
	require.NoError(t, c.RegisterMethod("m", (*Foo).Bar))
	require.Equal(t, 2, e.Table().Len())
	gen := c.gen
	require.Equal(t, 1, gen.Len())

	c.Destroy()
	require.Equal(t, 0, e.Table().Len())
	require.Equal(t, 0, gen.Len())
}
