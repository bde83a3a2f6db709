package enginetest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	tccruntime "github.com/wippyai/tcc-runtime"
)

const useFour = `
#include "tccext.h"

import int GetFour();

export int UseFour(void)
{
    return GetFour() * 2;
}
`

func TestScan(t *testing.T) {
	macros := map[string]string{"DEBUG": "1"}
	u := scan("t.c", `
#ifdef DEBUG
int traced(int x) {
#else
int plain(int x) {
#endif
    return x;
}
#ifndef NAME
#error NAME is not defined
#endif
#define LOCAL 3
extern void log_line(const char* msg);
static inline double half(double v)
{
    return v / 2;
}
`, macros)

	require.True(t, u.defines["traced"])
	require.False(t, u.defines["plain"])
	require.True(t, u.defines["half"])
	require.Equal(t, []string{"log_line"}, u.imports)
	require.Len(t, u.errors, 1)
	require.Contains(t, u.errors[0], "t.c:10: error: #error NAME is not defined")
	require.Equal(t, "3", macros["LOCAL"])
}

func TestScan_UnterminatedConditional(t *testing.T) {
	u := scan("t.c", "#ifdef X\nint f(void) {}\n", map[string]string{})
	require.NotEmpty(t, u.errors)
	require.Empty(t, u.defines)
}

func newInstance(t *testing.T, e *Engine) *Instance {
	t.Helper()
	inst, err := e.New()
	require.NoError(t, err)
	return inst.(*Instance)
}

func TestInstance_ExportsAfterRelocate(t *testing.T) {
	e := New()
	e.ExportFunc("main", func() int32 { return 7 })
	inst := newInstance(t, e)

	require.NoError(t, inst.CompileString("int main(void) {\n return 7;\n}\n"))
	require.Nil(t, inst.GetSymbol("main"))
	require.NoError(t, inst.Relocate())
	require.NotNil(t, inst.GetSymbol("main"))
	require.True(t, inst.Relocated())

	require.Error(t, inst.Relocate())
	require.Contains(t, inst.Diagnostics[len(inst.Diagnostics)-1], "already relocated")
}

func TestInstance_UndefinedImport(t *testing.T) {
	e := New()
	e.Export("UseFour", func(in *Instance) any {
		getFour := Import[func() int32](in, "GetFour")
		return func() int32 { return getFour() * 2 }
	})

	inst := newInstance(t, e)
	var got []string
	inst.SetErrorFunc(func(msg string) { got = append(got, msg) })
	require.NoError(t, inst.CompileString(useFour))
	require.Error(t, inst.Relocate())
	require.Equal(t, []string{"tcc: error: undefined symbol 'GetFour'"}, got)

	inst = newInstance(t, e)
	cb, err := e.Table().NewCallback(reflect.ValueOf(func() int32 { return 4 }), nil)
	require.NoError(t, err)
	require.NoError(t, inst.AddSymbol("GetFour", cb.Addr()))
	require.NoError(t, inst.CompileString(useFour))
	require.NoError(t, inst.Relocate())

	useFourFn := Import[func() int32](inst, "UseFour")
	require.Equal(t, int32(8), useFourFn())
}

func TestInstance_FirstSymbolWins(t *testing.T) {
	inst := newInstance(t, New())
	a, b := new(int32), new(int32)
	require.NoError(t, inst.AddSymbol("x", unsafe.Pointer(a)))
	require.NoError(t, inst.AddSymbol("x", unsafe.Pointer(b)))
	require.Equal(t, unsafe.Pointer(a), inst.GetSymbol("x"))

	var names []string
	inst.ListSymbols(func(name string, _ unsafe.Pointer) { names = append(names, name) })
	require.Equal(t, []string{"x"}, names)
}

func TestInstance_OutputTypeOrdering(t *testing.T) {
	inst := newInstance(t, New())
	require.NoError(t, inst.SetOutputType(tccruntime.OutputObject))
	require.NoError(t, inst.CompileString("int f(void) {\n}\n"))
	require.Error(t, inst.SetOutputType(tccruntime.OutputMemory))
	require.Error(t, inst.Relocate())

	out := filepath.Join(t.TempDir(), "f.o")
	require.NoError(t, inst.OutputFile(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), "int f(void)")
}

func TestInstance_OutputFileNeedsFileKind(t *testing.T) {
	inst := newInstance(t, New())
	require.NoError(t, inst.CompileString("int f(void) {\n}\n"))
	require.Error(t, inst.OutputFile(filepath.Join(t.TempDir(), "x")))
}

func TestInstance_AddFileMissing(t *testing.T) {
	inst := newInstance(t, New())
	require.Error(t, inst.AddFile(filepath.Join(t.TempDir(), "missing.c")))
	require.Contains(t, inst.Diagnostics[0], "not found")
}

func TestInstance_RelocateInto(t *testing.T) {
	inst := newInstance(t, New())
	require.NoError(t, inst.CompileString("int f(void) {\n}\n"))
	size, err := inst.RelocateSize()
	require.NoError(t, err)
	require.Positive(t, size)

	buf := make([]byte, size)
	require.Error(t, inst.RelocateInto(unsafe.Pointer(&buf[0]), size-1))
	require.NoError(t, inst.RelocateInto(unsafe.Pointer(&buf[0]), size))
}

func TestInstance_Run(t *testing.T) {
	e := New()
	var argc int32
	e.ExportFunc("main", func(n int32, _ unsafe.Pointer) int32 { argc = n; return 3 })
	inst := newInstance(t, e)
	require.NoError(t, inst.CompileString("int main(int argc, char** argv) {\n}\n"))

	code, err := inst.Run([]string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, int32(2), argc)
}

func TestInstance_Macros(t *testing.T) {
	inst := newInstance(t, New())
	inst.DefineSymbol("NAME", `"TccWrapper"`)
	require.Equal(t, "TccWrapper", inst.MacroString("NAME"))
	inst.UndefineSymbol("NAME")
	_, ok := inst.Macro("NAME")
	require.False(t, ok)
}

func TestInstance_DeleteTwicePanics(t *testing.T) {
	e := New()
	inst := newInstance(t, e)
	inst.Delete()
	require.Equal(t, 0, e.Live())
	require.True(t, inst.Deleted())
	require.Panics(t, func() { inst.Delete() })
	require.Panics(t, func() { inst.GetSymbol("x") })
}

func TestEngine_FailNew(t *testing.T) {
	e := New()
	e.FailNew = true
	_, err := e.New()
	require.Error(t, err)
	require.Equal(t, 0, e.Created)
	require.Nil(t, e.Last())
}
