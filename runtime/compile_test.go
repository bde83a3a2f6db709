package runtime

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	tccruntime "github.com/wippyai/tcc-runtime"
	"github.com/wippyai/tcc-runtime/errors"
)

const useFour = `#include "tccext.h"

import int GetFour();

export int UseFour(void)
{
    return GetFour() * 2;
}
`

func TestCompile_MissingImport(t *testing.T) {
	c, e := newContext(t)
	e.ExportFunc("UseFour", func() int32 { return 0 })
	var got []string
	c.SetErrorCallback(func(msg string) { got = append(got, msg) })

	require.NoError(t, c.AddSource(useFour))
	err := c.Compile()
	requireKind(t, err, errors.KindCompileFailure)

	var missing *errors.MissingSymbolsError
	require.True(t, stderrors.As(err, &missing))
	require.Equal(t, []string{"GetFour"}, missing.Names)
	require.Equal(t, []string{"tcc: error: undefined symbol 'GetFour'"}, got)

	var e2 *errors.Error
	require.ErrorAs(t, err, &e2)
	require.Equal(t, got, e2.Diagnostics)
	require.Equal(t, StateSourceLoaded, c.State())
}

func TestAddSource_Failure(t *testing.T) {
	c, _ := newContext(t)
	err := c.AddSource("#ifndef NAME\n#error NAME is not defined\n#endif\n")
	requireKind(t, err, errors.KindSourceFailure)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	require.Len(t, e.Diagnostics, 1)
	require.Contains(t, e.Diagnostics[0], "#error NAME is not defined")
	require.Equal(t, StateCreated, c.State())
}

func TestOutputKind_FixedAtFirstSource(t *testing.T) {
	c, e := newContext(t)
	require.NoError(t, c.SetOutputKind(tccruntime.OutputExecutable))
	require.NoError(t, c.SetOutputKind(tccruntime.OutputObject))
	require.NoError(t, c.AddSource("int f(void)\n{\n}\n"))
	require.Equal(t, tccruntime.OutputObject, e.Last().Output)

	require.NoError(t, c.SetOutputKind(tccruntime.OutputObject))
	requireKind(t, c.SetOutputKind(tccruntime.OutputMemory), errors.KindInvalidState)
	requireKind(t, c.SetOutputKind(tccruntime.OutputKind(99)), errors.KindInvalidInput)

	requireKind(t, c.Compile(), errors.KindInvalidState)
	_, err := c.RequiredBufferSize()
	requireKind(t, err, errors.KindInvalidState)
	requireKind(t, c.OutputFile(filepath.Join(t.TempDir(), "f.exe"), tccruntime.OutputExecutable), errors.KindInvalidState)

	out := filepath.Join(t.TempDir(), "f.o")
	require.NoError(t, c.OutputFile(out, tccruntime.OutputObject))
	require.Equal(t, StateWritten, c.State())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), "int f(void)")
}

func TestOutputFile_ThenCompileFails(t *testing.T) {
	c, _ := newContext(t)
	out := filepath.Join(t.TempDir(), "empty.o")
	require.NoError(t, c.OutputFile(out, tccruntime.OutputObject))
	requireKind(t, c.Compile(), errors.KindInvalidState)
}

func TestOutputFile_RejectsMemoryKind(t *testing.T) {
	c, _ := newContext(t)
	requireKind(t, c.OutputFile("x", tccruntime.OutputMemory), errors.KindInvalidInput)
}

func TestOutputFile_AfterCompileFails(t *testing.T) {
	c, _ := newContext(t)
	require.NoError(t, c.AddSource("int f(void)\n{\n}\n"))
	require.NoError(t, c.Compile())
	requireKind(t, c.OutputFile(filepath.Join(t.TempDir(), "f.o"), tccruntime.OutputObject), errors.KindInvalidState)
}

func TestCompile_SecondCallForwarded(t *testing.T) {
	c, e := newContext(t)
	require.NoError(t, c.Compile())
	require.Equal(t, StateCompiled, c.State())

	err := c.Compile()
	requireKind(t, err, errors.KindCompileFailure)
	require.True(t, e.Last().Relocated())
}

func TestCompileInto(t *testing.T) {
	c, e := newContext(t)
	e.ExportFunc("f", func() int32 { return 9 })
	require.NoError(t, c.AddSource("int f(void)\n{\n    return 9;\n}\n"))

	requireKind(t, c.CompileInto(&ExecMemory{buf: make([]byte, 1)}), errors.KindInvalidState)

	n, err := c.RequiredBufferSize()
	require.NoError(t, err)
	require.Positive(t, n)

	requireKind(t, c.CompileInto(&ExecMemory{buf: make([]byte, n-1)}), errors.KindInvalidInput)

	mem := &ExecMemory{buf: make([]byte, n)}
	require.NoError(t, c.CompileInto(mem))
	require.Equal(t, StateCompiled, c.State())
	require.Equal(t, int32(9), MustInvoke[int32](c, "f"))
}

func TestRun(t *testing.T) {
	c, e := newContext(t)
	e.ExportFunc("main", func(argc int32, _ unsafe.Pointer) int32 { return argc * 10 })
	require.NoError(t, c.AddSource("int main(int argc, char** argv)\n{\n    return argc * 10;\n}\n"))

	code, err := c.Run("prog", "arg")
	require.NoError(t, err)
	require.Equal(t, 20, code)
}

func TestRun_MissingMain(t *testing.T) {
	c, _ := newContext(t)
	require.NoError(t, c.AddSource("int helper(void)\n{\n}\n"))
	_, err := c.Run()
	requireKind(t, err, errors.KindCompileFailure)

	var missing *errors.MissingSymbolsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"main"}, missing.Names)
}
