package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/tcc-runtime/engine/enginetest"
)

const basicC = `int main(void)
{
    return 42;
}
`

const nameC = `#ifndef NAME
#error NAME is not defined
#endif

const char* LibraryName(void)
{
    return NAME;
}
`

// The scenarios below drive the context through the engine double. The
// double checks preprocessing, imports and which functions the sources
// define, but the bodies it runs are the Go exports staged by each test,
// not the C code. tcc_e2e_test.go runs the same flows through libtcc
// (build tag tcc).

func TestScenario_BasicMain(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic.c"), []byte(basicC), 0o644))

	e := enginetest.New()
	// stands in for the body of main in basic.c
	e.ExportFunc("main", func() int32 { return 42 })

	c, err := New(e, nil)
	require.NoError(t, err)
	defer c.Destroy()

	c.AddLibraryPath("lib")
	require.NoError(t, c.AddFile(filepath.Join(dir, "basic.c")))
	require.NoError(t, c.Compile())
	require.Equal(t, int32(42), MustInvoke[int32](c, "main"))
	require.Equal(t, []string{"lib"}, e.Last().LibraryPaths)
}

func TestScenario_HostFunctionImport(t *testing.T) {
	e := enginetest.New()
	e.Export("UseFour", func(in *enginetest.Instance) any {
		getFour := enginetest.Import[func() int32](in, "GetFour")
		return func() int32 { return getFour() * 2 }
	})

	c, err := New(e, &Config{ScriptHeader: true})
	require.NoError(t, err)
	defer c.Destroy()

	getFour := func() int32 { return 4 }
	require.NoError(t, c.RegisterFunction("GetFour", getFour))
	require.NoError(t, c.AddSource(useFour))
	require.NoError(t, c.Compile())

	got, err := Invoke[int32](c, "UseFour")
	require.NoError(t, err)
	require.Equal(t, int32(8), got)
}

func TestScenario_NameMacro(t *testing.T) {
	e := enginetest.New()
	e.Export("LibraryName", func(in *enginetest.Instance) any {
		name := in.MacroString("NAME")
		return func() string { return name }
	})

	c, err := New(e, nil)
	require.NoError(t, err)
	defer c.Destroy()

	c.Define("NAME", `"TccWrapper"`)
	require.NoError(t, c.AddSource(nameC))
	require.NoError(t, c.Compile())
	require.Equal(t, "TccWrapper", MustInvoke[string](c, "LibraryName"))

	c2, err := New(e, nil)
	require.NoError(t, err)
	defer c2.Destroy()
	require.Error(t, c2.AddSource(nameC))
}
