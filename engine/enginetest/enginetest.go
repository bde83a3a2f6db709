// Package enginetest provides an in-memory engine.Engine for tests.
//
// The double does not compile C. It runs a small line-oriented preprocessor
// over ingested sources to find function definitions, import declarations
// and #error directives, and links definitions to Go implementations staged
// on the engine:
//
//	eng := enginetest.New()
//	eng.Export("main", func(*enginetest.Instance) any {
//		return func() int32 { return 42 }
//	})
//
// An export becomes a symbol of an instance only when one of its sources
// defines a function of that name and the instance has been relocated.
// Imports that resolve to neither a host symbol nor a definition fail
// relocation with a libtcc-style "undefined symbol" diagnostic.
package enginetest

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"unsafe"

	tccruntime "github.com/wippyai/tcc-runtime"
	"github.com/wippyai/tcc-runtime/engine"
	"github.com/wippyai/tcc-runtime/errors"
	"github.com/wippyai/tcc-runtime/native"
)

// Builder produces the implementation of an export for one instance. It
// returns a Go function, a pointer or an unsafe.Pointer.
type Builder func(inst *Instance) any

// Engine is the in-memory engine double.
type Engine struct {
	bridge    *native.Table
	exports   map[string]Builder
	instances []*Instance

	// FailNew makes New fail with an instance creation error.
	FailNew bool

	Created int
	Deleted int
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine with no staged exports.
func New() *Engine {
	return &Engine{
		bridge:  native.NewTable(),
		exports: make(map[string]Builder),
	}
}

func (e *Engine) Name() string { return "enginetest" }

func (e *Engine) Bridge() native.Bridge { return e.bridge }

// Table returns the bridge with its concrete type.
func (e *Engine) Table() *native.Table { return e.bridge }

// Export stages the implementation of a C function named name.
func (e *Engine) Export(name string, b Builder) {
	e.exports[name] = b
}

// ExportFunc stages a fixed Go function.
func (e *Engine) ExportFunc(name string, fn any) {
	e.exports[name] = func(*Instance) any { return fn }
}

func (e *Engine) New() (engine.Instance, error) {
	if e.FailNew {
		return nil, errors.InstanceCreation(e.Name(), fmt.Errorf("allocation refused"))
	}
	inst := &Instance{
		engine:  e,
		macros:  make(map[string]string),
		symbols: make(map[string]unsafe.Pointer),
		defined: make(map[string]bool),
	}
	e.instances = append(e.instances, inst)
	e.Created++
	return inst, nil
}

// Last returns the most recently created instance.
func (e *Engine) Last() *Instance {
	if len(e.instances) == 0 {
		return nil
	}
	return e.instances[len(e.instances)-1]
}

// Live returns the number of instances not yet deleted.
func (e *Engine) Live() int { return e.Created - e.Deleted }

// Instance is one in-memory compiler state.
type Instance struct {
	engine    *Engine
	errFn     engine.ErrorFunc
	macros    map[string]string
	symbols   map[string]unsafe.Pointer
	defined   map[string]bool
	callbacks []native.Callback
	order     []string

	Options         []string
	LibPath         string
	IncludePaths    []string
	SysIncludePaths []string
	LibraryPaths    []string
	Libraries       []string
	Sources         []string
	Output          tccruntime.OutputKind
	Diagnostics     []string

	imports   []string
	relocated bool
	deleted   bool
}

var (
	_ engine.Instance     = (*Instance)(nil)
	_ engine.SymbolLister = (*Instance)(nil)
)

func (i *Instance) live() {
	if i.deleted {
		panic("enginetest: instance used after Delete")
	}
}

func (i *Instance) diag(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	i.Diagnostics = append(i.Diagnostics, msg)
	if i.errFn != nil {
		i.errFn(msg)
	}
}

func (i *Instance) SetErrorFunc(fn engine.ErrorFunc) {
	i.live()
	i.errFn = fn
}

func (i *Instance) SetOptions(opts string) {
	i.live()
	i.Options = append(i.Options, opts)
}

func (i *Instance) SetLibPath(path string) {
	i.live()
	i.LibPath = path
}

func (i *Instance) AddIncludePath(path string) error {
	i.live()
	i.IncludePaths = append(i.IncludePaths, path)
	return nil
}

func (i *Instance) AddSysIncludePath(path string) error {
	i.live()
	i.SysIncludePaths = append(i.SysIncludePaths, path)
	return nil
}

func (i *Instance) AddLibraryPath(path string) error {
	i.live()
	i.LibraryPaths = append(i.LibraryPaths, path)
	return nil
}

func (i *Instance) AddLibrary(name string) error {
	i.live()
	i.Libraries = append(i.Libraries, name)
	return nil
}

func (i *Instance) DefineSymbol(name, value string) {
	i.live()
	i.macros[name] = value
}

func (i *Instance) UndefineSymbol(name string) {
	i.live()
	delete(i.macros, name)
}

// Macro returns the replacement text of a macro.
func (i *Instance) Macro(name string) (string, bool) {
	v, ok := i.macros[name]
	return v, ok
}

// MacroString expands a macro whose replacement is a C string literal.
func (i *Instance) MacroString(name string) string {
	v, ok := i.macros[name]
	if !ok {
		return name
	}
	if s, err := strconv.Unquote(v); err == nil {
		return s
	}
	return v
}

func (i *Instance) SetOutputType(kind tccruntime.OutputKind) error {
	i.live()
	if len(i.Sources) > 0 {
		i.diag("tcc: error: output type must be set before adding sources")
		return errors.InvalidState(errors.PhaseConfigure, "output type after sources")
	}
	i.Output = kind
	return nil
}

func (i *Instance) ingest(name, src string) error {
	if i.Output == 0 {
		i.Output = tccruntime.OutputMemory
	}
	u := scan(name, src, i.macros)
	for _, msg := range u.errors {
		i.diag("%s", msg)
	}
	if len(u.errors) > 0 {
		return errors.New(errors.PhaseSource, errors.KindSourceFailure).Detail("compile %s", name).Build()
	}
	i.Sources = append(i.Sources, src)
	for fn := range u.defines {
		i.defined[fn] = true
	}
	i.imports = append(i.imports, u.imports...)
	return nil
}

func (i *Instance) AddFile(path string) error {
	i.live()
	data, err := os.ReadFile(path)
	if err != nil {
		i.diag("tcc: error: file '%s' not found", path)
		return errors.New(errors.PhaseSource, errors.KindSourceFailure).Detail("read %s", path).Cause(err).Build()
	}
	return i.ingest(filepath.Base(path), string(data))
}

func (i *Instance) CompileString(src string) error {
	i.live()
	return i.ingest("<string>", src)
}

// AddSymbol keeps the first address registered under a name.
func (i *Instance) AddSymbol(name string, addr unsafe.Pointer) error {
	i.live()
	if _, ok := i.symbols[name]; ok {
		return nil
	}
	i.symbols[name] = addr
	i.order = append(i.order, name)
	return nil
}

func (i *Instance) GetSymbol(name string) unsafe.Pointer {
	i.live()
	return i.symbols[name]
}

func (i *Instance) Relocate() error {
	i.live()
	if i.relocated {
		i.diag("tcc: error: image already relocated")
		return errors.InvalidState(errors.PhaseCompile, "relocated twice")
	}
	if i.Output != tccruntime.OutputMemory {
		i.diag("tcc: error: relocation requires memory output, have %s", i.Output)
		return errors.InvalidState(errors.PhaseCompile, "output kind is not memory")
	}
	return i.link()
}

// link resolves imports and binds the staged exports defined by the sources.
func (i *Instance) link() error {
	var missing bool
	for _, name := range i.imports {
		if _, ok := i.symbols[name]; ok {
			continue
		}
		if i.defined[name] && i.engine.exports[name] != nil {
			continue
		}
		i.diag("tcc: error: undefined symbol '%s'", name)
		missing = true
	}
	if missing {
		return errors.New(errors.PhaseCompile, errors.KindCompileFailure).Detail("link").Build()
	}

	names := make([]string, 0, len(i.defined))
	for name := range i.defined {
		if i.engine.exports[name] != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		impl := i.engine.exports[name](i)
		addr, err := i.bind(impl)
		if err != nil {
			i.diag("tcc: error: cannot bind '%s': %v", name, err)
			return errors.New(errors.PhaseCompile, errors.KindCompileFailure).Symbol(name).Cause(err).Build()
		}
		if _, ok := i.symbols[name]; !ok {
			i.symbols[name] = addr
			i.order = append(i.order, name)
		}
	}
	i.relocated = true
	return nil
}

func (i *Instance) bind(impl any) (unsafe.Pointer, error) {
	v := reflect.ValueOf(impl)
	switch {
	case !v.IsValid():
		return nil, fmt.Errorf("nil implementation")
	case v.Kind() == reflect.Func:
		cb, err := i.engine.bridge.NewCallback(v, nil)
		if err != nil {
			return nil, err
		}
		i.callbacks = append(i.callbacks, cb)
		return cb.Addr(), nil
	case v.Kind() == reflect.Pointer, v.Kind() == reflect.UnsafePointer:
		return v.UnsafePointer(), nil
	}
	return nil, fmt.Errorf("unsupported implementation %T", impl)
}

// RelocateSize reports a page per translation unit.
func (i *Instance) RelocateSize() (int, error) {
	i.live()
	if i.Output != tccruntime.OutputMemory {
		return 0, errors.InvalidState(errors.PhaseCompile, "output kind is not memory")
	}
	return 4096 * (len(i.Sources) + 1), nil
}

func (i *Instance) RelocateInto(mem unsafe.Pointer, size int) error {
	i.live()
	need, err := i.RelocateSize()
	if err != nil {
		return err
	}
	if mem == nil || size < need {
		i.diag("tcc: error: relocation buffer too small: %d < %d", size, need)
		return errors.InvalidInput(errors.PhaseCompile, "relocation buffer too small")
	}
	return i.Relocate()
}

// OutputFile writes the ingested sources to path.
func (i *Instance) OutputFile(path string) error {
	i.live()
	if !i.Output.IsFile() {
		i.diag("tcc: error: output file requires a file output kind")
		return errors.InvalidState(errors.PhaseOutput, "output kind is memory")
	}
	body := fmt.Sprintf("/* enginetest %s */\n", i.Output)
	for _, src := range i.Sources {
		body += src + "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		i.diag("tcc: error: could not write '%s'", path)
		return errors.New(errors.PhaseOutput, errors.KindOutputFailure).Cause(err).Build()
	}
	return nil
}

// Run links in memory and calls main. main may take no arguments or
// (int32, unsafe.Pointer).
func (i *Instance) Run(args []string) (int, error) {
	i.live()
	if i.relocated {
		i.diag("tcc: error: cannot run a relocated image")
		return 0, errors.InvalidState(errors.PhaseInvoke, "already relocated")
	}
	if err := i.link(); err != nil {
		return 0, err
	}
	addr := i.symbols["main"]
	if addr == nil {
		i.diag("tcc: error: undefined symbol 'main'")
		return 0, errors.SymbolNotFound("main")
	}
	fn, ok := i.engine.bridge.Lookup(addr)
	if !ok {
		return 0, errors.InvalidState(errors.PhaseInvoke, "main is not a function")
	}

	var in []reflect.Value
	if fn.Type().NumIn() == 2 {
		in = []reflect.Value{reflect.ValueOf(int32(len(args))), reflect.ValueOf(unsafe.Pointer(nil))}
	}
	out := fn.Call(in)
	if len(out) == 0 {
		return 0, nil
	}
	return int(out[0].Convert(reflect.TypeOf(0)).Int()), nil
}

func (i *Instance) ListSymbols(fn func(name string, addr unsafe.Pointer)) {
	i.live()
	for _, name := range i.order {
		fn(name, i.symbols[name])
	}
}

// Relocated reports whether the image has been linked.
func (i *Instance) Relocated() bool { return i.relocated }

// Deleted reports whether Delete has been called.
func (i *Instance) Deleted() bool { return i.deleted }

// Delete releases the instance. A second call panics.
func (i *Instance) Delete() {
	if i.deleted {
		panic("enginetest: instance deleted twice")
	}
	i.deleted = true
	for _, cb := range i.callbacks {
		cb.Release()
	}
	i.callbacks = nil
	i.symbols = nil
	i.engine.Deleted++
}

// Import returns a Go function of type F that calls the symbol name of
// inst through the engine bridge. The symbol is resolved on every call.
func Import[F any](inst *Instance, name string) F {
	var zero F
	ft := reflect.TypeOf(zero)
	if ft == nil || ft.Kind() != reflect.Func {
		panic("enginetest: Import needs a function type")
	}
	fn := reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		addr := inst.GetSymbol(name)
		if addr == nil {
			panic(fmt.Sprintf("enginetest: undefined symbol '%s'", name))
		}
		call, err := native.Caller(inst.engine.bridge, addr, ft)
		if err != nil {
			panic(err)
		}
		return call.Call(args)
	})
	return fn.Interface().(F)
}
