package runtime

import (
	"strings"

	"go.uber.org/zap"

	tccruntime "github.com/wippyai/tcc-runtime"
	"github.com/wippyai/tcc-runtime/engine"
	"github.com/wippyai/tcc-runtime/errors"
)

// Config is applied by New right after the instance is created.
type Config struct {
	// LibPath is the directory holding libtcc1.a and the runtime headers.
	LibPath string
	// Options is passed to the compiler as a command line, e.g. "-O2 -Wall".
	Options string

	IncludePaths    []string
	SysIncludePaths []string
	LibraryPaths    []string
	Libraries       []string

	// Defines maps macro names to replacement text. An empty value
	// defines the macro as 1, like -DNAME.
	Defines map[string]string

	// Output selects the artifact kind. Zero means memory.
	Output tccruntime.OutputKind

	// ScriptHeader makes tccext.h includable by the compiled sources.
	ScriptHeader bool

	// ErrorCallback receives compiler diagnostics.
	ErrorCallback func(msg string)
}

// Apply configures c. The context must own an instance.
func (cfg *Config) Apply(c *Context) error {
	if err := c.guard(errors.PhaseConfigure); err != nil {
		return err
	}
	if cfg.ErrorCallback != nil {
		c.SetErrorCallback(cfg.ErrorCallback)
	}
	if cfg.LibPath != "" {
		c.SetLibPath(cfg.LibPath)
	}
	if cfg.Options != "" {
		c.SetOptions(cfg.Options)
	}
	for _, p := range cfg.IncludePaths {
		c.AddIncludePath(p)
	}
	for _, p := range cfg.SysIncludePaths {
		c.AddSystemIncludePath(p)
	}
	for _, p := range cfg.LibraryPaths {
		c.AddLibraryPath(p)
	}
	for _, l := range cfg.Libraries {
		c.AddLibrary(l)
	}
	for name, value := range cfg.Defines {
		if value == "" {
			c.Define(name)
			continue
		}
		c.Define(name, value)
	}
	if cfg.ScriptHeader {
		if err := c.UseScriptHeader(); err != nil {
			return err
		}
	}
	if cfg.Output != 0 {
		return c.SetOutputKind(cfg.Output)
	}
	return nil
}

// defaultMacroValue is what libtcc substitutes for a macro defined without
// a value.
const defaultMacroValue = "1"

// configurable reports whether a configuration call can be forwarded and
// logs the dropped call otherwise.
func (c *Context) configurable(op string) bool {
	if c.inst == nil {
		Logger().Warn("configuration ignored on empty context", zap.String("op", op))
		return false
	}
	return true
}

// SetErrorCallback routes compiler diagnostics to fn. fn is kept across
// Create and replaces any earlier callback. A nil fn removes it.
func (c *Context) SetErrorCallback(fn func(msg string)) {
	c.onError = fn
}

// SetErrorCallbackWith routes diagnostics to fn together with data.
func SetErrorCallbackWith[T any](c *Context, data *T, fn func(data *T, msg string)) {
	if fn == nil {
		c.SetErrorCallback(nil)
		return
	}
	c.SetErrorCallback(func(msg string) { fn(data, msg) })
}

// SetOptions passes a compiler command line, e.g. "-Wall -g".
func (c *Context) SetOptions(opts string) {
	if !c.configurable("set_options") {
		return
	}
	c.inst.SetOptions(opts)
	c.advance(StateConfigured)
}

// SetLibPath sets the directory holding the compiler's own runtime files.
func (c *Context) SetLibPath(path string) {
	if !c.configurable("set_lib_path") {
		return
	}
	c.inst.SetLibPath(path)
	c.advance(StateConfigured)
}

// AddIncludePath adds a user include directory (-I).
func (c *Context) AddIncludePath(path string) {
	c.forward("add_include_path", path, engine.Instance.AddIncludePath)
}

// AddSystemIncludePath adds a system include directory (-isystem).
func (c *Context) AddSystemIncludePath(path string) {
	c.forward("add_sys_include_path", path, engine.Instance.AddSysIncludePath)
}

// AddLibraryPath adds a library search directory (-L).
func (c *Context) AddLibraryPath(path string) {
	c.forward("add_library_path", path, engine.Instance.AddLibraryPath)
}

// AddLibrary links a library by name (-l).
func (c *Context) AddLibrary(name string) {
	c.forward("add_library", name, engine.Instance.AddLibrary)
}

// Define defines a preprocessor macro. Without a value the macro expands
// to 1, as with -DNAME; several values are joined with spaces. Pass ""
// for a macro that expands to nothing.
func (c *Context) Define(name string, value ...string) {
	if !c.configurable("define_symbol") {
		return
	}
	text := defaultMacroValue
	if len(value) > 0 {
		text = strings.Join(value, " ")
	}
	c.inst.DefineSymbol(name, text)
	c.advance(StateConfigured)
}

// Undefine removes a preprocessor macro.
func (c *Context) Undefine(name string) {
	if !c.configurable("undefine_symbol") {
		return
	}
	c.inst.UndefineSymbol(name)
	c.advance(StateConfigured)
}

// forward calls a path-taking instance method. Engine failures are
// logged; the call has no result for the host.
func (c *Context) forward(op, arg string, fn func(engine.Instance, string) error) {
	if !c.configurable(op) {
		return
	}
	c.begin()
	if err := fn(c.inst, arg); err != nil {
		Logger().Warn("configuration failed",
			zap.String("op", op),
			zap.String("arg", arg),
			zap.Strings("diagnostics", c.collected()),
			zap.Error(err))
		return
	}
	c.advance(StateConfigured)
}
