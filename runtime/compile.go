package runtime

import (
	"go.uber.org/zap"

	tccruntime "github.com/wippyai/tcc-runtime"
	"github.com/wippyai/tcc-runtime/errors"
)

// Compile links everything added so far into memory managed by the
// instance. Symbols of the image become visible to GetSymbol afterwards.
// Compile is not retried; calling it again is forwarded to the engine.
func (c *Context) Compile() error {
	if err := c.guard(errors.PhaseCompile); err != nil {
		return err
	}
	c.begin()
	if err := c.requireMemory(); err != nil {
		return err
	}
	if err := c.inst.Relocate(); err != nil {
		return c.compileFailed("relocate", err)
	}
	Logger().Debug("image relocated", zap.String("engine", c.eng.Name()))
	c.advance(StateCompiled)
	return nil
}

// RequiredBufferSize reports how much storage CompileInto needs. It must
// be called after the last source is added.
func (c *Context) RequiredBufferSize() (int, error) {
	if err := c.guard(errors.PhaseCompile); err != nil {
		return 0, err
	}
	c.begin()
	if err := c.requireMemory(); err != nil {
		return 0, err
	}
	n, err := c.inst.RelocateSize()
	if err != nil {
		return 0, c.compileFailed("query relocation size", err)
	}
	c.sized = n
	return n, nil
}

// CompileInto links the image into mem, which must hold at least
// RequiredBufferSize bytes and stay mapped until the context is destroyed.
func (c *Context) CompileInto(mem *ExecMemory) error {
	if err := c.guard(errors.PhaseCompile); err != nil {
		return err
	}
	if c.sized == 0 {
		return errors.InvalidState(errors.PhaseCompile, "CompileInto requires RequiredBufferSize first")
	}
	if mem.Len() < c.sized {
		return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
			Detail("buffer of %d bytes is smaller than the required %d", mem.Len(), c.sized).
			Build()
	}
	c.begin()
	if err := c.inst.RelocateInto(mem.Ptr(), mem.Len()); err != nil {
		return c.compileFailed("relocate into caller memory", err)
	}
	c.image = mem
	c.advance(StateCompiled)
	return nil
}

// OutputFile writes the artifact of the given file kind to path. The kind
// must match the one the instance was configured with, if any source was
// already added. A context that wrote a file cannot be compiled.
func (c *Context) OutputFile(path string, kind tccruntime.OutputKind) error {
	if err := c.guard(errors.PhaseOutput); err != nil {
		return err
	}
	if !kind.IsFile() {
		return errors.New(errors.PhaseOutput, errors.KindInvalidInput).
			Detail("%s is not a file output kind", kind).
			Build()
	}
	if c.state == StateCompiled {
		return errors.InvalidState(errors.PhaseOutput, "image already relocated in memory")
	}
	c.begin()
	if c.applied == 0 {
		c.output = kind
		if err := c.fixOutput(errors.PhaseOutput); err != nil {
			return err
		}
	}
	if c.applied != kind {
		return errors.New(errors.PhaseOutput, errors.KindInvalidState).
			Detail("instance produces %s, not %s; call SetOutputKind before adding sources", c.applied, kind).
			Build()
	}
	if err := c.inst.OutputFile(path); err != nil {
		e := errors.OutputFailed(path, c.collected())
		e.Cause = err
		return e
	}
	Logger().Debug("artifact written", zap.String("path", path), zap.Stringer("kind", kind))
	c.state = StateWritten
	return nil
}

// Run links the image and calls its main with args as argv. The exit code
// of main is returned.
func (c *Context) Run(args ...string) (int, error) {
	if err := c.guard(errors.PhaseInvoke); err != nil {
		return 0, err
	}
	c.begin()
	if err := c.requireMemory(); err != nil {
		return 0, err
	}
	code, err := c.inst.Run(args)
	if err != nil {
		return code, c.compileFailed("run main", err)
	}
	if f := c.gen.TakeFault(); f != nil {
		return code, f.Err()
	}
	return code, nil
}

// requireMemory fixes the output kind to memory, or fails if sources were
// added for a file kind or a file was already written.
func (c *Context) requireMemory() error {
	if c.state == StateWritten {
		return errors.InvalidState(errors.PhaseCompile, "cannot compile after OutputFile")
	}
	if c.applied == 0 {
		c.output = tccruntime.OutputMemory
		return c.fixOutput(errors.PhaseCompile)
	}
	if c.applied != tccruntime.OutputMemory {
		return errors.New(errors.PhaseCompile, errors.KindInvalidState).
			Detail("instance produces %s; memory compilation needs the memory kind", c.applied).
			Build()
	}
	return nil
}

// compileFailed builds the compile error for the current diagnostics. If
// they name undefined symbols the cause is a MissingSymbolsError.
func (c *Context) compileFailed(detail string, cause error) error {
	diags := c.collected()
	e := errors.CompileFailed(detail, diags)
	e.Cause = cause
	if missing := errors.NewMissingSymbolsError(diags); missing != nil {
		e.Cause = missing
	}
	Logger().Debug("compile failed", zap.String("detail", detail), zap.Strings("diagnostics", diags))
	return e
}
