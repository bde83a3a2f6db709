package runtime

import (
	"go.uber.org/zap"

	tccruntime "github.com/wippyai/tcc-runtime"
	"github.com/wippyai/tcc-runtime/errors"
)

// SetOutputKind selects what the instance produces. The engine fixes the
// output kind when the first source is ingested, so a different kind
// afterwards is an InvalidState error. Before that, the last call wins.
func (c *Context) SetOutputKind(kind tccruntime.OutputKind) error {
	if err := c.guard(errors.PhaseConfigure); err != nil {
		return err
	}
	if kind.String() == "unknown" {
		return errors.InvalidInput(errors.PhaseConfigure, "unknown output kind")
	}
	if c.applied != 0 {
		if kind == c.applied {
			return nil
		}
		return errors.New(errors.PhaseConfigure, errors.KindInvalidState).
			Detail("output kind is %s once sources are added, cannot switch to %s", c.applied, kind).
			Build()
	}
	c.output = kind
	c.advance(StateConfigured)
	return nil
}

// OutputKind reports the kind in effect, or the requested kind while no
// source has been added.
func (c *Context) OutputKind() tccruntime.OutputKind {
	if c.applied != 0 {
		return c.applied
	}
	if c.output != 0 {
		return c.output
	}
	return tccruntime.OutputMemory
}

// fixOutput applies the requested output kind before the first ingestion.
func (c *Context) fixOutput(phase errors.Phase) error {
	if c.applied != 0 {
		return nil
	}
	kind := c.output
	if kind == 0 {
		kind = tccruntime.OutputMemory
	}
	if err := c.inst.SetOutputType(kind); err != nil {
		return errors.New(phase, errors.KindInvalidState).
			Detail("set output type %s", kind).
			Diagnostics(c.collected()).
			Cause(err).
			Build()
	}
	c.applied = kind
	return nil
}

// AddFile compiles a C file, an object, an archive or a shared library
// into the instance. Diagnostics reach the error callback and the returned
// error.
func (c *Context) AddFile(path string) error {
	if err := c.guard(errors.PhaseSource); err != nil {
		return err
	}
	c.begin()
	if err := c.fixOutput(errors.PhaseSource); err != nil {
		return err
	}
	if err := c.inst.AddFile(path); err != nil {
		e := errors.SourceFailed(path, c.collected())
		e.Cause = err
		return e
	}
	Logger().Debug("file added", zap.String("path", path))
	c.advance(StateSourceLoaded)
	return nil
}

// AddSource compiles a string containing a C translation unit.
func (c *Context) AddSource(src string) error {
	if err := c.guard(errors.PhaseSource); err != nil {
		return err
	}
	c.begin()
	if err := c.fixOutput(errors.PhaseSource); err != nil {
		return err
	}
	if err := c.inst.CompileString(src); err != nil {
		e := errors.SourceFailed("source string", c.collected())
		e.Cause = err
		return e
	}
	Logger().Debug("source added", zap.Int("bytes", len(src)))
	c.advance(StateSourceLoaded)
	return nil
}
