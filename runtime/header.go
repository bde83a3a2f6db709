package runtime

import (
	_ "embed"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/tcc-runtime/errors"
)

// ScriptHeaderName is the file name sources include to get the scripting
// macros.
const ScriptHeaderName = "tccext.h"

// ScriptHeader defines export and import for scripts, the fixed-width
// integer typedefs and handle_t. Scripts declare host symbols with import
// and make their own visible with export:
//
//	#include "tccext.h"
//
//	import int GetFour(void);
//	export int UseFour(void) { return GetFour() * 2; }
//
//go:embed include/tccext.h
var ScriptHeader string

// UseScriptHeader writes ScriptHeader to a temporary directory and adds it
// to the include path. The directory is removed when the context is
// destroyed. Calling it again has no effect.
func (c *Context) UseScriptHeader() error {
	if err := c.guard(errors.PhaseConfigure); err != nil {
		return err
	}
	if c.headerDir != "" {
		return nil
	}

	dir, err := os.MkdirTemp("", "tccruntime-include-")
	if err != nil {
		return errors.Wrap(errors.PhaseConfigure, errors.KindInvalidState, err, "create script header directory")
	}
	if err := os.WriteFile(filepath.Join(dir, ScriptHeaderName), []byte(ScriptHeader), 0o644); err != nil {
		os.RemoveAll(dir)
		return errors.Wrap(errors.PhaseConfigure, errors.KindInvalidState, err, "write script header")
	}

	c.headerDir = dir
	c.AddIncludePath(dir)
	Logger().Debug("script header installed", zap.String("dir", dir))
	return nil
}

// ScriptHeaderDir returns the directory UseScriptHeader installed, if any.
func (c *Context) ScriptHeaderDir() string { return c.headerDir }
