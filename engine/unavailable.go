//go:build !tcc || !cgo

package engine

import (
	"github.com/wippyai/tcc-runtime/errors"
	"github.com/wippyai/tcc-runtime/native"
)

// TCC stands in for the libtcc engine in builds without the tcc tag.
// Every instance request fails.
type TCC struct {
	bridge *native.Table
}

// NewTCC returns the libtcc engine. This build was compiled without the
// tcc tag, so New always fails.
func NewTCC() Engine {
	return &TCC{bridge: native.NewTable()}
}

func (e *TCC) Name() string { return "libtcc" }

func (e *TCC) Bridge() native.Bridge { return e.bridge }

func (e *TCC) New() (Instance, error) {
	return nil, errors.InstanceCreation(e.Name(),
		errors.Unavailable(errors.PhaseCreate, "built without the tcc tag; rebuild with -tags tcc"))
}
