package runtime

import (
	"os"
	goruntime "runtime"

	"go.uber.org/zap"

	tccruntime "github.com/wippyai/tcc-runtime"
	"github.com/wippyai/tcc-runtime/abi"
	"github.com/wippyai/tcc-runtime/engine"
	"github.com/wippyai/tcc-runtime/errors"
	"github.com/wippyai/tcc-runtime/native"
	"github.com/wippyai/tcc-runtime/trampoline"
)

// State is the lifecycle position of a Context.
type State int

const (
	StateEmpty        State = iota // no instance
	StateCreated                   // fresh instance
	StateConfigured                // paths, macros or options applied
	StateSourceLoaded              // at least one source ingested
	StateCompiled                  // relocated in memory
	StateWritten                   // artifact written to disk
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateSourceLoaded:
		return "source-loaded"
	case StateCompiled:
		return "compiled"
	case StateWritten:
		return "written"
	default:
		return "unknown"
	}
}

// noCopy is flagged by go vet's copylocks check when a Context is copied.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Context exclusively owns one compiler instance.
//
// A Context starts Empty. Create gives it a fresh instance, Destroy releases
// it again. Contexts must not be copied; use MoveFrom or Take to transfer
// ownership. A Context is not safe for concurrent use.
type Context struct {
	_ noCopy

	eng   engine.Engine
	inst  engine.Instance
	state State

	gen       *trampoline.Generator
	pins      *goruntime.Pinner
	callbacks []native.Callback
	methods   map[abi.Key]native.Callback
	decls     []string

	onError engine.ErrorFunc
	diags   []string

	output  tccruntime.OutputKind // requested
	applied tccruntime.OutputKind // fixed at first ingestion
	sized   int                   // last RequiredBufferSize answer
	image   *ExecMemory

	headerDir string
}

// NewContext returns an Empty context bound to eng.
func NewContext(eng engine.Engine) *Context {
	return &Context{eng: eng}
}

// New creates a context, creates its instance and applies cfg.
// cfg may be nil.
func New(eng engine.Engine, cfg *Config) (*Context, error) {
	c := NewContext(eng)
	if err := c.Create(); err != nil {
		return nil, err
	}
	if cfg != nil {
		if err := cfg.Apply(c); err != nil {
			c.Destroy()
			return nil, err
		}
	}
	return c, nil
}

// Engine returns the engine the context creates instances with.
func (c *Context) Engine() engine.Engine { return c.eng }

// Instance returns the owned instance, or nil when the context is Empty.
func (c *Context) Instance() engine.Instance { return c.inst }

// State reports the lifecycle state.
func (c *Context) State() State { return c.state }

// Valid reports whether the context owns an instance.
func (c *Context) Valid() bool { return c.inst != nil }

// Create releases any owned instance and asks the engine for a new one.
// On failure the context stays Empty.
func (c *Context) Create() error {
	c.Destroy()
	if c.eng == nil {
		return errors.InstanceCreation("<nil>", errors.NotInitialized(errors.PhaseCreate, "engine"))
	}

	inst, err := c.eng.New()
	if err != nil {
		Logger().Warn("instance creation failed", zap.String("engine", c.eng.Name()), zap.Error(err))
		if e, ok := err.(*errors.Error); ok && e.Kind == errors.KindInstanceCreation {
			return e
		}
		return errors.InstanceCreation(c.eng.Name(), err)
	}

	c.inst = inst
	c.state = StateCreated
	c.gen = trampoline.NewGenerator()
	c.pins = new(goruntime.Pinner)
	c.methods = make(map[abi.Key]native.Callback)
	c.inst.SetErrorFunc(c.sink)

	Logger().Debug("instance created", zap.String("engine", c.eng.Name()))
	return nil
}

// Destroy releases the instance and everything bound to it: native
// callbacks, pinned host memory and the temporary script header. Addresses
// obtained from the context are invalid afterwards. Destroy is idempotent.
func (c *Context) Destroy() {
	if c.inst != nil {
		c.inst.Delete()
		Logger().Debug("instance deleted", zap.String("engine", c.eng.Name()))
	}
	for _, cb := range c.callbacks {
		cb.Release()
	}
	if c.gen != nil {
		c.gen.Reset()
	}
	if c.pins != nil {
		c.pins.Unpin()
	}
	if c.headerDir != "" {
		if err := os.RemoveAll(c.headerDir); err != nil {
			Logger().Debug("remove script header", zap.String("dir", c.headerDir), zap.Error(err))
		}
	}
	c.reset()
}

// Close is Destroy for io.Closer users. It never fails.
func (c *Context) Close() error {
	c.Destroy()
	return nil
}

func (c *Context) reset() {
	c.inst = nil
	c.state = StateEmpty
	c.gen = nil
	c.pins = nil
	c.callbacks = nil
	c.methods = nil
	c.decls = nil
	c.diags = nil
	c.output = 0
	c.applied = 0
	c.sized = 0
	c.image = nil
	c.headerDir = ""
}

// MoveFrom releases the context's own instance and takes over the
// instance of src, which is left Empty. The error callback moves too.
func (c *Context) MoveFrom(src *Context) {
	if src == c {
		return
	}
	c.Destroy()

	c.eng = src.eng
	c.inst = src.inst
	c.state = src.state
	c.gen = src.gen
	c.pins = src.pins
	c.callbacks = src.callbacks
	c.methods = src.methods
	c.decls = src.decls
	c.onError = src.onError
	c.output = src.output
	c.applied = src.applied
	c.sized = src.sized
	c.image = src.image
	c.headerDir = src.headerDir

	src.reset()
	src.onError = nil

	if c.inst != nil {
		c.inst.SetErrorFunc(c.sink)
	}
}

// Take moves the instance into a new context and leaves c Empty.
func (c *Context) Take() *Context {
	dst := NewContext(c.eng)
	dst.MoveFrom(c)
	return dst
}

// sink receives every diagnostic of the owned instance.
func (c *Context) sink(msg string) {
	c.diags = append(c.diags, msg)
	Logger().Debug("tcc", zap.String("msg", msg))
	if c.onError != nil {
		c.onError(msg)
	}
}

// begin starts collecting the diagnostics of one operation.
func (c *Context) begin() {
	c.diags = nil
}

// collected returns the diagnostics since the last begin.
func (c *Context) collected() []string {
	if len(c.diags) == 0 {
		return nil
	}
	return append([]string(nil), c.diags...)
}

// advance moves the state forward, never back.
func (c *Context) advance(s State) {
	if s > c.state {
		c.state = s
	}
}

// guard returns the not-initialized error for operations that need an
// instance.
func (c *Context) guard(phase errors.Phase) error {
	if c.inst == nil {
		return errors.NotInitialized(phase, "compiler instance")
	}
	return nil
}
