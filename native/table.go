package native

import (
	"reflect"
	"strconv"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/tcc-runtime/abi"
	"github.com/wippyai/tcc-runtime/errors"
)

// Table is a pure-Go Bridge. Every callback gets a distinct heap cell whose
// address stands in for code; Call only understands addresses it handed out.
// One Table serves every context of an engine, and contexts may live on
// different goroutines, so the table locks.
type Table struct {
	entries  []entry
	freeList []int
	index    map[unsafe.Pointer]int
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	fn    reflect.Value
	sig   *abi.Signature
	cell  *cell
	valid bool
}

type cell struct {
	_ byte
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 16),
		freeList: make([]int, 0, 4),
		index:    make(map[unsafe.Pointer]int),
	}
}

// Name implements Bridge.
func (t *Table) Name() string { return "table" }

// NewCallback implements Bridge.
func (t *Table) NewCallback(fn reflect.Value, sig *abi.Signature) (Callback, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, errors.InvalidInput(errors.PhaseRegister, "callback must be a function")
	}
	if sig == nil {
		var err error
		if sig, err = abi.SignatureOf(fn.Type()); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, errors.InvalidState(errors.PhaseRegister, "table closed")
	}

	e := entry{fn: fn, sig: sig, cell: new(cell), valid: true}
	var idx int
	if n := len(t.freeList); n > 0 {
		idx = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[idx] = e
	} else {
		idx = len(t.entries)
		t.entries = append(t.entries, e)
	}
	addr := unsafe.Pointer(e.cell)
	t.index[addr] = idx
	return &tableCallback{table: t, addr: addr}, nil
}

// Lookup returns the function registered at addr.
func (t *Table) Lookup(addr unsafe.Pointer) (reflect.Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx, ok := t.index[addr]
	if !ok {
		return reflect.Value{}, false
	}
	return t.entries[idx].fn, true
}

// Call implements Bridge. Arguments are converted to the callee's parameter
// types and the result to sig's result type.
func (t *Table) Call(addr unsafe.Pointer, sig *abi.Signature, args []reflect.Value) (reflect.Value, error) {
	fn, ok := t.Lookup(addr)
	if !ok {
		return reflect.Value{}, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Value(addr).
			Detail("no code at address %p", addr).
			Build()
	}

	ft := fn.Type()
	if ft.NumIn() != len(args) {
		return reflect.Value{}, errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
			GoType(ft.String()).
			Detail("called with %d arguments, callee takes %d", len(args), ft.NumIn()).
			Build()
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := convert(a, ft.In(i), "argument "+strconv.Itoa(i))
		if err != nil {
			return reflect.Value{}, err
		}
		in[i] = v
	}

	out := fn.Call(in)
	if sig == nil || sig.Result == nil {
		return reflect.Value{}, nil
	}
	if len(out) == 0 {
		return reflect.Zero(sig.Result), nil
	}
	return convert(out[0], sig.Result, "result")
}

func (t *Table) release(addr unsafe.Pointer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.index[addr]
	if !ok {
		Logger().Debug("release of unknown callback", zap.Uintptr("addr", uintptr(addr)))
		return
	}
	delete(t.index, addr)
	t.entries[idx] = entry{}
	t.freeList = append(t.freeList, idx)
}

// Len returns the number of live callbacks.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// Close releases all callbacks.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.entries = nil
	t.freeList = nil
	clear(t.index)
	return nil
}

type tableCallback struct {
	table *Table
	addr  unsafe.Pointer
	once  sync.Once
}

func (c *tableCallback) Addr() unsafe.Pointer { return c.addr }

func (c *tableCallback) Release() {
	c.once.Do(func() { c.table.release(c.addr) })
}
