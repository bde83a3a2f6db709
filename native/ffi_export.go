//go:build tcc && cgo

package native

/*
#include <ffi.h>
#include <stdint.h>
*/
import "C"

import (
	"reflect"
	"runtime/cgo"
	"unsafe"
)

//export tccCallbackInvoke
func tccCallbackInvoke(_ *C.ffi_cif, ret unsafe.Pointer, args *unsafe.Pointer, user C.uintptr_t) {
	ctx, ok := cgo.Handle(user).Value().(*callbackContext)
	if !ok || ctx == nil {
		return
	}
	sig := ctx.sig
	n := len(sig.Params)

	in := make([]reflect.Value, n)
	if n > 0 {
		argv := unsafe.Slice(args, n)
		for i := range in {
			in[i] = load(argv[i], sig.Kinds[i], sig.Params[i])
		}
	}

	out := ctx.fn.Call(in)
	if sig.Result != nil && len(out) > 0 {
		storeReturn(ret, sig.ResultKind, out[0])
	}
}
