//go:build tcc && cgo

package engine

/*
#include <stdint.h>
*/
import "C"

import "runtime/cgo"

//export tccErrorInvoke
func tccErrorInvoke(h C.uintptr_t, msg *C.char) {
	fn, ok := cgo.Handle(h).Value().(ErrorFunc)
	if !ok || fn == nil {
		return
	}
	fn(C.GoString(msg))
}
