package native

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/tcc-runtime/abi"
)

// slotSize is the storage reserved per argument and for the return value.
// libffi widens small integer returns to ffi_arg, which is register sized.
const slotSize = 16

// store writes v at p using the C width of k.
func store(p unsafe.Pointer, k abi.Kind, v reflect.Value) {
	switch k {
	case abi.Bool:
		var b uint8
		if truthy(v) {
			b = 1
		}
		*(*uint8)(p) = b
	case abi.Int8:
		*(*int8)(p) = int8(asInt(v))
	case abi.Int16:
		*(*int16)(p) = int16(asInt(v))
	case abi.Int32:
		*(*int32)(p) = int32(asInt(v))
	case abi.Int64:
		*(*int64)(p) = asInt(v)
	case abi.Uint8:
		*(*uint8)(p) = uint8(asUint(v))
	case abi.Uint16:
		*(*uint16)(p) = uint16(asUint(v))
	case abi.Uint32:
		*(*uint32)(p) = uint32(asUint(v))
	case abi.Uint64:
		*(*uint64)(p) = asUint(v)
	case abi.Float32:
		*(*float32)(p) = float32(asFloat(v))
	case abi.Float64:
		*(*float64)(p) = asFloat(v)
	case abi.Pointer, abi.String:
		*(*unsafe.Pointer)(p) = asPointer(v)
	}
}

// storeReturn is store with integers widened to register size, as libffi
// expects from closures.
func storeReturn(p unsafe.Pointer, k abi.Kind, v reflect.Value) {
	if k.IsInteger() && k.Size() < unsafe.Sizeof(uintptr(0)) {
		if k.IsSigned() {
			*(*uintptr)(p) = uintptr(asInt(v))
		} else if k == abi.Bool {
			var b uintptr
			if truthy(v) {
				b = 1
			}
			*(*uintptr)(p) = b
		} else {
			*(*uintptr)(p) = uintptr(asUint(v))
		}
		return
	}
	store(p, k, v)
}

// load reads a value of kind k at p into a new value of Go type t.
func load(p unsafe.Pointer, k abi.Kind, t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	switch k {
	case abi.Bool:
		setInt(out, int64(*(*uint8)(p)))
	case abi.Int8:
		setInt(out, int64(*(*int8)(p)))
	case abi.Int16:
		setInt(out, int64(*(*int16)(p)))
	case abi.Int32:
		setInt(out, int64(*(*int32)(p)))
	case abi.Int64:
		setInt(out, *(*int64)(p))
	case abi.Uint8:
		setUint(out, uint64(*(*uint8)(p)))
	case abi.Uint16:
		setUint(out, uint64(*(*uint16)(p)))
	case abi.Uint32:
		setUint(out, uint64(*(*uint32)(p)))
	case abi.Uint64:
		setUint(out, *(*uint64)(p))
	case abi.Float32:
		out.SetFloat(float64(*(*float32)(p)))
	case abi.Float64:
		out.SetFloat(*(*float64)(p))
	case abi.Pointer:
		out.Set(pointerValue(*(*unsafe.Pointer)(p), t))
	case abi.String:
		out.SetString(goString(*(*unsafe.Pointer)(p)))
	}
	return out
}

// loadReturn is load for a libffi return buffer.
func loadReturn(p unsafe.Pointer, k abi.Kind, t reflect.Type) reflect.Value {
	if k.IsInteger() && k.Size() < unsafe.Sizeof(uintptr(0)) {
		raw := *(*uintptr)(p)
		out := reflect.New(t).Elem()
		switch k {
		case abi.Bool:
			setInt(out, int64(uint8(raw)))
		case abi.Int8:
			setInt(out, int64(int8(raw)))
		case abi.Int16:
			setInt(out, int64(int16(raw)))
		case abi.Int32:
			setInt(out, int64(int32(raw)))
		case abi.Uint8:
			setUint(out, uint64(uint8(raw)))
		case abi.Uint16:
			setUint(out, uint64(uint16(raw)))
		case abi.Uint32:
			setUint(out, uint64(uint32(raw)))
		}
		return out
	}
	return load(p, k, t)
}

// goString copies a NUL-terminated C string.
func goString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}

func truthy(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() != 0
	}
	return false
}

func asInt(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return int64(v.Float())
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
	}
	return 0
}

func asUint(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	}
	return uint64(asInt(v))
}

func asFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint())
	}
	return float64(asInt(v))
}

func asPointer(v reflect.Value) unsafe.Pointer {
	switch v.Kind() {
	case reflect.Pointer, reflect.UnsafePointer:
		return v.UnsafePointer()
	}
	return nil
}

func setInt(out reflect.Value, i int64) {
	switch out.Kind() {
	case reflect.Bool:
		out.SetBool(i != 0)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		out.SetUint(uint64(i))
	case reflect.Float32, reflect.Float64:
		out.SetFloat(float64(i))
	default:
		out.SetInt(i)
	}
}

func setUint(out reflect.Value, u uint64) {
	switch out.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.SetInt(int64(u))
	case reflect.Bool:
		out.SetBool(u != 0)
	case reflect.Float32, reflect.Float64:
		out.SetFloat(float64(u))
	default:
		out.SetUint(u)
	}
}
