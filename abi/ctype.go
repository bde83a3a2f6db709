package abi

import (
	"reflect"
	"strconv"
	"unsafe"

	"github.com/wippyai/tcc-runtime/errors"
)

// Kind is the C scalar class of a Go type.
type Kind uint8

const (
	Invalid Kind = iota
	Void
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Pointer
	String
)

var kindNames = [...]string{
	Invalid: "invalid",
	Void:    "void",
	Bool:    "bool",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Pointer: "pointer",
	String:  "string",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Size returns the storage size of a value of kind k.
func (k Kind) Size() uintptr {
	switch k {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	case Pointer, String:
		return unsafe.Sizeof(uintptr(0))
	}
	return 0
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool {
	switch k {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// IsInteger reports whether k is an integer kind, bool included.
func (k Kind) IsInteger() bool {
	switch k {
	case Bool, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

var spellings = [...]string{
	Void:    "void",
	Bool:    "_Bool",
	Int8:    "signed char",
	Int16:   "short",
	Int32:   "int",
	Int64:   "long long",
	Uint8:   "unsigned char",
	Uint16:  "unsigned short",
	Uint32:  "unsigned int",
	Uint64:  "unsigned long long",
	Float32: "float",
	Float64: "double",
	Pointer: "void*",
	String:  "const char*",
}

// KindOf classifies t. A nil type is Void.
func KindOf(t reflect.Type) (Kind, error) {
	if t == nil {
		return Void, nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bool, nil
	case reflect.Int8:
		return Int8, nil
	case reflect.Int16:
		return Int16, nil
	case reflect.Int32:
		return Int32, nil
	case reflect.Int64:
		return Int64, nil
	case reflect.Int:
		if strconv.IntSize == 32 {
			return Int32, nil
		}
		return Int64, nil
	case reflect.Uint8:
		return Uint8, nil
	case reflect.Uint16:
		return Uint16, nil
	case reflect.Uint32:
		return Uint32, nil
	case reflect.Uint64:
		return Uint64, nil
	case reflect.Uint, reflect.Uintptr:
		if unsafe.Sizeof(uintptr(0)) == 4 {
			return Uint32, nil
		}
		return Uint64, nil
	case reflect.Float32:
		return Float32, nil
	case reflect.Float64:
		return Float64, nil
	case reflect.UnsafePointer, reflect.Pointer:
		return Pointer, nil
	case reflect.String:
		return String, nil
	}
	return Invalid, errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
		GoType(t.String()).
		Detail("no C representation; pass aggregates by pointer").
		Build()
}

// CType spells t as a C type. Pointers to mappable scalars keep their
// element type, pointers to structs name the struct, everything else
// degrades to void*.
func CType(t reflect.Type) string {
	if t == nil {
		return "void"
	}
	if t.Kind() == reflect.Pointer {
		return pointee(t.Elem()) + "*"
	}
	k, err := KindOf(t)
	if err != nil {
		return "void"
	}
	return spellings[k]
}

func pointee(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Struct:
		if t.Name() != "" {
			return "struct " + t.Name()
		}
		return "void"
	case reflect.Pointer:
		return pointee(t.Elem()) + "*"
	case reflect.UnsafePointer:
		return "void*"
	case reflect.String:
		// *string has no C layout
		return "void"
	}
	k, err := KindOf(t)
	if err != nil || k == Pointer {
		return "void"
	}
	return spellings[k]
}
