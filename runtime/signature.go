package runtime

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/tcc-runtime/errors"
)

// Signature describes a compiled function in WIT-style text, for callers
// that only know it at run time:
//
//	add: func(a: s32, b: s32) -> s32;
//	greet: func(name: string);
//	fill: func(buf: ptr, n: u64) -> u64;
//
// ptr is accepted in addition to the WIT primitives and maps to void*.
type Signature struct {
	Name       string
	ParamNames []string
	Params     []reflect.Type
	Result     reflect.Type // nil when the function returns nothing
}

var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:[ \t]*->[ \t]*([^;\n]+))?`)

// ParseSignatures extracts function signatures from WIT text.
// Pattern: [export] name: func(params) -> result;
func ParseSignatures(text string) (map[string]*Signature, error) {
	sigs := make(map[string]*Signature)

	for _, match := range funcPattern.FindAllStringSubmatch(text, -1) {
		sig := &Signature{Name: match[1]}

		if paramsStr := strings.TrimSpace(match[2]); paramsStr != "" {
			for i, p := range splitParams(paramsStr) {
				name, typStr := fmt.Sprintf("arg%d", i), p
				if idx := strings.LastIndex(p, ":"); idx != -1 {
					name = strings.TrimSpace(p[:idx])
					typStr = strings.TrimSpace(p[idx+1:])
				}
				t, err := parseType(typStr)
				if err != nil {
					return nil, errors.ParseFailed(sig.Name+" param "+name, err)
				}
				sig.ParamNames = append(sig.ParamNames, name)
				sig.Params = append(sig.Params, t)
			}
		}

		resultStr := strings.TrimSpace(match[3])
		if strings.HasPrefix(resultStr, "(") && strings.HasSuffix(resultStr, ")") {
			resultStr = strings.TrimSpace(resultStr[1 : len(resultStr)-1])
		}
		if resultStr != "" {
			if len(splitParams(resultStr)) > 1 {
				return nil, errors.ParseFailed(sig.Name+" result",
					fmt.Errorf("C functions return at most one value, got %q", resultStr))
			}
			t, err := parseType(resultStr)
			if err != nil {
				return nil, errors.ParseFailed(sig.Name+" result", err)
			}
			sig.Result = t
		}

		sigs[sig.Name] = sig
	}

	return sigs, nil
}

// ParseSignature parses text holding exactly one function.
func ParseSignature(text string) (*Signature, error) {
	sigs, err := ParseSignatures(text)
	if err != nil {
		return nil, err
	}
	if len(sigs) != 1 {
		return nil, errors.ParseFailed("signature", fmt.Errorf("expected one function, found %d", len(sigs)))
	}
	for _, sig := range sigs {
		return sig, nil
	}
	return nil, nil
}

// SortedSignatures returns the values of sigs ordered by name.
func SortedSignatures(sigs map[string]*Signature) []*Signature {
	out := make([]*Signature, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}

	return result
}

// parseType maps a WIT primitive, or ptr, to the Go type used to call C.
func parseType(s string) (reflect.Type, error) {
	s = strings.TrimSpace(s)
	if s == "ptr" {
		return pointerType, nil
	}
	t, err := wit.ParseType(s)
	if err != nil {
		return nil, err
	}
	switch t.(type) {
	case wit.Bool:
		return reflect.TypeOf(false), nil
	case wit.S8:
		return reflect.TypeOf(int8(0)), nil
	case wit.U8:
		return reflect.TypeOf(uint8(0)), nil
	case wit.S16:
		return reflect.TypeOf(int16(0)), nil
	case wit.U16:
		return reflect.TypeOf(uint16(0)), nil
	case wit.S32:
		return reflect.TypeOf(int32(0)), nil
	case wit.U32:
		return reflect.TypeOf(uint32(0)), nil
	case wit.S64:
		return reflect.TypeOf(int64(0)), nil
	case wit.U64:
		return reflect.TypeOf(uint64(0)), nil
	case wit.F32:
		return reflect.TypeOf(float32(0)), nil
	case wit.F64:
		return reflect.TypeOf(float64(0)), nil
	case wit.Char:
		return reflect.TypeOf(rune(0)), nil
	case wit.String:
		return reflect.TypeOf(""), nil
	}
	return nil, fmt.Errorf("type %s has no C equivalent", s)
}

// TypeName renders a parsed type back in signature notation.
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	switch t.Kind() {
	case reflect.Bool:
		return "bool"
	case reflect.Int8:
		return "s8"
	case reflect.Uint8:
		return "u8"
	case reflect.Int16:
		return "s16"
	case reflect.Uint16:
		return "u16"
	case reflect.Int32:
		return "s32"
	case reflect.Uint32:
		return "u32"
	case reflect.Int64:
		return "s64"
	case reflect.Uint64:
		return "u64"
	case reflect.Float32:
		return "f32"
	case reflect.Float64:
		return "f64"
	case reflect.String:
		return "string"
	case reflect.UnsafePointer:
		return "ptr"
	}
	return t.String()
}

// String renders the signature in the notation ParseSignatures accepts.
func (s *Signature) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = s.ParamNames[i] + ": " + TypeName(p)
	}
	out := s.Name + ": func(" + strings.Join(params, ", ") + ")"
	if s.Result != nil {
		out += " -> " + TypeName(s.Result)
	}
	return out
}

// ConvertArgs parses textual arguments into values of the parameter types.
func (s *Signature) ConvertArgs(values []string) ([]any, error) {
	if len(values) != len(s.Params) {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Symbol(s.Name).
			Detail("%d arguments given, %s takes %d", len(values), s.Name, len(s.Params)).
			Build()
	}
	args := make([]any, len(values))
	for i, v := range values {
		a, err := ConvertArg(v, s.Params[i])
		if err != nil {
			return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
				Symbol(s.Name).
				GoType(s.Params[i].String()).
				Detail("argument %s", s.ParamNames[i]).
				Cause(err).
				Build()
		}
		args[i] = a
	}
	return args, nil
}

// ConvertArg parses value as a t.
func ConvertArg(value string, t reflect.Type) (any, error) {
	value = strings.TrimSpace(value)
	switch t.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Bool:
		return value == "true" || value == "1", nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t.Kind() == reflect.Int32 && len(value) == 3 && value[0] == '\'' && value[2] == '\'' {
			return rune(value[1]), nil
		}
		v, err := strconv.ParseInt(value, 0, t.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(v).Convert(t).Interface(), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(value, 0, t.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(v).Convert(t).Interface(), nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, t.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(v).Convert(t).Interface(), nil
	case reflect.UnsafePointer:
		if value == "" || value == "0" || value == "null" || value == "NULL" {
			return unsafe.Pointer(nil), nil
		}
		return nil, fmt.Errorf("only null pointers can be given as text")
	}
	return nil, fmt.Errorf("unsupported parameter type %s", t)
}

// InvokeDynamic calls name with the signature sig. args are converted to
// the parameter types first; the result is nil for void functions.
func (c *Context) InvokeDynamic(name string, sig *Signature, args ...any) (any, error) {
	addr := c.GetSymbol(name)
	if addr == nil {
		return nil, errors.SymbolNotFound(name)
	}
	if len(args) != len(sig.Params) {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Symbol(name).
			Detail("%d arguments given, signature takes %d", len(args), len(sig.Params)).
			Build()
	}

	typed := make([]any, len(args))
	for i, a := range args {
		if a == nil {
			typed[i] = reflect.Zero(sig.Params[i]).Interface()
			continue
		}
		v := reflect.ValueOf(a)
		textual := v.Kind() == reflect.String
		if textual != (sig.Params[i].Kind() == reflect.String) || !v.Type().ConvertibleTo(sig.Params[i]) {
			return nil, errors.TypeMismatch(errors.PhaseInvoke, name, v.Type().String(),
				fmt.Sprintf("argument %s needs %s", sig.ParamNames[i], TypeName(sig.Params[i])))
		}
		typed[i] = v.Convert(sig.Params[i]).Interface()
	}

	rt := sig.Result
	if rt == nil {
		rt = voidType
	}
	res, err := c.call(name, addr, rt, typed)
	if err != nil || !res.IsValid() {
		return nil, err
	}
	return res.Interface(), nil
}
