package tccruntime

// OutputKind selects what a compiler instance produces.
// Values match the libtcc TCC_OUTPUT_* constants.
type OutputKind int32

const (
	OutputMemory        OutputKind = 1 // relocated image in host memory
	OutputExecutable    OutputKind = 2
	OutputSharedLibrary OutputKind = 3
	OutputObject        OutputKind = 4
	OutputPreprocess    OutputKind = 5 // preprocessed source only
)

func (k OutputKind) String() string {
	switch k {
	case OutputMemory:
		return "memory"
	case OutputExecutable:
		return "executable"
	case OutputSharedLibrary:
		return "shared-library"
	case OutputObject:
		return "object"
	case OutputPreprocess:
		return "preprocess"
	default:
		return "unknown"
	}
}

// IsFile reports whether the kind is persisted to a file.
func (k OutputKind) IsFile() bool {
	switch k {
	case OutputExecutable, OutputSharedLibrary, OutputObject, OutputPreprocess:
		return true
	}
	return false
}

// ParseOutputKind maps a name accepted by String back to its kind.
func ParseOutputKind(s string) (OutputKind, bool) {
	switch s {
	case "memory":
		return OutputMemory, true
	case "exe", "executable":
		return OutputExecutable, true
	case "dll", "so", "shared", "shared-library":
		return OutputSharedLibrary, true
	case "obj", "object":
		return OutputObject, true
	case "preprocess":
		return OutputPreprocess, true
	}
	return 0, false
}
