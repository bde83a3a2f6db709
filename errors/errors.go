package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCreate    Phase = "create"    // instance creation
	PhaseConfigure Phase = "configure" // paths, macros, options
	PhaseSource    Phase = "source"    // file and string ingestion
	PhaseCompile   Phase = "compile"   // relocation into memory
	PhaseOutput    Phase = "output"    // artifact written to disk
	PhaseRegister  Phase = "register"  // host symbol registration
	PhaseResolve   Phase = "resolve"   // symbol lookup
	PhaseInvoke    Phase = "invoke"    // calls across the boundary
	PhaseParse     Phase = "parse"     // signature text parsing
)

// Kind categorizes the error
type Kind string

const (
	KindInstanceCreation Kind = "instance_creation"
	KindSourceFailure    Kind = "source_failure"
	KindCompileFailure   Kind = "compile_failure"
	KindOutputFailure    Kind = "output_failure"
	KindNotFound         Kind = "not_found"
	KindTypeMismatch     Kind = "type_mismatch"
	KindUnsupported      Kind = "unsupported"
	KindUnavailable      Kind = "unavailable"
	KindNotInitialized   Kind = "not_initialized"
	KindInvalidState     Kind = "invalid_state"
	KindInvalidInput     Kind = "invalid_input"
	KindRegistration     Kind = "registration"
	KindPanic            Kind = "panic"
	KindAllocation       Kind = "allocation"
)

// ErrSymbolNotFound matches every error produced by SymbolNotFound.
var ErrSymbolNotFound = &Error{Phase: PhaseResolve, Kind: KindNotFound}

// Error is the structured error type used throughout the library
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	Symbol      string
	GoType      string
	CType       string
	Detail      string
	Diagnostics []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(" at ")
		b.WriteString(e.Symbol)
	}

	if e.GoType != "" || e.CType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.CType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", C type ")
			b.WriteString(e.CType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("C type ")
			b.WriteString(e.CType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.CType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if len(e.Diagnostics) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Diagnostics, "; "))
		b.WriteByte(']')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Symbol sets the symbol name the error refers to
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// CType sets the C type spelling
func (b *Builder) CType(t string) *Builder {
	b.err.CType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Diagnostics attaches compiler messages collected during the operation
func (b *Builder) Diagnostics(msgs []string) *Builder {
	if len(msgs) > 0 {
		b.err.Diagnostics = append([]string(nil), msgs...)
	}
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// SymbolNotFound creates the error reported when a name has no binding
func SymbolNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindNotFound,
		Symbol: name,
		Detail: fmt.Sprintf("unable to find symbol with given name: %s", name),
	}
}

// InstanceCreation creates the error reported when the engine cannot allocate an instance
func InstanceCreation(engine string, cause error) *Error {
	return &Error{
		Phase:  PhaseCreate,
		Kind:   KindInstanceCreation,
		Detail: fmt.Sprintf("%s: unable to create compiler instance", engine),
		Cause:  cause,
	}
}

// SourceFailed creates a source ingestion error
func SourceFailed(what string, diagnostics []string) *Error {
	return New(PhaseSource, KindSourceFailure).
		Detail("add %s", what).
		Diagnostics(diagnostics).
		Build()
}

// CompileFailed creates a relocation error
func CompileFailed(detail string, diagnostics []string) *Error {
	return New(PhaseCompile, KindCompileFailure).
		Detail("%s", detail).
		Diagnostics(diagnostics).
		Build()
}

// OutputFailed creates an artifact output error
func OutputFailed(path string, diagnostics []string) *Error {
	return New(PhaseOutput, KindOutputFailure).
		Detail("write %s", path).
		Diagnostics(diagnostics).
		Build()
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, symbol, goType, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Symbol: symbol,
		GoType: goType,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Unavailable creates the error returned when a capability is not compiled in
func Unavailable(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnavailable,
		Detail: what,
	}
}

// NotInitialized creates a not-initialized error for an empty context
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidState creates an error for an operation issued in the wrong lifecycle state
func InvalidState(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Symbol: name,
		Detail: fmt.Sprintf("register %s", name),
		Cause:  cause,
	}
}

// Panic creates the error surfaced when a host function panicked during a native call
func Panic(symbol string, recovered any) *Error {
	err := &Error{
		Phase:  PhaseInvoke,
		Kind:   KindPanic,
		Symbol: symbol,
		Value:  recovered,
		Detail: fmt.Sprintf("host function panicked: %v", recovered),
	}
	if cause, ok := recovered.(error); ok {
		err.Cause = cause
	}
	return err
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size int, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// MissingSymbolsError is attached to a compile failure when the compiled image
// imports names that neither the sources nor the host provided.
type MissingSymbolsError struct {
	Names []string
}

// NewMissingSymbolsError extracts unresolved names from compiler diagnostics.
// Returns nil when no diagnostic reports an undefined symbol.
func NewMissingSymbolsError(diagnostics []string) *MissingSymbolsError {
	var names []string
	seen := make(map[string]bool)
	for _, msg := range diagnostics {
		name, ok := parseUndefinedSymbol(msg)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	return &MissingSymbolsError{Names: names}
}

// parseUndefinedSymbol recognizes "undefined symbol 'name'" as printed by tcc.
func parseUndefinedSymbol(msg string) (string, bool) {
	const marker = "undefined symbol '"
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	rest := msg[idx+len(marker):]
	name, _, found := strings.Cut(rest, "'")
	if !found || name == "" {
		return "", false
	}
	return name, true
}

func (e *MissingSymbolsError) Error() string {
	if len(e.Names) == 0 {
		return "[compile] not_found: no symbols specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d host symbol(s):", len(e.Names)))
	for _, name := range e.Names {
		b.WriteString("\n  - ")
		b.WriteString(name)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingSymbolsError) Is(target error) bool {
	_, ok := target.(*MissingSymbolsError)
	return ok
}
