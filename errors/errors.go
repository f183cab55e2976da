package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad      Phase = "load"      // module loading
	PhaseResolve   Phase = "resolve"   // name resolution through probe paths
	PhaseInvoke    Phase = "invoke"    // cross-boundary invocation
	PhaseMarshal   Phase = "marshal"   // copying values across the boundary
	PhaseLifecycle Phase = "lifecycle" // create, wrap, dispose
	PhaseConfig    Phase = "config"    // setup validation
	PhaseRuntime   Phase = "runtime"   // engine operations
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindDisposed        Kind = "disposed"
	KindFileNotFound    Kind = "file_not_found"
	KindMarshal         Kind = "marshal"
	KindRemote          Kind = "remote"
	KindCanceled        Kind = "canceled"
	KindNotFound        Kind = "not_found"
	KindMissingImport   Kind = "missing_import"
	KindInvalidData     Kind = "invalid_data"
	KindInstantiation   Kind = "instantiation"
	KindRegistration    Kind = "registration"
)

// Sentinels match any *Error of the same kind regardless of phase.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrDisposed        = &Error{Kind: KindDisposed}
	ErrFileNotFound    = &Error{Kind: KindFileNotFound}
	ErrMarshal         = &Error{Kind: KindMarshal}
	ErrRemote          = &Error{Kind: KindRemote}
	ErrCanceled        = &Error{Kind: KindCanceled}
	ErrNotFound        = &Error{Kind: KindNotFound}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Path   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
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

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
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

// Path sets the file path or key the error refers to
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
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

// InvalidArgument reports a missing or malformed argument, raised before
// anything crosses a boundary.
func InvalidArgument(phase Phase, name, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Path:   name,
		Detail: detail,
	}
}

// Disposed reports use of a context, wrapper or proxy after Close.
func Disposed(what string) *Error {
	return &Error{
		Phase:  PhaseLifecycle,
		Kind:   KindDisposed,
		Detail: what + " is disposed",
	}
}

// FileNotFound creates a missing file error
func FileNotFound(phase Phase, path string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindFileNotFound,
		Path:  path,
		Cause: cause,
	}
}

// Marshal creates a boundary marshaling error
func Marshal(goType, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindMarshal,
		GoType: goType,
		Detail: detail,
		Cause:  cause,
	}
}

// Canceled reports an asynchronous invocation that observed cancellation.
func Canceled(cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindCanceled,
		Detail: "operation canceled",
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Registration creates a registration error
func Registration(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: "register " + what,
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: fmt.Sprintf("instantiate module %q", name),
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(path, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
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

// MissingImportsError is returned when a module cannot be instantiated
// because no resolution hook produced one of its imported modules.
type MissingImportsError struct {
	Module  string
	Imports []string
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[resolve] missing_import: no imports specified"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "module %q: %d unresolved import module(s):", e.Module, len(e.Imports))
	for _, imp := range e.Imports {
		b.WriteString("\n  - ")
		b.WriteString(imp)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	if _, ok := target.(*MissingImportsError); ok {
		return true
	}
	t, ok := target.(*Error)
	return ok && t.Kind == KindMissingImport && (t.Phase == "" || t.Phase == PhaseResolve)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is errors.As from the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }
