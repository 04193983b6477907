// Package sigerr defines the error kinds raised across the signature
// matching engine, so callers can branch on failure class with errors.As
// instead of string matching.
package sigerr

import "fmt"

// Kind classifies why an operation failed.
type Kind int

const (
	// PatternCompile means a Pattern's regex source failed to compile.
	PatternCompile Kind = iota
	// PriorityCycle means the Catalog's priority graph contains a cycle.
	PriorityCycle
	// UnknownPriorityTarget means a priority reference names an unknown Format.
	UnknownPriorityTarget
	// CatalogInvalid covers catalog-shape violations spec.md names as
	// invariants but does not assign a dedicated kind to, e.g. duplicate
	// Format identifiers.
	CatalogInvalid
	// IO means a Sampler read or seek failed.
	IO
	// UnknownSize means a Sampler was given a source of unknown size.
	UnknownSize
	// BadAnchor means a Pattern carries an anchor outside {BOF, EOF, Variable}.
	BadAnchor
	// Cancelled means a batch was interrupted between objects.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case PatternCompile:
		return "PatternCompile"
	case PriorityCycle:
		return "PriorityCycle"
	case UnknownPriorityTarget:
		return "UnknownPriorityTarget"
	case CatalogInvalid:
		return "CatalogInvalid"
	case IO:
		return "IO"
	case UnknownSize:
		return "UnknownSize"
	case BadAnchor:
		return "BadAnchor"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the common error shape raised by the engine's packages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an Error with a formatted message and no wrapped cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around a lower-level cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is, wraps, or (via errors.Join, as
// catalog.Compile batches its load failures) joins a *Error of the
// given Kind. A plain Unwrap() error chain walk misses joined errors,
// since errors.Join's result only implements Unwrap() []error, so this
// recurses into both shapes.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*Error); ok && se.Kind == kind {
		return true
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		if Is(u.Unwrap(), kind) {
			return true
		}
	}
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		for _, sub := range u.Unwrap() {
			if Is(sub, kind) {
				return true
			}
		}
	}
	return false
}
