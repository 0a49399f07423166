// Package fault defines the error taxonomy shared by every component.
// Presentation layers map a Kind to an exit code or HTTP status at the
// boundary; the core only attaches kinds.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary handling.
type Kind int

const (
	// KindUnknown is the zero value for errors without an attached kind.
	KindUnknown Kind = iota
	// KindNotFound marks a referenced repo/build/environment/case name
	// absent from its registry.
	KindNotFound
	// KindValidation marks illegal input caught before any side effect.
	KindValidation
	// KindExecution marks a non-zero exit from a spawned command.
	KindExecution
	// KindResource marks admission refusal or a missing artifact.
	KindResource
)

// String returns the kind's stable machine-readable label.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindExecution:
		return "execution"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error carries a kind alongside a message and optional cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// Validation builds a KindValidation error.
func Validation(format string, args ...any) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// Execution builds a KindExecution error.
func Execution(format string, args ...any) error {
	return &Error{kind: KindExecution, msg: fmt.Sprintf(format, args...)}
}

// Resource builds a KindResource error.
func Resource(format string, args ...any) error {
	return &Error{kind: KindResource, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf extracts the kind from err, or KindUnknown when none is attached.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return KindUnknown
}

// IsNotFound reports whether err carries KindNotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsValidation reports whether err carries KindValidation.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
