// Package errs holds the error taxonomy shared by the attribute store and the
// pixel pipeline.
//
// Fatal violations of the encoding are ErrFormat. Misuse of an API is
// ErrPrecondition. Semantic inconsistencies in otherwise readable data are
// not errors at all: they are logged and processing continues.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat marks data that violates the encoding rules (truncated
	// streams, bad delimiters, corrupt segmented LUTs, mismatched frames).
	ErrFormat = errors.New("format violation")
	// ErrPrecondition marks a caller contract violation (lookups outside a
	// table, re-parenting an item, adding a non-LO private creator).
	ErrPrecondition = errors.New("precondition violation")
)

// Error carries the kind, the operation that failed and the cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Format builds an ErrFormat error; %w in format wraps the cause.
func Format(op string, format string, args ...any) error {
	return &Error{Kind: ErrFormat, Op: op, Err: fmt.Errorf(format, args...)}
}

// Precondition builds an ErrPrecondition error.
func Precondition(op string, format string, args ...any) error {
	return &Error{Kind: ErrPrecondition, Op: op, Err: fmt.Errorf(format, args...)}
}

// Panic raises a precondition violation that must not be recovered from by
// ordinary callers.
func Panic(op string, format string, args ...any) {
	panic(Precondition(op, format, args...))
}

// IsFormat reports whether err is a format violation.
func IsFormat(err error) bool { return errors.Is(err, ErrFormat) }

// IsPrecondition reports whether err is a precondition violation.
func IsPrecondition(err error) bool { return errors.Is(err, ErrPrecondition) }
