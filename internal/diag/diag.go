// Package diag defines the error kinds reported by the scan pipeline.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	IoError Kind = iota + 1
	MalformedAnnotation
	DuplicateAnnotation
	UnreachableInitializer
	AmbiguousPath
	EmissionError
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "io error"
	case MalformedAnnotation:
		return "malformed annotation"
	case DuplicateAnnotation:
		return "duplicate annotation"
	case UnreachableInitializer:
		return "unreachable initializer"
	case AmbiguousPath:
		return "ambiguous path"
	case EmissionError:
		return "emission error"
	default:
		return "unknown error"
	}
}

// Error is a located pipeline failure. File and Line point at the offending
// construct; Name is the function involved and Module the module involved,
// either may be empty.
type Error struct {
	Kind   Kind
	File   string
	Line   int
	Name   string
	Module string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an Error of the given kind located at file:line.
func Errorf(kind Kind, file string, line int, format string, args ...any) *Error {
	return &Error{Kind: kind, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around err.
func Wrap(kind Kind, file string, err error) *Error {
	return &Error{Kind: kind, File: file, Err: err}
}

// Is reports whether err, or any error it wraps, is a *Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
