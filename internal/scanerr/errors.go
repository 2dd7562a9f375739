// Package scanerr defines the error kinds shared by the document scanning
// core. Every failure surfaced by geometry, rectify, filter and codec carries
// exactly one Kind so callers can map it to a transport status without string
// matching.
package scanerr

import (
	"errors"
	"fmt"
)

// Kind classifies a scanning failure.
type Kind int

const (
	// Unknown is returned by KindOf for errors that did not originate here.
	Unknown Kind = iota
	InvalidInput
	DegenerateGeometry
	InvalidTargetFrame
	CorruptImage
	UnsupportedFormat
	OutOfBounds
	UnsupportedFilter
)

var kindNames = map[Kind]string{
	Unknown:            "unknown",
	InvalidInput:       "invalid_input",
	DegenerateGeometry: "degenerate_geometry",
	InvalidTargetFrame: "invalid_target_frame",
	CorruptImage:       "corrupt_image",
	UnsupportedFormat:  "unsupported_format",
	OutOfBounds:        "out_of_bounds",
	UnsupportedFilter:  "unsupported_filter",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error type of the scanning core.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
