// Package errors provides the typed, chainable error this engine surfaces
// at its boundaries, trimmed from the teacher's PostgreSQL-SQLSTATE scheme
// down to the small fixed set of kinds this storage core can produce.
package errors

import "fmt"

// Kind is a closed set of error kinds this engine raises. Each corresponds
// 1:1 to a row in the error handling table.
type Kind string

const (
	// NoRoom: a page lacks space for an Add or a growing Put.
	NoRoom Kind = "no_room"
	// RowTooLarge: a single marshalled row exceeds a fresh page's capacity.
	RowTooLarge Kind = "row_too_large"
	// MissingColumn: an insert row omits a column the schema declares.
	MissingColumn Kind = "missing_column"
	// UnknownColumn: a project or update names a column outside the schema.
	UnknownColumn Kind = "unknown_column"
	// UnsupportedType: a schema declares a type other than INT or TEXT.
	UnsupportedType Kind = "unsupported_type"
	// IOError: the backing block store failed.
	IOError Kind = "io_error"
	// NotFound: an open was attempted on a relation that does not exist.
	NotFound Kind = "not_found"
)

// Error is this engine's error type: a kind plus a message, with optional
// detail chained on the way the teacher's PostgreSQL-style Error does.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Message, e.Detail, e.Kind)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

// New creates a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches additional detail to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithDetailf attaches formatted additional detail to the error.
func (e *Error) WithDetailf(format string, args ...interface{}) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// IsNoRoom reports whether err is a NoRoom error.
func IsNoRoom(err error) bool { return Is(err, NoRoom) }

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return Is(err, NotFound) }
