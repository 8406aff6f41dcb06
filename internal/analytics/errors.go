package analytics

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to callers of the engine
type ErrorKind string

const (
	// KindBadInput is a caller error: malformed period, unknown scope, invalid filter
	KindBadInput ErrorKind = "bad_input"
	// KindNoData means the request was valid but nothing matched it
	KindNoData ErrorKind = "no_data"
	// KindConflict means stored data violates the one-target-per-key rule
	KindConflict ErrorKind = "conflict"
)

// Error is the single error type returned by the engine and the services built on it
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BadInput builds a KindBadInput error
func BadInput(err error, format string, args ...any) *Error {
	return &Error{Kind: KindBadInput, Message: fmt.Sprintf(format, args...), Err: err}
}

// NoData builds a KindNoData error
func NoData(format string, args ...any) *Error {
	return &Error{Kind: KindNoData, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of an engine error anywhere in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries an engine error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
