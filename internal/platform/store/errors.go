package store

import (
	"errors"
	"fmt"
)

// NotFoundError is returned by Load when the named source does not exist.
type NotFoundError struct {
	Source string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source %q not found", e.Source)
}

// FormatError is returned by Load when the source content is not a valid
// collection. Line and Column are 1-based and point at the decode failure.
type FormatError struct {
	Source string
	Offset int64
	Line   int
	Column int
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("source %q: malformed JSON at line %d, column %d (offset %d): %v",
		e.Source, e.Line, e.Column, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// WriteError is returned by Save and Append when content could not be
// persisted.
type WriteError struct {
	Source string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write source %q: %v", e.Source, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsFormat reports whether err is, or wraps, a *FormatError.
func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsWrite reports whether err is, or wraps, a *WriteError.
func IsWrite(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
