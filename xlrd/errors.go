package xlrd

import (
	"errors"
	"fmt"
)

// XLRDError represents an error that occurred while reading an Excel file.
type XLRDError struct {
	Message string
}

func (e *XLRDError) Error() string {
	return e.Message
}

// NewXLRDError creates a new XLRDError with the given message.
func NewXLRDError(format string, args ...interface{}) *XLRDError {
	return &XLRDError{Message: fmt.Sprintf(format, args...)}
}

// Recovered conditions. They are logged and never returned by Decode.
var (
	// ErrOutOfRange is reported for a shared string index past the table.
	ErrOutOfRange = errors.New("xlrd: shared string index out of range")
	// ErrUnresolvedReference is reported when a shared string table or a
	// sheet referenced by a formula is missing.
	ErrUnresolvedReference = errors.New("xlrd: unresolved reference")
	// ErrUnexpectedRecord is reported for a record with no transition in
	// the current state.
	ErrUnexpectedRecord = errors.New("xlrd: unexpected record")
)

// SourceError wraps a failure to obtain the next record. It aborts Decode.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return "xlrd: reading record: " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
