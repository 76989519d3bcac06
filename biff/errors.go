package biff

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedRecord is returned when a record header or body ends early.
	ErrTruncatedRecord = errors.New("biff: truncated record")
	// ErrNotWorkbook is returned when the stream does not start with a BOF record.
	ErrNotWorkbook = errors.New("biff: stream does not start with a BOF record")
	// ErrNoWorkbookStream is returned when a compound file has no Workbook or Book stream.
	ErrNoWorkbookStream = errors.New("biff: no Workbook or Book stream in compound file")
	// ErrEncrypted is returned for workbooks protected by a FILEPASS record.
	ErrEncrypted = errors.New("biff: workbook is encrypted")
	// ErrUnsupportedFormat is returned for inputs that are not BIFF workbooks.
	ErrUnsupportedFormat = errors.New("biff: unsupported file format")
)

// RecordError reports a failure decoding the record at Offset.
type RecordError struct {
	Offset int64
	Code   uint16
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("biff: record %s at offset %d: %v", RecordName(e.Code), e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// CompDocError represents an error in compound document handling.
type CompDocError struct {
	Message string
	Err     error
}

func (e *CompDocError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CompDocError) Unwrap() error {
	return e.Err
}
