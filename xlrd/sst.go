package xlrd

import "fmt"

// SharedStrings is the workbook-wide string table referenced by LABELSST
// cells. It is built once and never modified.
type SharedStrings struct {
	strings []string
}

// NewSharedStrings wraps the table decoded from the SST record.
func NewSharedStrings(strings []string) *SharedStrings {
	return &SharedStrings{strings: strings}
}

// Len returns the number of strings.
func (s *SharedStrings) Len() int {
	if s == nil {
		return 0
	}
	return len(s.strings)
}

// Resolve returns the string at index i. A nil table means the SST record
// has not been seen.
func (s *SharedStrings) Resolve(i int) (string, error) {
	if s == nil {
		return "", fmt.Errorf("shared string %d before the string table: %w", i, ErrUnresolvedReference)
	}
	if i < 0 || i >= len(s.strings) {
		return "", fmt.Errorf("shared string %d of %d: %w", i, len(s.strings), ErrOutOfRange)
	}
	return s.strings[i], nil
}
