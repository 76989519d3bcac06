// Package bifftest builds BIFF8 record streams for tests.
package bifftest

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// Record opcodes used by the builders. They mirror the biff package.
const (
	opBOF         = 0x809
	opEOF         = 0x0a
	opBoundSheet  = 0x85
	opSST         = 0xfc
	opContinue    = 0x3c
	opNumber      = 0x203
	opRK          = 0x27e
	opMulRK       = 0xbd
	opMulBlank    = 0xbe
	opLabel       = 0x204
	opLabelSST    = 0xfd
	opBlank       = 0x201
	opBoolErr     = 0x205
	opFormula     = 0x6
	opString      = 0x207
	opShrFmla     = 0x4bc
	opFormat      = 0x41e
	opXF          = 0xe0
	opDateMode    = 0x22
	opSupBook     = 0x1ae
	opExternSheet = 0x17
	opName        = 0x18
	opExternName  = 0x23
)

// Substream types for BOF.
const (
	Globals   = 0x0005
	Worksheet = 0x0010
	Chart     = 0x0020
)

// U16 encodes v little-endian.
func U16(v int) []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(v))
}

// U32 encodes v little-endian.
func U32(v int) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

// F64 encodes v as an IEEE 754 double.
func F64(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

// Record frames the concatenated parts with an opcode and length header.
func Record(code int, parts ...[]byte) []byte {
	body := bytes.Join(parts, nil)
	out := append(U16(code), U16(len(body))...)
	return append(out, body...)
}

// Stream concatenates records.
func Stream(records ...[]byte) []byte {
	return bytes.Join(records, nil)
}

func wide(s string) bool {
	for _, r := range s {
		if r > 0xff {
			return true
		}
	}
	return false
}

// Chars encodes s as an option byte plus characters, compressed when every
// rune fits in Latin-1.
func Chars(s string) []byte {
	if !wide(s) {
		out := []byte{0x00}
		for _, r := range s {
			out = append(out, byte(r))
		}
		return out
	}
	out := []byte{0x01}
	for _, u := range utf16.Encode([]rune(s)) {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

func charCount(s string) int {
	if !wide(s) {
		return len([]rune(s))
	}
	return len(utf16.Encode([]rune(s)))
}

// Unicode encodes a BIFF8 string with a lenlen-byte character count.
func Unicode(s string, lenlen int) []byte {
	var out []byte
	if lenlen == 1 {
		out = []byte{byte(charCount(s))}
	} else {
		out = U16(charCount(s))
	}
	return append(out, Chars(s)...)
}

// BOF starts a BIFF8 substream.
func BOF(streamType int) []byte {
	return Record(opBOF, U16(0x0600), U16(streamType), U16(0x0DBB), U16(0x07CC), U32(0), U32(0x0206))
}

// EOF ends a substream.
func EOF() []byte {
	return Record(opEOF)
}

// BoundSheet announces a worksheet.
func BoundSheet(name string) []byte {
	return Record(opBoundSheet, U32(0), []byte{0, 0}, Unicode(name, 1))
}

// BoundSheetOfType announces a sheet of the given BOUNDSHEET type.
func BoundSheetOfType(name string, sheetType int) []byte {
	return Record(opBoundSheet, U32(0), []byte{0, byte(sheetType)}, Unicode(name, 1))
}

// SST builds a shared string table in a single record.
func SST(strings ...string) []byte {
	parts := [][]byte{U32(len(strings)), U32(len(strings))}
	for _, s := range strings {
		parts = append(parts, Unicode(s, 2))
	}
	return Record(opSST, parts...)
}

// SSTSplit builds an SST whose only string is split after n characters
// into a CONTINUE record, which restates the option byte.
func SSTSplit(s string, n int) []byte {
	runes := []rune(s)
	head := Chars(string(runes[:n]))
	tail := Chars(string(runes[n:]))
	sst := Record(opSST, U32(1), U32(1), U16(len(runes)), head)
	return Stream(sst, Record(opContinue, tail))
}

// Format defines a custom number format.
func Format(code int, pattern string) []byte {
	return Record(opFormat, U16(code), Unicode(pattern, 2))
}

// XF defines a cell XF using the given format index.
func XF(formatCode int) []byte {
	return Record(opXF, U16(0), U16(formatCode), make([]byte, 16))
}

// DateMode selects the 1904 date system when mode is 1.
func DateMode(mode int) []byte {
	return Record(opDateMode, U16(mode))
}

// SupBookSelf is the SUPBOOK of the workbook itself.
func SupBookSelf(sheets int) []byte {
	return Record(opSupBook, U16(sheets), U16(0x0401))
}

// SupBookAddIn is the SUPBOOK whose names are add-in functions.
func SupBookAddIn() []byte {
	return Record(opSupBook, U16(1), U16(0x3A01))
}

// ExternName defines a name of the last SUPBOOK.
func ExternName(name string) []byte {
	return Record(opExternName, U16(0), U32(0), Unicode(name, 1))
}

// ExternSheet lists (supbook, first, last) triples.
func ExternSheet(refs ...[3]int) []byte {
	parts := [][]byte{U16(len(refs))}
	for _, r := range refs {
		parts = append(parts, U16(r[0]), U16(r[1]), U16(r[2]))
	}
	return Record(opExternSheet, parts...)
}

// Name defines a global name.
func Name(name string) []byte {
	return Record(opName, U16(0), []byte{0, byte(len(name))}, U16(0), U16(0), U16(0), []byte{0, 0, 0, 0}, Chars(name))
}

// Number is a NUMBER cell.
func Number(row, col, xf int, v float64) []byte {
	return Record(opNumber, U16(row), U16(col), U16(xf), F64(v))
}

// RK is an RK cell holding an already encoded value.
func RK(row, col, xf int, rk uint32) []byte {
	return Record(opRK, U16(row), U16(col), U16(xf), U32(int(rk)))
}

// MulRK holds consecutive RK values starting at col, all with xf.
func MulRK(row, col, xf int, rks ...uint32) []byte {
	parts := [][]byte{U16(row), U16(col)}
	for _, rk := range rks {
		parts = append(parts, U16(xf), U32(int(rk)))
	}
	parts = append(parts, U16(col+len(rks)-1))
	return Record(opMulRK, parts...)
}

// MulBlank covers cols first..last of a row.
func MulBlank(row, first, last, xf int) []byte {
	parts := [][]byte{U16(row), U16(first)}
	for c := first; c <= last; c++ {
		parts = append(parts, U16(xf))
	}
	parts = append(parts, U16(last))
	return Record(opMulBlank, parts...)
}

// Label is an inline string cell.
func Label(row, col, xf int, s string) []byte {
	return Record(opLabel, U16(row), U16(col), U16(xf), Unicode(s, 2))
}

// LabelSST references the shared string table.
func LabelSST(row, col, xf, idx int) []byte {
	return Record(opLabelSST, U16(row), U16(col), U16(xf), U32(idx))
}

// Blank is an empty formatted cell.
func Blank(row, col, xf int) []byte {
	return Record(opBlank, U16(row), U16(col), U16(xf))
}

// BoolErr is a boolean or error cell.
func BoolErr(row, col, xf int, v byte, isErr bool) []byte {
	flag := byte(0)
	if isErr {
		flag = 1
	}
	return Record(opBoolErr, U16(row), U16(col), U16(xf), []byte{v, flag})
}

// NumberResult is the cached result of a numeric formula.
func NumberResult(v float64) []byte { return F64(v) }

// StringResult flags a string result stored in the following STRING record.
func StringResult() []byte { return []byte{0, 0, 0, 0, 0, 0, 0xff, 0xff} }

// BoolResult is a cached boolean result.
func BoolResult(b bool) []byte {
	v := byte(0)
	if b {
		v = 1
	}
	return []byte{1, 0, v, 0, 0, 0, 0xff, 0xff}
}

// ErrorResult is a cached error result.
func ErrorResult(code byte) []byte { return []byte{2, 0, code, 0, 0, 0, 0xff, 0xff} }

// EmptyResult is the cached result of a formula evaluating to an empty string.
func EmptyResult() []byte { return []byte{3, 0, 0, 0, 0, 0, 0xff, 0xff} }

// Formula is a FORMULA cell with a cached result and RPN tokens.
func Formula(row, col, xf int, result []byte, tokens []byte) []byte {
	return Record(opFormula, U16(row), U16(col), U16(xf), result, U16(0), U32(0), U16(len(tokens)), tokens)
}

// SharedFormula is the SHRFMLA record for the range starting at (row, col).
func SharedFormula(row, lastRow, col, lastCol int, tokens []byte) []byte {
	return Record(opShrFmla, U16(row), U16(lastRow), []byte{byte(col), byte(lastCol), 0, byte(lastRow - row + 1)}, U16(len(tokens)), tokens)
}

// String is the string result of the preceding formula.
func String(s string) []byte {
	return Record(opString, Unicode(s, 2))
}

// Raw is a record with an arbitrary opcode.
func Raw(code int, body []byte) []byte {
	return Record(code, body)
}
