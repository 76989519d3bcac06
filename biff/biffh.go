package biff

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// BIFF version numbers as reported by BOF records.
const (
	BIFF_FIRST_UNICODE = 80
)

var biffTextFromNum = map[int]string{
	0:  "(not BIFF)",
	20: "2.0",
	21: "2.1",
	30: "3",
	40: "4S",
	45: "4W",
	50: "5",
	70: "7",
	80: "8",
	85: "8X",
}

// BiffTextFromNum returns a text representation of a BIFF version number.
func BiffTextFromNum(num int) string {
	if text, ok := biffTextFromNum[num]; ok {
		return text
	}
	return fmt.Sprintf("Unknown(%d)", num)
}

// ErrorTextFromCode maps BOOLERR and formula error codes to their display text.
var ErrorTextFromCode = map[byte]string{
	0x00: "#NULL!",  // Intersection of two cell ranges is empty
	0x07: "#DIV/0!", // Division by zero
	0x0F: "#VALUE!", // Wrong type of operand
	0x17: "#REF!",   // Illegal or deleted cell reference
	0x1D: "#NAME?",  // Wrong function or range name
	0x24: "#NUM!",   // Value range overflow
	0x2A: "#N/A",    // Argument or function not available
}

// ErrorText returns the display text of an error code, or a generic marker
// for codes outside the table.
func ErrorText(code byte) string {
	if text, ok := ErrorTextFromCode[code]; ok {
		return text
	}
	return fmt.Sprintf("#ERR%d!", code)
}

// BOF substream types.
const (
	XL_WORKBOOK_GLOBALS    = 0x5
	XL_WORKBOOK_GLOBALS_4W = 0x100
	XL_WORKSHEET           = 0x10
	XL_CHART               = 0x20
	XL_MACROSHEET          = 0x40
)

// BOUNDSHEET sheet types.
const (
	XL_BOUNDSHEET_WORKSHEET = 0x00
	XL_BOUNDSHEET_MACRO     = 0x01
	XL_BOUNDSHEET_CHART     = 0x02
	XL_BOUNDSHEET_VB_MODULE = 0x06
)

// Record opcodes.
const (
	XL_ARRAY       = 0x0221
	XL_BLANK       = 0x0201
	XL_BOF         = 0x809
	XL_BOOLERR     = 0x205
	XL_BOUNDSHEET  = 0x85
	XL_CODEPAGE    = 0x42
	XL_CONTINUE    = 0x3c
	XL_DATEMODE    = 0x22
	XL_DIMENSION   = 0x200
	XL_EOF         = 0x0a
	XL_EXTERNNAME  = 0x23
	XL_EXTERNSHEET = 0x17
	XL_EXTSST      = 0xff
	XL_FILEPASS    = 0x2f
	XL_FONT        = 0x31
	XL_FORMAT      = 0x41e
	XL_FORMULA     = 0x6
	XL_INDEX       = 0x20b
	XL_LABEL       = 0x204
	XL_LABELSST    = 0xfd
	XL_MERGEDCELLS = 0xE5
	XL_MULRK       = 0xbd
	XL_MULBLANK    = 0xbe
	XL_NAME        = 0x18
	XL_NOTE        = 0x1c
	XL_NUMBER      = 0x203
	XL_RK          = 0x27e
	XL_ROW         = 0x208
	XL_RSTRING     = 0xd6
	XL_SHRFMLA     = 0x04bc
	XL_SST         = 0xfc
	XL_STRING      = 0x207
	XL_STYLE       = 0x293
	XL_SUPBOOK     = 0x1AE // aka EXTERNALBOOK in OOo docs
	XL_TABLEOP     = 0x236
	XL_WINDOW2     = 0x023E
	XL_WRITEACCESS = 0x5C
	XL_XF          = 0xe0
)

var recordNames = map[uint16]string{
	XL_ARRAY:       "ARRAY",
	XL_BLANK:       "BLANK",
	XL_BOF:         "BOF",
	XL_BOOLERR:     "BOOLERR",
	XL_BOUNDSHEET:  "BOUNDSHEET",
	XL_CODEPAGE:    "CODEPAGE",
	XL_CONTINUE:    "CONTINUE",
	XL_DATEMODE:    "DATEMODE",
	XL_DIMENSION:   "DIMENSION",
	XL_EOF:         "EOF",
	XL_EXTERNNAME:  "EXTERNNAME",
	XL_EXTERNSHEET: "EXTERNSHEET",
	XL_EXTSST:      "EXTSST",
	XL_FILEPASS:    "FILEPASS",
	XL_FONT:        "FONT",
	XL_FORMAT:      "FORMAT",
	XL_FORMULA:     "FORMULA",
	XL_INDEX:       "INDEX",
	XL_LABEL:       "LABEL",
	XL_LABELSST:    "LABELSST",
	XL_MERGEDCELLS: "MERGEDCELLS",
	XL_MULRK:       "MULRK",
	XL_MULBLANK:    "MULBLANK",
	XL_NAME:        "NAME",
	XL_NOTE:        "NOTE",
	XL_NUMBER:      "NUMBER",
	XL_RK:          "RK",
	XL_ROW:         "ROW",
	XL_RSTRING:     "RSTRING",
	XL_SHRFMLA:     "SHRFMLA",
	XL_SST:         "SST",
	XL_STRING:      "STRING",
	XL_STYLE:       "STYLE",
	XL_SUPBOOK:     "SUPBOOK",
	XL_TABLEOP:     "TABLEOP",
	XL_WINDOW2:     "WINDOW2",
	XL_WRITEACCESS: "WRITEACCESS",
	XL_XF:          "XF",
}

// RecordName returns the mnemonic of a record opcode, or its hex value when
// the opcode is not one this package knows about.
func RecordName(code uint16) string {
	if name, ok := recordNames[code]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", code)
}

var cellOpcodeSet = map[uint16]bool{
	XL_BLANK:    true,
	XL_BOOLERR:  true,
	XL_FORMULA:  true,
	XL_LABEL:    true,
	XL_LABELSST: true,
	XL_MULBLANK: true,
	XL_MULRK:    true,
	XL_NUMBER:   true,
	XL_RK:       true,
	XL_RSTRING:  true,
}

// IsCellOpcode checks if the given code is a cell opcode.
func IsCellOpcode(c uint16) bool {
	return cellOpcodeSet[c]
}

// encodingFromCodepage maps CODEPAGE record values to decoders for the
// byte strings of BIFF5/7 files. 1200 (UTF-16LE) is handled by the caller.
var encodingFromCodepage = map[int]encoding.Encoding{
	367:   charmap.Windows1252, // ASCII
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	852:   charmap.CodePage852,
	855:   charmap.CodePage855,
	858:   charmap.CodePage858,
	860:   charmap.CodePage860,
	862:   charmap.CodePage862,
	863:   charmap.CodePage863,
	865:   charmap.CodePage865,
	866:   charmap.CodePage866,
	874:   charmap.Windows874,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
	10007: charmap.MacintoshCyrillic,
	32768: charmap.Macintosh,
	32769: charmap.Windows1252,
}

// EncodingFromCodepage returns the decoder for a codepage and whether the
// codepage is known.
func EncodingFromCodepage(codepage int) (encoding.Encoding, bool) {
	enc, ok := encodingFromCodepage[codepage]
	return enc, ok
}

// encodingByName resolves an EncodingOverride value such as "cp1251" or
// "iso-8859-2".
var encodingByName = map[string]encoding.Encoding{
	"latin_1":      charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"iso-8859-5":   charmap.ISO8859_5,
	"iso-8859-15":  charmap.ISO8859_15,
	"koi8-r":       charmap.KOI8R,
	"mac_roman":    charmap.Macintosh,
	"mac_cyrillic": charmap.MacintoshCyrillic,
}

func init() {
	for cp, enc := range encodingFromCodepage {
		encodingByName[fmt.Sprintf("cp%d", cp)] = enc
	}
}

// LookupEncoding returns the decoder registered under name.
func LookupEncoding(name string) (encoding.Encoding, bool) {
	enc, ok := encodingByName[name]
	return enc, ok
}
