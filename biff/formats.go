package biff

import "encoding/binary"

// FirstCustomFormat is the lowest format index used by FORMAT records for
// workbook-defined patterns.
const FirstCustomFormat = 164

// BuiltinFormats holds the patterns of the implicit format indexes. Codes
// 27 to 36 and 50 to 58 are locale dependent; the CJK date patterns are
// listed with their usual western rendering.
var BuiltinFormats = map[int]string{
	0:  "General",
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	5:  "$#,##0_);($#,##0)",
	6:  "$#,##0_);[Red]($#,##0)",
	7:  "$#,##0.00_);($#,##0.00)",
	8:  "$#,##0.00_);[Red]($#,##0.00)",
	9:  "0%",
	10: "0.00%",
	11: "0.00E+00",
	12: "# ?/?",
	13: "# ??/??",
	14: "m/d/yy",
	15: "d-mmm-yy",
	16: "d-mmm",
	17: "mmm-yy",
	18: "h:mm AM/PM",
	19: "h:mm:ss AM/PM",
	20: "h:mm",
	21: "h:mm:ss",
	22: "m/d/yy h:mm",
	27: "yyyy\"年\"m\"月\"",
	28: "m\"月\"d\"日\"",
	29: "m\"月\"d\"日\"",
	30: "m/d/yy",
	31: "yyyy\"年\"m\"月\"d\"日\"",
	32: "h\"时\"mm\"分\"",
	33: "h\"时\"mm\"分\"ss\"秒\"",
	34: "上午/下午h\"时\"mm\"分\"",
	35: "上午/下午h\"时\"mm\"分\"ss\"秒\"",
	36: "yyyy\"年\"m\"月\"",
	37: "#,##0 ;(#,##0)",
	38: "#,##0 ;[Red](#,##0)",
	39: "#,##0.00;(#,##0.00)",
	40: "#,##0.00;[Red](#,##0.00)",
	41: "_(* #,##0_);_(* (#,##0);_(* \"-\"_);_(@_)",
	42: "_($* #,##0_);_($* (#,##0);_($* \"-\"_);_(@_)",
	43: "_(* #,##0.00_);_(* (#,##0.00);_(* \"-\"??_);_(@_)",
	44: "_($* #,##0.00_);_($* (#,##0.00);_($* \"-\"??_);_(@_)",
	45: "mm:ss",
	46: "[h]:mm:ss",
	47: "mm:ss.0",
	48: "##0.0E+0",
	49: "@",
	50: "yyyy\"年\"m\"月\"",
	51: "m\"月\"d\"日\"",
	52: "yyyy\"年\"m\"月\"",
	53: "m\"月\"d\"日\"",
	54: "m\"月\"d\"日\"",
	55: "上午/下午h\"时\"mm\"分\"",
	56: "上午/下午h\"时\"mm\"分\"ss\"秒\"",
	57: "yyyy\"年\"m\"月\"",
	58: "m\"月\"d\"日\"",
}

// formatTable resolves XF indexes to display formats from the FORMAT and
// XF records of the workbook globals.
type formatTable struct {
	custom map[int]string
	xfs    []int
	cache  map[int]*Format
}

func newFormatTable() *formatTable {
	return &formatTable{custom: make(map[int]string), cache: make(map[int]*Format)}
}

func (t *formatTable) addFormat(code int, pattern string) {
	t.custom[code] = pattern
	clear(t.cache)
}

// addXF records the format index of the next XF record. The index sits at
// offset 2 in BIFF5 to 8.
func (t *formatTable) addXF(data []byte) {
	if len(data) < 4 {
		t.xfs = append(t.xfs, 0)
		return
	}
	t.xfs = append(t.xfs, int(binary.LittleEndian.Uint16(data[2:4])))
}

// lookup returns nil when the workbook defines no such XF.
func (t *formatTable) lookup(xf int) *Format {
	if xf < 0 || xf >= len(t.xfs) {
		return nil
	}
	if f, ok := t.cache[xf]; ok {
		return f
	}
	code := t.xfs[xf]
	pattern, ok := t.custom[code]
	if !ok {
		pattern = BuiltinFormats[code]
	}
	f := &Format{Code: code, Pattern: pattern}
	t.cache[xf] = f
	return f
}
