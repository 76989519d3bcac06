package xlrd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/yamitzky/xlstream/biff"
	bt "github.com/yamitzky/xlstream/internal/bifftest"
)

// BIFF8 formula tokens.
func tInt(v int) []byte       { return append([]byte{0x1E}, bt.U16(v)...) }
func tNum(v float64) []byte   { return append([]byte{0x1F}, bt.F64(v)...) }
func tStr(s string) []byte    { return append([]byte{0x17}, bt.Unicode(s, 1)...) }
func tBool(b bool) []byte     { return []byte{0x1D, map[bool]byte{false: 0, true: 1}[b]} }
func tErr(code byte) []byte   { return []byte{0x1C, code} }
func tOp(op byte) []byte      { return []byte{op} }
func tAttr(grbit byte) []byte { return append([]byte{0x19, grbit}, bt.U16(0)...) }

// colval packs a column with its relative flags.
func colval(col int, rowRel, colRel bool) int {
	if rowRel {
		col |= 0x8000
	}
	if colRel {
		col |= 0x4000
	}
	return col
}

func tRef(row, col int, rel bool) []byte {
	return bytes.Join([][]byte{{0x24}, bt.U16(row), bt.U16(colval(col, rel, rel))}, nil)
}

func tArea(r1, r2, c1, c2 int, rel bool) []byte {
	return bytes.Join([][]byte{{0x25}, bt.U16(r1), bt.U16(r2), bt.U16(colval(c1, rel, rel)), bt.U16(colval(c2, rel, rel))}, nil)
}

func tRefN(rowOff, colOff int) []byte {
	return bytes.Join([][]byte{{0x2C}, bt.U16(rowOff & 0xffff), bt.U16(colval(colOff&0xff, true, true))}, nil)
}

func tRef3d(ixti, row, col int) []byte {
	return bytes.Join([][]byte{{0x3A}, bt.U16(ixti), bt.U16(row), bt.U16(colval(col, false, false))}, nil)
}

func tFunc(id int) []byte { return append([]byte{0x41}, bt.U16(id)...) }

func tFuncVar(nargs, id int) []byte { return append([]byte{0x42, byte(nargs)}, bt.U16(id)...) }

func tName(idx int) []byte { return bytes.Join([][]byte{{0x43}, bt.U16(idx), bt.U16(0)}, nil) }

func tNameX(ixti, idx int) []byte {
	return bytes.Join([][]byte{{0x39}, bt.U16(ixti), bt.U16(idx), bt.U16(0)}, nil)
}

func formulaAt(row, col int, tokens ...[]byte) biff.FormulaCell {
	return biff.FormulaCell{
		Cell:        biff.Cell{Row: row, Col: col},
		Tokens:      bytes.Join(tokens, nil),
		BiffVersion: 80,
	}
}

func testContext() *FormulaContext {
	tr := NewSheetTracker(AllSheets)
	tr.AddBoundary("Data")
	tr.AddBoundary("My Sheet")
	ctx := NewFormulaContext(tr)
	ctx.Add(biff.ExternName{SupBook: 1, Name: "IFERROR"})
	ctx.Add(biff.ExternSheet{Refs: []biff.ExternRef{
		{SupBook: 0, First: 1, Last: 1, Local: true},
		{SupBook: 1, First: -2, Last: -2},
		{SupBook: 0, First: 0, Last: 1, Local: true},
	}})
	ctx.Add(biff.DefinedName{Name: "Rate"})
	return ctx
}

func TestDecompileFormula(t *testing.T) {
	tests := []struct {
		name string
		f    biff.FormulaCell
		want string
	}{
		{"add", formulaAt(0, 0, tInt(1), tInt(2), tOp(0x03)), "1+2"},
		{"paren", formulaAt(0, 0, tInt(1), tInt(2), tOp(0x03), tOp(0x15), tInt(3), tOp(0x05)), "(1+2)*3"},
		{"precedence", formulaAt(0, 0, tInt(1), tInt(2), tOp(0x03), tInt(3), tOp(0x05)), "(1+2)*3"},
		{"relative ref", formulaAt(0, 0, tRef(0, 0, true), tNum(2.5), tOp(0x05)), "A1*2.5"},
		{"absolute area", formulaAt(0, 0, tArea(0, 2, 0, 1, false), tFuncVar(1, 4)), "SUM($A$1:$B$3)"},
		{"attr sum", formulaAt(0, 0, tArea(0, 2, 0, 0, true), tAttr(0x10)), "SUM(A1:A3)"},
		{"volatile attr", formulaAt(0, 0, tAttr(0x01), tFunc(63)), "RAND()"},
		{"concat", formulaAt(0, 0, tStr(`say "hi"`), tRef(1, 27, true), tOp(0x08)), `"say ""hi"""&AB2`},
		{"unary", formulaAt(0, 0, tInt(5), tOp(0x13), tFunc(24)), "ABS(-5)"},
		{"percent", formulaAt(0, 0, tInt(50), tOp(0x14)), "50%"},
		{"if", formulaAt(0, 0, tBool(true), tErr(0x2A), tFuncVar(2, 1)), "IF(TRUE,#N/A)"},
		{"missing arg", formulaAt(0, 0, tRef(0, 0, true), tOp(0x16), tInt(1), tFuncVar(3, 1)), "IF(A1,,1)"},
		{"comparison", formulaAt(0, 0, tRef(0, 0, true), tInt(0), tOp(0x0E)), "A1<>0"},
		{"shared relative", biff.FormulaCell{Cell: biff.Cell{Row: 4, Col: 2}, Tokens: bytes.Join([][]byte{tRefN(-1, 0), tRefN(0, -1), tOp(0x03)}, nil), Shared: true, BiffVersion: 80}, "C4+B5"},
		{"3d ref", formulaAt(0, 0, tRef3d(0, 3, 2)), "'My Sheet'!$C$4"},
		{"3d sheet range", formulaAt(0, 0, tRef3d(2, 0, 0)), "'Data:My Sheet'!$A$1"},
		{"defined name", formulaAt(0, 0, tName(1), tInt(2), tOp(0x05)), "Rate*2"},
		{"add-in", formulaAt(0, 0, tNameX(1, 1), tRef(0, 0, true), tInt(0), tFuncVar(3, 255)), "IFERROR(A1,0)"},
		{"unknown function", formulaAt(0, 0, tInt(1), tFuncVar(1, 400)), "FUNC_400(1)"},
	}
	ctx := testContext()
	for _, tt := range tests {
		got, err := DecompileFormula(ctx, tt.f)
		if err != nil {
			t.Errorf("%s: DecompileFormula error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: DecompileFormula = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDecompileUnresolved(t *testing.T) {
	tests := []struct {
		name string
		f    biff.FormulaCell
		want string
	}{
		{"no externsheet", formulaAt(0, 0, tRef3d(7, 0, 0)), "#REF!"},
		{"no name", formulaAt(0, 0, tName(9)), "#NAME?"},
		{"unresolved shared formula", formulaAt(0, 0, []byte{0x01}, bt.U16(3), bt.U16(1)), "#REF!"},
		{"shared formula anchor past column XFD", formulaAt(0, 0, []byte{0x01}, bt.U16(3), bt.U16(1796)), "#REF!"},
	}
	ctx := testContext()
	for _, tt := range tests {
		got, err := DecompileFormula(ctx, tt.f)
		if got != tt.want {
			t.Errorf("%s: DecompileFormula = %q, want %q", tt.name, got, tt.want)
		}
		if !errors.Is(err, ErrUnresolvedReference) {
			t.Errorf("%s: error = %v, want ErrUnresolvedReference", tt.name, err)
		}
	}
}

func TestDecompileLateSheetName(t *testing.T) {
	tr := NewSheetTracker(AllSheets)
	ctx := NewFormulaContext(tr)
	ctx.Add(biff.ExternSheet{Refs: []biff.ExternRef{{First: 0, Last: 0, Local: true}}})
	f := formulaAt(0, 0, tRef3d(0, 0, 0))

	if _, err := DecompileFormula(ctx, f); !errors.Is(err, ErrUnresolvedReference) {
		t.Errorf("before the boundary: error = %v", err)
	}
	tr.AddBoundary("Late")
	got, err := DecompileFormula(ctx, f)
	if err != nil || got != "Late!$A$1" {
		t.Errorf("after the boundary: %q, %v", got, err)
	}
}

func TestDecompileMalformed(t *testing.T) {
	tests := []struct {
		name string
		f    biff.FormulaCell
	}{
		{"empty", formulaAt(0, 0)},
		{"invalid token", formulaAt(0, 0, []byte{0x00})},
		{"truncated number", formulaAt(0, 0, []byte{0x1F, 0, 0})},
		{"leftover operands", formulaAt(0, 0, tInt(1), tInt(2))},
		{"unknown fixed function", formulaAt(0, 0, tFunc(400))},
		{"unsupported version", biff.FormulaCell{Tokens: tInt(1), BiffVersion: 21}},
	}
	for _, tt := range tests {
		_, err := DecompileFormula(nil, tt.f)
		var fe *FormulaError
		if !errors.As(err, &fe) {
			t.Errorf("%s: error = %v, want *FormulaError", tt.name, err)
		}
	}
}

func TestQuotedSheetName(t *testing.T) {
	tests := map[string]string{
		"Sheet1":   "Sheet1",
		"My Sheet": "'My Sheet'",
		"O'Brien":  "'O''Brien'",
		"2021":     "'2021'",
		"データ":      "データ",
		"a-b":      "'a-b'",
	}
	for in, want := range tests {
		if got := QuotedSheetName(in); got != want {
			t.Errorf("QuotedSheetName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCellName(t *testing.T) {
	if got := CellName(5, 7); got != "H6" {
		t.Errorf("CellName(5, 7) = %q", got)
	}
	if got := CellNameAbs(5, 7); got != "$H$6" {
		t.Errorf("CellNameAbs(5, 7) = %q", got)
	}
	tests := map[int]string{0: "A", 25: "Z", 26: "AA", 255: "IV", 701: "ZZ", 702: "AAA", 16383: "XFD", 65535: "CRXP"}
	for col, want := range tests {
		if got := colname(col); got != want {
			t.Errorf("colname(%d) = %q, want %q", col, got, want)
		}
	}
	if got := CellName(0, 702); got != "AAA1" {
		t.Errorf("CellName(0, 702) = %q", got)
	}
}
