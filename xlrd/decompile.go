package xlrd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yamitzky/xlstream/biff"
)

// FormulaError represents an error in formula parsing.
type FormulaError struct {
	Message string
}

func (e *FormulaError) Error() string {
	return e.Message
}

func formulaErrorf(format string, args ...interface{}) *FormulaError {
	return &FormulaError{Message: fmt.Sprintf(format, args...)}
}

// Operand type constants
const (
	oBOOL = 3
	oERR  = 4
	oNUM  = 2
	oREF  = -1
	oREL  = -2
	oSTRG = 1
	oUNK  = 0
	oMSNG = 5 // tMissArg
)

var okindNames = map[int]string{
	-2: "oREL",
	-1: "oREF",
	0:  "oUNK",
	1:  "oSTRG",
	2:  "oNUM",
	3:  "oBOOL",
	4:  "oERR",
	5:  "oMSNG",
}

// Formula evaluation constants
const (
	LEAF_RANK = 90
	FUNC_RANK = 90
)

// Operand is an entry of the decompiler stack: the text rebuilt so far and
// the precedence of its outermost operator.
type Operand struct {
	Kind int
	Rank int
	Text string
}

// NewOperand creates a new Operand with the specified parameters.
func NewOperand(kind, rank int, text string) *Operand {
	return &Operand{Kind: kind, Rank: rank, Text: text}
}

// String returns a string representation of the Operand.
func (o *Operand) String() string {
	kindText := okindNames[o.Kind]
	if kindText == "" {
		kindText = "?Unknown kind?"
	}
	return fmt.Sprintf("Operand(kind=%s, text=%s)", kindText, o.Text)
}

type binopRule struct {
	kind int
	rank int
	sym  string
}

var binopRules = map[byte]binopRule{
	0x03: {oNUM, 30, "+"},
	0x04: {oNUM, 30, "-"},
	0x05: {oNUM, 40, "*"},
	0x06: {oNUM, 40, "/"},
	0x07: {oNUM, 50, "^"},
	0x08: {oSTRG, 20, "&"},
	0x09: {oBOOL, 10, "<"},
	0x0A: {oBOOL, 10, "<="},
	0x0B: {oBOOL, 10, "="},
	0x0C: {oBOOL, 10, ">="},
	0x0D: {oBOOL, 10, ">"},
	0x0E: {oBOOL, 10, "<>"},
	0x0F: {oREF, 80, " "}, // tIsect
	0x10: {oREF, 80, ","}, // tList
	0x11: {oREF, 80, ":"}, // tRange
}

type unopRule struct {
	rank       int
	sym1, sym2 string
}

var unopRules = map[byte]unopRule{
	0x12: {70, "+", ""},
	0x13: {70, "-", ""},
	0x14: {60, "", "%"},
}

var (
	// Token sizes, including the token byte, indexed by the token with its
	// class folded into bit 5. -1 is variable, -2 is invalid.
	sztab3 = []int{-2, 5, 5, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, -1, -2, -1, 11, 5, 2, 2, 3, 9, 8, 3, 4, 15, 4, 7, 7, 7, 7, 3, 4, 7, 4, 7, 3, 3, -2, -2, -2, -2, -2, -2, -2, -2, -2, 25, 18, 21, 18, 21, -2, -2}
	sztab4 = []int{-2, 5, 5, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, -1, -1, -1, -2, -2, 2, 2, 3, 9, 9, 3, 4, 5, 5, 9, 7, 7, 7, 3, 5, 9, 5, 9, 3, 3, -2, -2, -2, -2, -2, -2, -2, -2, -2, 7, 7, 11, 7, 11, -2, -2}

	szdict = map[int][]int{
		50: sztab3,
		70: sztab3,
		80: sztab4,
	}

	onames = []string{
		"Unk00", "Exp", "Tbl", "Add", "Sub", "Mul", "Div", "Power", "Concat", "LT", "LE", "EQ", "GE", "GT", "NE",
		"Isect", "List", "Range", "Uplus", "Uminus", "Percent", "Paren", "MissArg", "Str", "Extended", "Attr",
		"Sheet", "EndSheet", "Err", "Bool", "Int", "Num", "Array", "Func", "FuncVar", "Name", "Ref", "Area",
		"MemArea", "MemErr", "MemNoMem", "MemFunc", "RefErr", "AreaErr", "RefN", "AreaN", "MemAreaN", "MemNoMemN",
		"", "", "", "", "", "", "", "", "FuncCE", "NameX", "Ref3d", "Area3d", "RefErr3d", "AreaErr3d", "", "",
	}
)

// FormulaContext resolves the names used by formula tokens: sheets,
// EXTERNSHEET entries, defined names and add-in names. Sheet names are
// looked up when a formula is decompiled, so a name recorded after the
// context was built is still found.
type FormulaContext struct {
	sheets      *SheetTracker
	externs     []biff.ExternRef
	names       []string
	externNames map[int][]string
}

// NewFormulaContext returns a context naming sheets through sheets.
func NewFormulaContext(sheets *SheetTracker) *FormulaContext {
	return &FormulaContext{sheets: sheets, externNames: make(map[int][]string)}
}

// Add records the workbook level records formulas refer to. Other records
// are ignored.
func (c *FormulaContext) Add(rec biff.Record) {
	switch r := rec.(type) {
	case biff.ExternSheet:
		c.externs = append(c.externs, r.Refs...)
	case biff.DefinedName:
		c.names = append(c.names, r.Name)
	case biff.ExternName:
		c.externNames[r.SupBook] = append(c.externNames[r.SupBook], r.Name)
	}
}

func (c *FormulaContext) sheetName(idx int) (string, error) {
	if c.sheets != nil {
		if name, ok := c.sheets.NameOf(idx); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("sheet %d has no name: %w", idx, ErrUnresolvedReference)
}

// sheetRange returns the sheet prefix of a 3D reference, without the '!'.
func (c *FormulaContext) sheetRange(ixti int) (string, error) {
	if ixti < 0 || ixti >= len(c.externs) {
		return "", fmt.Errorf("EXTERNSHEET index %d of %d: %w", ixti, len(c.externs), ErrUnresolvedReference)
	}
	ref := c.externs[ixti]
	if !ref.Local {
		return "", fmt.Errorf("EXTERNSHEET index %d points to another workbook: %w", ixti, ErrUnresolvedReference)
	}
	if ref.First < 0 || ref.Last < 0 {
		return "", fmt.Errorf("EXTERNSHEET index %d points to a deleted sheet: %w", ixti, ErrUnresolvedReference)
	}
	first, err := c.sheetName(ref.First)
	if err != nil {
		return "", err
	}
	if ref.Last == ref.First {
		return QuotedSheetName(first), nil
	}
	last, err := c.sheetName(ref.Last)
	if err != nil {
		return "", err
	}
	if needsSheetQuote(first) || needsSheetQuote(last) {
		return "'" + strings.ReplaceAll(first+":"+last, "'", "''") + "'", nil
	}
	return first + ":" + last, nil
}

func (c *FormulaContext) definedName(idx int) (string, error) {
	if idx < 1 || idx > len(c.names) {
		return "", fmt.Errorf("defined name %d of %d: %w", idx, len(c.names), ErrUnresolvedReference)
	}
	return c.names[idx-1], nil
}

func (c *FormulaContext) externName(ixti, idx int) (string, error) {
	if ixti < 0 || ixti >= len(c.externs) {
		return "", fmt.Errorf("EXTERNSHEET index %d of %d: %w", ixti, len(c.externs), ErrUnresolvedReference)
	}
	ref := c.externs[ixti]
	if ref.Local {
		return c.definedName(idx)
	}
	names := c.externNames[ref.SupBook]
	if idx < 1 || idx > len(names) {
		return "", fmt.Errorf("external name %d of SUPBOOK %d: %w", idx, ref.SupBook, ErrUnresolvedReference)
	}
	return names[idx-1], nil
}

func needsSheetQuote(name string) bool {
	if name == "" {
		return true
	}
	if name[0] >= '0' && name[0] <= '9' {
		return true
	}
	for _, r := range name {
		switch {
		case r == '_' || r == '.':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r > 0x7f:
		default:
			return true
		}
	}
	return false
}

// QuotedSheetName returns a sheet name as written in a formula, quoted
// when it is not a plain identifier.
func QuotedSheetName(name string) string {
	if needsSheetQuote(name) {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

// colname returns the column name for a given column index (0-based).
// Example: colname(0) returns "A", colname(26) returns "AA", colname(702) returns "AAA"
func colname(colx int) string {
	if colx < 0 {
		return "?"
	}
	var buf [16]byte
	i := len(buf)
	for colx >= 0 {
		i--
		buf[i] = byte('A' + colx%26)
		colx = colx/26 - 1
	}
	return string(buf[i:])
}

// CellName returns the cell name for a given row and column (0-based).
// Example: CellName(0, 0) returns "A1", CellName(5, 7) returns "H6"
func CellName(rowx, colx int) string {
	return colname(colx) + strconv.Itoa(rowx+1)
}

// CellNameAbs returns the absolute cell name.
// Example: CellNameAbs(5, 7) returns "$H$6"
func CellNameAbs(rowx, colx int) string {
	return "$" + colname(colx) + "$" + strconv.Itoa(rowx+1)
}

type cellAddr struct {
	row, col       int
	rowRel, colRel bool
}

func (a cellAddr) String() string {
	var b strings.Builder
	if !a.colRel {
		b.WriteByte('$')
	}
	b.WriteString(colname(a.col))
	if !a.rowRel {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(a.row + 1))
	return b.String()
}

// adjustCellAddrBiff8 splits a BIFF8 row/column pair. With reldelta the
// relative parts are signed offsets from (browx, bcolx).
func adjustCellAddrBiff8(rowval, colval int, reldelta bool, browx, bcolx int) cellAddr {
	a := cellAddr{
		row:    rowval,
		col:    colval & 0xff,
		rowRel: colval&0x8000 != 0,
		colRel: colval&0x4000 != 0,
	}
	if reldelta {
		if a.rowRel {
			a.row = (browx + int(int16(uint16(rowval)))) & 0xffff
		}
		if a.colRel {
			a.col = (bcolx + int(int8(uint8(colval)))) & 0xff
		}
	}
	return a
}

// adjustCellAddrBiffLe7 is adjustCellAddrBiff8 for BIFF 5/7, which keeps
// the flags in the row word.
func adjustCellAddrBiffLe7(rowval, colval int, reldelta bool, browx, bcolx int) cellAddr {
	a := cellAddr{
		row:    rowval & 0x3fff,
		col:    colval,
		rowRel: rowval&0x8000 != 0,
		colRel: rowval&0x4000 != 0,
	}
	if reldelta {
		if a.rowRel {
			off := a.row
			if off >= 8192 {
				off -= 16384
			}
			a.row = (browx + off) & 0x3fff
		}
		if a.colRel {
			a.col = (bcolx + int(int8(uint8(colval)))) & 0xff
		}
	}
	return a
}

// decompiler rebuilds formula text from BIFF tokens (reverse Polish
// notation) using a stack of Operands.
type decompiler struct {
	ctx   *FormulaContext
	data  []byte
	bv    int
	browx int
	bcolx int
	stack []*Operand
	errs  []error
}

// DecompileFormula reconstructs the text of a formula cell, without the
// leading '='. References that cannot be resolved are rendered as #REF! or
// #NAME? and reported in the returned error, which wraps
// ErrUnresolvedReference; the text is usable in that case. A malformed
// token stream yields a *FormulaError.
func DecompileFormula(ctx *FormulaContext, f biff.FormulaCell) (string, error) {
	if ctx == nil {
		ctx = NewFormulaContext(nil)
	}
	d := &decompiler{
		ctx:   ctx,
		data:  f.Tokens,
		bv:    f.BiffVersion,
		browx: f.Row,
		bcolx: f.Col,
	}
	text, err := d.run()
	if err != nil {
		return text, err
	}
	return text, errors.Join(d.errs...)
}

func (d *decompiler) push(kind, rank int, text string) {
	d.stack = append(d.stack, NewOperand(kind, rank, text))
}

func (d *decompiler) pop() *Operand {
	if len(d.stack) == 0 {
		return NewOperand(oUNK, LEAF_RANK, "?")
	}
	o := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return o
}

// popArgs removes the n topmost operands, returned in pushing order.
func (d *decompiler) popArgs(n int) []string {
	args := make([]string, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = d.pop().Text
	}
	return args
}

func (d *decompiler) unresolved(err error) string {
	d.errs = append(d.errs, err)
	return "#REF!"
}

func (d *decompiler) u16(pos int) int {
	return int(binary.LittleEndian.Uint16(d.data[pos:]))
}

func (d *decompiler) cellAddr(pos int, reldelta bool) cellAddr {
	if d.bv >= 80 {
		return adjustCellAddrBiff8(d.u16(pos), d.u16(pos+2), reldelta, d.browx, d.bcolx)
	}
	return adjustCellAddrBiffLe7(d.u16(pos), int(d.data[pos+2]), reldelta, d.browx, d.bcolx)
}

func (d *decompiler) areaText(pos int, reldelta bool) string {
	var a1, a2 cellAddr
	if d.bv >= 80 {
		a1 = adjustCellAddrBiff8(d.u16(pos), d.u16(pos+4), reldelta, d.browx, d.bcolx)
		a2 = adjustCellAddrBiff8(d.u16(pos+2), d.u16(pos+6), reldelta, d.browx, d.bcolx)
	} else {
		a1 = adjustCellAddrBiffLe7(d.u16(pos), int(d.data[pos+4]), reldelta, d.browx, d.bcolx)
		a2 = adjustCellAddrBiffLe7(d.u16(pos+2), int(d.data[pos+5]), reldelta, d.browx, d.bcolx)
	}
	return a1.String() + ":" + a2.String()
}

func (d *decompiler) binop(opcode byte) {
	bop := d.pop()
	aop := d.pop()
	rule := binopRules[opcode]
	var b strings.Builder
	writeRanked(&b, aop, rule.rank)
	b.WriteString(rule.sym)
	writeRanked(&b, bop, rule.rank)
	d.push(rule.kind, rule.rank, b.String())
}

func (d *decompiler) unop(opcode byte) {
	aop := d.pop()
	rule := unopRules[opcode]
	var b strings.Builder
	b.WriteString(rule.sym1)
	writeRanked(&b, aop, rule.rank)
	b.WriteString(rule.sym2)
	d.push(oNUM, rule.rank, b.String())
}

func writeRanked(b *strings.Builder, o *Operand, rank int) {
	if o.Rank < rank {
		b.WriteString("(" + o.Text + ")")
		return
	}
	b.WriteString(o.Text)
}

func (d *decompiler) function(name string, args []string) {
	d.push(oUNK, FUNC_RANK, name+"("+strings.Join(args, ",")+")")
}

func (d *decompiler) run() (string, error) {
	sztab, ok := szdict[d.bv]
	if !ok {
		return "#UNSUPPORTED_BIFF!", formulaErrorf("unsupported BIFF version %d", d.bv)
	}
	data := d.data
	if len(data) == 0 {
		return "", formulaErrorf("empty formula")
	}

	pos := 0
	for pos < len(data) {
		op := data[pos]
		opcode := op & 0x1f
		optype := (op & 0x60) >> 5
		opx := int(opcode)
		if optype != 0 {
			opx += 32
		}
		oname := onames[opx]
		sz := sztab[opx]
		if sz == -2 {
			return "#INVALID!", formulaErrorf("unexpected token 0x%02x (%s) at %d; biff_version=%d", op, oname, pos, d.bv)
		}
		if sz > 0 && pos+sz > len(data) {
			return "#INVALID!", formulaErrorf("token %s at %d truncated", oname, pos)
		}

		if optype == 0 {
			switch {
			case opcode <= 0x02: // tExp, tTbl
				rowx := d.u16(pos + 1)
				colx := int(data[pos+3])
				if d.bv >= 80 {
					colx = d.u16(pos + 3)
				}
				d.push(oUNK, LEAF_RANK, d.unresolved(fmt.Errorf("%s at %s: %w", oname, CellName(rowx, colx), ErrUnresolvedReference)))
			case opcode >= 0x03 && opcode <= 0x11:
				d.binop(opcode)
			case opcode >= 0x12 && opcode <= 0x14:
				d.unop(opcode)
			case opcode == 0x15: // tParen
				aop := d.pop()
				d.push(aop.Kind, FUNC_RANK, "("+aop.Text+")")
			case opcode == 0x16: // tMissArg
				d.push(oMSNG, LEAF_RANK, "")
			case opcode == 0x17: // tStr
				var s string
				var next int
				var err error
				if d.bv >= 80 {
					s, next, err = biff.UnpackUnicodeUpdatePos(data, pos+1, 1)
				} else {
					s, next, err = biff.UnpackStringUpdatePos(data, pos+1, nil, 1)
				}
				if err != nil {
					return "#INVALID!", formulaErrorf("tStr at %d: %v", pos, err)
				}
				d.push(oSTRG, LEAF_RANK, `"`+strings.ReplaceAll(s, `"`, `""`)+`"`)
				pos = next
				continue
			case opcode == 0x18: // tExtended
				return "#INVALID!", formulaErrorf("unsupported token %s at %d", oname, pos)
			case opcode == 0x19: // tAttr
				if pos+4 > len(data) {
					return "#INVALID!", formulaErrorf("token %s at %d truncated", oname, pos)
				}
				grbit := data[pos+1]
				sz = 4
				if grbit&0x04 != 0 { // tAttrChoose jump table
					sz += 2 * (d.u16(pos+2) + 1)
				}
				if grbit&0x10 != 0 { // tAttrSum
					d.function("SUM", d.popArgs(1))
				}
			case opcode == 0x1C: // tErr
				d.push(oERR, LEAF_RANK, biff.ErrorText(data[pos+1]))
			case opcode == 0x1D: // tBool
				text := "FALSE"
				if data[pos+1] != 0 {
					text = "TRUE"
				}
				d.push(oBOOL, LEAF_RANK, text)
			case opcode == 0x1E: // tInt
				d.push(oNUM, LEAF_RANK, strconv.Itoa(d.u16(pos+1)))
			case opcode == 0x1F: // tNum
				v := math.Float64frombits(binary.LittleEndian.Uint64(data[pos+1:]))
				d.push(oNUM, LEAF_RANK, strconv.FormatFloat(v, 'G', -1, 64))
			default:
				return "#INVALID!", formulaErrorf("unexpected token 0x%02x (%s) at %d", op, oname, pos)
			}
		} else {
			switch opx {
			case 0x20: // tArray; the constants follow the token array
				d.push(oUNK, LEAF_RANK, "{...}")
			case 0x21: // tFunc
				funcid := d.u16(pos + 1)
				def, ok := funcDefs[funcid]
				if !ok || def.nargs < 0 {
					return "#INVALID!", formulaErrorf("tFunc with unknown function %d at %d", funcid, pos)
				}
				d.function(def.name, d.popArgs(def.nargs))
			case 0x22: // tFuncVar
				nargs := int(data[pos+1] & 0x7f)
				funcid := d.u16(pos+2) & 0x7fff
				args := d.popArgs(nargs)
				if funcid == 255 && nargs > 0 { // add-in, named by the first argument
					d.function(args[0], args[1:])
				} else {
					d.function(funcName(funcid), args)
				}
			case 0x23: // tName
				name, err := d.ctx.definedName(d.u16(pos + 1))
				if err != nil {
					d.errs = append(d.errs, err)
					name = "#NAME?"
				}
				d.push(oUNK, LEAF_RANK, name)
			case 0x24: // tRef
				d.push(oREF, LEAF_RANK, d.cellAddr(pos+1, false).String())
			case 0x25: // tArea
				d.push(oREF, LEAF_RANK, d.areaText(pos+1, false))
			case 0x26, 0x27, 0x28, 0x29, 0x2E, 0x2F:
				// tMem* wrap a subexpression that follows as ordinary tokens.
			case 0x2A, 0x2B: // tRefErr, tAreaErr
				d.push(oERR, LEAF_RANK, "#REF!")
			case 0x2C: // tRefN
				d.push(oREL, LEAF_RANK, d.cellAddr(pos+1, true).String())
			case 0x2D: // tAreaN
				d.push(oREL, LEAF_RANK, d.areaText(pos+1, true))
			case 0x39: // tNameX
				if d.bv < 80 {
					d.push(oUNK, LEAF_RANK, d.unresolved(fmt.Errorf("BIFF %s external name: %w", biff.BiffTextFromNum(d.bv), ErrUnresolvedReference)))
					break
				}
				name, err := d.ctx.externName(d.u16(pos+1), d.u16(pos+3))
				if err != nil {
					d.errs = append(d.errs, err)
					name = "#NAME?"
				}
				d.push(oUNK, LEAF_RANK, name)
			case 0x3A, 0x3B, 0x3C, 0x3D: // tRef3d, tArea3d, tRefErr3d, tAreaErr3d
				d.push(oREF, LEAF_RANK, d.ref3d(opx, pos))
			default:
				return "#INVALID!", formulaErrorf("unexpected token 0x%02x (%s) at %d", op, oname, pos)
			}
		}
		pos += sz
	}

	if len(d.stack) != 1 {
		return "#INVALID!", formulaErrorf("formula left %d operands on the stack", len(d.stack))
	}
	return d.stack[0].Text, nil
}

func (d *decompiler) ref3d(opx, pos int) string {
	if d.bv < 80 {
		return d.unresolved(fmt.Errorf("BIFF %s 3D reference: %w", biff.BiffTextFromNum(d.bv), ErrUnresolvedReference))
	}
	sheets, err := d.ctx.sheetRange(d.u16(pos + 1))
	if err != nil {
		return d.unresolved(err)
	}
	switch opx {
	case 0x3A:
		return sheets + "!" + d.cellAddr(pos+3, false).String()
	case 0x3B:
		return sheets + "!" + d.areaText(pos+3, false)
	}
	return sheets + "!#REF!"
}
