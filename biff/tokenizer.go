package biff

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Options configures a Tokenizer.
type Options struct {
	// EncodingOverride names the codepage used for BIFF5/7 byte strings,
	// for files whose CODEPAGE record is missing or wrong (e.g. "cp1251").
	EncodingOverride string

	// Logfile receives diagnostics. Nil discards them.
	Logfile io.Writer

	// Verbosity controls how much is written to Logfile.
	Verbosity int
}

type sharedFormula struct {
	tokens []byte
	shared bool
}

type cellKey struct{ row, col int }

// Tokenizer turns a BIFF stream into Records. Cells of a worksheet are
// followed by RowEnd markers, one per row including rows without cells, and
// skipped columns are reported as GapCells.
type Tokenizer struct {
	rd      *Reader
	opts    Options
	logfile io.Writer

	out     []Record
	ahead   *RawRecord
	pending *FormulaCell
	done    bool

	version  int
	enc      encoding.Encoding
	fixedEnc bool
	formats  *formatTable
	supbooks []bool
	stack    []int

	lastRow int
	lastCol int
	shared  map[cellKey]sharedFormula
}

// NewTokenizer reads records from r, the workbook stream of a File.
func NewTokenizer(r io.Reader, opts Options) (*Tokenizer, error) {
	t := &Tokenizer{
		rd:      NewReader(r),
		opts:    opts,
		logfile: opts.Logfile,
		formats: newFormatTable(),
		lastRow: -1,
		lastCol: -1,
		shared:  make(map[cellKey]sharedFormula),
	}
	if t.logfile == nil {
		t.logfile = io.Discard
	}
	if opts.EncodingOverride != "" {
		enc, ok := LookupEncoding(opts.EncodingOverride)
		if !ok {
			return nil, fmt.Errorf("biff: unknown encoding %q", opts.EncodingOverride)
		}
		t.enc = enc
		t.fixedEnc = true
	}
	return t, nil
}

func (t *Tokenizer) logf(level int, format string, args ...interface{}) {
	if t.opts.Verbosity >= level {
		fmt.Fprintf(t.logfile, format+"\n", args...)
	}
}

// BiffVersion returns the version of the first BOF record, 0 before it.
func (t *Tokenizer) BiffVersion() int {
	return t.version
}

// Next implements Source.
func (t *Tokenizer) Next() (Record, error) {
	for len(t.out) == 0 {
		if t.done {
			return nil, io.EOF
		}
		raw, err := t.read()
		if err == io.EOF {
			t.finish()
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := t.handle(raw); err != nil {
			return nil, &RecordError{Offset: raw.Offset, Code: raw.Code, Err: err}
		}
	}
	rec := t.out[0]
	t.out[0] = nil
	t.out = t.out[1:]
	return rec, nil
}

func (t *Tokenizer) read() (RawRecord, error) {
	if t.ahead != nil {
		raw := *t.ahead
		t.ahead = nil
		return raw, nil
	}
	return t.rd.Next()
}

func (t *Tokenizer) emit(recs ...Record) {
	t.out = append(t.out, recs...)
}

func (t *Tokenizer) finish() {
	t.flushPending()
	if len(t.stack) > 0 {
		t.logf(1, "*** WARNING: stream ended inside %d open substream(s)", len(t.stack))
	}
	t.emit(EndOfStream{})
	t.done = true
}

func (t *Tokenizer) substream() int {
	if len(t.stack) != 1 {
		return -1
	}
	return t.stack[0]
}

func (t *Tokenizer) handle(raw RawRecord) error {
	if t.pending != nil {
		switch raw.Code {
		case XL_SHRFMLA, XL_ARRAY:
			return t.handleSharedFormula(raw)
		}
		t.flushPending()
	}

	switch raw.Code {
	case XL_BOF:
		return t.handleBOF(raw.Data)
	case XL_EOF:
		t.handleEOF()
		return nil
	case XL_FILEPASS:
		return ErrEncrypted
	}
	if t.version == 0 {
		return ErrNotWorkbook
	}

	switch t.substream() {
	case XL_WORKBOOK_GLOBALS:
		return t.handleGlobals(raw)
	case XL_WORKSHEET:
		return t.handleSheet(raw)
	}
	return nil
}

func (t *Tokenizer) handleBOF(data []byte) error {
	if len(data) < 4 {
		return ErrTruncatedRecord
	}
	version := binary.LittleEndian.Uint16(data[0:2])
	streamType := int(binary.LittleEndian.Uint16(data[2:4]))

	if t.version == 0 {
		switch version {
		case 0x0600:
			t.version = 80
		case 0x0500:
			t.version = 50
		default:
			return fmt.Errorf("%w: BOF version 0x%04x", ErrUnsupportedFormat, version)
		}
		t.logf(2, "BIFF version %s", BiffTextFromNum(t.version))
	}

	t.stack = append(t.stack, streamType)
	if len(t.stack) == 1 && streamType == XL_WORKSHEET {
		t.lastRow, t.lastCol = -1, -1
		clear(t.shared)
		t.emit(SheetStart{BiffVersion: t.version})
	} else if len(t.stack) == 1 && streamType != XL_WORKBOOK_GLOBALS {
		t.logf(2, "skipping substream type 0x%04x", streamType)
	}
	return nil
}

func (t *Tokenizer) handleEOF() {
	if len(t.stack) == 0 {
		t.logf(1, "*** WARNING: EOF record outside any substream")
		return
	}
	top := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	if len(t.stack) == 0 && top == XL_WORKSHEET {
		if t.lastRow >= 0 {
			t.emit(RowEnd{Row: t.lastRow, LastCol: t.lastCol})
		}
		t.lastRow, t.lastCol = -1, -1
		t.emit(SheetEnd{})
	}
}

func (t *Tokenizer) unpackString(data []byte, pos, lenlen int) (string, int, error) {
	if t.version >= BIFF_FIRST_UNICODE {
		return UnpackUnicodeUpdatePos(data, pos, lenlen)
	}
	return UnpackStringUpdatePos(data, pos, t.enc, lenlen)
}

func (t *Tokenizer) handleGlobals(raw RawRecord) error {
	data := raw.Data
	switch raw.Code {
	case XL_CODEPAGE:
		if len(data) < 2 || t.fixedEnc {
			return nil
		}
		cp := int(binary.LittleEndian.Uint16(data))
		if cp == 1200 {
			t.enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
		} else if enc, ok := EncodingFromCodepage(cp); ok {
			t.enc = enc
		} else {
			t.logf(1, "*** WARNING: unknown codepage %d, using latin_1", cp)
		}
	case XL_DATEMODE:
		if len(data) < 2 {
			return ErrTruncatedRecord
		}
		t.emit(DateMode{Mode: int(binary.LittleEndian.Uint16(data))})
	case XL_FORMAT:
		if len(data) < 2 {
			return ErrTruncatedRecord
		}
		code := int(binary.LittleEndian.Uint16(data))
		lenlen := 1
		if t.version >= BIFF_FIRST_UNICODE {
			lenlen = 2
		}
		pattern, _, err := t.unpackString(data, 2, lenlen)
		if err != nil {
			return err
		}
		t.formats.addFormat(code, pattern)
	case XL_XF:
		t.formats.addXF(data)
	case XL_BOUNDSHEET:
		return t.handleBoundsheet(data)
	case XL_SST:
		return t.handleSST(data)
	case XL_SUPBOOK:
		local := len(data) == 4 && binary.LittleEndian.Uint16(data[2:4]) == 0x0401
		t.supbooks = append(t.supbooks, local)
	case XL_EXTERNSHEET:
		return t.handleExternsheet(data)
	case XL_EXTERNNAME:
		return t.handleExternname(data)
	case XL_NAME:
		return t.handleName(data)
	}
	return nil
}

func (t *Tokenizer) handleBoundsheet(data []byte) error {
	if len(data) < 6 {
		return ErrTruncatedRecord
	}
	visibility := int(data[4])
	sheetType := int(data[5])
	name, _, err := t.unpackString(data, 6, 1)
	if err != nil {
		return err
	}
	if sheetType != XL_BOUNDSHEET_WORKSHEET {
		t.logf(2, "BOUNDSHEET: ignoring sheet %q of type %d", name, sheetType)
		return nil
	}
	t.emit(SheetBoundary{Name: name, Visibility: visibility})
	return nil
}

// handleSST collects the CONTINUE records that follow the SST.
func (t *Tokenizer) handleSST(data []byte) error {
	segs := [][]byte{data}
	for {
		raw, err := t.rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if raw.Code != XL_CONTINUE {
			t.ahead = &raw
			break
		}
		segs = append(segs, raw.Data)
	}
	table, err := parseSST(segs)
	if err != nil {
		t.logf(1, "*** WARNING: SST: %v (kept %d strings)", err, len(table))
	}
	t.emit(StringTable{Strings: table})
	return nil
}

func (t *Tokenizer) handleExternsheet(data []byte) error {
	if t.version < BIFF_FIRST_UNICODE {
		t.logf(2, "EXTERNSHEET: BIFF %s references are not resolved", BiffTextFromNum(t.version))
		return nil
	}
	if len(data) < 2 {
		return ErrTruncatedRecord
	}
	n := int(binary.LittleEndian.Uint16(data))
	refs := make([]ExternRef, 0, n)
	for i := 0; i < n; i++ {
		pos := 2 + 6*i
		if pos+6 > len(data) {
			return ErrTruncatedRecord
		}
		ref := ExternRef{
			SupBook: int(binary.LittleEndian.Uint16(data[pos:])),
			First:   int(int16(binary.LittleEndian.Uint16(data[pos+2:]))),
			Last:    int(int16(binary.LittleEndian.Uint16(data[pos+4:]))),
		}
		ref.Local = ref.SupBook < len(t.supbooks) && t.supbooks[ref.SupBook]
		refs = append(refs, ref)
	}
	t.emit(ExternSheet{Refs: refs})
	return nil
}

func (t *Tokenizer) handleExternname(data []byte) error {
	if t.version < BIFF_FIRST_UNICODE || len(t.supbooks) == 0 {
		return nil
	}
	if len(data) < 7 {
		return ErrTruncatedRecord
	}
	name, _, err := UnpackUnicodeUpdatePos(data, 6, 1)
	if err != nil {
		return err
	}
	t.emit(ExternName{SupBook: len(t.supbooks) - 1, Name: name})
	return nil
}

var builtinNames = map[byte]string{
	0x00: "Consolidate_Area",
	0x01: "Auto_Open",
	0x02: "Auto_Close",
	0x03: "Extract",
	0x04: "Database",
	0x05: "Criteria",
	0x06: "Print_Area",
	0x07: "Print_Titles",
	0x08: "Recorder",
	0x09: "Data_Form",
	0x0A: "Auto_Activate",
	0x0B: "Auto_Deactivate",
	0x0C: "Sheet_Title",
	0x0D: "_FilterDatabase",
}

func (t *Tokenizer) handleName(data []byte) error {
	if len(data) < 14 {
		return ErrTruncatedRecord
	}
	flags := binary.LittleEndian.Uint16(data)
	nchars := int(data[3])
	scope := int(binary.LittleEndian.Uint16(data[8:]))

	var name string
	var err error
	if t.version >= BIFF_FIRST_UNICODE {
		name, _, err = UnpackUnicodeN(data, 14, nchars)
	} else {
		if 14+nchars > len(data) {
			return ErrTruncatedRecord
		}
		name = decodeBytes(data[14:14+nchars], t.enc)
	}
	if err != nil {
		return err
	}

	builtin := flags&0x0020 != 0
	if builtin && name != "" {
		if text, ok := builtinNames[name[0]]; ok {
			name = text
		}
	}
	t.emit(DefinedName{Name: name, Scope: scope, Builtin: builtin})
	return nil
}

func (t *Tokenizer) handleSheet(raw RawRecord) error {
	data := raw.Data
	switch raw.Code {
	case XL_NUMBER:
		if len(data) < 14 {
			return ErrTruncatedRecord
		}
		row, col, xf := cellHeader(data)
		v := math.Float64frombits(binary.LittleEndian.Uint64(data[6:]))
		t.emitCell(NumberCell{Cell: Cell{row, col}, Value: v, Format: t.formats.lookup(xf)})
	case XL_RK:
		if len(data) < 10 {
			return ErrTruncatedRecord
		}
		row, col, xf := cellHeader(data)
		v := decodeRK(binary.LittleEndian.Uint32(data[6:]))
		t.emitCell(NumberCell{Cell: Cell{row, col}, Value: v, Format: t.formats.lookup(xf)})
	case XL_MULRK:
		if len(data) < 6 {
			return ErrTruncatedRecord
		}
		row := int(binary.LittleEndian.Uint16(data))
		col := int(binary.LittleEndian.Uint16(data[2:]))
		for pos := 4; pos+6 <= len(data)-2; pos += 6 {
			xf := int(binary.LittleEndian.Uint16(data[pos:]))
			v := decodeRK(binary.LittleEndian.Uint32(data[pos+2:]))
			t.emitCell(NumberCell{Cell: Cell{row, col}, Value: v, Format: t.formats.lookup(xf)})
			col++
		}
	case XL_LABEL, XL_RSTRING:
		if len(data) < 8 {
			return ErrTruncatedRecord
		}
		row, col, xf := cellHeader(data)
		text, _, err := t.unpackString(data, 6, 2)
		if err != nil {
			return err
		}
		t.emitCell(TextCell{Cell: Cell{row, col}, Text: text, Format: t.formats.lookup(xf)})
	case XL_LABELSST:
		if len(data) < 10 {
			return ErrTruncatedRecord
		}
		row, col, xf := cellHeader(data)
		idx := int(binary.LittleEndian.Uint32(data[6:]))
		t.emitCell(IndexedTextCell{Cell: Cell{row, col}, Index: idx, Format: t.formats.lookup(xf)})
	case XL_BLANK:
		if len(data) < 6 {
			return ErrTruncatedRecord
		}
		row, col, xf := cellHeader(data)
		t.emitCell(BlankCell{Cell: Cell{row, col}, Format: t.formats.lookup(xf)})
	case XL_MULBLANK:
		if len(data) < 6 {
			return ErrTruncatedRecord
		}
		row := int(binary.LittleEndian.Uint16(data))
		col := int(binary.LittleEndian.Uint16(data[2:]))
		for pos := 4; pos+2 <= len(data)-2; pos += 2 {
			xf := int(binary.LittleEndian.Uint16(data[pos:]))
			t.emitCell(BlankCell{Cell: Cell{row, col}, Format: t.formats.lookup(xf)})
			col++
		}
	case XL_BOOLERR:
		if len(data) < 8 {
			return ErrTruncatedRecord
		}
		row, col, xf := cellHeader(data)
		t.emitCell(BoolErrCell{Cell: Cell{row, col}, Value: data[6], IsError: data[7] != 0, Format: t.formats.lookup(xf)})
	case XL_FORMULA:
		return t.handleFormula(data)
	case XL_STRING:
		text, _, err := t.unpackString(data, 0, 2)
		if err != nil {
			return err
		}
		t.emit(FormulaString{Text: text})
	case XL_SHRFMLA, XL_ARRAY:
		t.logf(2, "%s without a pending formula", RecordName(raw.Code))
	}
	return nil
}

func cellHeader(data []byte) (row, col, xf int) {
	return int(binary.LittleEndian.Uint16(data)),
		int(binary.LittleEndian.Uint16(data[2:])),
		int(binary.LittleEndian.Uint16(data[4:]))
}

// decodeRK unpacks the compressed number of RK and MULRK records.
func decodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xfffffffc) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

func decodeResult(b []byte) CachedResult {
	if b[6] == 0xFF && b[7] == 0xFF {
		switch b[0] {
		case 0:
			return CachedResult{Kind: ResultString, Number: math.NaN()}
		case 1:
			return CachedResult{Kind: ResultBool, Bool: b[2] != 0}
		case 2:
			return CachedResult{Kind: ResultError, Error: b[2]}
		case 3:
			return CachedResult{Kind: ResultEmpty}
		}
	}
	return CachedResult{Kind: ResultNumber, Number: math.Float64frombits(binary.LittleEndian.Uint64(b))}
}

func (t *Tokenizer) handleFormula(data []byte) error {
	if len(data) < 22 {
		return ErrTruncatedRecord
	}
	row, col, xf := cellHeader(data)
	cce := int(binary.LittleEndian.Uint16(data[20:]))
	end := min(22+cce, len(data))
	f := FormulaCell{
		Cell:        Cell{row, col},
		Format:      t.formats.lookup(xf),
		Result:      decodeResult(data[6:14]),
		Tokens:      data[22:end],
		BiffVersion: t.version,
	}

	if len(f.Tokens) == 5 && f.Tokens[0] == 0x01 {
		anchor := cellKey{
			row: int(binary.LittleEndian.Uint16(f.Tokens[1:])),
			col: int(binary.LittleEndian.Uint16(f.Tokens[3:])),
		}
		if sf, ok := t.shared[anchor]; ok {
			f.Tokens, f.Shared = sf.tokens, sf.shared
		} else {
			// The SHRFMLA or ARRAY record follows the first cell of its range.
			t.pending = &f
			return nil
		}
	}
	t.emitCell(f)
	return nil
}

func (t *Tokenizer) handleSharedFormula(raw RawRecord) error {
	f := t.pending
	t.pending = nil
	data := raw.Data

	var tokens []byte
	var shared bool
	switch raw.Code {
	case XL_SHRFMLA:
		if len(data) < 10 {
			return ErrTruncatedRecord
		}
		cce := int(binary.LittleEndian.Uint16(data[8:]))
		tokens = data[10:min(10+cce, len(data))]
		shared = true
	case XL_ARRAY:
		if len(data) < 14 {
			return ErrTruncatedRecord
		}
		cce := int(binary.LittleEndian.Uint16(data[12:]))
		tokens = data[14:min(14+cce, len(data))]
	}
	anchor := cellKey{
		row: int(binary.LittleEndian.Uint16(data)),
		col: int(data[4]),
	}
	t.shared[anchor] = sharedFormula{tokens: tokens, shared: shared}
	f.Tokens, f.Shared = tokens, shared
	t.emitCell(*f)
	return nil
}

func (t *Tokenizer) flushPending() {
	if t.pending == nil {
		return
	}
	t.logf(1, "*** WARNING: formula at R%dC%d references a missing shared formula", t.pending.Row, t.pending.Col)
	f := *t.pending
	t.pending = nil
	t.emitCell(f)
}

// emitCell queues rec after the RowEnd and GapCell markers its position implies.
func (t *Tokenizer) emitCell(rec CellRecord) {
	row, col := rec.Position()
	if row != t.lastRow {
		if row < t.lastRow {
			t.logf(2, "row %d follows row %d", row, t.lastRow)
			t.emit(RowEnd{Row: t.lastRow, LastCol: t.lastCol})
		}
		for r := max(t.lastRow, 0); r < row; r++ {
			last := -1
			if r == t.lastRow {
				last = t.lastCol
			}
			t.emit(RowEnd{Row: r, LastCol: last})
		}
		t.lastRow = row
		t.lastCol = -1
	}
	for c := t.lastCol + 1; c < col; c++ {
		t.emit(GapCell{Cell{row, c}})
	}
	if col > t.lastCol {
		t.lastCol = col
	}
	t.emit(rec)
}
