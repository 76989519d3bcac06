package biff

import "io"

// Kind identifies the variant of a Record.
type Kind int

const (
	KindSheetBoundary Kind = iota
	KindStringTable
	KindSheetStart
	KindSheetEnd
	KindBlank
	KindBoolErr
	KindFormula
	KindFormulaString
	KindText
	KindIndexedText
	KindNumber
	KindRowEnd
	KindGap
	KindEndOfStream
	KindDateMode
	KindExternSheet
	KindDefinedName
	KindExternName
)

var kindNames = [...]string{
	KindSheetBoundary: "SheetBoundary",
	KindStringTable:   "StringTable",
	KindSheetStart:    "SheetStart",
	KindSheetEnd:      "SheetEnd",
	KindBlank:         "Blank",
	KindBoolErr:       "BoolErr",
	KindFormula:       "Formula",
	KindFormulaString: "FormulaString",
	KindText:          "Text",
	KindIndexedText:   "IndexedText",
	KindNumber:        "Number",
	KindRowEnd:        "RowEnd",
	KindGap:           "Gap",
	KindEndOfStream:   "EndOfStream",
	KindDateMode:      "DateMode",
	KindExternSheet:   "ExternSheet",
	KindDefinedName:   "DefinedName",
	KindExternName:    "ExternName",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Record is one decoded unit of the workbook stream.
type Record interface {
	Kind() Kind
}

// CellRecord is a Record positioned on a worksheet cell.
type CellRecord interface {
	Record
	Position() (row, col int)
}

// Source yields records in stream order. Next returns io.EOF after the
// last record.
type Source interface {
	Next() (Record, error)
}

// Format is the display format attached to a cell through its XF record.
type Format struct {
	// Code is the format index: builtin below 164, custom from FORMAT records otherwise.
	Code int
	// Pattern is the format string, empty when the code is unknown.
	Pattern string
}

// Cell carries the zero-based position shared by every cell record.
type Cell struct {
	Row int
	Col int
}

// Position returns the zero-based row and column.
func (c Cell) Position() (int, int) { return c.Row, c.Col }

// SheetBoundary announces a worksheet of the workbook globals.
type SheetBoundary struct {
	Name       string
	Visibility int
}

// StringTable is the workbook-wide shared string table.
type StringTable struct {
	Strings []string
}

// SheetStart marks the BOF of a worksheet substream.
type SheetStart struct {
	BiffVersion int
}

// SheetEnd marks the EOF of a worksheet substream.
type SheetEnd struct{}

// BlankCell is a formatted cell without a value.
type BlankCell struct {
	Cell
	Format *Format
}

// BoolErrCell holds a boolean or an error code.
type BoolErrCell struct {
	Cell
	Value   byte
	IsError bool
	Format  *Format
}

// ResultKind tells how the cached result of a formula is encoded.
type ResultKind int

const (
	ResultNumber ResultKind = iota
	// ResultString means the text follows in a FormulaString record.
	ResultString
	ResultBool
	ResultError
	ResultEmpty
)

// CachedResult is the last computed value stored with a formula.
type CachedResult struct {
	Kind   ResultKind
	Number float64
	Bool   bool
	Error  byte
}

// FormulaCell is a formula with its cached result and RPN token bytes.
type FormulaCell struct {
	Cell
	Format *Format
	Result CachedResult
	Tokens []byte
	// Shared is set when Tokens come from a SHRFMLA record and hold
	// references relative to the cell.
	Shared      bool
	BiffVersion int
}

// FormulaString is the string result of the preceding formula.
type FormulaString struct {
	Text string
}

// TextCell holds an inline string.
type TextCell struct {
	Cell
	Text   string
	Format *Format
}

// IndexedTextCell references the shared string table.
type IndexedTextCell struct {
	Cell
	Index  int
	Format *Format
}

// NumberCell holds a float from NUMBER, RK or MULRK.
type NumberCell struct {
	Cell
	Value  float64
	Format *Format
}

// RowEnd follows the last cell of a row. It is also emitted for rows
// without cells.
type RowEnd struct {
	Row     int
	LastCol int
}

// GapCell stands for a column skipped by the writer.
type GapCell struct {
	Cell
}

// EndOfStream follows the last record.
type EndOfStream struct{}

// DateMode carries the workbook date system: 0 for 1900, 1 for 1904.
type DateMode struct {
	Mode int
}

// ExternRef is one EXTERNSHEET entry.
type ExternRef struct {
	SupBook int
	First   int
	Last    int
	// Local is set when the entry points into this workbook.
	Local bool
}

// ExternSheet lists the sheet references used by 3D formula tokens.
type ExternSheet struct {
	Refs []ExternRef
}

// DefinedName is a NAME record. Scope is the one-based sheet index of a
// local name, 0 for a global one.
type DefinedName struct {
	Name    string
	Scope   int
	Builtin bool
}

// ExternName is an EXTERNNAME record, a name defined by the supporting
// workbook SupBook, such as an add-in function.
type ExternName struct {
	SupBook int
	Name    string
}

func (SheetBoundary) Kind() Kind   { return KindSheetBoundary }
func (StringTable) Kind() Kind     { return KindStringTable }
func (SheetStart) Kind() Kind      { return KindSheetStart }
func (SheetEnd) Kind() Kind        { return KindSheetEnd }
func (BlankCell) Kind() Kind       { return KindBlank }
func (BoolErrCell) Kind() Kind     { return KindBoolErr }
func (FormulaCell) Kind() Kind     { return KindFormula }
func (FormulaString) Kind() Kind   { return KindFormulaString }
func (TextCell) Kind() Kind        { return KindText }
func (IndexedTextCell) Kind() Kind { return KindIndexedText }
func (NumberCell) Kind() Kind      { return KindNumber }
func (RowEnd) Kind() Kind          { return KindRowEnd }
func (GapCell) Kind() Kind         { return KindGap }
func (EndOfStream) Kind() Kind     { return KindEndOfStream }
func (DateMode) Kind() Kind        { return KindDateMode }
func (ExternSheet) Kind() Kind     { return KindExternSheet }
func (DefinedName) Kind() Kind     { return KindDefinedName }
func (ExternName) Kind() Kind      { return KindExternName }

// SliceSource replays a fixed list of records.
type SliceSource struct {
	records []Record
}

// NewSliceSource returns a Source yielding records in order.
func NewSliceSource(records ...Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next implements Source.
func (s *SliceSource) Next() (Record, error) {
	if len(s.records) == 0 {
		return nil, io.EOF
	}
	rec := s.records[0]
	s.records = s.records[1:]
	return rec, nil
}
