package xlrd

import (
	"fmt"
	"io"
	"os"

	"github.com/yamitzky/xlstream/biff"
)

// AllSheets is the SheetIndex that decodes every worksheet.
const AllSheets = -1

// Options configures a decode pass.
type Options struct {
	// SheetIndex is the zero-based worksheet to decode, or AllSheets.
	SheetIndex int

	// FormulaText reports formulas as their reconstructed text instead of
	// the result of the last calculation.
	FormulaText bool

	// FormulaStringResults reports string results of formulas, read from
	// the STRING record that follows them. When false such cells are Empty.
	FormulaStringResults bool

	// EncodingOverride is used to overcome missing or bad codepage
	// information in BIFF5/7 files. Used by ReadFile and Read.
	EncodingOverride string

	// Logfile is an open file to which messages and diagnostics are written.
	Logfile io.Writer

	// Verbosity increases the volume of trace material written to the logfile.
	Verbosity int
}

// DefaultOptions decodes every sheet and reports formula results.
func DefaultOptions() *Options {
	return &Options{
		SheetIndex: AllSheets,
		Logfile:    os.Stderr,
	}
}

// Validate checks option combinations.
func (o *Options) Validate() error {
	if o.SheetIndex < AllSheets {
		return NewXLRDError("invalid sheet index %d", o.SheetIndex)
	}
	if o.FormulaText && o.FormulaStringResults {
		return NewXLRDError("FormulaText and FormulaStringResults are mutually exclusive")
	}
	if o.Verbosity < 0 {
		return NewXLRDError("invalid verbosity %d", o.Verbosity)
	}
	return nil
}

// State is the position of a Decoder in the workbook.
type State int

const (
	// Idle is the state outside any worksheet.
	Idle State = iota
	// InSheet is the state inside a worksheet being decoded.
	InSheet
	// SkippingSheet is the state inside a worksheet filtered out.
	SkippingSheet
	// Stopped is the final state.
	Stopped
)

var stateNames = [...]string{
	Idle:          "Idle",
	InSheet:       "InSheet",
	SkippingSheet: "SkippingSheet",
	Stopped:       "Stopped",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RowHandler receives the decoded workbook.
type RowHandler interface {
	// HandleCell is called for every cell of a decoded row, in column
	// order, skipped columns included with an Empty value and nil format.
	HandleCell(sheet, row, col int, v Value, f *biff.Format)
	// HandleRow is called once per row with all its values. The slice is
	// owned by the handler.
	HandleRow(sheet, row int, values []Value)
	// AfterAllAnalysed is called once at the end of the stream.
	AfterAllAnalysed()
}

// SheetEndHandler is implemented by handlers that want to know when a
// decoded worksheet ends.
type SheetEndHandler interface {
	HandleSheetEnd(sheet int)
}

// HandlerFuncs adapts functions to RowHandler. Nil fields are skipped.
type HandlerFuncs struct {
	Cell     func(sheet, row, col int, v Value, f *biff.Format)
	Row      func(sheet, row int, values []Value)
	SheetEnd func(sheet int)
	Done     func()
}

func (h HandlerFuncs) HandleCell(sheet, row, col int, v Value, f *biff.Format) {
	if h.Cell != nil {
		h.Cell(sheet, row, col, v, f)
	}
}

func (h HandlerFuncs) HandleRow(sheet, row int, values []Value) {
	if h.Row != nil {
		h.Row(sheet, row, values)
	}
}

func (h HandlerFuncs) HandleSheetEnd(sheet int) {
	if h.SheetEnd != nil {
		h.SheetEnd(sheet)
	}
}

func (h HandlerFuncs) AfterAllAnalysed() {
	if h.Done != nil {
		h.Done()
	}
}

type pendingFormula struct {
	row, col int
	format   *biff.Format
}

// Decoder rebuilds rows of typed values from a record stream in a single
// forward pass.
type Decoder struct {
	handler   RowHandler
	sheetEnd  SheetEndHandler
	opts      Options
	logfile   io.Writer
	verbosity int

	state      State
	tracker    *SheetTracker
	sst        *SharedStrings
	row        *RowBuffer
	curRow     int
	classifier *Classifier
	resolver   *FormulaResolver

	fctx      *FormulaContext
	collected []biff.Record

	// expectString is set after a formula with a string result was
	// reported Empty: the STRING record that follows is dropped.
	expectString bool
	pending      *pendingFormula
	completed    bool
}

// NewDecoder returns a Decoder notifying h. Nil options mean DefaultOptions.
func NewDecoder(h RowHandler, options *Options) *Decoder {
	if options == nil {
		options = DefaultOptions()
	}
	if h == nil {
		h = HandlerFuncs{}
	}
	d := &Decoder{
		handler:    h,
		opts:       *options,
		logfile:    options.Logfile,
		verbosity:  options.Verbosity,
		tracker:    NewSheetTracker(options.SheetIndex),
		classifier: NewClassifier(0),
		curRow:     -1,
	}
	if d.logfile == nil {
		d.logfile = io.Discard
	}
	if seh, ok := h.(SheetEndHandler); ok {
		d.sheetEnd = seh
	}
	d.row = NewRowBuffer(d.notifyCell, d.notifyRow)
	d.resolver = NewFormulaResolver(d.classifier, options.FormulaText, d.formulaContext)
	return d
}

func (d *Decoder) logf(level int, format string, args ...interface{}) {
	if d.verbosity >= level {
		fmt.Fprintf(d.logfile, format+"\n", args...)
	}
}

func (d *Decoder) notifyCell(row, col int, v Value, f *biff.Format) {
	d.handler.HandleCell(d.tracker.Current(), row, col, v, f)
}

func (d *Decoder) notifyRow(row int, values []Value) {
	d.handler.HandleRow(d.tracker.Current(), row, values)
}

// State returns the current state.
func (d *Decoder) State() State { return d.state }

// SheetIndex returns the sheet filter, AllSheets when there is none.
func (d *Decoder) SheetIndex() int { return d.tracker.Target() }

// CurrentSheetIndex returns the index of the last worksheet started, -1
// before the first.
func (d *Decoder) CurrentSheetIndex() int { return d.tracker.Current() }

// SheetName returns the name of the targeted sheet, or of the last sheet
// started when every sheet is decoded.
func (d *Decoder) SheetName() (string, bool) { return d.tracker.Name() }

// Sheets returns the worksheets announced so far.
func (d *Decoder) Sheets() []SheetDescriptor { return d.tracker.Sheets() }

// Decode pulls every record from src. It returns a *SourceError when src
// fails; rows already reported stay reported. Records of the other sheets
// are still read after the targeted sheet, so src runs to its end.
func (d *Decoder) Decode(src biff.Source) error {
	for {
		rec, err := src.Next()
		if err == io.EOF {
			d.complete()
			return nil
		}
		if err != nil {
			return &SourceError{Err: err}
		}
		d.Process(rec)
	}
}

// Process performs one dispatch step.
func (d *Decoder) Process(rec biff.Record) {
	if d.pending != nil {
		if fs, ok := rec.(biff.FormulaString); ok {
			d.resolvePending(TextValue(fs.Text))
			return
		}
		if d.verbosity >= 2 {
			d.logf(2, "formula at %s: no string result follows", CellName(d.pending.row, d.pending.col))
		}
		d.resolvePending(EmptyValue())
	}
	if d.expectString {
		d.expectString = false
		if _, ok := rec.(biff.FormulaString); ok {
			return
		}
	}

	switch r := rec.(type) {
	case biff.SheetBoundary:
		idx := d.tracker.AddBoundary(r.Name)
		d.logf(2, "sheet %d: %q", idx, r.Name)
		return
	case biff.StringTable:
		if d.sst != nil {
			d.logf(1, "*** WARNING: second string table replaces the first")
		}
		d.sst = NewSharedStrings(r.Strings)
		d.logf(2, "string table: %d strings", d.sst.Len())
		return
	case biff.DateMode:
		d.classifier.Datemode = r.Mode
		return
	case biff.ExternSheet, biff.DefinedName, biff.ExternName:
		if d.opts.FormulaText {
			d.collect(rec)
		}
		return
	case biff.EndOfStream:
		d.complete()
		return
	}

	if d.state == Stopped {
		return
	}
	switch rec.(type) {
	case biff.SheetStart:
		d.startSheet()
		return
	case biff.SheetEnd:
		d.endSheet()
		return
	}
	switch d.state {
	case SkippingSheet:
		return
	case Idle:
		d.logf(1, "*** WARNING: %v: %s outside a worksheet", ErrUnexpectedRecord, rec.Kind())
		return
	}

	switch r := rec.(type) {
	case biff.RowEnd:
		d.row.Flush(r.Row)
		d.curRow = -1
	case biff.GapCell:
		d.addCell(r.Row, r.Col, EmptyValue(), nil)
	case biff.BlankCell:
		d.addCell(r.Row, r.Col, EmptyValue(), r.Format)
	case biff.BoolErrCell:
		v := BooleanValue(r.Value != 0)
		if r.IsError {
			v = ErrorValue(biff.ErrorText(r.Value))
		}
		d.addCell(r.Row, r.Col, v, r.Format)
	case biff.NumberCell:
		d.addCell(r.Row, r.Col, d.classifier.Classify(r.Value, r.Format), r.Format)
	case biff.TextCell:
		d.addCell(r.Row, r.Col, TextValue(r.Text), r.Format)
	case biff.IndexedTextCell:
		v := EmptyValue()
		if s, err := d.sst.Resolve(r.Index); err != nil {
			if d.verbosity >= 1 {
				d.logf(1, "*** WARNING: cell %s: %v", CellName(r.Row, r.Col), err)
			}
		} else {
			v = TextValue(s)
		}
		d.addCell(r.Row, r.Col, v, r.Format)
	case biff.FormulaCell:
		d.formula(r)
	case biff.FormulaString:
		d.logf(1, "*** WARNING: %v: STRING record without a pending formula", ErrUnexpectedRecord)
	default:
		d.logf(2, "ignoring %s record", rec.Kind())
	}
}

func (d *Decoder) setState(s State) {
	if s != d.state {
		d.logf(2, "state %s -> %s", d.state, s)
		d.state = s
	}
}

func (d *Decoder) startSheet() {
	if d.row.Len() > 0 {
		d.logf(1, "*** WARNING: discarding %d cells of an unfinished row", d.row.Len())
	}
	d.row.Reset()
	d.curRow = -1

	idx := d.tracker.StartSheet()
	switch {
	case d.tracker.ShouldStopEarly():
		d.logf(2, "sheet %d is past the target sheet %d", idx, d.tracker.Target())
		d.setState(Stopped)
	case d.tracker.IsTarget():
		d.setState(InSheet)
	default:
		d.setState(SkippingSheet)
	}
}

func (d *Decoder) endSheet() {
	if d.state == InSheet {
		if d.row.Len() > 0 {
			d.logf(1, "*** WARNING: sheet %d ended inside row %d", d.tracker.Current(), d.curRow)
			d.row.Flush(d.curRow)
			d.curRow = -1
		}
		if d.sheetEnd != nil {
			d.sheetEnd.HandleSheetEnd(d.tracker.Current())
		}
	}
	d.setState(Idle)
}

func (d *Decoder) addCell(row, col int, v Value, f *biff.Format) {
	if d.curRow >= 0 && row != d.curRow && d.row.Len() > 0 {
		// The row end marker was lost; keep rows apart.
		d.logf(1, "*** WARNING: row %d has no end marker", d.curRow)
		d.row.Flush(d.curRow)
	}
	d.curRow = row
	d.row.Append(row, col, v, f)
}

func (d *Decoder) formula(r biff.FormulaCell) {
	v, deferred, err := d.resolver.Resolve(r)
	if err != nil && d.verbosity >= 1 {
		d.logf(1, "*** WARNING: formula at %s: %v", CellName(r.Row, r.Col), err)
	}
	if deferred {
		if d.opts.FormulaStringResults {
			d.pending = &pendingFormula{row: r.Row, col: r.Col, format: r.Format}
			return
		}
		d.expectString = true
	}
	d.addCell(r.Row, r.Col, v, r.Format)
}

func (d *Decoder) resolvePending(v Value) {
	p := d.pending
	d.pending = nil
	if d.state == InSheet {
		d.addCell(p.row, p.col, v, p.format)
	}
}

func (d *Decoder) collect(rec biff.Record) {
	if d.fctx != nil {
		d.fctx.Add(rec)
		return
	}
	d.collected = append(d.collected, rec)
}

// formulaContext builds the name context from the records collected so far.
func (d *Decoder) formulaContext() *FormulaContext {
	if d.fctx == nil {
		d.fctx = NewFormulaContext(d.tracker)
		for _, rec := range d.collected {
			d.fctx.Add(rec)
		}
		d.collected = nil
	}
	return d.fctx
}

func (d *Decoder) complete() {
	if d.completed {
		return
	}
	d.completed = true
	if d.pending != nil {
		d.resolvePending(EmptyValue())
	}
	if d.state == InSheet && d.row.Len() > 0 {
		d.logf(1, "*** WARNING: stream ended inside row %d", d.curRow)
		d.row.Flush(d.curRow)
	}
	d.setState(Stopped)
	d.handler.AfterAllAnalysed()
}
