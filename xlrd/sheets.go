package xlrd

// SheetDescriptor names a worksheet by its position in the workbook.
type SheetDescriptor struct {
	Index int
	Name  string
}

// SheetTracker follows worksheet boundaries. Names come from BOUNDSHEET
// records of the globals; sheet indexes advance on each worksheet BOF.
type SheetTracker struct {
	target  int
	current int
	sheets  []SheetDescriptor
}

// NewSheetTracker returns a tracker filtering on target, or AllSheets.
func NewSheetTracker(target int) *SheetTracker {
	return &SheetTracker{target: target, current: -1}
}

// AddBoundary records the next sheet name and returns its index.
func (t *SheetTracker) AddBoundary(name string) int {
	idx := len(t.sheets)
	t.sheets = append(t.sheets, SheetDescriptor{Index: idx, Name: name})
	return idx
}

// StartSheet advances to the next sheet and returns its index.
func (t *SheetTracker) StartSheet() int {
	t.current++
	return t.current
}

// Current returns the index of the sheet being read, -1 before the first.
func (t *SheetTracker) Current() int { return t.current }

// Target returns the sheet filter, AllSheets when every sheet is decoded.
func (t *SheetTracker) Target() int { return t.target }

// IsTarget reports whether the current sheet passes the filter.
func (t *SheetTracker) IsTarget() bool {
	return t.target < 0 || t.current == t.target
}

// ShouldStopEarly reports whether the targeted sheet is behind us.
func (t *SheetTracker) ShouldStopEarly() bool {
	return t.target >= 0 && t.current > t.target
}

// Name returns the name of the targeted sheet, or of the last sheet
// started when no sheet is targeted. The name may not be known yet.
func (t *SheetTracker) Name() (string, bool) {
	idx := t.target
	if idx < 0 {
		idx = t.current
	}
	return t.NameOf(idx)
}

// NameOf returns the name of sheet idx.
func (t *SheetTracker) NameOf(idx int) (string, bool) {
	if idx < 0 || idx >= len(t.sheets) {
		return "", false
	}
	return t.sheets[idx].Name, true
}

// Sheets returns the descriptors seen so far.
func (t *SheetTracker) Sheets() []SheetDescriptor {
	return append([]SheetDescriptor(nil), t.sheets...)
}
