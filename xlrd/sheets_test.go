package xlrd

import "testing"

func TestSheetTrackerAllSheets(t *testing.T) {
	tr := NewSheetTracker(AllSheets)
	if tr.Current() != -1 {
		t.Errorf("Current() = %d, want -1", tr.Current())
	}
	if _, ok := tr.Name(); ok {
		t.Errorf("Name() before any sheet is known")
	}
	tr.AddBoundary("One")
	tr.AddBoundary("Two")
	for i := 0; i < 2; i++ {
		if idx := tr.StartSheet(); idx != i {
			t.Errorf("StartSheet() = %d, want %d", idx, i)
		}
		if !tr.IsTarget() || tr.ShouldStopEarly() {
			t.Errorf("sheet %d: IsTarget = %v, ShouldStopEarly = %v", i, tr.IsTarget(), tr.ShouldStopEarly())
		}
	}
	if name, ok := tr.Name(); !ok || name != "Two" {
		t.Errorf("Name() = %q, %v, want Two", name, ok)
	}
	if got := tr.Sheets(); len(got) != 2 || got[0] != (SheetDescriptor{0, "One"}) {
		t.Errorf("Sheets() = %v", got)
	}
}

func TestSheetTrackerTarget(t *testing.T) {
	tr := NewSheetTracker(1)
	tr.AddBoundary("One")
	tr.StartSheet()
	if tr.IsTarget() || tr.ShouldStopEarly() {
		t.Errorf("sheet 0: IsTarget = %v, ShouldStopEarly = %v", tr.IsTarget(), tr.ShouldStopEarly())
	}
	// The name of the target is looked up lazily.
	if _, ok := tr.Name(); ok {
		t.Errorf("Name() known before its boundary")
	}
	tr.AddBoundary("Two")
	if name, ok := tr.Name(); !ok || name != "Two" {
		t.Errorf("Name() = %q, %v, want Two", name, ok)
	}
	tr.StartSheet()
	if !tr.IsTarget() || tr.ShouldStopEarly() {
		t.Errorf("sheet 1: IsTarget = %v, ShouldStopEarly = %v", tr.IsTarget(), tr.ShouldStopEarly())
	}
	tr.StartSheet()
	if tr.IsTarget() || !tr.ShouldStopEarly() {
		t.Errorf("sheet 2: IsTarget = %v, ShouldStopEarly = %v", tr.IsTarget(), tr.ShouldStopEarly())
	}
	if _, ok := tr.NameOf(5); ok {
		t.Errorf("NameOf(5) found a name")
	}
}
