package xlrd

import (
	"math"
	"strconv"
	"time"
)

// CellType identifies the kind of a Value.
type CellType int

// Cell types
const (
	XL_CELL_EMPTY   CellType = 0
	XL_CELL_TEXT    CellType = 1
	XL_CELL_NUMBER  CellType = 2 // fractional number
	XL_CELL_DATE    CellType = 3
	XL_CELL_BOOLEAN CellType = 4
	XL_CELL_ERROR   CellType = 5
	XL_CELL_INTEGER CellType = 7
	XL_CELL_FORMULA CellType = 8 // formula text, emitted instead of results on request
)

var cellTypeNames = map[CellType]string{
	XL_CELL_EMPTY:   "empty",
	XL_CELL_TEXT:    "text",
	XL_CELL_NUMBER:  "number",
	XL_CELL_DATE:    "date",
	XL_CELL_BOOLEAN: "boolean",
	XL_CELL_ERROR:   "error",
	XL_CELL_INTEGER: "integer",
	XL_CELL_FORMULA: "formula",
}

func (t CellType) String() string {
	if name, ok := cellTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Value is a decoded cell value. Only the field matching Type is set.
type Value struct {
	Type  CellType
	Int   int64
	Float float64
	Time  time.Time
	Bool  bool
	// Text holds text, error text or formula text.
	Text string
}

// EmptyValue is the value of blank, missing and unresolvable cells.
func EmptyValue() Value { return Value{} }

// IntegerValue returns an integer Value.
func IntegerValue(i int64) Value { return Value{Type: XL_CELL_INTEGER, Int: i} }

// RealValue returns a fractional number Value.
func RealValue(f float64) Value { return Value{Type: XL_CELL_NUMBER, Float: f} }

// DateValue returns a date/time Value.
func DateValue(t time.Time) Value { return Value{Type: XL_CELL_DATE, Time: t} }

// BooleanValue returns a boolean Value.
func BooleanValue(b bool) Value { return Value{Type: XL_CELL_BOOLEAN, Bool: b} }

// TextValue returns a text Value.
func TextValue(s string) Value { return Value{Type: XL_CELL_TEXT, Text: s} }

// ErrorValue returns an error Value such as "#DIV/0!".
func ErrorValue(text string) Value { return Value{Type: XL_CELL_ERROR, Text: text} }

// FormulaValue returns the reconstructed text of a formula.
func FormulaValue(expr string) Value { return Value{Type: XL_CELL_FORMULA, Text: expr} }

// IsEmpty reports whether v is the empty value.
func (v Value) IsEmpty() bool {
	return v.Type == XL_CELL_EMPTY
}

// Equal compares type and payload.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case XL_CELL_EMPTY:
		return true
	case XL_CELL_INTEGER:
		return v.Int == o.Int
	case XL_CELL_NUMBER:
		return v.Float == o.Float || (math.IsNaN(v.Float) && math.IsNaN(o.Float))
	case XL_CELL_DATE:
		return v.Time.Equal(o.Time)
	case XL_CELL_BOOLEAN:
		return v.Bool == o.Bool
	default:
		return v.Text == o.Text
	}
}

// String renders the value for display. Formula text is wrapped in double
// quotes so it cannot be mistaken for a text cell.
func (v Value) String() string {
	switch v.Type {
	case XL_CELL_INTEGER:
		return strconv.FormatInt(v.Int, 10)
	case XL_CELL_NUMBER:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case XL_CELL_DATE:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format("2006-01-02 15:04:05")
	case XL_CELL_BOOLEAN:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case XL_CELL_FORMULA:
		return `"` + v.Text + `"`
	case XL_CELL_TEXT, XL_CELL_ERROR:
		return v.Text
	}
	return ""
}

// Interface returns the payload as a plain Go value, nil for empty cells.
func (v Value) Interface() interface{} {
	switch v.Type {
	case XL_CELL_INTEGER:
		return v.Int
	case XL_CELL_NUMBER:
		return v.Float
	case XL_CELL_DATE:
		return v.Time
	case XL_CELL_BOOLEAN:
		return v.Bool
	case XL_CELL_TEXT, XL_CELL_ERROR:
		return v.Text
	case XL_CELL_FORMULA:
		return v.String()
	}
	return nil
}
