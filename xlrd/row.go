package xlrd

import "github.com/yamitzky/xlstream/biff"

// RowBuffer holds the values of the row being read. After every Append its
// length is the highest column seen plus one; skipped columns hold Empty.
type RowBuffer struct {
	values []Value
	onCell func(row, col int, v Value, f *biff.Format)
	onRow  func(row int, values []Value)
}

// NewRowBuffer returns a buffer calling onCell for every stored value,
// gap fillers included, and onRow for every flushed row. Either may be nil.
func NewRowBuffer(onCell func(row, col int, v Value, f *biff.Format), onRow func(row int, values []Value)) *RowBuffer {
	return &RowBuffer{onCell: onCell, onRow: onRow}
}

// Append stores v at col. Columns between the current end of the buffer
// and col are filled with Empty first, each with its own notification. A
// column already present is overwritten.
func (b *RowBuffer) Append(row, col int, v Value, f *biff.Format) {
	if col < 0 {
		return
	}
	for c := len(b.values); c < col; c++ {
		b.values = append(b.values, EmptyValue())
		b.notifyCell(row, c, EmptyValue(), nil)
	}
	if col < len(b.values) {
		b.values[col] = v
	} else {
		b.values = append(b.values, v)
	}
	b.notifyCell(row, col, v, f)
}

func (b *RowBuffer) notifyCell(row, col int, v Value, f *biff.Format) {
	if b.onCell != nil {
		b.onCell(row, col, v, f)
	}
}

// Flush reports the row and empties the buffer. The reported slice is not
// reused by the buffer.
func (b *RowBuffer) Flush(row int) {
	values := make([]Value, len(b.values))
	copy(values, b.values)
	b.Reset()
	if b.onRow != nil {
		b.onRow(row, values)
	}
}

// Reset discards buffered values without notification.
func (b *RowBuffer) Reset() {
	clear(b.values)
	b.values = b.values[:0]
}

// Len returns the number of buffered columns.
func (b *RowBuffer) Len() int {
	return len(b.values)
}
