package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/yamitzky/xlstream/biff"
	"github.com/yamitzky/xlstream/xlrd"
)

// sink receives the decoded rows and writes them out in one format.
type sink interface {
	xlrd.RowHandler
	// attach gives access to the decoder for sheet names.
	attach(dec *xlrd.Decoder)
	// Close writes anything buffered. Errors raised while handling rows
	// are reported here.
	Close() error
}

func newSink(w io.Writer, opts options) sink {
	switch opts.format {
	case "jsonl":
		return &jsonlSink{enc: json.NewEncoder(w), opts: opts}
	case "parquet":
		return newParquetSink(w)
	}
	return &csvSink{
		cw: &csvWriter{
			w:              w,
			delimiter:      opts.delimiter,
			lineTerminator: opts.lineTerminator,
			quoting:        opts.quoting,
		},
		opts:      opts,
		lastSheet: -1,
	}
}

type sinkBase struct {
	dec *xlrd.Decoder
	err error
}

func (b *sinkBase) attach(dec *xlrd.Decoder) { b.dec = dec }

func (b *sinkBase) sheetName() string {
	if b.dec == nil {
		return ""
	}
	name, _ := b.dec.SheetName()
	return name
}

func (b *sinkBase) HandleCell(sheet, row, col int, v xlrd.Value, f *biff.Format) {}

func (b *sinkBase) AfterAllAnalysed() {}

type csvSink struct {
	sinkBase
	cw        *csvWriter
	opts      options
	lastSheet int
}

func (s *csvSink) HandleRow(sheet, row int, values []xlrd.Value) {
	if s.err != nil {
		return
	}
	if sheet != s.lastSheet {
		s.lastSheet = sheet
		if s.opts.sheet == 0 && s.opts.sheetDelimiter != "" {
			line := s.opts.sheetDelimiter + " " + s.sheetName() + s.opts.lineTerminator
			if _, err := io.WriteString(s.cw.w, line); err != nil {
				s.err = err
				return
			}
		}
	}
	fields := make([]field, len(values))
	allEmpty := true
	for i, v := range values {
		fields[i] = formatValue(v, s.opts)
		if fields[i].text != "" {
			allEmpty = false
		}
	}
	if s.opts.ignoreEmpty && allEmpty {
		return
	}
	s.err = s.cw.writeRow(fields)
}

func (s *csvSink) Close() error { return s.err }

type jsonlRow struct {
	Sheet      string        `json:"sheet"`
	SheetIndex int           `json:"sheet_index"`
	Row        int           `json:"row"`
	Values     []interface{} `json:"values"`
}

type jsonlSink struct {
	sinkBase
	enc  *json.Encoder
	opts options
}

func (s *jsonlSink) HandleRow(sheet, row int, values []xlrd.Value) {
	if s.err != nil {
		return
	}
	if s.opts.ignoreEmpty && allEmpty(values) {
		return
	}
	out := jsonlRow{Sheet: s.sheetName(), SheetIndex: sheet, Row: row, Values: make([]interface{}, len(values))}
	for i, v := range values {
		switch {
		case v.Type == xlrd.XL_CELL_DATE && s.opts.dateFormat != "":
			out.Values[i] = strftime(v.Time, s.opts.dateFormat)
		case v.Type == xlrd.XL_CELL_FORMULA:
			out.Values[i] = "=" + v.Text
		default:
			out.Values[i] = v.Interface()
		}
	}
	s.err = s.enc.Encode(out)
}

func (s *jsonlSink) Close() error { return s.err }

// cellRecord is one non-empty cell of the Parquet output.
type cellRecord struct {
	Sheet      string   `parquet:"sheet,dict"`
	SheetIndex int32    `parquet:"sheet_index"`
	Row        int32    `parquet:"row"`
	Col        int32    `parquet:"col"`
	Type       string   `parquet:"type,dict"`
	Value      string   `parquet:"value"`
	Number     *float64 `parquet:"number,optional"`
	Format     string   `parquet:"format,dict"`
}

const parquetBatchSize = 1024

type parquetSink struct {
	sinkBase
	writer *parquet.GenericWriter[cellRecord]
	batch  []cellRecord
}

func newParquetSink(w io.Writer) *parquetSink {
	codec := &zstd.Codec{
		Level:       zstd.SpeedBestCompression,
		Concurrency: 4,
	}
	return &parquetSink{
		writer: parquet.NewGenericWriter[cellRecord](w,
			parquet.Compression(codec),
			parquet.MaxRowsPerRowGroup(128*1024),
		),
		batch: make([]cellRecord, 0, parquetBatchSize),
	}
}

func (s *parquetSink) HandleCell(sheet, row, col int, v xlrd.Value, f *biff.Format) {
	if s.err != nil || v.IsEmpty() {
		return
	}
	rec := cellRecord{
		Sheet:      s.sheetName(),
		SheetIndex: int32(sheet),
		Row:        int32(row),
		Col:        int32(col),
		Type:       v.Type.String(),
		Value:      cellText(v),
	}
	switch v.Type {
	case xlrd.XL_CELL_INTEGER:
		n := float64(v.Int)
		rec.Number = &n
	case xlrd.XL_CELL_NUMBER:
		n := v.Float
		rec.Number = &n
	}
	if f != nil {
		rec.Format = f.Pattern
	}
	s.batch = append(s.batch, rec)
	if len(s.batch) == parquetBatchSize {
		s.flush()
	}
}

func (s *parquetSink) HandleRow(sheet, row int, values []xlrd.Value) {}

func (s *parquetSink) flush() {
	if len(s.batch) == 0 {
		return
	}
	if _, err := s.writer.Write(s.batch); err != nil {
		s.err = fmt.Errorf("error writing data to Parquet file: %w", err)
	}
	s.batch = s.batch[:0]
}

func (s *parquetSink) Close() error {
	if s.err == nil {
		s.flush()
	}
	if err := s.writer.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("error closing Parquet writer: %w", err)
	}
	return s.err
}

func allEmpty(values []xlrd.Value) bool {
	for _, v := range values {
		if !v.IsEmpty() {
			return false
		}
	}
	return true
}

// cellText renders a value without display options.
func cellText(v xlrd.Value) string {
	switch v.Type {
	case xlrd.XL_CELL_DATE:
		return v.Time.Format(time.RFC3339)
	case xlrd.XL_CELL_FORMULA:
		return "=" + v.Text
	case xlrd.XL_CELL_NUMBER:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	}
	return v.String()
}
