package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	bt "github.com/yamitzky/xlstream/internal/bifftest"
)

// sampleWorkbook is a bare BIFF8 stream: Sales holds text, an integer, a
// date and the formula C1/82; Notes holds one string.
func sampleWorkbook() []byte {
	tokens := bytes.Join([][]byte{
		{0x24}, bt.U16(0), bt.U16(2 | 0xC000), // tRef C1
		{0x1E}, bt.U16(82), // tInt 82
		{0x06}, // tDiv
	}, nil)
	return bt.Stream(
		bt.BOF(bt.Globals),
		bt.Format(164, "yyyy-mm-dd"),
		bt.XF(0), bt.XF(1), bt.XF(164),
		bt.BoundSheet("Sales"),
		bt.BoundSheet("Notes"),
		bt.SST("Hi", "there"),
		bt.EOF(),
		bt.BOF(bt.Worksheet),
		bt.LabelSST(0, 0, 0, 0),
		bt.Number(0, 2, 1, 41),
		bt.Number(1, 0, 2, 44197),
		bt.Formula(1, 1, 0, bt.NumberResult(0.5), tokens),
		bt.EOF(),
		bt.BOF(bt.Worksheet),
		bt.LabelSST(0, 0, 0, 1),
		bt.EOF(),
	)
}

func samplePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.xls")
	if err := os.WriteFile(path, sampleWorkbook(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCSV(t *testing.T) {
	sample := samplePath(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"default", []string{sample}, "Hi,,41\n2021-01-01,0.5\n"},
		{"second sheet", []string{"-s", "2", sample}, "there\n"},
		{"all sheets", []string{"-s", "0", sample}, "--- Sales\nHi,,41\n2021-01-01,0.5\n--- Notes\nthere\n"},
		{"no sheet delimiter", []string{"-s", "0", "-p", "", sample}, "Hi,,41\n2021-01-01,0.5\nthere\n"},
		{"tab", []string{"-d", "tab", sample}, "Hi\t\t41\n2021-01-01\t0.5\n"},
		{"quote all", []string{"-q", "all", sample}, "\"Hi\",\"\",\"41\"\n\"2021-01-01\",\"0.5\"\n"},
		{"quote nonnumeric", []string{"-q", "nonnumeric", sample}, "\"Hi\",\"\",41\n\"2021-01-01\",0.5\n"},
		{"date format", []string{"--dateformat", "%Y/%m/%d", sample}, "Hi,,41\n2021/01/01,0.5\n"},
		{"float format", []string{"--floatformat", "%.2f", sample}, "Hi,,41.00\n2021-01-01,0.50\n"},
		{"formulas", []string{"--formulas", sample}, "Hi,,41\n2021-01-01,=C1/82\n"},
		{"crlf", []string{"-l", `\r\n`, sample}, "Hi,,41\r\n2021-01-01,0.5\r\n"},
		{"output encoding", []string{"-s", "0", "-p", "§", "-c", "cp1252", sample}, "\xa7 Sales\nHi,,41\n2021-01-01,0.5\n\xa7 Notes\nthere\n"},
	}
	for _, tt := range tests {
		args := tt.args
		if tt.name != "crlf" {
			args = append([]string{"-l", `\n`}, args...)
		}
		out, errOut, code := runCLI(args)
		if code != 0 {
			t.Errorf("%s: exit code %d, stderr: %s", tt.name, code, errOut)
			continue
		}
		if out != tt.want {
			t.Errorf("%s: output = %q, want %q", tt.name, out, tt.want)
		}
	}
}

func TestRunCSVParses(t *testing.T) {
	out, errOut, code := runCLI([]string{"-d", ";", samplePath(t)})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	record := firstRecord(t, out, ';')
	if len(record) != 3 || record[0] != "Hi" || record[2] != "41" {
		t.Fatalf("first record = %v", record)
	}
}

func TestRunStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-l", `\n`, "-"}, bytes.NewReader(sampleWorkbook()), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr.String())
	}
	if got := firstLine(stdout.String()); got != "Hi,,41" {
		t.Errorf("first line = %q", got)
	}
}

func TestRunOutputFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.csv")
	out, errOut, code := runCLI([]string{"-l", `\n`, "-s", "2", samplePath(t), output})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if out != "" {
		t.Errorf("stdout = %q, want nothing", out)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "there\n" {
		t.Errorf("output file = %q", data)
	}
}

func TestRunDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "book.xls"), sampleWorkbook(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a workbook"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(t.TempDir(), "out")
	if _, errOut, code := runCLI([]string{"-l", `\n`, dir, outDir}); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "book.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if firstLine(string(data)) != "Hi,,41" {
		t.Errorf("book.csv = %q", data)
	}
}

func TestRunJSONLines(t *testing.T) {
	out, errOut, code := runCLI([]string{"-f", "jsonl", "-s", "0", samplePath(t)})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	var rows []jsonlRow
	for _, line := range lines {
		var row jsonlRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		rows = append(rows, row)
	}
	if rows[0].Sheet != "Sales" || rows[0].Values[0] != "Hi" || rows[0].Values[1] != nil || rows[0].Values[2] != 41.0 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Values[0] != "2021-01-01T00:00:00Z" || rows[1].Values[1] != 0.5 {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if rows[2].Sheet != "Notes" || rows[2].SheetIndex != 1 || rows[2].Row != 0 {
		t.Errorf("row 2 = %+v", rows[2])
	}
}

func TestRunParquet(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.parquet")
	if _, errOut, code := runCLI([]string{"-f", "parquet", samplePath(t), output}); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	cells, err := parquet.ReadFile[cellRecord](output)
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if len(cells) != 4 {
		t.Fatalf("got %d cells, want 4: %+v", len(cells), cells)
	}
	date := cells[2]
	if date.Type != "date" || date.Value != time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339) || date.Format != "yyyy-mm-dd" {
		t.Errorf("date cell = %+v", date)
	}
	num := cells[1]
	if num.Sheet != "Sales" || num.Col != 2 || num.Number == nil || *num.Number != 41 {
		t.Errorf("integer cell = %+v", num)
	}
	if cells[0].Number != nil {
		t.Errorf("text cell has a number: %+v", cells[0])
	}
}

func TestRunParquetNeedsOutput(t *testing.T) {
	_, errOut, code := runCLI([]string{"-f", "parquet", samplePath(t)})
	if code != 1 || !strings.Contains(errOut, "output path") {
		t.Errorf("exit code %d, stderr: %s", code, errOut)
	}
}

func TestRunErrors(t *testing.T) {
	sample := samplePath(t)
	tests := [][]string{
		{},
		{"-f", "xml", sample},
		{"-q", "sometimes", sample},
		{"-s", "-1", sample},
		{"--formulas", "--formula-strings", sample},
		{"-c", "klingon", sample},
		{filepath.Join(t.TempDir(), "missing.xls")},
	}
	for _, args := range tests {
		if _, _, code := runCLI(args); code != 1 {
			t.Errorf("%v: exit code %d, want 1", args, code)
		}
	}
}

func TestRunInfo(t *testing.T) {
	out, errOut, code := runCLI([]string{"info", samplePath(t)})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	for _, want := range []string{"format: bare BIFF stream", "sheet 1: Sales", "sheet 2: Notes"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output lacks %q:\n%s", want, out)
		}
	}
}

func TestRunDump(t *testing.T) {
	out, errOut, code := runCLI([]string{"dump", "--count", samplePath(t)})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if !strings.Contains(out, "BOF") {
		t.Errorf("record counts lack BOF:\n%s", out)
	}
}

func TestRunRefs(t *testing.T) {
	out, errOut, code := runCLI([]string{"refs", samplePath(t)})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if want := "Sales!B2\t=C1/82\tC1\n"; out != want {
		t.Errorf("refs output = %q, want %q", out, want)
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := map[string]rune{"tab": '\t', "x09": '\t', ";": ';', "x7c": '|', "é": 'é'}
	for in, want := range tests {
		got, err := parseDelimiter(in)
		if err != nil || got != want {
			t.Errorf("parseDelimiter(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := parseDelimiter(""); err == nil {
		t.Errorf("parseDelimiter accepted an empty delimiter")
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), "2021-01-01"},
		{time.Date(2021, 1, 1, 12, 30, 0, 0, time.UTC), "2021-01-01 12:30:00"},
		{time.Date(1899, 12, 31, 6, 0, 0, 0, time.UTC), "06:00:00"},
	}
	for _, tt := range tests {
		if got := formatDate(tt.t, ""); got != tt.want {
			t.Errorf("formatDate(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
	if got := strftime(time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), "%d.%m.%y %H:%M:%S %%"); got != "04.03.21 05:06:07 %" {
		t.Errorf("strftime = %q", got)
	}
}

func runCLI(args []string) (string, string, int) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(""), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func firstRecord(t *testing.T, output string, delimiter rune) []string {
	t.Helper()
	reader := csv.NewReader(strings.NewReader(output))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	record, err := reader.Read()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return record
}

func firstLine(output string) string {
	if idx := strings.IndexByte(output, '\n'); idx >= 0 {
		return output[:idx]
	}
	return output
}
