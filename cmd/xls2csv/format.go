package main

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yamitzky/xlstream/xlrd"
)

const defaultSheetDelimiter = "---"

type quotingMode int

const (
	quotingNone quotingMode = iota
	quotingMinimal
	quotingNonNumeric
	quotingAll
)

type csvWriter struct {
	w              io.Writer
	delimiter      rune
	lineTerminator string
	quoting        quotingMode
}

type field struct {
	text      string
	isNumeric bool
}

// hexByte decodes the "xNN" notation accepted for control characters.
func hexByte(value string) (byte, bool, error) {
	if len(value) != 3 || value[0] != 'x' {
		return 0, false, nil
	}
	b, err := strconv.ParseUint(value[1:], 16, 8)
	return byte(b), true, err
}

func parseDelimiter(value string) (rune, error) {
	if strings.EqualFold(value, "tab") {
		return '\t', nil
	}
	if value == "" {
		return 0, fmt.Errorf("delimiter cannot be empty")
	}
	if b, ok, err := hexByte(strings.ToLower(value)); ok {
		return rune(b), err
	}
	r, _ := utf8DecodeRune(value)
	return r, nil
}

func parseSheetDelimiter(value string) (string, error) {
	if value == "\\f" {
		return "\f", nil
	}
	if b, ok, err := hexByte(value); ok {
		return string([]byte{b}), err
	}
	return value, nil
}

var escapes = map[byte]byte{'n': '\n', 'r': '\r', 't': '\t', '\\': '\\'}

func parseEscapedString(value string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' {
			b.WriteByte(value[i])
			continue
		}
		i++
		if i == len(value) {
			return "", fmt.Errorf("dangling escape")
		}
		c, ok := escapes[value[i]]
		if !ok {
			return "", fmt.Errorf("unknown escape \\%c", value[i])
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

var quotingModes = map[string]quotingMode{
	"none":       quotingNone,
	"minimal":    quotingMinimal,
	"nonnumeric": quotingNonNumeric,
	"all":        quotingAll,
}

func parseQuoting(value string) (quotingMode, error) {
	mode, ok := quotingModes[strings.ToLower(value)]
	if !ok {
		return quotingMinimal, fmt.Errorf("unsupported quoting: %s", value)
	}
	return mode, nil
}

func osLineSep() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// formatValue renders a decoded value as a CSV field.
func formatValue(v xlrd.Value, opts options) field {
	switch v.Type {
	case xlrd.XL_CELL_INTEGER:
		if opts.floatFormat != "" {
			return field{text: fmt.Sprintf(opts.floatFormat, float64(v.Int)), isNumeric: true}
		}
		return field{text: strconv.FormatInt(v.Int, 10), isNumeric: true}
	case xlrd.XL_CELL_NUMBER:
		return field{text: formatFloat(v.Float, opts.floatFormat), isNumeric: true}
	case xlrd.XL_CELL_DATE:
		return field{text: maybeEscape(formatDate(v.Time, opts.dateFormat), opts.escape)}
	case xlrd.XL_CELL_FORMULA:
		return field{text: maybeEscape("="+v.Text, opts.escape)}
	case xlrd.XL_CELL_EMPTY:
		return field{}
	default:
		return field{text: maybeEscape(v.String(), opts.escape)}
	}
}

func formatFloat(val float64, floatFormat string) string {
	if floatFormat != "" {
		return fmt.Sprintf(floatFormat, val)
	}
	return strconv.FormatFloat(val, 'g', -1, 64)
}

// formatDate writes times of day alone when the date part is the epoch.
func formatDate(t time.Time, dateFormat string) string {
	if dateFormat != "" {
		return strftime(t, dateFormat)
	}
	if t.Year() < 1900 {
		return t.Format("15:04:05")
	}
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02")
}

func maybeEscape(value string, enabled bool) string {
	if !enabled || value == "" {
		return value
	}
	replacer := strings.NewReplacer("\r", "\\r", "\n", "\\n", "\t", "\\t")
	return replacer.Replace(value)
}

func (cw *csvWriter) writeRow(fields []field) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteRune(cw.delimiter)
		}
		if cw.needsQuote(f) {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f.text, `"`, `""`))
			b.WriteByte('"')
		} else {
			b.WriteString(f.text)
		}
	}
	b.WriteString(cw.lineTerminator)
	_, err := io.WriteString(cw.w, b.String())
	return err
}

func (cw *csvWriter) needsQuote(f field) bool {
	switch cw.quoting {
	case quotingAll:
		return true
	case quotingNonNumeric:
		return !f.isNumeric
	case quotingMinimal:
		return strings.ContainsRune(f.text, cw.delimiter) || strings.ContainsAny(f.text, "\"\r\n")
	}
	return false
}

// strftimeLayouts maps strftime directives to Go layouts.
var strftimeLayouts = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02", 'j': "002",
	'H': "15", 'I': "03", 'M': "04", 'S': "05", 'p': "PM",
	'b': "Jan", 'B': "January", 'a': "Mon", 'A': "Monday",
}

func strftime(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 == len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		if format[i] == '%' {
			b.WriteByte('%')
		} else if layout, ok := strftimeLayouts[format[i]]; ok {
			b.WriteString(t.Format(layout))
		} else {
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

func utf8DecodeRune(value string) (rune, int) {
	r, size := utf8.DecodeRuneInString(value)
	if r == utf8.RuneError && size == 1 {
		return rune(value[0]), 1
	}
	return r, size
}
