package xlrd

import (
	"math"
	"strconv"
	"strings"

	"github.com/xuri/nfp"

	"github.com/yamitzky/xlstream/biff"
)

// builtinDateFormats are the implicit format indexes that lay out dates or
// times, including the locale dependent calendar formats.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// IsBuiltinDateFormat reports whether a builtin format index is a date format.
func IsBuiltinDateFormat(code int) bool {
	return builtinDateFormats[code]
}

var nonDateFormats = map[string]bool{
	"0.00E+00": true,
	"##0.0E+0": true,
	"General":  true,
	"GENERAL":  true,
	"general":  true,
	"@":        true,
}

// IsDateFormatString reports whether a number format pattern lays out date
// or time parts. Only the first (positive) section is inspected; digit
// placeholders after a date part are fractional seconds.
func IsDateFormatString(pattern string) bool {
	if pattern == "" || nonDateFormats[pattern] {
		return false
	}
	p := nfp.NumberFormatParser()
	sections := p.Parse(pattern)
	if len(sections) == 0 {
		return false
	}
	dateParts := 0
	for _, token := range sections[0].Items {
		switch token.TType {
		case nfp.TokenTypeDateTimes, nfp.TokenTypeElapsedDateTimes:
			dateParts++
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder:
			if dateParts == 0 {
				return false
			}
		}
	}
	return dateParts > 0
}

// Classifier turns numeric payloads into typed values. It caches the
// verdict on each custom pattern for the lifetime of one decode pass.
type Classifier struct {
	Datemode int

	dates map[string]bool
}

// NewClassifier returns a Classifier for the given date system.
func NewClassifier(datemode int) *Classifier {
	return &Classifier{Datemode: datemode, dates: make(map[string]bool)}
}

func (c *Classifier) isDate(f *biff.Format) bool {
	if IsBuiltinDateFormat(f.Code) {
		return true
	}
	if f.Pattern == "" {
		return false
	}
	isDate, ok := c.dates[f.Pattern]
	if !ok {
		isDate = IsDateFormatString(f.Pattern)
		c.dates[f.Pattern] = isDate
	}
	return isDate
}

// Classify decides between date, integer and fractional number. A nil
// format skips straight to the fractional number.
func (c *Classifier) Classify(v float64, f *biff.Format) Value {
	if f == nil {
		return RealValue(roundTrip(v))
	}
	if c.isDate(f) {
		t, err := XldateAsDatetime(v, c.Datemode)
		if err != nil {
			// Excel shows such cells as ####; there is no date to report.
			return ErrorValue("#NUM!")
		}
		return DateValue(t)
	}
	if f.Pattern != "" && !strings.Contains(f.Pattern, ".") && isIntegral(v) {
		return IntegerValue(int64(v))
	}
	return RealValue(roundTrip(v))
}

// Classify is Classifier.Classify without the pattern cache.
func Classify(v float64, f *biff.Format, datemode int) Value {
	return NewClassifier(datemode).Classify(v, f)
}

func isIntegral(v float64) bool {
	return v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64
}

// roundTrip goes through the shortest decimal text that parses back to v.
func roundTrip(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', -1, 64), 64)
	if err != nil {
		return v
	}
	return r
}
