package xlrd

import (
	"testing"
	"time"

	"github.com/yamitzky/xlstream/biff"
)

func builtin(code int) *biff.Format {
	return &biff.Format{Code: code, Pattern: biff.BuiltinFormats[code]}
}

func custom(pattern string) *biff.Format {
	return &biff.Format{Code: biff.FirstCustomFormat, Pattern: pattern}
}

func TestIsBuiltinDateFormat(t *testing.T) {
	dates := []int{14, 15, 16, 17, 18, 19, 20, 21, 22, 27, 30, 36, 45, 46, 47, 50, 57, 58}
	for _, code := range dates {
		if !IsBuiltinDateFormat(code) {
			t.Errorf("IsBuiltinDateFormat(%d) = false, want true", code)
		}
	}
	for _, code := range []int{0, 1, 2, 3, 4, 9, 10, 11, 12, 13, 23, 37, 44, 48, 49, 59, 164} {
		if IsBuiltinDateFormat(code) {
			t.Errorf("IsBuiltinDateFormat(%d) = true, want false", code)
		}
	}
}

func TestIsDateFormatString(t *testing.T) {
	tests := []struct {
		pattern string
		want    bool
	}{
		{"yyyy-mm-dd", true},
		{"hh:mm", true},
		{"[h]:mm:ss", true},
		{"mmm yyyy", true},
		{"General", false},
		{"@", false},
		{"0.00", false},
		{"#,##0", false},
		{"0.00E+00", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsDateFormatString(tt.pattern); got != tt.want {
			t.Errorf("IsDateFormatString(%q) = %v, want %v", tt.pattern, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		f    *biff.Format
		want Value
	}{
		{"builtin date", 44197, builtin(14), DateValue(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"builtin datetime", 44197.5, builtin(22), DateValue(time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC))},
		{"custom date", 44197, custom("yyyy-mm-dd"), DateValue(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"integer", 41, builtin(1), IntegerValue(41)},
		{"integer with thousands", 1234567, builtin(3), IntegerValue(1234567)},
		{"general integral", 7, builtin(0), IntegerValue(7)},
		{"negative integral", -3, builtin(1), IntegerValue(-3)},
		{"fraction with integer pattern", 41.5, builtin(1), RealValue(41.5)},
		{"decimal pattern", 41, builtin(2), RealValue(41)},
		{"no format", 41, nil, RealValue(41)},
		{"empty pattern", 41, &biff.Format{Code: 200}, RealValue(41)},
		{"shortest digits kept", 0.1 + 0.2, builtin(2), RealValue(0.30000000000000004)},
		{"17 significant digits", 1.2345678901234567, nil, RealValue(1.2345678901234567)},
		{"large with fraction", 123456789.123456789, builtin(2), RealValue(1.2345678912345679e+08)},
		{"negative date", -1, builtin(14), ErrorValue("#NUM!")},
	}
	for _, tt := range tests {
		got := Classify(tt.v, tt.f, 0)
		if !got.Equal(tt.want) {
			t.Errorf("%s: Classify(%v) = %v (%s), want %v (%s)", tt.name, tt.v, got, got.Type, tt.want, tt.want.Type)
		}
	}
}

func TestClassifyDatesNeverNumbers(t *testing.T) {
	c := NewClassifier(0)
	for code := range builtinDateFormats {
		for _, v := range []float64{1, 100, 44197, 44197.25} {
			got := c.Classify(v, builtin(code))
			if got.Type == XL_CELL_INTEGER || got.Type == XL_CELL_NUMBER {
				t.Errorf("Classify(%v, format %d) = %s", v, code, got.Type)
			}
		}
	}
}

func TestClassify1904(t *testing.T) {
	got := Classify(44197-1462, builtin(14), 1)
	want := DateValue(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	if !got.Equal(want) {
		t.Errorf("Classify 1904 = %v, want %v", got, want)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	c := NewClassifier(0)
	formats := []*biff.Format{nil, builtin(0), builtin(2), builtin(14), custom("yyyy-mm-dd"), custom("0.000")}
	for _, f := range formats {
		for _, v := range []float64{0, 1.5, 44197, 1e10 + 0.1} {
			first := c.Classify(v, f)
			for i := 0; i < 3; i++ {
				if got := c.Classify(v, f); !got.Equal(first) {
					t.Errorf("Classify(%v, %+v) changed from %v to %v", v, f, first, got)
				}
			}
		}
	}
}
